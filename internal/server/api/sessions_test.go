package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/drowsewatch/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func seedSession(t *testing.T, s *store.Store, id string, started time.Time) {
	t.Helper()

	session := &store.Session{
		ID:           id,
		Source:       "0",
		EARThreshold: 0.2,
		MARThreshold: 0.4,
		EyeFrames:    5,
		YawnFrames:   3,
		StartedAt:    started,
	}
	if err := s.Sessions().Create(session); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	ear := 0.11
	for _, e := range []*store.Event{
		{SessionID: id, Status: "active"},
		{SessionID: id, Status: "eyes_closed", EyeClosedCount: 1, EAR: &ear},
	} {
		if err := s.Events().Append(e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s, nil)

	now := time.Now()
	seedSession(t, s, "older", now.Add(-time.Hour))
	seedSession(t, s, "newer", now)

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(response.Sessions))
	}
	if response.Sessions[0].ID != "newer" {
		t.Errorf("expected newest session first, got %s", response.Sessions[0].ID)
	}
	if response.Sessions[0].EndedAt != "" {
		t.Error("unfinished session should have no ended_at")
	}

	t.Run("limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=1", nil))

		var response listSessionsResponse
		json.NewDecoder(rec.Body).Decode(&response)
		if len(response.Sessions) != 1 {
			t.Errorf("expected 1 session, got %d", len(response.Sessions))
		}
	})

	t.Run("invalid limit", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions?limit=zero", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})
}

func TestSessionHandler_List_Empty(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); body != "{\"sessions\":[]}\n" {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s, nil)
	seedSession(t, s, "session-1", time.Now())

	tests := []struct {
		name       string
		id         string
		wantStatus int
	}{
		{name: "existing session", id: "session-1", wantStatus: http.StatusOK},
		{name: "missing session", id: "nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+tt.id, nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestSessionHandler_Events(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s, nil)
	seedSession(t, s, "session-1", time.Now())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/session-1/events", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var response listEventsResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(response.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(response.Events))
	}
	if response.Events[1].Status != "eyes_closed" || response.Events[1].EAR == nil {
		t.Errorf("unexpected second event: %+v", response.Events[1])
	}
	if response.Events[0].EAR != nil {
		t.Error("first event should have null ear")
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/nope/events", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d for missing session, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s, nil)
	seedSession(t, s, "session-1", time.Now())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestSessionHandler_Delete_ActiveSession(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s, func() string { return "session-1" })
	seedSession(t, s, "session-1", time.Now())
	seedSession(t, s, "session-0", time.Now().Add(-time.Hour))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/session-1", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}

	// The running session keeps accepting events.
	if _, err := s.Sessions().GetByID("session-1"); err != nil {
		t.Fatalf("active session should survive, got %v", err)
	}
	if err := s.Events().Append(&store.Event{SessionID: "session-1", Status: "yawning", YawnCount: 1}); err != nil {
		t.Errorf("append to active session error = %v", err)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/sessions/session-0", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("finished session: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
}

func TestSessionHandler_MethodNotAllowed(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t), nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/sessions"},
		{http.MethodPut, "/api/sessions/session-1"},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status %d, got %d", tt.method, tt.path, http.StatusMethodNotAllowed, rec.Code)
		}
	}
}
