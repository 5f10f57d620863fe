package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/drowsewatch/internal/store"
)

// DefaultListLimit caps list endpoints when no ?limit is given.
const DefaultListLimit = 50

// ActiveSessionFunc returns the id of the session the monitor is recording.
type ActiveSessionFunc func() string

// SessionHandler serves the session journal.
type SessionHandler struct {
	store  *store.Store
	active ActiveSessionFunc
}

// NewSessionHandler creates a new SessionHandler with the given store. active
// may be nil when no monitor is running.
func NewSessionHandler(s *store.Store, active ActiveSessionFunc) *SessionHandler {
	return &SessionHandler{store: s, active: active}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/sessions, /api/sessions/{id}, /api/sessions/{id}/events
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions")
	path = strings.Trim(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	id, sub, _ := strings.Cut(path, "/")
	switch {
	case sub == "events" && r.Method == http.MethodGet:
		h.events(w, r, id)
	case sub != "":
		writeError(w, http.StatusNotFound, "Not found")
	case r.Method == http.MethodGet:
		h.get(w, r, id)
	case r.Method == http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID             string   `json:"id"`
	Source         string   `json:"source"`
	EARThreshold   float64  `json:"ear_threshold"`
	MARThreshold   float64  `json:"mar_threshold"`
	EyeFrames      int      `json:"eye_frames"`
	YawnFrames     int      `json:"yawn_frames"`
	ResetOnNoFace  bool     `json:"reset_on_no_face"`
	StartedAt      string   `json:"started_at"`
	EndedAt        string   `json:"ended_at,omitempty"`
	Frames         int      `json:"frames"`
	FaceFrames     int      `json:"face_frames"`
	EyeClosedCount int      `json:"eye_closed_count"`
	YawnCount      int      `json:"yawn_count"`
	MeanEAR        *float64 `json:"mean_ear"`
	MeanMAR        *float64 `json:"mean_mar"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type eventResponse struct {
	ID             int64    `json:"id"`
	Status         string   `json:"status"`
	EyeClosedCount int      `json:"eye_closed_count"`
	YawnCount      int      `json:"yawn_count"`
	EAR            *float64 `json:"ear"`
	MAR            *float64 `json:"mar"`
	CreatedAt      string   `json:"created_at"`
}

type listEventsResponse struct {
	SessionID string          `json:"session_id"`
	Events    []eventResponse `json:"events"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:             s.ID,
		Source:         s.Source,
		EARThreshold:   s.EARThreshold,
		MARThreshold:   s.MARThreshold,
		EyeFrames:      s.EyeFrames,
		YawnFrames:     s.YawnFrames,
		ResetOnNoFace:  s.ResetOnNoFace,
		StartedAt:      formatTime(s.StartedAt),
		Frames:         s.Frames,
		FaceFrames:     s.FaceFrames,
		EyeClosedCount: s.EyeClosedCount,
		YawnCount:      s.YawnCount,
		MeanEAR:        s.MeanEAR,
		MeanMAR:        s.MeanMAR,
	}
	if s.EndedAt != nil {
		resp.EndedAt = formatTime(*s.EndedAt)
	}
	return resp
}

// parseLimit reads ?limit, falling back to DefaultListLimit.
func parseLimit(r *http.Request) (int, error) {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return DefaultListLimit, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	return n, nil
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	response := listSessionsResponse{
		Sessions: make([]sessionResponse, 0, len(sessions)),
	}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(s))
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	// The monitor still appends events to its current session.
	if h.active != nil && h.active() == id {
		writeError(w, http.StatusConflict, "Session is still being recorded")
		return
	}

	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// events handles GET /api/sessions/{id}/events.
func (h *SessionHandler) events(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	limit := 0
	if r.URL.Query().Get("limit") != "" {
		n, err := parseLimit(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		limit = n
	}

	events, err := h.store.Events().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	response := listEventsResponse{
		SessionID: id,
		Events:    make([]eventResponse, 0, len(events)),
	}
	for _, e := range events {
		response.Events = append(response.Events, eventResponse{
			ID:             e.ID,
			Status:         e.Status,
			EyeClosedCount: e.EyeClosedCount,
			YawnCount:      e.YawnCount,
			EAR:            e.EAR,
			MAR:            e.MAR,
			CreatedAt:      formatTime(e.CreatedAt),
		})
	}

	writeJSON(w, http.StatusOK, response)
}
