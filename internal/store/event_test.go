package store

import (
	"testing"
)

func TestEventRepository_AppendAndList(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions().Create(newSession("session-1")); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	ear, mar := 0.12, 0.2
	events := []*Event{
		{SessionID: "session-1", Status: "active"},
		{SessionID: "session-1", Status: "eyes_closed", EyeClosedCount: 1, EAR: &ear, MAR: &mar},
		{SessionID: "session-1", Status: "no_face", EyeClosedCount: 3},
	}

	for _, e := range events {
		if err := s.Events().Append(e); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
		if e.ID == 0 {
			t.Error("ID should be set after append")
		}
		if e.CreatedAt.IsZero() {
			t.Error("CreatedAt should be set after append")
		}
	}

	got, err := s.Events().ListBySession("session-1", 0)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d", len(got))
	}

	for i, e := range got {
		if e.Status != events[i].Status {
			t.Errorf("event %d status = %q, want %q", i, e.Status, events[i].Status)
		}
	}

	if got[0].EAR != nil || got[0].MAR != nil {
		t.Error("first event should have null ratios")
	}
	if got[1].EAR == nil || *got[1].EAR != ear || got[1].MAR == nil || *got[1].MAR != mar {
		t.Errorf("second event ratios = %v/%v, want %v/%v", got[1].EAR, got[1].MAR, ear, mar)
	}
	if got[2].EyeClosedCount != 3 {
		t.Errorf("third event count = %d, want 3", got[2].EyeClosedCount)
	}

	limited, err := s.Events().ListBySession("session-1", 2)
	if err != nil {
		t.Fatalf("failed to list events: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 events with limit, got %d", len(limited))
	}

	n, err := s.Events().CountBySession("session-1")
	if err != nil {
		t.Fatalf("failed to count events: %v", err)
	}
	if n != 3 {
		t.Errorf("CountBySession = %d, want 3", n)
	}
}

func TestEventRepository_RejectsUnknownSession(t *testing.T) {
	s := newTestStore(t)

	err := s.Events().Append(&Event{SessionID: "missing", Status: "active"})
	if err == nil {
		t.Error("expected foreign key violation for unknown session")
	}
}

func TestEventRepository_RejectsUnknownStatus(t *testing.T) {
	s := newTestStore(t)
	if err := s.Sessions().Create(newSession("session-1")); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	err := s.Events().Append(&Event{SessionID: "session-1", Status: "sleeping"})
	if err == nil {
		t.Error("expected check constraint violation for unknown status")
	}
}
