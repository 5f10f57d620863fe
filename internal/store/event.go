package store

import (
	"database/sql"
	"time"
)

// Event is a status transition recorded within a session.
type Event struct {
	ID             int64
	SessionID      string
	Status         string
	EyeClosedCount int
	YawnCount      int
	EAR            *float64
	MAR            *float64
	CreatedAt      time.Time
}

// EventRepository appends and reads session events.
type EventRepository struct {
	db *sql.DB
}

// Events returns the event repository for this store.
func (s *Store) Events() *EventRepository {
	return &EventRepository{db: s.db}
}

// Append inserts e and fills in its ID. CreatedAt defaults to now.
func (r *EventRepository) Append(e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := r.db.Exec(
		`INSERT INTO events (session_id, status, eye_closed_count, yawn_count, ear, mar, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Status, e.EyeClosedCount, e.YawnCount, nullFloat(e.EAR), nullFloat(e.MAR), e.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id

	return nil
}

// ListBySession returns a session's events in the order they were recorded.
// A limit <= 0 returns all of them.
func (r *EventRepository) ListBySession(sessionID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, session_id, status, eye_closed_count, yawn_count, ear, mar, created_at
		 FROM events WHERE session_id = ? ORDER BY id ASC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var ear, mar sql.NullFloat64

		if err := rows.Scan(&e.ID, &e.SessionID, &e.Status, &e.EyeClosedCount, &e.YawnCount, &ear, &mar, &e.CreatedAt); err != nil {
			return nil, err
		}

		e.EAR = floatPtr(ear)
		e.MAR = floatPtr(mar)
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return events, nil
}

// CountBySession returns how many events a session has.
func (r *EventRepository) CountBySession(sessionID string) (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM events WHERE session_id = ?`, sessionID).Scan(&n)
	return n, err
}
