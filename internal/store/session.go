package store

import (
	"database/sql"
	"errors"
	"time"
)

// Session represents one monitoring session stored in the database.
type Session struct {
	ID     string
	Source string

	EARThreshold  float64
	MARThreshold  float64
	EyeFrames     int
	YawnFrames    int
	ResetOnNoFace bool

	StartedAt time.Time
	EndedAt   *time.Time

	Frames         int
	FaceFrames     int
	EyeClosedCount int
	YawnCount      int
	MeanEAR        *float64
	MeanMAR        *float64
}

// Active reports whether the session has not been finished yet.
func (s *Session) Active() bool {
	return s.EndedAt == nil
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, source, ear_threshold, mar_threshold, eye_frames, yawn_frames, reset_on_no_face,
	started_at, ended_at, frames, face_frames, eye_closed_count, yawn_count, mean_ear, mean_mar`

// Create inserts a new session. StartedAt defaults to now.
func (r *SessionRepository) Create(s *Session) error {
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now()
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, source, ear_threshold, mar_threshold, eye_frames, yawn_frames,
			reset_on_no_face, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.Source, s.EARThreshold, s.MARThreshold, s.EyeFrames, s.YawnFrames,
		s.ResetOnNoFace, s.StartedAt,
	)
	return err
}

// Finish records the final tallies of a session and stamps EndedAt (now if unset).
func (r *SessionRepository) Finish(s *Session) error {
	if s.EndedAt == nil {
		now := time.Now()
		s.EndedAt = &now
	}

	result, err := r.db.Exec(
		`UPDATE sessions SET ended_at = ?, frames = ?, face_frames = ?, eye_closed_count = ?,
			yawn_count = ?, mean_ear = ?, mean_mar = ?
		 WHERE id = ?`,
		*s.EndedAt, s.Frames, s.FaceFrames, s.EyeClosedCount, s.YawnCount,
		nullFloat(s.MeanEAR), nullFloat(s.MeanMAR), s.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)

	s, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s, nil
}

// List retrieves the most recent sessions first. A limit <= 0 returns all of them.
func (r *SessionRepository) List(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT `+sessionColumns+` FROM sessions ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// Delete removes a session and, through the foreign key, its events.
func (r *SessionRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	s := &Session{}
	var endedAt sql.NullTime
	var meanEAR, meanMAR sql.NullFloat64

	err := row.Scan(
		&s.ID, &s.Source, &s.EARThreshold, &s.MARThreshold, &s.EyeFrames, &s.YawnFrames, &s.ResetOnNoFace,
		&s.StartedAt, &endedAt, &s.Frames, &s.FaceFrames, &s.EyeClosedCount, &s.YawnCount, &meanEAR, &meanMAR,
	)
	if err != nil {
		return nil, err
	}

	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	s.MeanEAR = floatPtr(meanEAR)
	s.MeanMAR = floatPtr(meanMAR)

	return s, nil
}
