package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Sessions table - one row per monitoring session with its thresholds and final tallies
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			ear_threshold REAL NOT NULL,
			mar_threshold REAL NOT NULL,
			eye_frames INTEGER NOT NULL,
			yawn_frames INTEGER NOT NULL,
			reset_on_no_face INTEGER NOT NULL DEFAULT 0,
			started_at DATETIME NOT NULL,
			ended_at DATETIME,
			frames INTEGER NOT NULL DEFAULT 0,
			face_frames INTEGER NOT NULL DEFAULT 0,
			eye_closed_count INTEGER NOT NULL DEFAULT 0,
			yawn_count INTEGER NOT NULL DEFAULT 0,
			mean_ear REAL,
			mean_mar REAL
		)`,

		// Events table - status transitions within a session
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			status TEXT NOT NULL CHECK(status IN ('active', 'eyes_closed', 'yawning', 'no_face')),
			eye_closed_count INTEGER NOT NULL,
			yawn_count INTEGER NOT NULL,
			ear REAL,
			mar REAL,
			created_at DATETIME NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON sessions(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session_id ON events(session_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
