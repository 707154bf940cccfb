package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Users table - one row per enrolled identity
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_updated DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// User embeddings table - face encodings with per-sample appearance flags
		`CREATE TABLE IF NOT EXISTS user_embeddings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			sample_index INTEGER NOT NULL,
			encoding TEXT NOT NULL,
			has_glasses INTEGER NOT NULL DEFAULT 0,
			has_facial_hair INTEGER NOT NULL DEFAULT 0,
			UNIQUE(user_id, sample_index)
		)`,

		// Auth attempts table - history of authentication results
		`CREATE TABLE IF NOT EXISTS auth_attempts (
			id TEXT PRIMARY KEY,
			user_name TEXT,
			matched INTEGER NOT NULL DEFAULT 0,
			confidence REAL NOT NULL DEFAULT 0,
			scores TEXT NOT NULL DEFAULT '[]',
			outcome TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_user_embeddings_user_id ON user_embeddings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_auth_attempts_created_at ON auth_attempts(created_at)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
