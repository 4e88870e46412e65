package prefs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteStore{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS preferences (
			user_id TEXT PRIMARY KEY,
			payload BLOB NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Load(ctx context.Context, userID string) (*Preferences, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM preferences WHERE user_id = ?`, userID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error loading preferences: %w", err)
	}

	var p Preferences
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("error decoding preferences payload: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) Save(ctx context.Context, userID string, p *Preferences) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("error encoding preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
	`, userID, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error saving preferences: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
