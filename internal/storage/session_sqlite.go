package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mselser95/marketview/internal/session"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS session (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT NOT NULL,
	token      TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
);`

// SQLiteSessionStore keeps the single local session in a SQLite file.
type SQLiteSessionStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteSessionStore opens (or creates) the database at path.
func NewSQLiteSessionStore(path string, logger *zap.Logger) (*SQLiteSessionStore, error) {
	if path == "" {
		return nil, errors.New("path cannot be empty")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open session database %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)

	_, err = db.Exec(sessionSchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply session schema: %w", err)
	}

	logger.Info("sqlite-session-store-opened", zap.String("path", path))

	return &SQLiteSessionStore{
		db:     db,
		logger: logger,
	}, nil
}

// Get implements session.Store. It returns nil when nothing is stored.
func (s *SQLiteSessionStore) Get(ctx context.Context) (*session.Session, error) {
	var data, token string

	err := s.db.QueryRowContext(ctx, `SELECT data, token FROM session WHERE id = 1`).Scan(&data, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Empty store is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("query session: %w", err)
	}

	var stored session.Session
	err = json.Unmarshal([]byte(data), &stored)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	stored.Token = token

	return &stored, nil
}

// Set implements session.Store.
func (s *SQLiteSessionStore) Set(ctx context.Context, sess session.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session (id, data, token, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, token = excluded.token, updated_at = excluded.updated_at`,
		string(data), sess.Token, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Clear implements session.Store.
func (s *SQLiteSessionStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM session`)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteSessionStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *SQLiteSessionStore) Close() error {
	s.logger.Info("closing-sqlite-session-store")
	return s.db.Close()
}
