package instakit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	_ "modernc.org/sqlite"
)

const createSecretsTable = `CREATE TABLE IF NOT EXISTS secrets (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// SQLiteStore keeps the token as a single row of a local SQLite database.
type SQLiteStore struct {
	mu  sync.Mutex
	db  *sql.DB
	key string
}

// OpenSQLiteStore opens (creating if needed) the database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, createSecretsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create secrets table: %w", err)
	}
	return &SQLiteStore{db: db, key: DefaultTokenKey}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) Get(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM secrets WHERE key = ?`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storageError("sqlite.get", codeIO, err)
	}
	token := &oauth2.Token{}
	if err := json.Unmarshal([]byte(raw), token); err != nil {
		return nil, storageError("sqlite.get", codeIO, err)
	}
	return token, nil
}

func (s *SQLiteStore) Set(ctx context.Context, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := json.Marshal(token)
	if err != nil {
		return storageError("sqlite.set", codeIO, err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO secrets (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, s.key, string(raw))
	if err != nil {
		return storageError("sqlite.set", codeIO, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE key = ?`, s.key); err != nil {
		return storageError("sqlite.delete", codeIO, err)
	}
	return nil
}
