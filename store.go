package instakit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// DefaultTokenKey is the namespaced key every store files the token under.
const DefaultTokenKey = "com.kayushkin.instakit.access-token"

// codeIO is the result code reported by stores without platform codes.
const codeIO = -1

// TokenStore persists the single access token. Get returns (nil, nil) when
// no token is stored. Failures are returned as *Error of KindStorageError.
type TokenStore interface {
	Get(ctx context.Context) (*oauth2.Token, error)
	Set(ctx context.Context, token *oauth2.Token) error
	Delete(ctx context.Context) error
}

// OpenStore returns the store named by cfg.Store.
func OpenStore(ctx context.Context, cfg *Config) (TokenStore, error) {
	path := cfg.StorePath
	switch cfg.Store {
	case "", "file":
		if path == "" {
			path = DefaultStorePath()
		}
		return NewFileStore(path), nil
	case "keychain":
		return NewKeychainStore(cfg.ClientID), nil
	case "sqlite":
		if path == "" {
			path = DefaultStorePath() + ".db"
		}
		s, err := OpenSQLiteStore(ctx, path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.Store)
	}
}

// tokenFile is the on-disk format of a FileStore.
type tokenFile struct {
	Version int                      `json:"version"`
	Tokens  map[string]*oauth2.Token `json:"tokens"`
}

// FileStore keeps the token in a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  string
}

// DefaultStorePath returns ~/.config/instakit/token.json.
func DefaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "instakit", "token.json")
	}
	return filepath.Join(dir, "instakit", "token.json")
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, key: DefaultTokenKey}
}

// Path returns the store file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(ctx context.Context) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, storageError("store.get", codeIO, err)
	}
	return data.Tokens[s.key], nil
}

func (s *FileStore) Set(ctx context.Context, token *oauth2.Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// one token at a time: whatever else is in the file is replaced
	data := &tokenFile{Version: 1, Tokens: map[string]*oauth2.Token{s.key: token}}
	if err := s.save(data); err != nil {
		return storageError("store.set", codeIO, err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return storageError("store.delete", codeIO, err)
	}
	return nil
}

func (s *FileStore) load() (*tokenFile, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	data := &tokenFile{}
	if err := json.Unmarshal(raw, data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *FileStore) save(data *tokenFile) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// MemoryStore is a TokenStore that lives only as long as the process.
type MemoryStore struct {
	mu    sync.Mutex
	token *oauth2.Token
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Get(ctx context.Context) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryStore) Set(ctx context.Context, token *oauth2.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = nil
	return nil
}
