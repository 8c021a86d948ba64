package instakit

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestFileStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewFileStore(path)

	tok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, store.Set(ctx, &oauth2.Token{AccessToken: "first"}))
	require.NoError(t, store.Set(ctx, &oauth2.Token{AccessToken: "second"}))

	// Re-read through a fresh store
	tok, err = NewFileStore(path).Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, "second", tok.AccessToken)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx))
	tok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Get(context.Background())
	assert.ErrorIs(t, err, ErrStorageError)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, codeIO, e.Code)
}

func TestSQLiteStoreReadWrite(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "token.db"))
	require.NoError(t, err)
	defer store.Close()

	tok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, store.Set(ctx, &oauth2.Token{AccessToken: "a", TokenType: "bearer"}))
	require.NoError(t, store.Set(ctx, &oauth2.Token{AccessToken: "b", TokenType: "bearer"}))
	tok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", tok.AccessToken)

	var rows int
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&rows))
	assert.Equal(t, 1, rows)

	require.NoError(t, store.Delete(ctx))
	tok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)
}

// fakeSecurity mimics security(1) over an in-memory item.
type fakeSecurity struct {
	item    string
	present bool
	failSet int
	calls   [][]string
}

func (f *fakeSecurity) run(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	switch args[0] {
	case "find-generic-password":
		if !f.present {
			return nil, keychainItemNotFound, errors.New("exit status 44")
		}
		return []byte(f.item + "\n"), 0, nil
	case "add-generic-password":
		if f.failSet != 0 {
			return nil, f.failSet, errors.New("exit status")
		}
		f.item, f.present = args[len(args)-1], true
		return nil, 0, nil
	case "delete-generic-password":
		if !f.present {
			return nil, keychainItemNotFound, errors.New("exit status 44")
		}
		f.item, f.present = "", false
		return nil, 0, nil
	}
	return nil, 1, errors.New("unknown command")
}

func TestKeychainStore(t *testing.T) {
	ctx := context.Background()
	sec := &fakeSecurity{}
	store := NewKeychainStore("client-123")
	store.run = sec.run

	tok, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, store.Set(ctx, &oauth2.Token{AccessToken: "KEY"}))
	tok, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "KEY", tok.AccessToken)
	assert.Contains(t, sec.calls[1], DefaultTokenKey)
	assert.Contains(t, sec.calls[1], "client-123")

	require.NoError(t, store.Delete(ctx))
	require.NoError(t, store.Delete(ctx), "deleting a missing item succeeds")
}

func TestKeychainStoreSurfacesResultCode(t *testing.T) {
	sec := &fakeSecurity{failSet: 51}
	store := NewKeychainStore("client-123")
	store.run = sec.run

	err := store.Set(context.Background(), &oauth2.Token{AccessToken: "KEY"})
	assert.ErrorIs(t, err, ErrStorageError)
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 51, e.Code)
	assert.Equal(t, "keychain.set", e.Op)
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := OpenStore(ctx, &Config{Store: "file", StorePath: filepath.Join(dir, "t.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = OpenStore(ctx, &Config{Store: "sqlite", StorePath: filepath.Join(dir, "t.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.(*SQLiteStore).Close()

	s, err = OpenStore(ctx, &Config{Store: "keychain"})
	require.NoError(t, err)
	assert.IsType(t, &KeychainStore{}, s)

	_, err = OpenStore(ctx, &Config{Store: "floppy"})
	assert.Error(t, err)
}
