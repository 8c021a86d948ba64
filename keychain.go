package instakit

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/oauth2"
)

// keychainItemNotFound is errSecItemNotFound as reported by security(1).
const keychainItemNotFound = 44

// runFunc executes a command and returns its stdout and exit status.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, int, error)

// KeychainStore keeps the token in the macOS login keychain as a generic
// password. Failures carry the exit status of security(1) as Error.Code.
type KeychainStore struct {
	service string
	account string
	run     runFunc
}

// NewKeychainStore returns a store for the given keychain account.
func NewKeychainStore(account string) *KeychainStore {
	return &KeychainStore{service: DefaultTokenKey, account: account, run: runCommand}
}

func (k *KeychainStore) Get(ctx context.Context) (*oauth2.Token, error) {
	out, code, err := k.run(ctx, "security", "find-generic-password",
		"-s", k.service, "-a", k.account, "-w")
	if err != nil {
		if code == keychainItemNotFound {
			return nil, nil
		}
		return nil, storageError("keychain.get", code, err)
	}
	access := strings.TrimSpace(string(out))
	if access == "" {
		return nil, nil
	}
	return &oauth2.Token{AccessToken: access, TokenType: "bearer"}, nil
}

// Set passes the token on the command line; other local users can see it
// in the process list while security(1) runs.
func (k *KeychainStore) Set(ctx context.Context, token *oauth2.Token) error {
	_, code, err := k.run(ctx, "security", "add-generic-password", "-U",
		"-s", k.service, "-a", k.account, "-w", token.AccessToken)
	if err != nil {
		return storageError("keychain.set", code, err)
	}
	return nil
}

func (k *KeychainStore) Delete(ctx context.Context) error {
	_, code, err := k.run(ctx, "security", "delete-generic-password",
		"-s", k.service, "-a", k.account)
	if err != nil && code != keychainItemNotFound {
		return storageError("keychain.delete", code, err)
	}
	return nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), fmt.Errorf("%s %s: %w", name, args[0], err)
		}
		return out, codeIO, err
	}
	return out, 0, nil
}
