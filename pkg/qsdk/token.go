package qsdk

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "qtube"

// TokenStore persists the session tokens between CLI invocations.
type TokenStore interface {
	Save(baseURL, access, refresh string) error
	// Load returns empty strings, not an error, when nothing is stored.
	Load(baseURL string) (access, refresh string, err error)
	Delete(baseURL string) error
}

// KeyringStore keeps tokens in the OS keyring, one entry per token kind
// and server.
type KeyringStore struct{}

// normalizeKey converts a baseURL into a stable key name for keyring storage.
// It trims trailing slashes and lowercases to avoid accidental duplicates
// like https://example.com/ and https://example.com.
func normalizeKey(baseURL string) string {
	s := strings.TrimSpace(baseURL)
	s = strings.TrimRight(s, "/")
	s = strings.ToLower(s)
	return s
}

func refreshKey(baseURL string) string {
	return normalizeKey(baseURL) + "#refresh"
}

func (KeyringStore) Save(baseURL, access, refresh string) error {
	if err := keyring.Set(keyringService, normalizeKey(baseURL), access); err != nil {
		return err
	}
	return keyring.Set(keyringService, refreshKey(baseURL), refresh)
}

func (KeyringStore) Load(baseURL string) (string, string, error) {
	access, err := keyring.Get(keyringService, normalizeKey(baseURL))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", "", err
	}
	refresh, err := keyring.Get(keyringService, refreshKey(baseURL))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return "", "", err
	}
	return access, refresh, nil
}

// Delete removes both entries. Missing entries are not an error.
func (KeyringStore) Delete(baseURL string) error {
	for _, key := range []string{normalizeKey(baseURL), refreshKey(baseURL)} {
		if err := keyring.Delete(keyringService, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
	}
	return nil
}
