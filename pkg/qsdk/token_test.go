package qsdk

import (
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringStoreRoundTrip(t *testing.T) {
	keyring.MockInit()
	var store KeyringStore

	access, refresh, err := store.Load("https://API.example.com/")
	if err != nil || access != "" || refresh != "" {
		t.Fatalf("empty Load() = %q, %q, %v", access, refresh, err)
	}

	if err := store.Save("https://API.example.com/", "acc", "ref"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	access, refresh, err = store.Load("https://api.example.com")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if access != "acc" || refresh != "ref" {
		t.Errorf("Load() = %q, %q", access, refresh)
	}

	if err := store.Delete("https://api.example.com"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete("https://api.example.com"); err != nil {
		t.Fatalf("second Delete() error = %v", err)
	}
	access, _, _ = store.Load("https://api.example.com")
	if access != "" {
		t.Errorf("token survived Delete: %q", access)
	}
}

func TestNormalizeKey(t *testing.T) {
	if got := normalizeKey("  HTTPS://Example.com/// "); got != "https://example.com" {
		t.Errorf("normalizeKey() = %q", got)
	}
}
