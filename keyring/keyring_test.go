package keyring

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestStore_SystemKeyring(t *testing.T) {
	keyring.MockInit()

	s := New(t.TempDir())
	if s.UsesLocalStorage() {
		t.Fatal("mock keyring should be used when available")
	}

	if _, err := s.Get("vpnPassword"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty store error = %v, want ErrNotFound", err)
	}

	if err := s.Store("vpnPassword", "hunter2"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	got, err := s.Get("vpnPassword")
	if err != nil || got != "hunter2" {
		t.Errorf("Get() = %q, %v; want hunter2", got, err)
	}

	if err := s.Delete("vpnPassword"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get("vpnPassword"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestStore_EncryptedFallback(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	dir := t.TempDir()

	s := New(dir)
	if !s.UsesLocalStorage() {
		t.Fatal("encrypted file should be used when keyring fails")
	}

	if err := s.Store("vpnPassword", "hunter2"); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, ".credentials"))
	if err != nil {
		t.Fatalf("credentials file not written: %v", err)
	}
	if string(raw) == "" || strings.Contains(string(raw), "hunter2") {
		t.Error("credentials file must be encrypted")
	}

	reopened := New(dir)
	got, err := reopened.Get("vpnPassword")
	if err != nil || got != "hunter2" {
		t.Errorf("reopened Get() = %q, %v; want hunter2", got, err)
	}
}

func TestStore_EmptyKey(t *testing.T) {
	keyring.MockInit()
	s := New(t.TempDir())

	if err := s.Store("", "x"); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Store(\"\") error = %v", err)
	}
	if _, err := s.Get(""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Get(\"\") error = %v", err)
	}
	if err := s.Delete(""); !errors.Is(err, ErrEmptyKey) {
		t.Errorf("Delete(\"\") error = %v", err)
	}
}

func TestDeriveKey_Stable(t *testing.T) {
	a, b := deriveKey(), deriveKey()
	if len(a) != 32 {
		t.Fatalf("key length = %d, want 32", len(a))
	}
	if string(a) != string(b) {
		t.Error("deriveKey() must be deterministic on the same machine")
	}
}
