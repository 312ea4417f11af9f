package store

import (
	"path/filepath"
	"testing"
)

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()

	if err := s.SetItem("kodiq:nav-config", `{"version":1}`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := s.GetItem("kodiq:nav-config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != `{"version":1}` {
		t.Error("item not stored or retrieved correctly")
	}

	if err := s.RemoveItem("kodiq:nav-config"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, ok, err = s.GetItem("kodiq:nav-config")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("item still present after RemoveItem")
	}
}

func TestInMemoryStoreMissingKey(t *testing.T) {
	s := NewInMemoryStore()

	_, ok, err := s.GetItem("missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("missing key reported as present")
	}

	// Removing a missing key is not an error.
	if err := s.RemoveItem("missing"); err != nil {
		t.Errorf("RemoveItem on missing key returned error: %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "shell.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}
	defer s.Close()

	if err := s.SetItem("fcm_token", "tok-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Overwrite must replace, not duplicate.
	if err := s.SetItem("fcm_token", "tok-2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v, ok, err := s.GetItem("fcm_token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || v != "tok-2" {
		t.Errorf("expected tok-2, got %q (present=%v)", v, ok)
	}

	if err := s.RemoveItem("fcm_token"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, ok, _ = s.GetItem("fcm_token")
	if ok {
		t.Error("item still present after RemoveItem")
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error when DSN not set")
	}
}
