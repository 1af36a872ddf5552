package signaling

import (
	"path/filepath"
	"testing"
)

func TestUserStoreRegisterAndAuthenticate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	store, err := OpenUserStore(path)
	if err != nil {
		t.Fatalf("OpenUserStore: %v", err)
	}

	if err := store.Register("alice", "hunter2"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := store.Register("alice", "different"); err == nil {
		t.Fatal("expected error re-registering an existing user")
	}

	if err := store.Authenticate("alice", "hunter2"); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := store.Authenticate("alice", "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
	if err := store.Authenticate("ghost", "hunter2"); err == nil {
		t.Fatal("expected error for unknown user")
	}
}

func TestUserStorePersistsAcrossReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.txt")
	store, err := OpenUserStore(path)
	if err != nil {
		t.Fatalf("OpenUserStore: %v", err)
	}
	if err := store.Register("bob", "hunter3"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	reloaded, err := OpenUserStore(path)
	if err != nil {
		t.Fatalf("reopening user store: %v", err)
	}
	if !reloaded.Exists("bob") {
		t.Fatal("expected bob to persist across reload")
	}
	if err := reloaded.Authenticate("bob", "hunter3"); err != nil {
		t.Fatalf("Authenticate after reload: %v", err)
	}
}
