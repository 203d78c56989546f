package storage

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/agsys/edgehog-runtime/internal/ota"
)

func newTestDB(t *testing.T) (*DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "ota-store-test-*.db")
	if err != nil {
		t.Fatalf("failed to create temp db: %v", err)
	}
	tmpFile.Close()

	db, err := Open(tmpFile.Name())
	if err != nil {
		os.Remove(tmpFile.Name())
		t.Fatalf("failed to open database: %v", err)
	}

	return db, func() {
		db.Close()
		os.Remove(tmpFile.Name())
	}
}

func TestOtaStoreExistsFalseInitially(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	store := NewOtaStore(db)
	exists, err := store.Exists(context.Background())
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("expected no persisted state on a fresh database")
	}
}

func TestOtaStoreWriteReadClear(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	store := NewOtaStore(db)
	ctx := context.Background()
	state := ota.PersistentState{UUID: uuid.New(), Slot: "b"}

	if err := store.Write(ctx, state); err != nil {
		t.Fatalf("Write: %v", err)
	}

	exists, err := store.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !exists {
		t.Fatal("expected state to exist after Write")
	}

	got, err := store.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.UUID != state.UUID || got.Slot != state.Slot {
		t.Fatalf("Read returned %+v, want %+v", got, state)
	}

	overwrite := ota.PersistentState{UUID: uuid.New(), Slot: "a"}
	if err := store.Write(ctx, overwrite); err != nil {
		t.Fatalf("Write overwrite: %v", err)
	}
	got, err = store.Read(ctx)
	if err != nil {
		t.Fatalf("Read after overwrite: %v", err)
	}
	if got.Slot != "a" {
		t.Fatalf("expected overwritten slot \"a\", got %q", got.Slot)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	exists, err = store.Exists(ctx)
	if err != nil {
		t.Fatalf("Exists after Clear: %v", err)
	}
	if exists {
		t.Fatal("expected no persisted state after Clear")
	}
}
