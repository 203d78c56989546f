package engine

import (
	"context"
	"os"
	"testing"

	"github.com/agsys/edgehog-runtime/internal/ota"
)

// fakeBackend is a minimal Backend stand-in, matching the ota
// package's own fakeBackend style since the engine has no real RAUC
// device to talk to in tests.
type fakeBackend struct{}

func (fakeBackend) BundleInfo(ctx context.Context, path string) (ota.BundleInfo, error) {
	return ota.BundleInfo{}, nil
}
func (fakeBackend) SystemCompatible(ctx context.Context) (string, error) { return "demo", nil }
func (fakeBackend) BootSlot(ctx context.Context) (string, error)         { return "A", nil }
func (fakeBackend) InstallBundle(ctx context.Context, path string) error { return nil }
func (fakeBackend) ReceiveCompleted(ctx context.Context) (<-chan ota.DeployStatus, error) {
	ch := make(chan ota.DeployStatus)
	close(ch)
	return ch, nil
}
func (fakeBackend) LastError(ctx context.Context) (string, error)     { return "", nil }
func (fakeBackend) GetPrimary(ctx context.Context) (string, error)    { return "A", nil }
func (fakeBackend) Mark(ctx context.Context, state, slot string) error { return nil }
func (fakeBackend) Reboot(ctx context.Context) error                   { return nil }

func setupTestEngine(t *testing.T) (*Engine, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "engine-test-*.db")
	if err != nil {
		t.Fatalf("create temp db: %v", err)
	}
	f.Close()
	os.Remove(f.Name())

	cfg := DefaultConfig()
	cfg.DatabasePath = f.Name()
	cfg.OtaDownloadDir = t.TempDir()

	e, err := New(cfg, fakeBackend{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	return e, func() {
		os.Remove(f.Name())
	}
}

func TestNewWiresAllCollaborators(t *testing.T) {
	e, cleanup := setupTestEngine(t)
	defer cleanup()

	if e.db == nil {
		t.Fatal("expected database to be opened")
	}
	if e.ota == nil {
		t.Fatal("expected ota manager to be constructed")
	}
	if e.reconciler == nil {
		t.Fatal("expected container reconciler to be constructed")
	}
	if e.Containers() == nil {
		t.Fatal("expected Containers() to expose the reconciler")
	}
	if e.Store() == nil {
		t.Fatal("expected Store() to expose the containers store")
	}
}

func TestStartThenStopIsOrderly(t *testing.T) {
	e, cleanup := setupTestEngine(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
