package ota

import "context"

// BundleInfo describes a downloaded bundle's compatibility metadata.
type BundleInfo struct {
	Compatible string
	Version    string
}

// DeployStatusKind discriminates the lazy DeployStatus sequence
// produced by Backend.ReceiveCompleted.
type DeployStatusKind int

const (
	DeployProgressKind DeployStatusKind = iota
	DeployCompletedKind
)

// DeployStatus is one item of the install-progress stream.
type DeployStatus struct {
	Kind       DeployStatusKind
	Percentage int
	Message    string
	Signal     int
}

// Backend is the opaque Updater Backend (U): bundle inspection, slot
// query, install, progress stream, slot-marking. A real implementation
// wraps the platform's A/B updater (e.g. RAUC); this package only
// depends on the interface.
type Backend interface {
	// BundleInfo reads the compatible/version metadata of a downloaded
	// bundle file.
	BundleInfo(ctx context.Context, path string) (BundleInfo, error)

	// SystemCompatible returns the running system's compatible string.
	SystemCompatible(ctx context.Context) (string, error)

	// BootSlot returns the identifier of the currently booted slot.
	BootSlot(ctx context.Context) (string, error)

	// InstallBundle begins installing the bundle at path into the
	// inactive slot. Progress and completion are observed through
	// ReceiveCompleted.
	InstallBundle(ctx context.Context, path string) error

	// ReceiveCompleted returns a channel of DeployStatus values. The
	// channel is closed by the backend when the install finishes or
	// its process disconnects; a close without a DeployCompletedKind
	// item means the stream was truncated.
	ReceiveCompleted(ctx context.Context) (<-chan DeployStatus, error)

	// LastError returns the backend's last reported error message, if
	// the progress stream ended without a Completed item.
	LastError(ctx context.Context) (string, error)

	// GetPrimary returns the slot that should become primary after a
	// successful update.
	GetPrimary(ctx context.Context) (string, error)

	// Mark sets the named slot state (e.g. "active") on the given
	// slot, confirming a successful boot.
	Mark(ctx context.Context, state, slot string) error

	// Reboot requests that the system restart into the newly
	// installed slot.
	Reboot(ctx context.Context) error
}
