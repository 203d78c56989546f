package ota

import "context"

// Store is the OTA slice of the Persistent Store (spec section 6):
// exists/read/write/clear over the single PersistentState row.
type Store interface {
	Exists(ctx context.Context) (bool, error)
	Read(ctx context.Context) (PersistentState, error)
	Write(ctx context.Context, s PersistentState) error
	Clear(ctx context.Context) error
}
