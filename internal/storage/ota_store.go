package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/agsys/edgehog-runtime/internal/ota"
)

// OtaStore implements ota.Store over the single ota_state row.
type OtaStore struct {
	db *DB
}

func NewOtaStore(db *DB) *OtaStore {
	return &OtaStore{db: db}
}

func (s *OtaStore) Exists(ctx context.Context) (bool, error) {
	var n int
	err := s.db.conn.QueryRowContext(ctx, `SELECT COUNT(1) FROM ota_state WHERE id = 1`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("ota_state exists: %w", err)
	}
	return n > 0, nil
}

func (s *OtaStore) Read(ctx context.Context) (ota.PersistentState, error) {
	var requestUUID, slot string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT request_uuid, slot FROM ota_state WHERE id = 1`,
	).Scan(&requestUUID, &slot)
	if err == sql.ErrNoRows {
		return ota.PersistentState{}, fmt.Errorf("ota_state: no persisted state")
	}
	if err != nil {
		return ota.PersistentState{}, fmt.Errorf("ota_state read: %w", err)
	}

	id, err := uuid.Parse(requestUUID)
	if err != nil {
		return ota.PersistentState{}, fmt.Errorf("ota_state: stored request_uuid %q: %w", requestUUID, err)
	}
	return ota.PersistentState{UUID: id, Slot: slot}, nil
}

func (s *OtaStore) Write(ctx context.Context, state ota.PersistentState) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT INTO ota_state (id, request_uuid, slot, updated_at)
		VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			request_uuid = excluded.request_uuid,
			slot = excluded.slot,
			updated_at = excluded.updated_at
	`, state.UUID.String(), state.Slot)
	if err != nil {
		return fmt.Errorf("ota_state write: %w", err)
	}
	return nil
}

func (s *OtaStore) Clear(ctx context.Context) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM ota_state WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("ota_state clear: %w", err)
	}
	return nil
}
