package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/agsys/edgehog-runtime/internal/containers"
)

// ContainersStore implements containers.Store over the images,
// networks, volumes, containers and deployments tables.
type ContainersStore struct {
	db *DB
}

func NewContainersStore(db *DB) *ContainersStore {
	return &ContainersStore{db: db}
}

func splitUUIDs(s string) ([]uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]uuid.UUID, len(parts))
	for i, p := range parts {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("stored id list %q: %w", s, err)
		}
		ids[i] = id
	}
	return ids, nil
}

func localIdPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// --- Images ---

func (s *ContainersStore) FindImage(ctx context.Context, id uuid.UUID) (*containers.Image, error) {
	var localId sql.NullString
	var status containers.ImageStatus
	var reference string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT local_id, status, reference FROM images WHERE id = ?`, id.String(),
	).Scan(&localId, &status, &reference)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find image %s: %w", id, err)
	}
	return &containers.Image{
		Id:      id,
		LocalId: localIdPtr(localId),
		Status:  status,
		Payload: containers.ImagePayload{Reference: reference},
	}, nil
}

func (s *ContainersStore) UpdateImageStatus(ctx context.Context, id uuid.UUID, status containers.ImageStatus) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE images SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id.String())
	if err != nil {
		return fmt.Errorf("update image status %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) UpdateImageLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE images SET local_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, localId, id.String())
	if err != nil {
		return fmt.Errorf("update image local_id %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) DeleteImage(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete image %s: %w", id, err)
	}
	return nil
}

// --- Networks ---

func (s *ContainersStore) FindNetwork(ctx context.Context, id uuid.UUID) (*containers.Network, error) {
	var localId sql.NullString
	var status containers.NetworkStatus
	var driver string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT local_id, status, driver FROM networks WHERE id = ?`, id.String(),
	).Scan(&localId, &status, &driver)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find network %s: %w", id, err)
	}
	return &containers.Network{
		Id:      id,
		LocalId: localIdPtr(localId),
		Status:  status,
		Payload: containers.NetworkPayload{Driver: driver},
	}, nil
}

func (s *ContainersStore) UpdateNetworkStatus(ctx context.Context, id uuid.UUID, status containers.NetworkStatus) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE networks SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id.String())
	if err != nil {
		return fmt.Errorf("update network status %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) UpdateNetworkLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE networks SET local_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, localId, id.String())
	if err != nil {
		return fmt.Errorf("update network local_id %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) DeleteNetwork(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM networks WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete network %s: %w", id, err)
	}
	return nil
}

// --- Volumes ---

func (s *ContainersStore) FindVolume(ctx context.Context, id uuid.UUID) (*containers.Volume, error) {
	var localId sql.NullString
	var status containers.VolumeStatus
	var driver string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT local_id, status, driver FROM volumes WHERE id = ?`, id.String(),
	).Scan(&localId, &status, &driver)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find volume %s: %w", id, err)
	}
	return &containers.Volume{
		Id:      id,
		LocalId: localIdPtr(localId),
		Status:  status,
		Payload: containers.VolumePayload{Driver: driver},
	}, nil
}

func (s *ContainersStore) UpdateVolumeStatus(ctx context.Context, id uuid.UUID, status containers.VolumeStatus) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE volumes SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id.String())
	if err != nil {
		return fmt.Errorf("update volume status %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) UpdateVolumeLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE volumes SET local_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, localId, id.String())
	if err != nil {
		return fmt.Errorf("update volume local_id %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) DeleteVolume(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM volumes WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete volume %s: %w", id, err)
	}
	return nil
}

// --- Containers ---

func (s *ContainersStore) FindContainer(ctx context.Context, id uuid.UUID) (*containers.Container, error) {
	var localId sql.NullString
	var status containers.ContainerStatus
	var imageId, networkIds, volumeIds, env string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT local_id, status, image_id, network_ids, volume_ids, env FROM containers WHERE id = ?`, id.String(),
	).Scan(&localId, &status, &imageId, &networkIds, &volumeIds, &env)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find container %s: %w", id, err)
	}

	imgId, err := uuid.Parse(imageId)
	if err != nil {
		return nil, fmt.Errorf("container %s: stored image_id %q: %w", id, imageId, err)
	}
	networks, err := splitUUIDs(networkIds)
	if err != nil {
		return nil, err
	}
	volumes, err := splitUUIDs(volumeIds)
	if err != nil {
		return nil, err
	}
	var envVars []string
	if env != "" {
		envVars = strings.Split(env, "\n")
	}

	return &containers.Container{
		Id:      id,
		LocalId: localIdPtr(localId),
		Status:  status,
		Payload: containers.ContainerPayload{
			ImageId:  imgId,
			Networks: networks,
			Volumes:  volumes,
			Env:      envVars,
		},
	}, nil
}

func (s *ContainersStore) UpdateContainerStatus(ctx context.Context, id uuid.UUID, status containers.ContainerStatus) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE containers SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id.String())
	if err != nil {
		return fmt.Errorf("update container status %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) UpdateContainerLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE containers SET local_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, localId, id.String())
	if err != nil {
		return fmt.Errorf("update container local_id %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) DeleteContainer(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM containers WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete container %s: %w", id, err)
	}
	return nil
}

// --- Deployments ---

func (s *ContainersStore) FindDeployment(ctx context.Context, id uuid.UUID) (*containers.Deployment, error) {
	var localId sql.NullString
	var status containers.DeploymentStatus
	var containerIds string
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT local_id, status, container_ids FROM deployments WHERE id = ?`, id.String(),
	).Scan(&localId, &status, &containerIds)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find deployment %s: %w", id, err)
	}

	ids, err := splitUUIDs(containerIds)
	if err != nil {
		return nil, err
	}
	return &containers.Deployment{
		Id:      id,
		LocalId: localIdPtr(localId),
		Status:  status,
		Payload: containers.DeploymentPayload{Containers: ids},
	}, nil
}

func (s *ContainersStore) UpdateDeploymentStatus(ctx context.Context, id uuid.UUID, status containers.DeploymentStatus) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE deployments SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, status, id.String())
	if err != nil {
		return fmt.Errorf("update deployment status %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) UpdateDeploymentLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	_, err := s.db.conn.ExecContext(ctx,
		`UPDATE deployments SET local_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, localId, id.String())
	if err != nil {
		return fmt.Errorf("update deployment local_id %s: %w", id, err)
	}
	return nil
}

func (s *ContainersStore) DeleteDeployment(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.conn.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete deployment %s: %w", id, err)
	}
	return nil
}
