package containers

import (
	"context"

	"github.com/google/uuid"
)

// Store is the Persistent Store's containers-facing surface: the
// source of desired state for every entity kind, and the place a
// reconciler records the runtime-local id and status it observed.
type Store interface {
	FindImage(ctx context.Context, id uuid.UUID) (*Image, error)
	UpdateImageStatus(ctx context.Context, id uuid.UUID, status ImageStatus) error
	UpdateImageLocalId(ctx context.Context, id uuid.UUID, localId string) error
	DeleteImage(ctx context.Context, id uuid.UUID) error

	FindNetwork(ctx context.Context, id uuid.UUID) (*Network, error)
	UpdateNetworkStatus(ctx context.Context, id uuid.UUID, status NetworkStatus) error
	UpdateNetworkLocalId(ctx context.Context, id uuid.UUID, localId string) error
	DeleteNetwork(ctx context.Context, id uuid.UUID) error

	FindVolume(ctx context.Context, id uuid.UUID) (*Volume, error)
	UpdateVolumeStatus(ctx context.Context, id uuid.UUID, status VolumeStatus) error
	UpdateVolumeLocalId(ctx context.Context, id uuid.UUID, localId string) error
	DeleteVolume(ctx context.Context, id uuid.UUID) error

	FindContainer(ctx context.Context, id uuid.UUID) (*Container, error)
	UpdateContainerStatus(ctx context.Context, id uuid.UUID, status ContainerStatus) error
	UpdateContainerLocalId(ctx context.Context, id uuid.UUID, localId string) error
	DeleteContainer(ctx context.Context, id uuid.UUID) error

	FindDeployment(ctx context.Context, id uuid.UUID) (*Deployment, error)
	UpdateDeploymentStatus(ctx context.Context, id uuid.UUID, status DeploymentStatus) error
	UpdateDeploymentLocalId(ctx context.Context, id uuid.UUID, localId string) error
	DeleteDeployment(ctx context.Context, id uuid.UUID) error
}
