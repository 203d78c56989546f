package containers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Publisher is the containers-facing slice of the Upstream Client (M):
// sending and retracting individual properties by interface and path.
type Publisher interface {
	Send(ctx context.Context, iface, path string, value any) error
	Unset(ctx context.Context, iface, path string) error
}

// AvailableProp binds one entity instance to one property path on one
// Astarte-style interface, generic over the value type each kind
// reports (images/networks/volumes/deployments report a bool
// existence flag, containers report their runtime status string).
type AvailableProp[T any] struct {
	Interface string
	Field     string
	Id        uuid.UUID
}

func (p AvailableProp[T]) path() string {
	return fmt.Sprintf("/%s/%s", p.Id, p.Field)
}

// Send publishes value at this prop's path. Idempotent: republishing
// the same value is harmless.
func (p AvailableProp[T]) Send(ctx context.Context, pub Publisher, value T) error {
	return pub.Send(ctx, p.Interface, p.path(), value)
}

// Unset retracts this prop, used when the underlying entity is deleted.
func (p AvailableProp[T]) Unset(ctx context.Context, pub Publisher) error {
	return pub.Unset(ctx, p.Interface, p.path())
}

const (
	availableImagesInterface      = "io.edgehog.devicemanager.apps.AvailableImages"
	availableNetworksInterface    = "io.edgehog.devicemanager.apps.AvailableNetworks"
	availableVolumesInterface     = "io.edgehog.devicemanager.apps.AvailableVolumes"
	availableContainersInterface  = "io.edgehog.devicemanager.apps.AvailableContainers"
	availableDeploymentsInterface = "io.edgehog.devicemanager.apps.AvailableDeployments"
)

func availableImage(id uuid.UUID) AvailableProp[bool] {
	return AvailableProp[bool]{Interface: availableImagesInterface, Field: "pulled", Id: id}
}

func availableNetwork(id uuid.UUID) AvailableProp[bool] {
	return AvailableProp[bool]{Interface: availableNetworksInterface, Field: "created", Id: id}
}

func availableVolume(id uuid.UUID) AvailableProp[bool] {
	return AvailableProp[bool]{Interface: availableVolumesInterface, Field: "created", Id: id}
}

func availableDeployment(id uuid.UUID) AvailableProp[bool] {
	return AvailableProp[bool]{Interface: availableDeploymentsInterface, Field: "deployed", Id: id}
}

// container status is reported as a string rather than a bool since a
// container has more observable states than merely existing.
func availableContainer(id uuid.UUID) AvailableProp[string] {
	return AvailableProp[string]{Interface: availableContainersInterface, Field: "status", Id: id}
}

func containerStatusString(s ContainerStatus) string {
	switch s {
	case ContainerCreated:
		return "Created"
	case ContainerPublished:
		return "Published"
	default:
		return "Received"
	}
}
