// Package containers implements the resource reconciler: per-entity
// state machines (image, network, volume, container, deployment) that
// drive local container-runtime objects toward the desired state
// declared in the Persistent Store, publishing availability
// properties upstream as they go.
package containers

import "github.com/google/uuid"

// ImageStatus is the small per-kind lifecycle enum for an image entity.
type ImageStatus int

const (
	ImageReceived ImageStatus = iota
	ImagePublished
	ImagePulled
)

// NetworkStatus mirrors ImageStatus for network entities.
type NetworkStatus int

const (
	NetworkReceived NetworkStatus = iota
	NetworkPublished
	NetworkCreated
)

// VolumeStatus mirrors ImageStatus for volume entities.
type VolumeStatus int

const (
	VolumeReceived VolumeStatus = iota
	VolumePublished
	VolumeCreated
)

// ContainerStatus mirrors ImageStatus for container entities.
type ContainerStatus int

const (
	ContainerReceived ContainerStatus = iota
	ContainerPublished
	ContainerCreated
)

// DeploymentStatus mirrors ImageStatus for deployment entities.
type DeploymentStatus int

const (
	DeploymentReceived DeploymentStatus = iota
	DeploymentPublished
	DeploymentCreated
)

// Image is the image container entity (spec section 3).
type Image struct {
	Id      uuid.UUID
	LocalId *string
	Status  ImageStatus
	Payload ImagePayload
}

type ImagePayload struct {
	Reference string // e.g. "docker.io/library/redis:7"
}

type Network struct {
	Id      uuid.UUID
	LocalId *string
	Status  NetworkStatus
	Payload NetworkPayload
}

type NetworkPayload struct {
	Driver string
}

type Volume struct {
	Id      uuid.UUID
	LocalId *string
	Status  VolumeStatus
	Payload VolumePayload
}

type VolumePayload struct {
	Driver string
}

type Container struct {
	Id      uuid.UUID
	LocalId *string
	Status  ContainerStatus
	Payload ContainerPayload
}

type ContainerPayload struct {
	ImageId  uuid.UUID
	Networks []uuid.UUID
	Volumes  []uuid.UUID
	Env      []string
}

type Deployment struct {
	Id      uuid.UUID
	LocalId *string
	Status  DeploymentStatus
	Payload DeploymentPayload
}

type DeploymentPayload struct {
	Containers []uuid.UUID
}

// State says whether an entity's runtime-side object exists.
type State int

const (
	StateMissing State = iota
	StateCreated
)

// MissingError reports that an entity referenced by id was not found
// in the Persistent Store.
type MissingError struct {
	Id       uuid.UUID
	Resource string
}

func (e *MissingError) Error() string {
	return "missing " + e.Resource + " " + e.Id.String()
}
