package containers

import "context"

// Runtime is the opaque Container Runtime (C): the local engine that
// actually owns images, networks, volumes, containers and deployments.
// Reconcilers call it to fetch, create and delete the runtime-side
// half of an entity; everything it returns is an engine-local id this
// package treats as opaque.
//
// Running the workloads themselves (attaching to stdout, exec,
// restart policies) is out of scope — Runtime only manages the
// existence of these objects.
type Runtime interface {
	InspectImage(ctx context.Context, ref string) (localId string, err error)
	PullImage(ctx context.Context, ref string) (localId string, err error)
	RemoveImage(ctx context.Context, localId string) error

	InspectNetwork(ctx context.Context, localId string) (string, error)
	CreateNetwork(ctx context.Context, p NetworkPayload) (localId string, err error)
	RemoveNetwork(ctx context.Context, localId string) error

	InspectVolume(ctx context.Context, localId string) (string, error)
	CreateVolume(ctx context.Context, p VolumePayload) (localId string, err error)
	RemoveVolume(ctx context.Context, localId string) error

	InspectContainer(ctx context.Context, localId string) (string, error)
	CreateContainer(ctx context.Context, p ContainerPayload, localIds ContainerDeps) (localId string, err error)
	RemoveContainer(ctx context.Context, localId string) error

	InspectDeployment(ctx context.Context, localId string) (string, error)
	StartDeployment(ctx context.Context, p DeploymentPayload, localIds []string) (localId string, err error)
	StopDeployment(ctx context.Context, localId string) error
}

// ContainerDeps resolves a container's image/network/volume ids to
// their already-created runtime-local ids, in the order given by the
// container's payload.
type ContainerDeps struct {
	ImageLocalId   string
	NetworkLocalIds []string
	VolumeLocalIds  []string
}
