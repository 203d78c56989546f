// Package dockerd is the concrete Container Runtime (C): a
// containers.Runtime backed by the local Docker engine, reached
// through the official Docker SDK the way the wider example pack's
// container-management code does.
package dockerd

import (
	"context"
	"fmt"
	"io"
	"strings"

	dockertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/agsys/edgehog-runtime/internal/containers"
)

// dockerClient is the slice of the Docker SDK client this package
// needs, narrowed from client.APIClient the same way the wider example
// pack's common.DockerClient narrows it — small enough to fake in
// tests without implementing the entire engine API surface.
type dockerClient interface {
	ImageInspect(ctx context.Context, imageID string) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error)

	NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	NetworkRemove(ctx context.Context, networkID string) error
	NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error

	VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error)
	VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error)
	VolumeRemove(ctx context.Context, volumeID string, force bool) error

	ContainerInspect(ctx context.Context, containerID string) (dockertypes.InspectResponse, error)
	ContainerCreate(ctx context.Context, config *dockertypes.Config, hostConfig *dockertypes.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockertypes.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options dockertypes.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options dockertypes.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options dockertypes.RemoveOptions) error

	Close() error
}

// Runtime implements containers.Runtime against a real Docker daemon.
// localId for images/networks/volumes/containers is the Docker-assigned
// id; a deployment's localId is its member container ids joined with
// ",", since the Docker engine has no deployment object of its own.
type Runtime struct {
	cli dockerClient
}

// New connects to the Docker daemon using the standard environment
// variables (DOCKER_HOST, DOCKER_API_VERSION, ...), the same discovery
// the Docker CLI itself uses.
func New() (*Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("dockerd: connect: %w", err)
	}
	return &Runtime{cli: cli}, nil
}

func (r *Runtime) Close() error {
	return r.cli.Close()
}

func (r *Runtime) InspectImage(ctx context.Context, ref string) (string, error) {
	insp, err := r.cli.ImageInspect(ctx, ref)
	if client.IsErrNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dockerd: inspect image %s: %w", ref, err)
	}
	return insp.ID, nil
}

func (r *Runtime) PullImage(ctx context.Context, ref string) (string, error) {
	rc, err := r.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return "", fmt.Errorf("dockerd: pull image %s: %w", ref, err)
	}
	defer rc.Close()
	if _, err := io.Copy(io.Discard, rc); err != nil {
		return "", fmt.Errorf("dockerd: pull image %s: %w", ref, err)
	}
	return r.InspectImage(ctx, ref)
}

func (r *Runtime) RemoveImage(ctx context.Context, localId string) error {
	_, err := r.cli.ImageRemove(ctx, localId, image.RemoveOptions{Force: true})
	if client.IsErrNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dockerd: remove image %s: %w", localId, err)
	}
	return nil
}

func (r *Runtime) InspectNetwork(ctx context.Context, localId string) (string, error) {
	insp, err := r.cli.NetworkInspect(ctx, localId, network.InspectOptions{})
	if client.IsErrNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dockerd: inspect network %s: %w", localId, err)
	}
	return insp.ID, nil
}

func (r *Runtime) CreateNetwork(ctx context.Context, p containers.NetworkPayload) (string, error) {
	resp, err := r.cli.NetworkCreate(ctx, p.Driver, network.CreateOptions{Driver: p.Driver})
	if err != nil {
		return "", fmt.Errorf("dockerd: create network: %w", err)
	}
	return resp.ID, nil
}

func (r *Runtime) RemoveNetwork(ctx context.Context, localId string) error {
	err := r.cli.NetworkRemove(ctx, localId)
	if client.IsErrNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dockerd: remove network %s: %w", localId, err)
	}
	return nil
}

func (r *Runtime) InspectVolume(ctx context.Context, localId string) (string, error) {
	insp, err := r.cli.VolumeInspect(ctx, localId)
	if client.IsErrNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dockerd: inspect volume %s: %w", localId, err)
	}
	return insp.Name, nil
}

func (r *Runtime) CreateVolume(ctx context.Context, p containers.VolumePayload) (string, error) {
	vol, err := r.cli.VolumeCreate(ctx, volume.CreateOptions{Driver: p.Driver})
	if err != nil {
		return "", fmt.Errorf("dockerd: create volume: %w", err)
	}
	return vol.Name, nil
}

func (r *Runtime) RemoveVolume(ctx context.Context, localId string) error {
	err := r.cli.VolumeRemove(ctx, localId, true)
	if client.IsErrNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dockerd: remove volume %s: %w", localId, err)
	}
	return nil
}

func (r *Runtime) InspectContainer(ctx context.Context, localId string) (string, error) {
	insp, err := r.cli.ContainerInspect(ctx, localId)
	if client.IsErrNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dockerd: inspect container %s: %w", localId, err)
	}
	return insp.ID, nil
}

func (r *Runtime) CreateContainer(ctx context.Context, p containers.ContainerPayload, deps containers.ContainerDeps) (string, error) {
	config := &dockertypes.Config{
		Image: deps.ImageLocalId,
		Env:   p.Env,
	}
	hostConfig := &dockertypes.HostConfig{}
	for _, vol := range deps.VolumeLocalIds {
		hostConfig.Mounts = append(hostConfig.Mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: vol,
		})
	}

	resp, err := r.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		return "", fmt.Errorf("dockerd: create container: %w", err)
	}

	for _, netId := range deps.NetworkLocalIds {
		if err := r.cli.NetworkConnect(ctx, netId, resp.ID, nil); err != nil {
			return "", fmt.Errorf("dockerd: connect container %s to network %s: %w", resp.ID, netId, err)
		}
	}

	if err := r.cli.ContainerStart(ctx, resp.ID, dockertypes.StartOptions{}); err != nil {
		return "", fmt.Errorf("dockerd: start container %s: %w", resp.ID, err)
	}

	return resp.ID, nil
}

func (r *Runtime) RemoveContainer(ctx context.Context, localId string) error {
	err := r.cli.ContainerRemove(ctx, localId, dockertypes.RemoveOptions{Force: true})
	if client.IsErrNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("dockerd: remove container %s: %w", localId, err)
	}
	return nil
}

// InspectDeployment checks that every member container it was last
// told about is still running. localId is the comma-joined set of
// container ids, so there is nothing to look up beyond those ids
// themselves.
func (r *Runtime) InspectDeployment(ctx context.Context, localId string) (string, error) {
	if localId == "" {
		return "", nil
	}
	for _, id := range strings.Split(localId, ",") {
		insp, err := r.cli.ContainerInspect(ctx, id)
		if client.IsErrNotFound(err) {
			return "", nil
		}
		if err != nil {
			return "", fmt.Errorf("dockerd: inspect deployment member %s: %w", id, err)
		}
		if !insp.State.Running {
			return "", nil
		}
	}
	return localId, nil
}

func (r *Runtime) StartDeployment(ctx context.Context, p containers.DeploymentPayload, containerLocalIds []string) (string, error) {
	for _, id := range containerLocalIds {
		if err := r.cli.ContainerStart(ctx, id, dockertypes.StartOptions{}); err != nil {
			return "", fmt.Errorf("dockerd: start deployment member %s: %w", id, err)
		}
	}
	return strings.Join(containerLocalIds, ","), nil
}

func (r *Runtime) StopDeployment(ctx context.Context, localId string) error {
	if localId == "" {
		return nil
	}
	for _, id := range strings.Split(localId, ",") {
		if err := r.cli.ContainerStop(ctx, id, dockertypes.StopOptions{}); err != nil && !client.IsErrNotFound(err) {
			return fmt.Errorf("dockerd: stop deployment member %s: %w", id, err)
		}
	}
	return nil
}
