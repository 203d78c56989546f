package dockerd

import (
	"context"
	"io"
	"strings"
	"testing"

	dockertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/volume"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agsys/edgehog-runtime/internal/containers"
)

type fakeDockerClient struct {
	images    map[string]string // ref -> id
	volumes   map[string]string
	networks  map[string]string
	started   []string
	stopped   []string
	removed   []string
	connected map[string]string // containerID -> networkID
}

func newFakeDockerClient() *fakeDockerClient {
	return &fakeDockerClient{
		images:    map[string]string{},
		volumes:   map[string]string{},
		networks:  map[string]string{},
		connected: map[string]string{},
	}
}

func (f *fakeDockerClient) ImageInspect(ctx context.Context, imageID string) (image.InspectResponse, error) {
	id, ok := f.images[imageID]
	if !ok {
		return image.InspectResponse{}, errNotFound{}
	}
	return image.InspectResponse{ID: id}, nil
}

func (f *fakeDockerClient) ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error) {
	f.images[ref] = "sha256:" + ref
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeDockerClient) ImageRemove(ctx context.Context, imageID string, options image.RemoveOptions) ([]image.DeleteResponse, error) {
	delete(f.images, imageID)
	return nil, nil
}

func (f *fakeDockerClient) NetworkInspect(ctx context.Context, networkID string, options network.InspectOptions) (network.Inspect, error) {
	id, ok := f.networks[networkID]
	if !ok {
		return network.Inspect{}, errNotFound{}
	}
	return network.Inspect{ID: id}, nil
}

func (f *fakeDockerClient) NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error) {
	id := "net-" + name
	f.networks[id] = id
	return network.CreateResponse{ID: id}, nil
}

func (f *fakeDockerClient) NetworkRemove(ctx context.Context, networkID string) error {
	delete(f.networks, networkID)
	return nil
}

func (f *fakeDockerClient) NetworkConnect(ctx context.Context, networkID, containerID string, config *network.EndpointSettings) error {
	f.connected[containerID] = networkID
	return nil
}

func (f *fakeDockerClient) VolumeInspect(ctx context.Context, volumeID string) (volume.Volume, error) {
	id, ok := f.volumes[volumeID]
	if !ok {
		return volume.Volume{}, errNotFound{}
	}
	return volume.Volume{Name: id}, nil
}

func (f *fakeDockerClient) VolumeCreate(ctx context.Context, options volume.CreateOptions) (volume.Volume, error) {
	id := "vol-" + options.Driver
	f.volumes[id] = id
	return volume.Volume{Name: id}, nil
}

func (f *fakeDockerClient) VolumeRemove(ctx context.Context, volumeID string, force bool) error {
	delete(f.volumes, volumeID)
	return nil
}

func (f *fakeDockerClient) ContainerInspect(ctx context.Context, containerID string) (dockertypes.InspectResponse, error) {
	resp := dockertypes.InspectResponse{}
	resp.ID = containerID
	resp.State = &dockertypes.State{Running: true}
	return resp, nil
}

func (f *fakeDockerClient) ContainerCreate(ctx context.Context, config *dockertypes.Config, hostConfig *dockertypes.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockertypes.CreateResponse, error) {
	return dockertypes.CreateResponse{ID: "container-" + config.Image}, nil
}

func (f *fakeDockerClient) ContainerStart(ctx context.Context, containerID string, options dockertypes.StartOptions) error {
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeDockerClient) ContainerStop(ctx context.Context, containerID string, options dockertypes.StopOptions) error {
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeDockerClient) ContainerRemove(ctx context.Context, containerID string, options dockertypes.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeDockerClient) Close() error { return nil }

type errNotFound struct{}

func (errNotFound) Error() string   { return "not found" }
func (errNotFound) NotFound() bool  { return true }

func TestPullThenInspectImage(t *testing.T) {
	fake := newFakeDockerClient()
	rt := &Runtime{cli: fake}

	id, err := rt.PullImage(context.Background(), "redis:7")
	require.NoError(t, err)
	assert.Equal(t, "sha256:redis:7", id)

	got, err := rt.InspectImage(context.Background(), "redis:7")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestCreateContainerConnectsDepsAndStarts(t *testing.T) {
	fake := newFakeDockerClient()
	rt := &Runtime{cli: fake}

	id, err := rt.CreateContainer(context.Background(), containers.ContainerPayload{Env: []string{"FOO=bar"}}, containers.ContainerDeps{
		ImageLocalId:    "img-1",
		NetworkLocalIds: []string{"net-1"},
		VolumeLocalIds:  []string{"vol-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "container-img-1", id)
	assert.Equal(t, "net-1", fake.connected[id])
	assert.Contains(t, fake.started, id)
}

func TestStartThenStopDeploymentAffectsAllMembers(t *testing.T) {
	fake := newFakeDockerClient()
	rt := &Runtime{cli: fake}

	localId, err := rt.StartDeployment(context.Background(), containers.DeploymentPayload{}, []string{"c1", "c2"})
	require.NoError(t, err)
	assert.Equal(t, "c1,c2", localId)
	assert.ElementsMatch(t, []string{"c1", "c2"}, fake.started)

	require.NoError(t, rt.StopDeployment(context.Background(), localId))
	assert.ElementsMatch(t, []string{"c1", "c2"}, fake.stopped)
}
