package containers

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu          sync.Mutex
	images      map[uuid.UUID]*Image
	networks    map[uuid.UUID]*Network
	volumes     map[uuid.UUID]*Volume
	containers  map[uuid.UUID]*Container
	deployments map[uuid.UUID]*Deployment
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		images:      map[uuid.UUID]*Image{},
		networks:    map[uuid.UUID]*Network{},
		volumes:     map[uuid.UUID]*Volume{},
		containers:  map[uuid.UUID]*Container{},
		deployments: map[uuid.UUID]*Deployment{},
	}
}

func (s *fakeStore) FindImage(ctx context.Context, id uuid.UUID) (*Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	img, ok := s.images[id]
	if !ok {
		return nil, nil
	}
	cp := *img
	return &cp, nil
}

func (s *fakeStore) UpdateImageStatus(ctx context.Context, id uuid.UUID, status ImageStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id].Status = status
	return nil
}

func (s *fakeStore) UpdateImageLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images[id].LocalId = &localId
	return nil
}

func (s *fakeStore) DeleteImage(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.images, id)
	return nil
}

func (s *fakeStore) FindNetwork(ctx context.Context, id uuid.UUID) (*Network, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.networks[id]
	if !ok {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}
func (s *fakeStore) UpdateNetworkStatus(ctx context.Context, id uuid.UUID, status NetworkStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[id].Status = status
	return nil
}
func (s *fakeStore) UpdateNetworkLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.networks[id].LocalId = &localId
	return nil
}
func (s *fakeStore) DeleteNetwork(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.networks, id)
	return nil
}

func (s *fakeStore) FindVolume(ctx context.Context, id uuid.UUID) (*Volume, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.volumes[id]
	if !ok {
		return nil, nil
	}
	cp := *v
	return &cp, nil
}
func (s *fakeStore) UpdateVolumeStatus(ctx context.Context, id uuid.UUID, status VolumeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[id].Status = status
	return nil
}
func (s *fakeStore) UpdateVolumeLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volumes[id].LocalId = &localId
	return nil
}
func (s *fakeStore) DeleteVolume(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.volumes, id)
	return nil
}

func (s *fakeStore) FindContainer(ctx context.Context, id uuid.UUID) (*Container, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.containers[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}
func (s *fakeStore) UpdateContainerStatus(ctx context.Context, id uuid.UUID, status ContainerStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[id].Status = status
	return nil
}
func (s *fakeStore) UpdateContainerLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.containers[id].LocalId = &localId
	return nil
}
func (s *fakeStore) DeleteContainer(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.containers, id)
	return nil
}

func (s *fakeStore) FindDeployment(ctx context.Context, id uuid.UUID) (*Deployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deployments[id]
	if !ok {
		return nil, nil
	}
	cp := *d
	return &cp, nil
}
func (s *fakeStore) UpdateDeploymentStatus(ctx context.Context, id uuid.UUID, status DeploymentStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[id].Status = status
	return nil
}
func (s *fakeStore) UpdateDeploymentLocalId(ctx context.Context, id uuid.UUID, localId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deployments[id].LocalId = &localId
	return nil
}
func (s *fakeStore) DeleteDeployment(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.deployments, id)
	return nil
}

type fakeRuntime struct {
	mu       sync.Mutex
	nextId   int
	pulled   []string
	removed  []string
}

func (r *fakeRuntime) alloc() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId++
	return uuid.New().String()
}

func (r *fakeRuntime) InspectImage(ctx context.Context, localId string) (string, error) { return localId, nil }
func (r *fakeRuntime) PullImage(ctx context.Context, ref string) (string, error) {
	r.mu.Lock()
	r.pulled = append(r.pulled, ref)
	r.mu.Unlock()
	return r.alloc(), nil
}
func (r *fakeRuntime) RemoveImage(ctx context.Context, localId string) error {
	r.mu.Lock()
	r.removed = append(r.removed, localId)
	r.mu.Unlock()
	return nil
}

func (r *fakeRuntime) InspectNetwork(ctx context.Context, localId string) (string, error) { return localId, nil }
func (r *fakeRuntime) CreateNetwork(ctx context.Context, p NetworkPayload) (string, error) { return r.alloc(), nil }
func (r *fakeRuntime) RemoveNetwork(ctx context.Context, localId string) error             { return nil }

func (r *fakeRuntime) InspectVolume(ctx context.Context, localId string) (string, error) { return localId, nil }
func (r *fakeRuntime) CreateVolume(ctx context.Context, p VolumePayload) (string, error) { return r.alloc(), nil }
func (r *fakeRuntime) RemoveVolume(ctx context.Context, localId string) error            { return nil }

func (r *fakeRuntime) InspectContainer(ctx context.Context, localId string) (string, error) {
	return localId, nil
}
func (r *fakeRuntime) CreateContainer(ctx context.Context, p ContainerPayload, deps ContainerDeps) (string, error) {
	return r.alloc(), nil
}
func (r *fakeRuntime) RemoveContainer(ctx context.Context, localId string) error { return nil }

func (r *fakeRuntime) InspectDeployment(ctx context.Context, localId string) (string, error) {
	return localId, nil
}
func (r *fakeRuntime) StartDeployment(ctx context.Context, p DeploymentPayload, localIds []string) (string, error) {
	return r.alloc(), nil
}
func (r *fakeRuntime) StopDeployment(ctx context.Context, localId string) error { return nil }

type sentProp struct {
	iface, path string
	value       any
}

type fakePublisher struct {
	mu     sync.Mutex
	sent   []sentProp
	unsets []sentProp
}

func (p *fakePublisher) Send(ctx context.Context, iface, path string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, sentProp{iface, path, value})
	return nil
}
func (p *fakePublisher) Unset(ctx context.Context, iface, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unsets = append(p.unsets, sentProp{iface: iface, path: path})
	return nil
}

func waitQuiescent(r *Reconciler) {
	done := make(chan struct{})
	go func() {
		r.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

func TestCreateImagePublishesAvailability(t *testing.T) {
	store := newFakeStore()
	runtime := &fakeRuntime{}
	pub := &fakePublisher{}
	r := NewReconciler(store, runtime, pub, nil)

	id := uuid.New()
	store.images[id] = &Image{Id: id, Status: ImageReceived, Payload: ImagePayload{Reference: "docker.io/library/redis:7"}}

	r.CreateImage(context.Background(), id)
	waitQuiescent(r)

	img, err := store.FindImage(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, ImagePulled, img.Status)
	require.NotNil(t, img.LocalId)
	assert.Contains(t, runtime.pulled, "docker.io/library/redis:7")

	require.Len(t, pub.sent, 1)
	assert.Equal(t, availableImagesInterface, pub.sent[0].iface)
	assert.Equal(t, true, pub.sent[0].value)

	r.PublishImage(context.Background(), id)
	waitQuiescent(r)

	require.Len(t, pub.sent, 2)
	assert.Equal(t, true, pub.sent[1].value)
}

func TestDeleteImageIsIdempotent(t *testing.T) {
	store := newFakeStore()
	runtime := &fakeRuntime{}
	pub := &fakePublisher{}
	r := NewReconciler(store, runtime, pub, nil)

	id := uuid.New()
	r.DeleteImage(context.Background(), id)
	waitQuiescent(r)
	assert.Empty(t, runtime.removed)
}

func TestCreateContainerFailsWithoutImage(t *testing.T) {
	store := newFakeStore()
	runtime := &fakeRuntime{}
	pub := &fakePublisher{}
	r := NewReconciler(store, runtime, pub, nil)

	imgId := uuid.New()
	cid := uuid.New()
	store.containers[cid] = &Container{Id: cid, Status: ContainerReceived, Payload: ContainerPayload{ImageId: imgId}}

	r.CreateContainer(context.Background(), cid)
	waitQuiescent(r)

	c, err := store.FindContainer(context.Background(), cid)
	require.NoError(t, err)
	assert.Nil(t, c.LocalId)
	assert.Equal(t, ContainerReceived, c.Status)
}

func TestCreateContainerWithDeps(t *testing.T) {
	store := newFakeStore()
	runtime := &fakeRuntime{}
	pub := &fakePublisher{}
	r := NewReconciler(store, runtime, pub, nil)

	imgId, netId, volId, cid := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	imgLocal, netLocal, volLocal := "img-local", "net-local", "vol-local"
	store.images[imgId] = &Image{Id: imgId, Status: ImagePulled, LocalId: &imgLocal}
	store.networks[netId] = &Network{Id: netId, Status: NetworkCreated, LocalId: &netLocal}
	store.volumes[volId] = &Volume{Id: volId, Status: VolumeCreated, LocalId: &volLocal}
	store.containers[cid] = &Container{
		Id:      cid,
		Status:  ContainerReceived,
		Payload: ContainerPayload{ImageId: imgId, Networks: []uuid.UUID{netId}, Volumes: []uuid.UUID{volId}},
	}

	r.CreateContainer(context.Background(), cid)
	waitQuiescent(r)

	c, err := store.FindContainer(context.Background(), cid)
	require.NoError(t, err)
	require.NotNil(t, c.LocalId)
	assert.Equal(t, ContainerCreated, c.Status)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, availableContainersInterface, pub.sent[0].iface)
	assert.Equal(t, "Created", pub.sent[0].value)
}

func TestPublishContainerReportsStatusString(t *testing.T) {
	store := newFakeStore()
	runtime := &fakeRuntime{}
	pub := &fakePublisher{}
	r := NewReconciler(store, runtime, pub, nil)

	cid := uuid.New()
	store.containers[cid] = &Container{Id: cid, Status: ContainerCreated}

	r.PublishContainer(context.Background(), cid)
	waitQuiescent(r)

	require.Len(t, pub.sent, 1)
	assert.Equal(t, "Created", pub.sent[0].value)
}

func TestDeleteDeploymentUnsetsProperty(t *testing.T) {
	store := newFakeStore()
	runtime := &fakeRuntime{}
	pub := &fakePublisher{}
	r := NewReconciler(store, runtime, pub, nil)

	did := uuid.New()
	local := "dep-local"
	store.deployments[did] = &Deployment{Id: did, Status: DeploymentCreated, LocalId: &local}

	r.DeleteDeployment(context.Background(), did)
	waitQuiescent(r)

	require.Len(t, pub.unsets, 1)
	_, err := store.FindDeployment(context.Background(), did)
	require.NoError(t, err)
	assert.NotContains(t, store.deployments, did)
}
