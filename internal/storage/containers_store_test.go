package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/agsys/edgehog-runtime/internal/containers"
)

func seedImage(t *testing.T, db *DB, id uuid.UUID, reference string) {
	t.Helper()
	_, err := db.conn.Exec(
		`INSERT INTO images (id, status, reference) VALUES (?, ?, ?)`,
		id.String(), containers.ImageReceived, reference,
	)
	if err != nil {
		t.Fatalf("seed image: %v", err)
	}
}

func TestContainersStoreFindImageMissing(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	store := NewContainersStore(db)
	img, err := store.FindImage(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("FindImage: %v", err)
	}
	if img != nil {
		t.Fatalf("expected nil for unseeded image, got %+v", img)
	}
}

func TestContainersStoreImageLifecycle(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id := uuid.New()
	seedImage(t, db, id, "docker.io/library/redis:7")

	store := NewContainersStore(db)
	img, err := store.FindImage(ctx, id)
	if err != nil {
		t.Fatalf("FindImage: %v", err)
	}
	if img == nil {
		t.Fatal("expected seeded image to be found")
	}
	if img.LocalId != nil {
		t.Fatalf("expected no local id yet, got %v", *img.LocalId)
	}
	if img.Payload.Reference != "docker.io/library/redis:7" {
		t.Fatalf("unexpected reference %q", img.Payload.Reference)
	}

	if err := store.UpdateImageLocalId(ctx, id, "local-abc"); err != nil {
		t.Fatalf("UpdateImageLocalId: %v", err)
	}
	if err := store.UpdateImageStatus(ctx, id, containers.ImagePulled); err != nil {
		t.Fatalf("UpdateImageStatus: %v", err)
	}

	img, err = store.FindImage(ctx, id)
	if err != nil {
		t.Fatalf("FindImage after update: %v", err)
	}
	if img.LocalId == nil || *img.LocalId != "local-abc" {
		t.Fatalf("expected local id \"local-abc\", got %v", img.LocalId)
	}
	if img.Status != containers.ImagePulled {
		t.Fatalf("expected status ImagePulled, got %v", img.Status)
	}

	if err := store.DeleteImage(ctx, id); err != nil {
		t.Fatalf("DeleteImage: %v", err)
	}
	img, err = store.FindImage(ctx, id)
	if err != nil {
		t.Fatalf("FindImage after delete: %v", err)
	}
	if img != nil {
		t.Fatal("expected image to be gone after delete")
	}
}

func TestContainersStoreContainerRoundTripsDeps(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	ctx := context.Background()
	imageId := uuid.New()
	seedImage(t, db, imageId, "docker.io/library/nginx:1")

	netId := uuid.New()
	volId := uuid.New()
	containerId := uuid.New()

	_, err := db.conn.Exec(
		`INSERT INTO containers (id, status, image_id, network_ids, volume_ids, env) VALUES (?, ?, ?, ?, ?, ?)`,
		containerId.String(), containers.ContainerReceived, imageId.String(),
		netId.String(), volId.String(), "FOO=bar\nBAZ=qux",
	)
	if err != nil {
		t.Fatalf("seed container: %v", err)
	}

	store := NewContainersStore(db)
	c, err := store.FindContainer(ctx, containerId)
	if err != nil {
		t.Fatalf("FindContainer: %v", err)
	}
	if c == nil {
		t.Fatal("expected container to be found")
	}
	if c.Payload.ImageId != imageId {
		t.Fatalf("expected image id %s, got %s", imageId, c.Payload.ImageId)
	}
	if len(c.Payload.Networks) != 1 || c.Payload.Networks[0] != netId {
		t.Fatalf("expected network dep %s, got %v", netId, c.Payload.Networks)
	}
	if len(c.Payload.Volumes) != 1 || c.Payload.Volumes[0] != volId {
		t.Fatalf("expected volume dep %s, got %v", volId, c.Payload.Volumes)
	}
	if len(c.Payload.Env) != 2 || c.Payload.Env[0] != "FOO=bar" || c.Payload.Env[1] != "BAZ=qux" {
		t.Fatalf("unexpected env %v", c.Payload.Env)
	}
}

func TestContainersStoreDeploymentRoundTripsContainerIds(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	ctx := context.Background()
	deploymentId := uuid.New()
	containerA := uuid.New()
	containerB := uuid.New()

	_, err := db.conn.Exec(
		`INSERT INTO deployments (id, status, container_ids) VALUES (?, ?, ?)`,
		deploymentId.String(), containers.DeploymentReceived,
		containerA.String()+","+containerB.String(),
	)
	if err != nil {
		t.Fatalf("seed deployment: %v", err)
	}

	store := NewContainersStore(db)
	d, err := store.FindDeployment(ctx, deploymentId)
	if err != nil {
		t.Fatalf("FindDeployment: %v", err)
	}
	if len(d.Payload.Containers) != 2 || d.Payload.Containers[0] != containerA || d.Payload.Containers[1] != containerB {
		t.Fatalf("unexpected containers %v", d.Payload.Containers)
	}

	if err := store.UpdateDeploymentStatus(ctx, deploymentId, containers.DeploymentCreated); err != nil {
		t.Fatalf("UpdateDeploymentStatus: %v", err)
	}
	if err := store.DeleteDeployment(ctx, deploymentId); err != nil {
		t.Fatalf("DeleteDeployment: %v", err)
	}
	d, err = store.FindDeployment(ctx, deploymentId)
	if err != nil {
		t.Fatalf("FindDeployment after delete: %v", err)
	}
	if d != nil {
		t.Fatal("expected deployment to be gone after delete")
	}
}
