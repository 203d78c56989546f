package containers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (r *Reconciler) PublishContainer(ctx context.Context, id uuid.UUID) {
	r.spawn("publish", "container", id, func() error { return r.publishContainer(ctx, id) })
}

func (r *Reconciler) CreateContainer(ctx context.Context, id uuid.UUID) {
	r.spawn("create", "container", id, func() error { return r.createContainer(ctx, id) })
}

func (r *Reconciler) DeleteContainer(ctx context.Context, id uuid.UUID) {
	r.spawn("delete", "container", id, func() error { return r.deleteContainer(ctx, id) })
}

func (r *Reconciler) publishContainer(ctx context.Context, id uuid.UUID) error {
	c, err := r.store.FindContainer(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return &MissingError{Id: id, Resource: "container"}
	}
	if err := availableContainer(id).Send(ctx, r.publisher, containerStatusString(c.Status)); err != nil {
		return err
	}
	if c.Status == ContainerReceived {
		return r.store.UpdateContainerStatus(ctx, id, ContainerPublished)
	}
	return nil
}

// resolveContainerDeps requires every image/network/volume this
// container depends on to already have been created; ordering across
// entity kinds is driven by the caller (the surrounding deployment
// machine), not by this reconciler.
func (r *Reconciler) resolveContainerDeps(ctx context.Context, p ContainerPayload) (ContainerDeps, error) {
	img, err := r.store.FindImage(ctx, p.ImageId)
	if err != nil {
		return ContainerDeps{}, err
	}
	if img == nil || img.LocalId == nil {
		return ContainerDeps{}, fmt.Errorf("container depends on image %s which is not yet created", p.ImageId)
	}

	deps := ContainerDeps{ImageLocalId: *img.LocalId}

	for _, nid := range p.Networks {
		n, err := r.store.FindNetwork(ctx, nid)
		if err != nil {
			return ContainerDeps{}, err
		}
		if n == nil || n.LocalId == nil {
			return ContainerDeps{}, fmt.Errorf("container depends on network %s which is not yet created", nid)
		}
		deps.NetworkLocalIds = append(deps.NetworkLocalIds, *n.LocalId)
	}

	for _, vid := range p.Volumes {
		v, err := r.store.FindVolume(ctx, vid)
		if err != nil {
			return ContainerDeps{}, err
		}
		if v == nil || v.LocalId == nil {
			return ContainerDeps{}, fmt.Errorf("container depends on volume %s which is not yet created", vid)
		}
		deps.VolumeLocalIds = append(deps.VolumeLocalIds, *v.LocalId)
	}

	return deps, nil
}

func (r *Reconciler) createContainer(ctx context.Context, id uuid.UUID) error {
	c, err := r.store.FindContainer(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return &MissingError{Id: id, Resource: "container"}
	}
	if c.LocalId != nil {
		if found, err := r.runtime.InspectContainer(ctx, *c.LocalId); err == nil && found != "" {
			return nil
		}
	}

	deps, err := r.resolveContainerDeps(ctx, c.Payload)
	if err != nil {
		return err
	}

	localId, err := r.runtime.CreateContainer(ctx, c.Payload, deps)
	if err != nil {
		return err
	}
	if err := r.store.UpdateContainerLocalId(ctx, id, localId); err != nil {
		return err
	}
	if err := availableContainer(id).Send(ctx, r.publisher, containerStatusString(ContainerCreated)); err != nil {
		return err
	}
	return r.store.UpdateContainerStatus(ctx, id, ContainerCreated)
}

func (r *Reconciler) deleteContainer(ctx context.Context, id uuid.UUID) error {
	c, err := r.store.FindContainer(ctx, id)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	if c.LocalId != nil {
		if err := r.runtime.RemoveContainer(ctx, *c.LocalId); err != nil {
			return err
		}
	}
	if err := availableContainer(id).Unset(ctx, r.publisher); err != nil {
		return err
	}
	return r.store.DeleteContainer(ctx, id)
}
