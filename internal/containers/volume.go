package containers

import (
	"context"

	"github.com/google/uuid"
)

func (r *Reconciler) PublishVolume(ctx context.Context, id uuid.UUID) {
	r.spawn("publish", "volume", id, func() error { return r.publishVolume(ctx, id) })
}

func (r *Reconciler) CreateVolume(ctx context.Context, id uuid.UUID) {
	r.spawn("create", "volume", id, func() error { return r.createVolume(ctx, id) })
}

func (r *Reconciler) DeleteVolume(ctx context.Context, id uuid.UUID) {
	r.spawn("delete", "volume", id, func() error { return r.deleteVolume(ctx, id) })
}

func (r *Reconciler) publishVolume(ctx context.Context, id uuid.UUID) error {
	v, err := r.store.FindVolume(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return &MissingError{Id: id, Resource: "volume"}
	}
	if err := availableVolume(id).Send(ctx, r.publisher, v.Status == VolumeCreated); err != nil {
		return err
	}
	if v.Status == VolumeReceived {
		return r.store.UpdateVolumeStatus(ctx, id, VolumePublished)
	}
	return nil
}

func (r *Reconciler) createVolume(ctx context.Context, id uuid.UUID) error {
	v, err := r.store.FindVolume(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return &MissingError{Id: id, Resource: "volume"}
	}
	if v.LocalId != nil {
		if found, err := r.runtime.InspectVolume(ctx, *v.LocalId); err == nil && found != "" {
			return nil
		}
	}
	localId, err := r.runtime.CreateVolume(ctx, v.Payload)
	if err != nil {
		return err
	}
	if err := r.store.UpdateVolumeLocalId(ctx, id, localId); err != nil {
		return err
	}
	if err := availableVolume(id).Send(ctx, r.publisher, true); err != nil {
		return err
	}
	return r.store.UpdateVolumeStatus(ctx, id, VolumeCreated)
}

func (r *Reconciler) deleteVolume(ctx context.Context, id uuid.UUID) error {
	v, err := r.store.FindVolume(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}
	if v.LocalId != nil {
		if err := r.runtime.RemoveVolume(ctx, *v.LocalId); err != nil {
			return err
		}
	}
	if err := availableVolume(id).Unset(ctx, r.publisher); err != nil {
		return err
	}
	return r.store.DeleteVolume(ctx, id)
}
