package containers

import (
	"context"

	"github.com/google/uuid"
)

func (r *Reconciler) PublishNetwork(ctx context.Context, id uuid.UUID) {
	r.spawn("publish", "network", id, func() error { return r.publishNetwork(ctx, id) })
}

func (r *Reconciler) CreateNetwork(ctx context.Context, id uuid.UUID) {
	r.spawn("create", "network", id, func() error { return r.createNetwork(ctx, id) })
}

func (r *Reconciler) DeleteNetwork(ctx context.Context, id uuid.UUID) {
	r.spawn("delete", "network", id, func() error { return r.deleteNetwork(ctx, id) })
}

func (r *Reconciler) publishNetwork(ctx context.Context, id uuid.UUID) error {
	n, err := r.store.FindNetwork(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return &MissingError{Id: id, Resource: "network"}
	}
	if err := availableNetwork(id).Send(ctx, r.publisher, n.Status == NetworkCreated); err != nil {
		return err
	}
	if n.Status == NetworkReceived {
		return r.store.UpdateNetworkStatus(ctx, id, NetworkPublished)
	}
	return nil
}

func (r *Reconciler) createNetwork(ctx context.Context, id uuid.UUID) error {
	n, err := r.store.FindNetwork(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return &MissingError{Id: id, Resource: "network"}
	}
	if n.LocalId != nil {
		if found, err := r.runtime.InspectNetwork(ctx, *n.LocalId); err == nil && found != "" {
			return nil
		}
	}
	localId, err := r.runtime.CreateNetwork(ctx, n.Payload)
	if err != nil {
		return err
	}
	if err := r.store.UpdateNetworkLocalId(ctx, id, localId); err != nil {
		return err
	}
	if err := availableNetwork(id).Send(ctx, r.publisher, true); err != nil {
		return err
	}
	return r.store.UpdateNetworkStatus(ctx, id, NetworkCreated)
}

func (r *Reconciler) deleteNetwork(ctx context.Context, id uuid.UUID) error {
	n, err := r.store.FindNetwork(ctx, id)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	if n.LocalId != nil {
		if err := r.runtime.RemoveNetwork(ctx, *n.LocalId); err != nil {
			return err
		}
	}
	if err := availableNetwork(id).Unset(ctx, r.publisher); err != nil {
		return err
	}
	return r.store.DeleteNetwork(ctx, id)
}
