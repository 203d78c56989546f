package containers

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

func (r *Reconciler) PublishDeployment(ctx context.Context, id uuid.UUID) {
	r.spawn("publish", "deployment", id, func() error { return r.publishDeployment(ctx, id) })
}

func (r *Reconciler) CreateDeployment(ctx context.Context, id uuid.UUID) {
	r.spawn("create", "deployment", id, func() error { return r.createDeployment(ctx, id) })
}

func (r *Reconciler) DeleteDeployment(ctx context.Context, id uuid.UUID) {
	r.spawn("delete", "deployment", id, func() error { return r.deleteDeployment(ctx, id) })
}

func (r *Reconciler) publishDeployment(ctx context.Context, id uuid.UUID) error {
	d, err := r.store.FindDeployment(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return &MissingError{Id: id, Resource: "deployment"}
	}
	if err := availableDeployment(id).Send(ctx, r.publisher, d.Status == DeploymentCreated); err != nil {
		return err
	}
	if d.Status == DeploymentReceived {
		return r.store.UpdateDeploymentStatus(ctx, id, DeploymentPublished)
	}
	return nil
}

func (r *Reconciler) createDeployment(ctx context.Context, id uuid.UUID) error {
	d, err := r.store.FindDeployment(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return &MissingError{Id: id, Resource: "deployment"}
	}
	if d.LocalId != nil {
		if found, err := r.runtime.InspectDeployment(ctx, *d.LocalId); err == nil && found != "" {
			return nil
		}
	}

	localIds := make([]string, 0, len(d.Payload.Containers))
	for _, cid := range d.Payload.Containers {
		c, err := r.store.FindContainer(ctx, cid)
		if err != nil {
			return err
		}
		if c == nil || c.LocalId == nil {
			return fmt.Errorf("deployment depends on container %s which is not yet created", cid)
		}
		localIds = append(localIds, *c.LocalId)
	}

	localId, err := r.runtime.StartDeployment(ctx, d.Payload, localIds)
	if err != nil {
		return err
	}
	if err := r.store.UpdateDeploymentLocalId(ctx, id, localId); err != nil {
		return err
	}
	if err := availableDeployment(id).Send(ctx, r.publisher, true); err != nil {
		return err
	}
	return r.store.UpdateDeploymentStatus(ctx, id, DeploymentCreated)
}

func (r *Reconciler) deleteDeployment(ctx context.Context, id uuid.UUID) error {
	d, err := r.store.FindDeployment(ctx, id)
	if err != nil {
		return err
	}
	if d == nil {
		return nil
	}
	if d.LocalId != nil {
		if err := r.runtime.StopDeployment(ctx, *d.LocalId); err != nil {
			return err
		}
	}
	if err := availableDeployment(id).Unset(ctx, r.publisher); err != nil {
		return err
	}
	return r.store.DeleteDeployment(ctx, id)
}
