package containers

import (
	"context"

	"github.com/google/uuid"
)

// PublishImage sends the AvailableImages property for id, then moves
// Received to Published. Safe to call repeatedly.
func (r *Reconciler) PublishImage(ctx context.Context, id uuid.UUID) {
	r.spawn("publish", "image", id, func() error { return r.publishImage(ctx, id) })
}

// CreateImage pulls the image into the runtime if it isn't already
// there, then records its runtime-local id and marks it Pulled.
func (r *Reconciler) CreateImage(ctx context.Context, id uuid.UUID) {
	r.spawn("create", "image", id, func() error { return r.createImage(ctx, id) })
}

// DeleteImage removes the runtime-side image, retracts its property,
// and drops the row. Missing rows and already-removed runtime images
// are treated as success.
func (r *Reconciler) DeleteImage(ctx context.Context, id uuid.UUID) {
	r.spawn("delete", "image", id, func() error { return r.deleteImage(ctx, id) })
}

func (r *Reconciler) publishImage(ctx context.Context, id uuid.UUID) error {
	img, err := r.store.FindImage(ctx, id)
	if err != nil {
		return err
	}
	if img == nil {
		return &MissingError{Id: id, Resource: "image"}
	}
	prop := availableImage(id)
	if err := prop.Send(ctx, r.publisher, img.Status == ImagePulled); err != nil {
		return err
	}
	if img.Status == ImageReceived {
		return r.store.UpdateImageStatus(ctx, id, ImagePublished)
	}
	return nil
}

func (r *Reconciler) createImage(ctx context.Context, id uuid.UUID) error {
	img, err := r.store.FindImage(ctx, id)
	if err != nil {
		return err
	}
	if img == nil {
		return &MissingError{Id: id, Resource: "image"}
	}
	if img.LocalId != nil {
		if found, err := r.runtime.InspectImage(ctx, *img.LocalId); err == nil && found != "" {
			return nil
		}
	}
	localId, err := r.runtime.PullImage(ctx, img.Payload.Reference)
	if err != nil {
		return err
	}
	if err := r.store.UpdateImageLocalId(ctx, id, localId); err != nil {
		return err
	}
	if err := availableImage(id).Send(ctx, r.publisher, true); err != nil {
		return err
	}
	return r.store.UpdateImageStatus(ctx, id, ImagePulled)
}

func (r *Reconciler) deleteImage(ctx context.Context, id uuid.UUID) error {
	img, err := r.store.FindImage(ctx, id)
	if err != nil {
		return err
	}
	if img == nil {
		return nil
	}
	if img.LocalId != nil {
		if err := r.runtime.RemoveImage(ctx, *img.LocalId); err != nil {
			return err
		}
	}
	if err := availableImage(id).Unset(ctx, r.publisher); err != nil {
		return err
	}
	return r.store.DeleteImage(ctx, id)
}
