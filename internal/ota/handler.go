package ota

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type currentJob struct {
	id     OtaId
	cancel *CancelToken
}

// Handler is the single entry point task: it serialises incoming
// OtaRequests, applies the admission rules, and owns current — the
// in-flight job, if any. Requests and the actor's own completion
// signal are both processed from the same goroutine so current is
// never read or written concurrently.
type Handler struct {
	actor     *Actor
	broadcast *Broadcast
	log       *logrus.Entry

	requests chan OtaRequest
	done     chan uuid.UUID
	wg       sync.WaitGroup

	current *currentJob
}

func NewHandler(actor *Actor, broadcast *Broadcast, log *logrus.Entry) *Handler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Handler{
		actor:     actor,
		broadcast: broadcast,
		log:       log,
		requests:  make(chan OtaRequest, 8),
		done:      make(chan uuid.UUID, 8),
	}
}

// Submit enqueues a request for processing. Never blocks indefinitely
// under normal operation since the Handler drains its mailbox
// continuously while Run is active.
func (h *Handler) Submit(req OtaRequest) {
	h.requests <- req
}

// Run drives the Handler's mailbox loop until ctx is cancelled.
func (h *Handler) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.wg.Wait()
			return
		case req := <-h.requests:
			h.handle(ctx, req)
		case id := <-h.done:
			if h.current != nil && h.current.id.UUID == id {
				h.current = nil
			}
		}
	}
}

func (h *Handler) handle(ctx context.Context, req OtaRequest) {
	switch req.Op {
	case OpUpdate:
		h.handleUpdate(ctx, req)
	case OpCancel:
		h.handleCancel(req)
	}
}

func (h *Handler) handleUpdate(ctx context.Context, req OtaRequest) {
	newId := OtaId{UUID: req.UUID, URL: req.URL}

	if h.current != nil {
		// Same-uuid duplicate is accepted as a no-op for the running
		// job, but the cloud still sees a duplicate acknowledgement.
		// A different uuid while one is in flight is rejected the
		// same way, without disturbing the running job.
		h.broadcast.Publish(Failure(UpdateAlreadyInProgress(), &newId))
		return
	}

	cancel := NewCancelToken()
	h.current = &currentJob{id: newId, cancel: cancel}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.actor.Run(ctx, req, cancel)
		h.done <- req.UUID
	}()
}

func (h *Handler) handleCancel(req OtaRequest) {
	switch {
	case h.current == nil:
		h.broadcast.Publish(Failure(InternalError("Unable to cancel OTA request, internal request is empty"), nil))
	case h.current.id.UUID != req.UUID:
		h.broadcast.Publish(Failure(InternalError("Unable to cancel OTA request, they have different identifier"), nil))
	case h.current.cancel.Cancelled():
		h.broadcast.Publish(Failure(InternalError("Unable to cancel OTA request"), nil))
	default:
		h.current.cancel.Cancel()
	}
}
