package ota

import (
	"context"

	"github.com/sirupsen/logrus"
)

// EventPublisher is the OTA-facing slice of the Upstream Client (M):
// a fire-and-forget send of the translated OtaEvent record.
type EventPublisher interface {
	PublishOtaEvent(ctx context.Context, ev OtaEvent) error
}

// Router subscribes to the Actor's broadcast stream, translates each
// status into the cloud-facing OtaEvent record, and pushes it through
// M. Idle never appears on the wire. M failures are logged and
// otherwise ignored — the next status update resends the picture.
type Router struct {
	publisher EventPublisher
	log       *logrus.Entry
}

func NewRouter(publisher EventPublisher, log *logrus.Entry) *Router {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Router{publisher: publisher, log: log}
}

// Run drains tap until ctx is cancelled or tap is closed.
func (r *Router) Run(ctx context.Context, tap <-chan OtaStatus) {
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-tap:
			if !ok {
				return
			}
			if s.Kind == StatusIdle {
				continue
			}
			ev := ToEvent(s)
			if err := r.publisher.PublishOtaEvent(ctx, ev); err != nil {
				r.log.WithError(err).WithField("ota_id", ev.RequestUUID).
					Error("failed to publish ota event, will resend on next status update")
			}
		}
	}
}
