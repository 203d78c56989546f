package containers

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// Reconciler drives every entity kind's Publish/Create/Delete
// operations. Each call spawns a short-lived task against the shared
// Store/Runtime/Publisher rather than holding a long-running
// goroutine per entity — entities are reconciled on demand (when the
// Persistent Store receives a new or updated row) rather than polled.
type Reconciler struct {
	store     Store
	runtime   Runtime
	publisher Publisher
	log       *logrus.Entry

	wg sync.WaitGroup
}

func NewReconciler(store Store, runtime Runtime, publisher Publisher, log *logrus.Entry) *Reconciler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reconciler{store: store, runtime: runtime, publisher: publisher, log: log}
}

// Wait blocks until every spawned task has returned. Intended for use
// during shutdown so in-flight create/delete calls are not abandoned
// mid-way.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}

// spawn runs fn in its own goroutine, tracked by Wait, logging any
// error it returns under the given operation/resource/id fields.
func (r *Reconciler) spawn(op, resource string, id interface{ String() string }, fn func() error) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		entry := r.log.WithFields(logrus.Fields{"op": op, "resource": resource, "id": id.String()})
		if err := fn(); err != nil {
			entry.WithError(err).Error("resource reconciliation failed")
			return
		}
		entry.Debug("resource reconciliation completed")
	}()
}
