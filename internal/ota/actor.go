package ota

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Actor owns the OTA state machine. It is spawned once per accepted
// Update request, runs Run to completion (or to the point the process
// is expected to restart), and pushes every status transition into the
// shared Broadcast.
type Actor struct {
	backend     Backend
	store       Store
	downloader  *Downloader
	downloadDir string
	broadcast   *Broadcast
	log         *logrus.Entry
}

func NewActor(backend Backend, store Store, downloader *Downloader, downloadDir string, broadcast *Broadcast, log *logrus.Entry) *Actor {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Actor{
		backend:     backend,
		store:       store,
		downloader:  downloader,
		downloadDir: downloadDir,
		broadcast:   broadcast,
		log:         log,
	}
}

func asOtaErr(err error) *OtaError {
	if err == nil {
		return nil
	}
	if oe, ok := err.(*OtaError); ok {
		return oe
	}
	return InternalError(err.Error())
}

// Run executes one OTA attempt end to end: download, validate, write
// the rollback intent, install, track deploy progress, and request a
// reboot on success. It never emits Success itself — that only happens
// from Manager.confirmPostReboot on the next process startup.
func (a *Actor) Run(ctx context.Context, req OtaRequest, cancel *CancelToken) {
	id := OtaId{UUID: req.UUID, URL: req.URL}
	log := a.log.WithField("ota_id", id.UUID.String())

	path := filepath.Join(a.downloadDir, id.UUID.String()+".bundle")
	defer os.Remove(path)

	fail := func(err *OtaError) {
		log.WithError(err).Warn("ota attempt failed")
		a.broadcast.Publish(Failure(err, &id))
		a.broadcast.Publish(Idle())
	}

	a.broadcast.Publish(Init(id))
	a.broadcast.Publish(Acknowledged(id))

	if cancel.Cancelled() {
		fail(Canceled())
		return
	}

	a.broadcast.Publish(Downloading(id, 0))
	lastPercent := 0
	err := a.downloader.Download(ctx, req.URL, path, cancel, func(p int) {
		if p > lastPercent {
			lastPercent = p
		}
		a.broadcast.Publish(Downloading(id, lastPercent))
	})
	if err != nil {
		fail(asOtaErr(err))
		return
	}
	if cancel.Cancelled() {
		fail(Canceled())
		return
	}

	info, err := a.backend.BundleInfo(ctx, path)
	if err != nil {
		fail(asOtaErr(err))
		return
	}
	sysCompat, err := a.backend.SystemCompatible(ctx)
	if err != nil {
		fail(asOtaErr(err))
		return
	}
	if info.Compatible != sysCompat {
		fail(InvalidBaseImage(fmt.Sprintf("bundle %s is not compatible with system %s", info.Compatible, sysCompat)))
		return
	}
	if cancel.Cancelled() {
		fail(Canceled())
		return
	}

	currentSlot, err := a.backend.BootSlot(ctx)
	if err != nil {
		fail(asOtaErr(err))
		return
	}

	if err := a.store.Write(ctx, PersistentState{UUID: id.UUID, Slot: currentSlot}); err != nil {
		fail(InternalError(err.Error()))
		return
	}

	if cancel.Cancelled() {
		// Cancel before install: the rollback intent was never needed.
		if cerr := a.store.Clear(ctx); cerr != nil {
			log.WithError(cerr).Error("failed to clear persistent state after pre-install cancel")
		}
		fail(Canceled())
		return
	}

	if err := a.backend.InstallBundle(ctx, path); err != nil {
		fail(asOtaErr(err))
		return
	}

	stream, err := a.backend.ReceiveCompleted(ctx)
	if err != nil {
		fail(asOtaErr(err))
		return
	}

	a.broadcast.Publish(Deploying(id, DeployProgress{}))

	var signal int
	completed := false
deployLoop:
	for {
		select {
		case <-cancel.Done():
			// Firing the token during install is undefined in the
			// backend; report Canceled without attempting rollback.
			fail(Canceled())
			return
		case ds, ok := <-stream:
			if !ok {
				break deployLoop
			}
			switch ds.Kind {
			case DeployProgressKind:
				a.broadcast.Publish(Deploying(id, DeployProgress{Percentage: ds.Percentage, Message: ds.Message}))
			case DeployCompletedKind:
				signal = ds.Signal
				completed = true
				break deployLoop
			}
		}
	}

	if !completed {
		msg, _ := a.backend.LastError(ctx)
		if msg == "" {
			msg = "Unable to install ota image"
		}
		fail(InvalidBaseImage(msg))
		return
	}

	if signal != 0 {
		fail(InvalidBaseImage(fmt.Sprintf("Update failed with signal %d", signal)))
		return
	}

	a.broadcast.Publish(Deployed(id))
	a.broadcast.Publish(Rebooting(id))

	if err := a.backend.Reboot(ctx); err != nil {
		log.WithError(err).Error("reboot request failed after successful install")
	}
}
