// Package ota implements the cancellable, single-in-flight bundle
// update state machine: download, validate compatibility, install
// into the inactive A/B slot, track install progress, persist the
// rollback intent across reboot, and confirm the new slot on the
// first successful boot.
package ota

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Config holds OTA manager configuration. The core mandates no
// timeouts (concurrency model, section 5), so there is nothing else
// to configure here beyond where in-flight bundles are staged.
type Config struct {
	DownloadDir string
}

// DefaultConfig returns default OTA manager configuration.
func DefaultConfig() Config {
	return Config{
		DownloadDir: "/var/lib/edgehog/ota",
	}
}

// Manager wires the Actor, Handler and Router together and owns their
// lifecycle, following the same Config/New/Start/Stop shape as the
// rest of this runtime's subsystems.
type Manager struct {
	config    Config
	backend   Backend
	store     Store
	broadcast *Broadcast
	handler   *Handler
	router    *Router
	log       *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an OTA manager. downloader may be nil to use the
// default resty-backed Downloader.
func New(config Config, backend Backend, store Store, publisher EventPublisher, downloader *Downloader) (*Manager, error) {
	if config.DownloadDir == "" {
		config.DownloadDir = DefaultConfig().DownloadDir
	}
	if err := os.MkdirAll(config.DownloadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create ota download dir: %w", err)
	}
	if downloader == nil {
		downloader = NewDownloader()
	}

	log := logrus.WithField("component", "ota")
	broadcast := NewBroadcast()
	actor := NewActor(backend, store, downloader, config.DownloadDir, broadcast, log)
	handler := NewHandler(actor, broadcast, log)
	router := NewRouter(publisher, log)

	return &Manager{
		config:    config,
		backend:   backend,
		store:     store,
		broadcast: broadcast,
		handler:   handler,
		router:    router,
		log:       log,
	}, nil
}

// Start confirms any pending post-reboot state, then starts the
// Handler and Router tasks.
func (m *Manager) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	// Subscribe first so the statuses published during confirmation
	// are buffered for the Router instead of dropped.
	routerTap := m.broadcast.Subscribe()

	if err := m.confirmPostReboot(runCtx); err != nil {
		cancel()
		return fmt.Errorf("ota post-reboot confirmation failed: %w", err)
	}

	go func() {
		defer close(m.done)
		go m.router.Run(runCtx, routerTap)
		m.handler.Run(runCtx)
	}()

	m.log.Info("ota manager started")
	return nil
}

// Stop cancels the Handler/Router tasks and waits for them to exit.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}
	m.log.Info("ota manager stopped")
}

// Submit enqueues an OtaRequest with the Handler.
func (m *Manager) Submit(req OtaRequest) {
	m.handler.Submit(req)
}

// confirmPostReboot implements the startup half of the state machine
// (spec section 4.1, "Reboot + post-reboot confirmation"). It must run
// before the Handler starts accepting new requests.
func (m *Manager) confirmPostReboot(ctx context.Context) error {
	exists, err := m.store.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		m.broadcast.Publish(Idle())
		return nil
	}

	persisted, err := m.store.Read(ctx)
	if err != nil {
		return err
	}

	m.broadcast.Publish(Rebooted())

	id := OtaId{UUID: persisted.UUID}
	bootSlot, err := m.backend.BootSlot(ctx)
	if err != nil {
		if cerr := m.store.Clear(ctx); cerr != nil {
			m.log.WithError(cerr).Error("failed to clear persistent state after boot_slot error")
		}
		return err
	}

	if bootSlot == persisted.Slot {
		m.broadcast.Publish(Failure(SystemRollback("Unable to switch slot"), &id))
	} else {
		primary, err := m.backend.GetPrimary(ctx)
		if err != nil {
			if cerr := m.store.Clear(ctx); cerr != nil {
				m.log.WithError(cerr).Error("failed to clear persistent state after get_primary error")
			}
			return err
		}
		if err := m.backend.Mark(ctx, "active", primary); err != nil {
			if cerr := m.store.Clear(ctx); cerr != nil {
				m.log.WithError(cerr).Error("failed to clear persistent state after mark error")
			}
			return err
		}
		m.broadcast.Publish(Success(OtaId{UUID: persisted.UUID, URL: ""}))
	}

	m.broadcast.Publish(Idle())

	if err := m.store.Clear(ctx); err != nil {
		return err
	}
	return nil
}
