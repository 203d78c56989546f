// Package engine wires the OTA manager, the container-resource
// reconciler, the remote-access forwarder, the persistent store and
// the upstream client together and owns their combined lifecycle, the
// same Config/New/Start/Stop shape the teacher's own engine package
// used for its LoRa/cloud wiring.
package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/agsys/edgehog-runtime/internal/containers"
	"github.com/agsys/edgehog-runtime/internal/containers/dockerd"
	"github.com/agsys/edgehog-runtime/internal/forwarder"
	"github.com/agsys/edgehog-runtime/internal/ota"
	"github.com/agsys/edgehog-runtime/internal/properties"
	"github.com/agsys/edgehog-runtime/internal/storage"
)

// Config holds engine configuration. Zero-value fields fall back to
// DefaultConfig's values at New, the teacher's own
// override-only-if-set pattern.
type Config struct {
	DatabasePath string

	UpstreamAddr string
	APIKey       string
	UseTLS       bool

	OtaDownloadDir string

	ForwarderURL string

	LogLevel string
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() Config {
	return Config{
		DatabasePath:   "/var/lib/edgehog/runtime.db",
		UseTLS:         true,
		OtaDownloadDir: ota.DefaultConfig().DownloadDir,
		LogLevel:       "info",
	}
}

// Engine owns the Persistent Store, the OTA manager, the container
// reconciler, the upstream client and the forwarder's upstream
// session loop, starting and stopping them together.
type Engine struct {
	config Config
	log    *logrus.Entry

	db       *storage.DB
	otaStore *storage.OtaStore
	cStore   *storage.ContainersStore

	upstream *properties.Client
	runtime  *dockerd.Runtime

	ota        *ota.Manager
	reconciler *containers.Reconciler
	dispatcher *forwarder.Dispatcher

	backend ota.Backend

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New opens the database, builds every collaborator and wires them
// together. It does not start any background loop; call Start for
// that.
func New(config Config, backend ota.Backend) (*Engine, error) {
	if config.DatabasePath == "" {
		config.DatabasePath = DefaultConfig().DatabasePath
	}
	if config.OtaDownloadDir == "" {
		config.OtaDownloadDir = DefaultConfig().OtaDownloadDir
	}
	if config.LogLevel == "" {
		config.LogLevel = DefaultConfig().LogLevel
	}

	log := logrus.WithField("component", "engine")
	if lvl, err := logrus.ParseLevel(config.LogLevel); err == nil {
		logrus.SetLevel(lvl)
	}

	db, err := storage.Open(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("engine: open database: %w", err)
	}

	otaStore := storage.NewOtaStore(db)
	cStore := storage.NewContainersStore(db)

	upstreamCfg := properties.DefaultConfig()
	upstreamCfg.ServerAddr = config.UpstreamAddr
	upstreamCfg.UseTLS = config.UseTLS
	upstream := properties.NewClient(upstreamCfg, logrus.WithField("component", "upstream"))

	runtime, err := dockerd.New()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("engine: connect to container runtime: %w", err)
	}

	otaCfg := ota.Config{DownloadDir: config.OtaDownloadDir}
	otaManager, err := ota.New(otaCfg, backend, otaStore, upstream, nil)
	if err != nil {
		db.Close()
		runtime.Close()
		return nil, fmt.Errorf("engine: create ota manager: %w", err)
	}

	reconciler := containers.NewReconciler(cStore, runtime, upstream, logrus.WithField("component", "containers"))

	return &Engine{
		config:     config,
		log:        log,
		db:         db,
		otaStore:   otaStore,
		cStore:     cStore,
		upstream:   upstream,
		runtime:    runtime,
		ota:        otaManager,
		reconciler: reconciler,
		dispatcher: forwarder.NewDispatcher(),
		backend:    backend,
	}, nil
}

// Start connects the upstream client, starts the OTA manager and
// keeps one forwarder upstream session open for the engine's
// lifetime.
func (e *Engine) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	go e.upstream.DialWithRetry(runCtx)

	if err := e.ota.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("engine: start ota manager: %w", err)
	}

	fwdCfg := DefaultForwarderConfig()
	fwdCfg.URL = e.config.ForwarderURL
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		runForwarderLoop(runCtx, fwdCfg, e.dispatcher, logrus.WithField("component", "forwarder"))
	}()

	e.log.Info("engine started")
	return nil
}

// Stop stops every background loop and releases the database and
// runtime connections, in reverse order of Start.
func (e *Engine) Stop() error {
	if e.cancel != nil {
		e.cancel()
	}
	e.reconciler.Wait()
	e.wg.Wait()

	e.ota.Stop()

	if err := e.upstream.Close(); err != nil {
		e.log.WithError(err).Warn("error closing upstream client")
	}
	if err := e.runtime.Close(); err != nil {
		e.log.WithError(err).Warn("error closing container runtime")
	}
	if err := e.db.Close(); err != nil {
		e.log.WithError(err).Warn("error closing database")
	}

	e.log.Info("engine stopped")
	return nil
}

// SubmitOtaRequest enqueues an OTA request with the OTA manager.
func (e *Engine) SubmitOtaRequest(req ota.OtaRequest) {
	e.ota.Submit(req)
}

// Containers exposes the container-resource reconciler for direct use
// by whatever drives desired-state changes (forwarder commands,
// scheduled resync, tests).
func (e *Engine) Containers() *containers.Reconciler {
	return e.reconciler
}

// Store exposes the containers persistent store for read paths that
// sit outside the reconciler (e.g. listing current entities).
func (e *Engine) Store() *storage.ContainersStore {
	return e.cStore
}
