package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"stagecue/internal/config"
	"stagecue/internal/deps"
	"stagecue/internal/engine"
	"stagecue/internal/ipc"
	"stagecue/internal/logging"
	"stagecue/internal/output"
	"stagecue/internal/procreg"
	"stagecue/internal/show"
	"stagecue/internal/slides"
)

// Daemon owns the long-running playback services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *procreg.Registry
	store    *show.Store
	engine   *engine.Engine
	displays *output.DisplayMonitor
	server   *ipc.Server

	lockPath string
	lock     *flock.Flock

	running    atomic.Bool
	ctx        context.Context
	cancel     context.CancelFunc
	engineDone chan struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// New constructs a daemon with initialized dependencies. The show library is
// opened immediately; player processes start only when cues fire.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	store, err := show.OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open show library: %w", err)
	}

	grace := time.Duration(cfg.Engine.TerminateGraceMillis) * time.Millisecond
	registry := procreg.New(grace, logger)

	surface := output.NewFFplaySurface(output.BlackoutOptions{
		Binary:     cfg.Players.FFplayBinary,
		Left:       cfg.Output.SecondScreenLeft,
		Top:        cfg.Output.SecondScreenTop,
		Fullscreen: true,
		Grace:      grace,
		Registry:   registry,
		Logger:     logger,
	})

	eng := engine.New(engine.Options{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Store:    store,
		Surface:  surface,
		Slides:   slides.NewController(),
	})

	d := &Daemon{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		registry:   registry,
		store:      store,
		engine:     eng,
		lockPath:   filepath.Join(cfg.Paths.LogDir, "stagecued.lock"),
		shutdownCh: make(chan struct{}),
	}
	d.lock = flock.New(d.lockPath)

	if cfg.Output.MonitorHotplug {
		d.displays = output.NewDisplayMonitor(logger, func(ctx context.Context) {
			if err := eng.ReconcileOutput(ctx); err != nil {
				d.logger.Warn("output reconcile after hotplug failed", logging.Error(err))
			}
		})
	}
	return d, nil
}

// Engine exposes the playback engine for in-process callers.
func (d *Daemon) Engine() *engine.Engine {
	return d.engine
}

// Start acquires the instance lock and brings up the engine, the IPC server
// and the display monitor.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another stagecue daemon instance is already running")
	}

	if missing := deps.MissingRequired(deps.CheckBinaries(deps.Requirements(d.cfg))); len(missing) > 0 {
		d.logger.Warn("required player binaries missing",
			logging.Any("missing", missing),
			logging.String(logging.FieldEventType, "deps_missing"),
			logging.String(logging.FieldErrorHint, "install ffmpeg to enable playback"),
		)
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.engineDone = make(chan struct{})
	go func() {
		defer close(d.engineDone)
		_ = d.engine.Run(d.ctx)
	}()

	server, err := ipc.NewServer(d.ctx, ipc.ServerOptions{
		SocketPath: d.cfg.Paths.SocketPath,
		Engine:     d.engine,
		Config:     d.cfg,
		Logger:     d.logger,
		Shutdown:   d.RequestShutdown,
	})
	if err != nil {
		d.cancel()
		<-d.engineDone
		_ = d.lock.Unlock()
		return fmt.Errorf("start ipc server: %w", err)
	}
	d.server = server
	d.server.Serve()

	if d.displays != nil {
		if err := d.displays.Start(d.ctx); err != nil {
			d.logger.Warn("display monitor unavailable", logging.Error(err))
		}
	}

	d.running.Store(true)
	d.logger.Info("stagecue daemon started",
		logging.String("lock", d.lockPath),
		logging.String("socket", d.cfg.Paths.SocketPath),
	)
	return nil
}

// Stop tears everything down in dependency order and releases the lock. It
// blocks until the engine has killed every player process.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.server != nil {
		d.server.Close()
		d.server = nil
	}
	d.displays.Stop()

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.engineDone != nil {
		<-d.engineDone
		d.engineDone = nil
	}

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("stagecue daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon is active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// RequestShutdown signals ShutdownRequested. Safe to call more than once and
// from RPC handlers.
func (d *Daemon) RequestShutdown() {
	d.shutdownOnce.Do(func() { close(d.shutdownCh) })
}

// ShutdownRequested is closed when a client asked the daemon to exit.
func (d *Daemon) ShutdownRequested() <-chan struct{} {
	return d.shutdownCh
}
