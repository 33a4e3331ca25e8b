// Package engine is the playback control core. It owns the scene graph, both
// decks, the output manager and the preview pool, and serializes every state
// transition through a single control goroutine: RPC handlers submit closures
// and wait, runner and preview events arrive on channels, and nothing touches
// the graph or the decks from outside that goroutine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stagecue/internal/config"
	"stagecue/internal/deck"
	"stagecue/internal/logging"
	"stagecue/internal/mediaprobe"
	"stagecue/internal/output"
	"stagecue/internal/preview"
	"stagecue/internal/procreg"
	"stagecue/internal/runner"
	"stagecue/internal/services"
	"stagecue/internal/show"
	"stagecue/internal/slides"
)

// DeckAudio and DeckVisual are the two fixed deck names. Audio cues play on
// the audio deck; video, image and slide cues own the second screen.
const (
	DeckAudio  = "A"
	DeckVisual = "B"
)

var probeDuration = mediaprobe.Duration

// Options configures an engine.
type Options struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *procreg.Registry
	Store    *show.Store
	Surface  output.SurfaceProvider
	Slides   slides.Controller
	// SessionFactory overrides deck session construction in tests.
	SessionFactory func(cue show.Cue) deck.Session
}

// Engine is the cue playback engine.
type Engine struct {
	cfg      *config.Config
	logger   *slog.Logger
	registry *procreg.Registry
	store    *show.Store

	graph    *show.Graph
	deckA    *deck.Deck
	deckB    *deck.Deck
	outputs  *output.Manager
	previews *preview.Generator

	commands       chan func()
	runnerEvents   chan runner.Event
	previewResults chan preview.Result
	thumbs         map[string]string

	firedCue string
	done     chan struct{}
}

// New wires an engine from its collaborators. Call Run to start it.
func New(opts Options) *Engine {
	cfg := opts.Config
	logger := logging.NewComponentLogger(opts.Logger, "engine")
	grace := time.Duration(cfg.Engine.TerminateGraceMillis) * time.Millisecond

	e := &Engine{
		cfg:            cfg,
		logger:         logger,
		registry:       opts.Registry,
		store:          opts.Store,
		graph:          show.NewGraph(),
		commands:       make(chan func(), 16),
		runnerEvents:   make(chan runner.Event, 64),
		previewResults: make(chan preview.Result, 64),
		thumbs:         make(map[string]string),
		done:           make(chan struct{}),
	}

	audioRunner := runner.Options{
		Binary:        cfg.Players.FFplayBinary,
		StartupVolume: cfg.Players.StartupVolume,
		Grace:         grace,
		Registry:      opts.Registry,
		Logger:        opts.Logger,
		Events:        e.runnerEvents,
	}
	visualRunner := audioRunner
	visualRunner.Sink = runner.SinkTarget{
		SecondScreen: true,
		Left:         cfg.Output.SecondScreenLeft,
		Top:          cfg.Output.SecondScreenTop,
		Fullscreen:   cfg.Output.VideoFullscreen,
		OperatorLeft: cfg.Output.OperatorWindowLeft,
		OperatorTop:  cfg.Output.OperatorWindowTop,
	}
	visualRunner.Slides = opts.Slides

	e.deckA = deck.New(deck.Options{
		Name:           DeckAudio,
		Runner:         audioRunner,
		Logger:         opts.Logger,
		SessionFactory: opts.SessionFactory,
	})
	e.deckB = deck.New(deck.Options{
		Name:           DeckVisual,
		Runner:         visualRunner,
		Logger:         opts.Logger,
		SessionFactory: opts.SessionFactory,
	})

	e.outputs = output.NewManager(opts.Surface, opts.Logger)
	e.previews = preview.New(preview.Options{
		Workers:      cfg.Engine.PreviewWorkers,
		FFmpegBinary: cfg.Players.FFmpegBinary,
		CacheDir:     cfg.Paths.PreviewCacheDir,
		Logger:       opts.Logger,
		Results:      e.previewResults,
	})

	return e
}

// Run executes the control loop until ctx is cancelled. On exit every deck is
// stopped, the blackout surface is dropped and stray player processes are
// killed through the registry.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.previews.Start(ctx); err != nil {
		e.logger.Warn("preview pool unavailable", logging.Error(err))
	}
	e.outputs.Reconcile(ctx)
	e.logger.Info("engine started")

	defer e.shutdown()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.commands:
			fn()
		case ev := <-e.runnerEvents:
			e.handleRunnerEvent(ctx, ev)
		case res := <-e.previewResults:
			e.handlePreviewResult(res)
		}
	}
}

func (e *Engine) shutdown() {
	close(e.done)
	e.deckA.Stop()
	e.deckB.Stop()
	e.outputs.Shutdown()
	if e.registry != nil {
		e.registry.TerminateAll()
	}
	e.previews.Wait()
	e.logger.Info("engine stopped")
}

// do runs fn on the control goroutine and returns its error.
func (e *Engine) do(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case e.commands <- func() { reply <- fn() }:
	case <-e.done:
		return services.Wrap(services.ErrValidation, "engine", "dispatch", "engine is stopped", nil)
	}
	select {
	case err := <-reply:
		return err
	case <-e.done:
		return services.Wrap(services.ErrValidation, "engine", "dispatch", "engine is stopped", nil)
	}
}

func (e *Engine) deckFor(kind show.Kind) *deck.Deck {
	if kind.Visual() {
		return e.deckB
	}
	return e.deckA
}

// GoLive fires the selected cue: the target deck stops whatever it is
// playing, plays the cue, and the cursor advances to the next cue in the
// scene. The last cue leaves the cursor in place, and GO while that last
// cue is already playing holds it rather than restarting it.
func (e *Engine) GoLive(ctx context.Context) error {
	return e.do(func() error {
		cue, ok := e.graph.CurrentCue()
		if !ok {
			return services.Wrap(services.ErrValidation, "engine", "go", "no cue selected", nil)
		}
		if _, hasNext := e.graph.PeekNext(); !hasNext {
			target := e.deckFor(cue.Kind)
			if live, loaded := target.Cue(); loaded && live.ID == cue.ID && target.Status() == deck.StatusRunning {
				e.logger.Info("end of cue list",
					logging.String(logging.FieldCueID, cue.ID),
					logging.String("cue_name", cue.DisplayName()),
				)
				return nil
			}
		}
		if err := e.fire(ctx, cue); err != nil {
			return err
		}
		if next, ok := e.graph.Advance(); ok {
			e.logger.Info("cursor advanced",
				logging.String(logging.FieldCueID, next.ID),
				logging.String("cue_name", next.DisplayName()),
			)
		}
		return nil
	})
}

func (e *Engine) fire(ctx context.Context, cue show.Cue) error {
	cue = e.probed(ctx, cue)
	target := e.deckFor(cue.Kind)

	wasLive := target.Status() == deck.StatusRunning
	if err := target.Load(cue); err != nil {
		return err
	}
	if wasLive && cue.Kind.Visual() {
		// Load tore the previous session down; keep the live set honest
		// before the next player maps its window.
		e.outputs.DeckDark(ctx, target.Name())
	}
	if err := target.Play(ctx); err != nil {
		if cue.Kind.Visual() {
			e.outputs.Reconcile(ctx)
		}
		return err
	}
	if cue.Kind.Visual() {
		e.outputs.DeckLive(ctx, target.Name())
	}
	e.firedCue = cue.ID
	e.logger.Info("cue live",
		logging.String(logging.FieldDeck, target.Name()),
		logging.String(logging.FieldCueID, cue.ID),
		logging.String(logging.FieldCueKind, string(cue.Kind)),
		logging.String("cue_name", cue.DisplayName()),
	)
	return nil
}

// probed fills in a duration hint for audio and video cues that have neither
// a hint nor a stop trim, so positions and previews have a bound to work with.
func (e *Engine) probed(ctx context.Context, cue show.Cue) show.Cue {
	if cue.Kind != show.KindAudio && cue.Kind != show.KindVideo {
		return cue
	}
	if cue.DurationHint > 0 || cue.StopOffset != nil {
		return cue
	}
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	seconds, err := probeDuration(probeCtx, e.cfg.Players.FFprobeBinary, cue.MediaPath)
	if err != nil {
		e.logger.Warn("duration probe failed",
			logging.String(logging.FieldCueID, cue.ID),
			logging.Error(err),
		)
		return cue
	}
	e.graph.SetDurationHint(cue.ID, seconds)
	cue.DurationHint = seconds
	return cue
}

// StopPlayback stops both decks. Cues stay loaded and the cursor stays put.
func (e *Engine) StopPlayback(ctx context.Context) error {
	return e.do(func() error {
		e.stopDeck(ctx, e.deckA)
		e.stopDeck(ctx, e.deckB)
		return nil
	})
}

// StopDeck stops one deck by name.
func (e *Engine) StopDeck(ctx context.Context, name string) error {
	return e.do(func() error {
		switch name {
		case DeckAudio:
			e.stopDeck(ctx, e.deckA)
		case DeckVisual:
			e.stopDeck(ctx, e.deckB)
		default:
			return services.Wrap(services.ErrNotFound, "engine", "stop", fmt.Sprintf("deck %q", name), nil)
		}
		return nil
	})
}

func (e *Engine) stopDeck(ctx context.Context, d *deck.Deck) {
	wasLive := d.Status() == deck.StatusRunning
	d.Stop()
	if wasLive && d == e.deckB {
		e.outputs.DeckDark(ctx, d.Name())
	}
}

// EmergencyStop is the panic button: both decks stop, every registered player
// process is killed, and the screen drops to blackout.
func (e *Engine) EmergencyStop(ctx context.Context) error {
	return e.do(func() error {
		e.logger.Warn("emergency stop",
			logging.String(logging.FieldEventType, "emergency_stop"),
		)
		e.deckA.Stop()
		e.deckB.Stop()
		if e.registry != nil {
			e.registry.TerminateAll()
		}
		e.outputs.DeckDark(ctx, DeckVisual)
		e.outputs.Reconcile(ctx)
		return nil
	})
}

// TogglePause pauses or resumes the running deck. With both decks running the
// visual deck is the target.
func (e *Engine) TogglePause(ctx context.Context) error {
	return e.do(func() error {
		d, err := e.runningDeck()
		if err != nil {
			return err
		}
		return d.TogglePause()
	})
}

// Seek moves the running deck to the given media offset.
func (e *Engine) Seek(ctx context.Context, offsetSeconds float64) error {
	return e.do(func() error {
		d, err := e.runningDeck()
		if err != nil {
			return err
		}
		return d.Seek(ctx, offsetSeconds)
	})
}

// SetVolume applies a discrete volume step to the running audio-capable deck.
func (e *Engine) SetVolume(ctx context.Context, step runner.VolumeStep) error {
	return e.do(func() error {
		d, err := e.runningDeck()
		if err != nil {
			return err
		}
		return d.StepVolume(ctx, step)
	})
}

func (e *Engine) runningDeck() (*deck.Deck, error) {
	if e.deckB.Status() == deck.StatusRunning {
		return e.deckB, nil
	}
	if e.deckA.Status() == deck.StatusRunning {
		return e.deckA, nil
	}
	return nil, services.Wrap(services.ErrValidation, "engine", "control", "nothing is playing", nil)
}

// handleRunnerEvent processes a terminal event from a deck session. Stale
// events from replaced sessions are dropped.
func (e *Engine) handleRunnerEvent(ctx context.Context, ev runner.Event) {
	var d *deck.Deck
	switch ev.Deck {
	case DeckAudio:
		d = e.deckA
	case DeckVisual:
		d = e.deckB
	default:
		return
	}
	if !d.Owns(ev) {
		e.logger.Debug("dropping stale runner event",
			logging.String(logging.FieldDeck, ev.Deck),
			logging.String(logging.FieldCueID, ev.Cue.ID),
		)
		return
	}

	if ev.Cue.Kind.Visual() {
		e.outputs.DeckDark(ctx, d.Name())
	}

	switch ev.Kind {
	case runner.EventFailed:
		e.logger.Warn("cue playback failed",
			logging.String(logging.FieldDeck, ev.Deck),
			logging.String(logging.FieldCueID, ev.Cue.ID),
			logging.Error(ev.Err),
			logging.String(logging.FieldEventType, "cue_failed"),
			logging.String(logging.FieldErrorHint, "check the media file; playback holds for the operator"),
		)
	case runner.EventFinished:
		e.logger.Info("cue finished",
			logging.String(logging.FieldDeck, ev.Deck),
			logging.String(logging.FieldCueID, ev.Cue.ID),
		)
		if ev.Cue.Kind.AutoAdvances() && ev.Cue.ID == e.firedCue {
			e.armNext(ctx)
		}
	}
}

// armNext loads the cursor cue onto its deck without playing it, so the next
// GO fires instantly. A deck that is still running is left alone.
func (e *Engine) armNext(ctx context.Context) {
	cue, ok := e.graph.CurrentCue()
	if !ok {
		return
	}
	target := e.deckFor(cue.Kind)
	if target.Status() == deck.StatusRunning {
		return
	}
	if loaded, ok := target.Cue(); ok && loaded.ID == cue.ID {
		return
	}
	cue = e.probed(ctx, cue)
	if err := target.Load(cue); err != nil {
		e.logger.Warn("cannot arm next cue",
			logging.String(logging.FieldCueID, cue.ID),
			logging.Error(err),
		)
		return
	}
	e.requestPreview(cue)
	e.logger.Info("next cue armed",
		logging.String(logging.FieldDeck, target.Name()),
		logging.String(logging.FieldCueID, cue.ID),
	)
}

func (e *Engine) handlePreviewResult(res preview.Result) {
	if res.Err != nil || res.Path == "" {
		return
	}
	e.thumbs[res.CueID] = res.Path
}

func (e *Engine) requestPreview(cue show.Cue) {
	if cue.Kind != show.KindVideo && cue.Kind != show.KindImage {
		return
	}
	if _, err := e.previews.Request(cue); err != nil {
		e.logger.Debug("preview request rejected",
			logging.String(logging.FieldCueID, cue.ID),
			logging.Error(err),
		)
	}
}

// ForceBlackout toggles operator blackout.
func (e *Engine) ForceBlackout(ctx context.Context, on bool) error {
	return e.do(func() error {
		e.outputs.ForceBlackout(ctx, on)
		return nil
	})
}

// ReconcileOutput re-asserts the second-screen state, typically after a
// display hotplug.
func (e *Engine) ReconcileOutput(ctx context.Context) error {
	return e.do(func() error {
		e.outputs.Reconcile(ctx)
		return nil
	})
}
