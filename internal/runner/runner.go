package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"stagecue/internal/logging"
	"stagecue/internal/procreg"
	"stagecue/internal/services"
	"stagecue/internal/show"
	"stagecue/internal/slides"
)

var (
	commandContext = exec.CommandContext
	lookPath       = exec.LookPath
)

// State is the runner lifecycle state.
type State string

const (
	StateIdle      State = "idle"
	StateLaunching State = "launching"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateFinished  State = "finished"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// Terminal reports whether the state ends the session. A deck must discard a
// terminal runner before launching another.
func (s State) Terminal() bool {
	switch s {
	case StateFinished, StateStopped, StateFailed:
		return true
	}
	return false
}

// VolumeStep is a discrete volume command target. Volume changes are step
// commands sent to the backend, never a synthesized fade envelope.
type VolumeStep string

const (
	VolumeMute VolumeStep = "mute"
	VolumeHalf VolumeStep = "half"
	VolumeFull VolumeStep = "full"
)

// EventKind classifies a terminal runner event.
type EventKind string

const (
	// EventFinished signals natural end of stream.
	EventFinished EventKind = "finished"
	// EventFailed signals process death before end of stream.
	EventFailed EventKind = "failed"
)

// Event is delivered to the control loop when a runner reaches a terminal
// state on its own.
type Event struct {
	Deck string
	Cue  show.Cue
	Kind EventKind
	Err  error
}

// Options configures a runner.
type Options struct {
	Deck          string
	Binary        string
	StartupVolume int
	Sink          SinkTarget
	Grace         time.Duration
	Registry      *procreg.Registry
	Slides        slides.Controller
	Logger        *slog.Logger
	Events        chan<- Event
}

// Runner owns one playback session: a single external player process (or an
// open slide deck) for one cue.
type Runner struct {
	opts Options
	cue  show.Cue

	mu         sync.Mutex
	state      State
	gen        int
	cmd        *exec.Cmd
	done       chan struct{}
	token      procreg.Token
	registered bool
	startedAt  time.Time
	baseOffset float64
	volumePct  int
	volumeStep VolumeStep
	logger     *slog.Logger
}

// New constructs an idle runner for the cue.
func New(cue show.Cue, opts Options) *Runner {
	if opts.Grace <= 0 {
		opts.Grace = 1500 * time.Millisecond
	}
	if opts.Slides == nil {
		opts.Slides = slides.Unavailable{}
	}
	logger := logging.NewComponentLogger(opts.Logger, "runner").With(
		logging.String(logging.FieldDeck, opts.Deck),
		logging.String(logging.FieldCueID, cue.ID),
		logging.String(logging.FieldCueKind, string(cue.Kind)),
	)
	return &Runner{
		opts:       opts,
		cue:        cue,
		state:      StateIdle,
		volumeStep: VolumeFull,
		logger:     logger,
	}
}

// Cue returns the cue this runner plays.
func (r *Runner) Cue() show.Cue {
	return r.cue
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Launch starts the playback session targeting the configured sink. It fails
// with ErrSpawn when the media path is invalid or the process cannot start,
// and with ErrBackendUnavailable when no backend can play this cue kind.
func (r *Runner) Launch(ctx context.Context) error {
	r.mu.Lock()
	if r.state != StateIdle {
		state := r.state
		r.mu.Unlock()
		return services.Wrap(services.ErrValidation, "runner", "launch", fmt.Sprintf("runner is %s, not idle", state), nil)
	}
	r.state = StateLaunching
	r.mu.Unlock()

	if r.cue.Kind == show.KindPPT {
		return r.launchSlides(ctx)
	}
	return r.launchProcess(ctx, r.cue.StartOffset, r.baseVolume())
}

func (r *Runner) launchSlides(ctx context.Context) error {
	if !r.opts.Slides.Available() {
		r.fail(nil)
		return services.Wrap(services.ErrBackendUnavailable, "runner", "launch", "no slide controller installed", nil)
	}
	if err := r.opts.Slides.Open(ctx, r.cue.MediaPath); err != nil {
		r.fail(err)
		return err
	}
	r.mu.Lock()
	r.state = StatePlaying
	r.startedAt = time.Now()
	r.mu.Unlock()
	r.logger.Info("slide deck open")
	return nil
}

func (r *Runner) launchProcess(ctx context.Context, seek float64, volume int) error {
	if _, err := os.Stat(r.cue.MediaPath); err != nil {
		r.fail(err)
		return services.Wrap(services.ErrSpawn, "runner", "launch", fmt.Sprintf("media path %q", r.cue.MediaPath), err)
	}
	if _, err := lookPath(r.opts.Binary); err != nil {
		r.fail(err)
		return services.Wrap(services.ErrBackendUnavailable, "runner", "launch", fmt.Sprintf("player binary %q", r.opts.Binary), err)
	}

	spec := launchSpec{seek: seek, volume: volume}
	if r.cue.StopOffset != nil && *r.cue.StopOffset > seek {
		limit := *r.cue.StopOffset - seek
		spec.durationLimit = &limit
	}
	args := buildArgs(r.cue, r.opts.Sink, spec)

	cmd := commandContext(ctx, r.opts.Binary, args...)
	cmd.Stdout = nil
	cmd.Stderr = nil
	if err := cmd.Start(); err != nil {
		r.fail(err)
		return services.Wrap(services.ErrSpawn, "runner", "launch", "start player", err)
	}

	done := make(chan struct{})
	r.mu.Lock()
	r.cmd = cmd
	r.done = done
	r.gen++
	gen := r.gen
	r.state = StatePlaying
	r.startedAt = time.Now()
	r.baseOffset = seek
	r.volumePct = volume
	if r.opts.Registry != nil {
		r.token = r.opts.Registry.Register(procreg.Entry{
			Label:  fmt.Sprintf("%s:%s", r.opts.Deck, r.cue.DisplayName()),
			PID:    cmd.Process.Pid,
			Signal: cmd.Process.Signal,
			Done:   done,
		})
		r.registered = true
	}
	r.mu.Unlock()

	r.logger.Info("player started",
		logging.Int("pid", cmd.Process.Pid),
		logging.Float64("seek", seek),
		logging.Int("volume", volume),
	)

	go r.monitor(gen, cmd, done)
	return nil
}

// monitor reaps the player process and classifies its exit. Restarts bump
// the generation counter so a superseded monitor never emits an event.
func (r *Runner) monitor(gen int, cmd *exec.Cmd, done chan struct{}) {
	waitErr := cmd.Wait()
	close(done)

	r.mu.Lock()
	if r.gen != gen {
		// Superseded by a seek or volume restart.
		r.mu.Unlock()
		return
	}
	if r.registered && r.opts.Registry != nil {
		r.opts.Registry.Unregister(r.token)
		r.registered = false
	}
	if r.state == StateStopped {
		r.mu.Unlock()
		return
	}

	var event Event
	if waitErr == nil {
		r.state = StateFinished
		event = Event{Deck: r.opts.Deck, Cue: r.cue, Kind: EventFinished}
	} else {
		r.state = StateFailed
		err := services.Wrap(services.ErrProcessExited, "runner", "monitor", "player exited before end of stream", waitErr)
		event = Event{Deck: r.opts.Deck, Cue: r.cue, Kind: EventFailed, Err: err}
	}
	r.mu.Unlock()

	if event.Kind == EventFinished {
		r.logger.Info("playback finished")
	} else {
		r.logger.Warn("playback failed",
			logging.Error(event.Err),
			logging.String(logging.FieldEventType, "runner_process_exited"),
			logging.String(logging.FieldErrorHint, "check the media file and player installation"),
		)
	}

	if r.opts.Events != nil {
		r.opts.Events <- event
	}
}

// Terminate stops the session. It is safe to call in any state, including
// terminal ones, and guarantees the OS process is no longer running when it
// returns, escalating from SIGTERM to SIGKILL after the grace period.
func (r *Runner) Terminate() {
	r.mu.Lock()
	if r.state.Terminal() || r.state == StateIdle {
		if r.state == StateIdle {
			r.state = StateStopped
		}
		r.mu.Unlock()
		return
	}
	r.state = StateStopped
	cmd := r.cmd
	done := r.done
	token := r.token
	registered := r.registered
	r.registered = false
	r.mu.Unlock()

	if r.cue.Kind == show.KindPPT {
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.Grace)
		defer cancel()
		if err := r.opts.Slides.Close(ctx); err != nil {
			r.logger.Warn("slide deck close failed", logging.Error(err))
		}
		return
	}

	if cmd != nil && cmd.Process != nil {
		procreg.TerminateEntry(procreg.Entry{
			PID:    cmd.Process.Pid,
			Signal: cmd.Process.Signal,
			Done:   done,
		}, r.opts.Grace)
	}
	if registered && r.opts.Registry != nil {
		r.opts.Registry.Unregister(token)
	}
	r.logger.Info("playback stopped")
}

// TogglePause pauses or resumes playback when the backend supports it. The
// ffplay backend cannot be paused externally, so process-backed kinds report
// ErrUnsupported; so do slide decks.
func (r *Runner) TogglePause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying && r.state != StatePaused {
		return services.Wrap(services.ErrValidation, "runner", "pause", fmt.Sprintf("runner is %s", r.state), nil)
	}
	// Capability query, not an assumption: no current backend supports
	// mid-stream pause.
	return services.Wrap(services.ErrUnsupported, "runner", "pause",
		fmt.Sprintf("backend cannot pause %s playback", r.cue.Kind), nil)
}

// Seek moves playback to offsetSeconds, clamped to the cue's trim window.
// The ffplay backend cannot seek in place, so the player is restarted at the
// clamped position; the swap is invisible to the deck state machine.
func (r *Runner) Seek(ctx context.Context, offsetSeconds float64) error {
	if r.cue.Kind == show.KindPPT {
		return services.Wrap(services.ErrUnsupported, "runner", "seek", "slide decks have no timeline", nil)
	}
	stop := r.stopBound()
	target := clampFloat(offsetSeconds, r.cue.StartOffset, stop)

	r.mu.Lock()
	if r.state != StatePlaying {
		state := r.state
		r.mu.Unlock()
		return services.Wrap(services.ErrValidation, "runner", "seek", fmt.Sprintf("runner is %s", state), nil)
	}
	volume := r.volumePct
	r.mu.Unlock()

	return r.restart(ctx, target, volume)
}

// StepVolume sends a discrete volume command. Repeated identical steps are
// idempotent no-ops. The ffplay backend applies volume at startup only, so a
// change restarts the player at the current position.
func (r *Runner) StepVolume(ctx context.Context, step VolumeStep) error {
	if r.cue.Kind == show.KindPPT || r.cue.Kind == show.KindImage {
		return services.Wrap(services.ErrUnsupported, "runner", "volume",
			fmt.Sprintf("%s cues carry no audio", r.cue.Kind), nil)
	}

	r.mu.Lock()
	if r.state != StatePlaying {
		state := r.state
		r.mu.Unlock()
		return services.Wrap(services.ErrValidation, "runner", "volume", fmt.Sprintf("runner is %s", state), nil)
	}
	if step == r.volumeStep {
		r.mu.Unlock()
		return nil
	}
	position := r.positionLocked()
	r.mu.Unlock()

	target := r.stepPercent(step)
	if err := r.restart(ctx, position, target); err != nil {
		return err
	}
	r.mu.Lock()
	r.volumeStep = step
	r.mu.Unlock()
	return nil
}

// VolumeLevel returns the last applied volume step.
func (r *Runner) VolumeLevel() VolumeStep {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volumeStep
}

// Position returns the best-effort elapsed media position. It is advisory:
// the value is derived from the monotonic clock, not from the backend.
func (r *Runner) Position() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StatePlaying && r.state != StatePaused {
		return 0, false
	}
	if r.cue.Kind == show.KindPPT {
		return 0, false
	}
	return r.positionLocked(), true
}

func (r *Runner) positionLocked() float64 {
	elapsed := time.Since(r.startedAt).Seconds()
	position := r.baseOffset + elapsed
	if stop := r.stopBound(); position > stop {
		position = stop
	}
	return position
}

// restart swaps the player process while keeping the session state Playing.
func (r *Runner) restart(ctx context.Context, seek float64, volume int) error {
	r.mu.Lock()
	r.gen++ // supersede the old monitor
	cmd := r.cmd
	done := r.done
	token := r.token
	registered := r.registered
	r.registered = false
	r.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		procreg.TerminateEntry(procreg.Entry{
			PID:    cmd.Process.Pid,
			Signal: cmd.Process.Signal,
			Done:   done,
		}, r.opts.Grace)
	}
	if registered && r.opts.Registry != nil {
		r.opts.Registry.Unregister(token)
	}

	r.mu.Lock()
	r.state = StateLaunching
	r.mu.Unlock()
	return r.launchProcess(ctx, seek, volume)
}

func (r *Runner) fail(err error) {
	r.mu.Lock()
	r.state = StateFailed
	r.mu.Unlock()
	if err != nil {
		r.logger.Warn("launch failed", logging.Error(err))
	}
}

func (r *Runner) baseVolume() int {
	if r.cue.Volume != nil {
		return clampInt(*r.cue.Volume, 0, 100)
	}
	return clampInt(r.opts.StartupVolume, 0, 100)
}

func (r *Runner) stepPercent(step VolumeStep) int {
	base := r.baseVolume()
	switch step {
	case VolumeMute:
		return 0
	case VolumeHalf:
		return base / 2
	default:
		return base
	}
}

func (r *Runner) stopBound() float64 {
	if r.cue.StopOffset != nil {
		return *r.cue.StopOffset
	}
	if r.cue.DurationHint > 0 {
		return r.cue.DurationHint
	}
	return 1 << 30 // effectively unbounded
}
