// Package deck owns one playback slot. A deck holds at most one cue and at
// most one live playback session for it; loading a new cue always tears the
// previous session down to a terminal state before the slot is reused.
//
// Decks are not safe for concurrent use. The cue engine owns both decks from
// its control goroutine.
package deck

import (
	"context"
	"fmt"
	"log/slog"

	"stagecue/internal/logging"
	"stagecue/internal/runner"
	"stagecue/internal/services"
	"stagecue/internal/show"
)

// Status is the externally visible deck state.
type Status string

const (
	// StatusEmpty means no cue is loaded.
	StatusEmpty Status = "empty"
	// StatusLoaded means a cue is armed but no session is live.
	StatusLoaded Status = "loaded"
	// StatusRunning means a playback session is in flight.
	StatusRunning Status = "running"
)

// Session is one playback attempt for one cue. The production implementation
// is *runner.Runner.
type Session interface {
	Cue() show.Cue
	State() runner.State
	Launch(ctx context.Context) error
	Terminate()
	TogglePause() error
	Seek(ctx context.Context, offsetSeconds float64) error
	StepVolume(ctx context.Context, step runner.VolumeStep) error
	Position() (float64, bool)
	VolumeLevel() runner.VolumeStep
}

// Options configures a deck and the sessions it spawns.
type Options struct {
	Name          string
	Runner        runner.Options
	Logger        *slog.Logger
	OnStateChange func(deck string, status Status)
	// SessionFactory overrides how sessions are built. Nil means real
	// player processes via the runner package.
	SessionFactory func(cue show.Cue) Session
}

// Deck is a named playback slot.
type Deck struct {
	opts    Options
	logger  *slog.Logger
	factory func(cue show.Cue) Session

	cue     *show.Cue
	session Session
	status  Status
}

// New constructs an empty deck.
func New(opts Options) *Deck {
	opts.Runner.Deck = opts.Name
	d := &Deck{
		opts:   opts,
		logger: logging.NewComponentLogger(opts.Logger, "deck").With(logging.String(logging.FieldDeck, opts.Name)),
		status: StatusEmpty,
	}
	d.factory = opts.SessionFactory
	if d.factory == nil {
		d.factory = func(cue show.Cue) Session {
			return runner.New(cue, d.opts.Runner)
		}
	}
	return d
}

// Name returns the deck identifier.
func (d *Deck) Name() string {
	return d.opts.Name
}

// Status returns the current deck state, refreshed from the live session. A
// session that reached a terminal state on its own drops the deck back to
// loaded.
func (d *Deck) Status() Status {
	d.refresh()
	return d.status
}

// Cue returns the loaded cue, if any.
func (d *Deck) Cue() (show.Cue, bool) {
	if d.cue == nil {
		return show.Cue{}, false
	}
	return *d.cue, true
}

// Load arms a cue on the deck. Loading while a session is running is allowed:
// the previous session is terminated first and is guaranteed terminal before
// this call returns, so its process cannot outlive the slot handoff.
func (d *Deck) Load(cue show.Cue) error {
	if err := cue.Validate(); err != nil {
		return services.Wrap(services.ErrValidation, "deck", "load", "rejecting cue", err)
	}
	d.stopSession()
	d.cue = &cue
	d.setStatus(StatusLoaded)
	d.logger.Info("cue loaded",
		logging.String(logging.FieldCueID, cue.ID),
		logging.String(logging.FieldCueKind, string(cue.Kind)),
		logging.String("cue_name", cue.DisplayName()),
	)
	return nil
}

// Play starts a session for the loaded cue. A deck with a live session
// rejects the request; callers stop it first.
func (d *Deck) Play(ctx context.Context) error {
	d.refresh()
	if d.cue == nil {
		return services.Wrap(services.ErrValidation, "deck", "play", "no cue loaded", nil)
	}
	if d.status == StatusRunning {
		return services.Wrap(services.ErrAlreadyRunning, "deck", "play",
			fmt.Sprintf("deck %s already has a live session", d.opts.Name), nil)
	}

	session := d.factory(*d.cue)
	d.session = session
	d.setStatus(StatusRunning)
	if err := session.Launch(ctx); err != nil {
		d.session = nil
		d.setStatus(StatusLoaded)
		return err
	}
	return nil
}

// Stop terminates the live session, if any. The cue stays loaded.
func (d *Deck) Stop() {
	d.stopSession()
	if d.cue != nil {
		d.setStatus(StatusLoaded)
	}
}

// Clear stops the session and unloads the cue.
func (d *Deck) Clear() {
	d.stopSession()
	d.cue = nil
	d.setStatus(StatusEmpty)
}

// TogglePause delegates to the live session.
func (d *Deck) TogglePause() error {
	session, err := d.liveSession("pause")
	if err != nil {
		return err
	}
	return session.TogglePause()
}

// Seek delegates to the live session.
func (d *Deck) Seek(ctx context.Context, offsetSeconds float64) error {
	session, err := d.liveSession("seek")
	if err != nil {
		return err
	}
	return session.Seek(ctx, offsetSeconds)
}

// StepVolume delegates to the live session.
func (d *Deck) StepVolume(ctx context.Context, step runner.VolumeStep) error {
	session, err := d.liveSession("volume")
	if err != nil {
		return err
	}
	return session.StepVolume(ctx, step)
}

// Position returns the live session's advisory playback position.
func (d *Deck) Position() (float64, bool) {
	if d.session == nil {
		return 0, false
	}
	return d.session.Position()
}

// VolumeLevel returns the live session's volume step, defaulting to full.
func (d *Deck) VolumeLevel() runner.VolumeStep {
	if d.session == nil {
		return runner.VolumeFull
	}
	return d.session.VolumeLevel()
}

// Owns reports whether ev belongs to this deck's current session. Events from
// sessions the deck already replaced are stale and must be ignored.
func (d *Deck) Owns(ev runner.Event) bool {
	if ev.Deck != d.opts.Name || d.session == nil {
		return false
	}
	return d.session.Cue().ID == ev.Cue.ID
}

func (d *Deck) liveSession(operation string) (Session, error) {
	d.refresh()
	if d.session == nil || d.status != StatusRunning {
		return nil, services.Wrap(services.ErrValidation, "deck", operation,
			fmt.Sprintf("deck %s has no live session", d.opts.Name), nil)
	}
	return d.session, nil
}

func (d *Deck) stopSession() {
	if d.session == nil {
		return
	}
	d.session.Terminate()
	if state := d.session.State(); !state.Terminal() {
		// Terminate guarantees terminality for real sessions; a violation
		// here is a programming error worth surfacing loudly.
		d.logger.Error("session not terminal after terminate",
			logging.String("session_state", string(state)),
		)
	}
	d.session = nil
}

func (d *Deck) refresh() {
	if d.session == nil {
		return
	}
	if d.session.State().Terminal() {
		d.session = nil
		if d.cue != nil {
			d.setStatus(StatusLoaded)
		} else {
			d.setStatus(StatusEmpty)
		}
	}
}

func (d *Deck) setStatus(status Status) {
	if d.status == status {
		return
	}
	d.status = status
	if d.opts.OnStateChange != nil {
		d.opts.OnStateChange(d.opts.Name, status)
	}
}
