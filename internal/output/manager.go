// Package output keeps the second screen in a defined state at all times.
// With no visual cue live the screen shows blackout; when a visual deck goes
// live its player window takes over and the blackout surface is dropped. The
// operator can also force blackout, which wins over any live deck.
package output

import (
	"context"
	"log/slog"
	"sync"

	"stagecue/internal/logging"
)

// State is what the second screen currently shows.
type State string

const (
	// StateBlackout means the blackout surface covers the screen.
	StateBlackout State = "blackout"
	// StateLive means a visual deck's player owns the screen.
	StateLive State = "live"
)

// SurfaceProvider renders the blackout surface. Player windows are owned by
// the decks; the provider only covers the gaps between them.
type SurfaceProvider interface {
	Available() bool
	ShowBlackout(ctx context.Context) error
	HideBlackout()
}

// Manager tracks which visual decks are live and reconciles the blackout
// surface against that set.
type Manager struct {
	provider SurfaceProvider
	logger   *slog.Logger

	mu     sync.Mutex
	live   map[string]struct{}
	forced bool
	shown  bool
}

// NewManager constructs a manager starting in blackout. Call Reconcile once
// after startup to raise the blackout surface.
func NewManager(provider SurfaceProvider, logger *slog.Logger) *Manager {
	return &Manager{
		provider: provider,
		logger:   logging.NewComponentLogger(logger, "output"),
		live:     make(map[string]struct{}),
	}
}

// State returns what the second screen currently shows.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Forced reports whether the operator forced blackout on.
func (m *Manager) Forced() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forced
}

// DeckLive records that a visual deck started drawing on the second screen
// and drops the blackout surface underneath it.
func (m *Manager) DeckLive(ctx context.Context, deck string) {
	m.mu.Lock()
	m.live[deck] = struct{}{}
	m.mu.Unlock()
	m.Reconcile(ctx)
}

// DeckDark records that a visual deck left the second screen. When the last
// one goes dark the blackout surface is restored immediately.
func (m *Manager) DeckDark(ctx context.Context, deck string) {
	m.mu.Lock()
	delete(m.live, deck)
	m.mu.Unlock()
	m.Reconcile(ctx)
}

// ForceBlackout turns operator blackout on or off. Forced blackout covers the
// screen even while a visual deck is live.
func (m *Manager) ForceBlackout(ctx context.Context, on bool) {
	m.mu.Lock()
	changed := m.forced != on
	m.forced = on
	m.mu.Unlock()
	if changed {
		m.logger.Info("operator blackout toggled", logging.Bool("forced", on))
	}
	m.Reconcile(ctx)
}

// Reconcile brings the blackout surface in line with the live-deck set. It is
// safe to call at any time, including after a display hotplug.
func (m *Manager) Reconcile(ctx context.Context) {
	m.mu.Lock()
	wantBlackout := m.stateLocked() == StateBlackout
	haveBlackout := m.shown
	m.shown = wantBlackout
	m.mu.Unlock()

	if m.provider == nil || !m.provider.Available() || wantBlackout == haveBlackout {
		return
	}
	if wantBlackout {
		if err := m.provider.ShowBlackout(ctx); err != nil {
			m.logger.Warn("cannot raise blackout surface",
				logging.Error(err),
				logging.String(logging.FieldEventType, "blackout_show_failed"),
				logging.String(logging.FieldErrorHint, "check the player installation and display configuration"),
			)
			m.mu.Lock()
			m.shown = false
			m.mu.Unlock()
			return
		}
		m.logger.Info("blackout surface raised")
		return
	}
	m.provider.HideBlackout()
	m.logger.Info("blackout surface dropped")
}

// Shutdown drops the blackout surface. Callers terminate player processes
// through the process registry separately.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	shown := m.shown
	m.shown = false
	m.mu.Unlock()
	if shown && m.provider != nil {
		m.provider.HideBlackout()
	}
}

func (m *Manager) stateLocked() State {
	if m.forced || len(m.live) == 0 {
		return StateBlackout
	}
	return StateLive
}
