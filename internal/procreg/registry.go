package procreg

import (
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"stagecue/internal/logging"
)

// Token identifies a registered process entry.
type Token string

// Entry describes one live external process. Signal delivers an OS signal to
// the process; Done is closed by the owner's monitor once the process has
// been reaped.
type Entry struct {
	Label  string
	PID    int
	Signal func(os.Signal) error
	Done   <-chan struct{}
}

// Registry is the process-wide ledger of running external processes. All
// mutation happens under a single lock covering the full read-modify-write of
// Register, Unregister, and TerminateAll.
type Registry struct {
	mu      sync.Mutex
	grace   time.Duration
	logger  *slog.Logger
	entries map[Token]Entry
}

// New constructs a registry. grace bounds how long a graceful stop may take
// before the signal escalates to SIGKILL.
func New(grace time.Duration, logger *slog.Logger) *Registry {
	if grace <= 0 {
		grace = 1500 * time.Millisecond
	}
	return &Registry{
		grace:   grace,
		logger:  logging.NewComponentLogger(logger, "procreg"),
		entries: make(map[Token]Entry),
	}
}

// Grace returns the configured escalation grace period.
func (r *Registry) Grace() time.Duration {
	return r.grace
}

// Register records a running process and returns its token.
func (r *Registry) Register(entry Entry) Token {
	token := Token(uuid.NewString())
	r.mu.Lock()
	r.entries[token] = entry
	r.mu.Unlock()
	r.logger.Debug("registered process",
		logging.String("label", entry.Label),
		logging.Int("pid", entry.PID),
	)
	return token
}

// Unregister removes a process entry. Unknown tokens are ignored so owners
// can unconditionally unregister on exit.
func (r *Registry) Unregister(token Token) {
	r.mu.Lock()
	delete(r.entries, token)
	r.mu.Unlock()
}

// Len reports how many processes are currently registered.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// TerminateAll stops every registered process and waits, bounded by twice the
// grace period per process, until each has exited. It is safe to call more
// than once and with zero registered entries; entries whose process is
// already dead terminate immediately.
func (r *Registry) TerminateAll() {
	r.mu.Lock()
	snapshot := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		snapshot = append(snapshot, entry)
	}
	r.entries = make(map[Token]Entry)
	r.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	r.logger.Info("terminating registered processes", logging.Int("count", len(snapshot)))
	var wg sync.WaitGroup
	for _, entry := range snapshot {
		wg.Add(1)
		go func(entry Entry) {
			defer wg.Done()
			TerminateEntry(entry, r.grace)
		}(entry)
	}
	wg.Wait()
}

// TerminateEntry stops one process, escalating from SIGTERM to SIGKILL when
// it does not exit within the grace period. Signal errors are ignored; a
// handle whose process is already gone reports success through Done.
func TerminateEntry(entry Entry, grace time.Duration) {
	if entry.Done != nil {
		select {
		case <-entry.Done:
			return
		default:
		}
	}
	if entry.Signal == nil {
		return
	}

	_ = entry.Signal(unix.SIGTERM)
	if waitDone(entry.Done, grace) {
		return
	}
	_ = entry.Signal(unix.SIGKILL)
	waitDone(entry.Done, grace)
}

func waitDone(done <-chan struct{}, timeout time.Duration) bool {
	if done == nil {
		return true
	}
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
