package procreg_test

import (
	"os"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"stagecue/internal/logging"
	"stagecue/internal/procreg"
)

type fakeProcess struct {
	mu       sync.Mutex
	signals  []os.Signal
	done     chan struct{}
	dieOn    os.Signal
	exitOnce sync.Once
}

func newFakeProcess(dieOn os.Signal) *fakeProcess {
	return &fakeProcess{done: make(chan struct{}), dieOn: dieOn}
}

func (f *fakeProcess) signal(sig os.Signal) error {
	f.mu.Lock()
	f.signals = append(f.signals, sig)
	f.mu.Unlock()
	if sig == f.dieOn || sig == unix.SIGKILL {
		f.exitOnce.Do(func() { close(f.done) })
	}
	return nil
}

func (f *fakeProcess) received() []os.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]os.Signal(nil), f.signals...)
}

func (f *fakeProcess) entry(label string) procreg.Entry {
	return procreg.Entry{Label: label, PID: 12345, Signal: f.signal, Done: f.done}
}

func TestTerminateAllGraceful(t *testing.T) {
	reg := procreg.New(time.Second, logging.NewNop())
	proc := newFakeProcess(unix.SIGTERM)
	reg.Register(proc.entry("player"))

	reg.TerminateAll()

	signals := proc.received()
	if len(signals) != 1 || signals[0] != unix.SIGTERM {
		t.Fatalf("expected single SIGTERM, got %v", signals)
	}
	if reg.Len() != 0 {
		t.Fatalf("registry not empty after TerminateAll: %d", reg.Len())
	}
}

func TestTerminateAllEscalatesToKill(t *testing.T) {
	reg := procreg.New(50*time.Millisecond, logging.NewNop())
	proc := newFakeProcess(nil) // never exits on SIGTERM
	reg.Register(proc.entry("stuck-player"))

	start := time.Now()
	reg.TerminateAll()
	elapsed := time.Since(start)

	signals := proc.received()
	if len(signals) != 2 || signals[0] != unix.SIGTERM || signals[1] != unix.SIGKILL {
		t.Fatalf("expected SIGTERM then SIGKILL, got %v", signals)
	}
	if elapsed > time.Second {
		t.Fatalf("escalation not bounded: took %v", elapsed)
	}
}

func TestTerminateAllIdempotent(t *testing.T) {
	reg := procreg.New(time.Second, logging.NewNop())
	proc := newFakeProcess(unix.SIGTERM)
	reg.Register(proc.entry("player"))

	reg.TerminateAll()
	reg.TerminateAll() // second call must be a no-op

	if got := len(proc.received()); got != 1 {
		t.Fatalf("expected 1 signal after double TerminateAll, got %d", got)
	}
}

func TestTerminateAllEmpty(t *testing.T) {
	reg := procreg.New(time.Second, logging.NewNop())
	reg.TerminateAll() // must not panic or block
}

func TestTerminateEntryAlreadyDead(t *testing.T) {
	proc := newFakeProcess(unix.SIGTERM)
	proc.exitOnce.Do(func() { close(proc.done) })

	procreg.TerminateEntry(proc.entry("gone"), time.Second)
	if got := len(proc.received()); got != 0 {
		t.Fatalf("dead process should not be signaled, got %d signals", got)
	}
}

func TestUnregisterRemovesEntry(t *testing.T) {
	reg := procreg.New(time.Second, logging.NewNop())
	proc := newFakeProcess(unix.SIGTERM)
	token := reg.Register(proc.entry("player"))
	reg.Unregister(token)
	reg.Unregister(token) // unknown token is fine

	reg.TerminateAll()
	if got := len(proc.received()); got != 0 {
		t.Fatalf("unregistered process should not be signaled, got %d", got)
	}
}
