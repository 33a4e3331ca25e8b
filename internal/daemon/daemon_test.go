package daemon

import (
	"context"
	"testing"

	"stagecue/internal/logging"
	"stagecue/internal/testsupport"
)

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Running() {
		t.Fatal("daemon not running after Start")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("second Start on a running daemon must fail")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("daemon still running after Stop")
	}
	// Stop twice is a no-op.
	d.Stop()
}

func TestSecondInstanceRejected(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New first: %v", err)
	}
	t.Cleanup(func() { _ = first.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := first.Start(ctx); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	t.Cleanup(first.Stop)

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	t.Cleanup(func() { _ = second.Close() })

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("second daemon instance acquired the lock")
	}
}

func TestShutdownRequestSignals(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	select {
	case <-d.ShutdownRequested():
		t.Fatal("shutdown channel closed before request")
	default:
	}

	d.RequestShutdown()
	d.RequestShutdown()

	select {
	case <-d.ShutdownRequested():
	default:
		t.Fatal("shutdown channel not closed after request")
	}
}
