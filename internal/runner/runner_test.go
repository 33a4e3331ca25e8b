package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"stagecue/internal/logging"
	"stagecue/internal/procreg"
	"stagecue/internal/services"
	"stagecue/internal/show"
)

// stubPlayer overrides the exec hooks so Launch runs scriptArgs under sh
// instead of a real media player. Restored via t.Cleanup.
func stubPlayer(t *testing.T, script string) {
	t.Helper()
	origCommand := commandContext
	origLook := lookPath
	commandContext = func(ctx context.Context, _ string, _ ...string) *exec.Cmd {
		return exec.CommandContext(ctx, "sh", "-c", script)
	}
	lookPath = func(string) (string, error) { return "/bin/sh", nil }
	t.Cleanup(func() {
		commandContext = origCommand
		lookPath = origLook
	})
}

func mediaFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write media file: %v", err)
	}
	return path
}

func newTestRunner(t *testing.T, kind show.Kind, events chan Event) *Runner {
	t.Helper()
	cue, err := show.NewCue(kind, mediaFile(t, "media.bin"))
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	return New(cue, Options{
		Deck:          "A",
		Binary:        "ffplay",
		StartupVolume: 80,
		Grace:         200 * time.Millisecond,
		Logger:        logging.NewNop(),
		Events:        events,
	})
}

func waitEvent(t *testing.T, events chan Event) Event {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for runner event")
		return Event{}
	}
}

func TestLaunchDeliversFinishedEvent(t *testing.T) {
	stubPlayer(t, "exit 0")
	events := make(chan Event, 1)
	r := newTestRunner(t, show.KindAudio, events)

	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.Kind != EventFinished {
		t.Fatalf("event kind = %s, want %s", ev.Kind, EventFinished)
	}
	if ev.Deck != "A" {
		t.Fatalf("event deck = %q, want A", ev.Deck)
	}
	if got := r.State(); got != StateFinished {
		t.Fatalf("state = %s, want %s", got, StateFinished)
	}
}

func TestUnexpectedExitDeliversFailedEvent(t *testing.T) {
	stubPlayer(t, "exit 3")
	events := make(chan Event, 1)
	r := newTestRunner(t, show.KindAudio, events)

	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	ev := waitEvent(t, events)
	if ev.Kind != EventFailed {
		t.Fatalf("event kind = %s, want %s", ev.Kind, EventFailed)
	}
	if !errors.Is(ev.Err, services.ErrProcessExited) {
		t.Fatalf("event error = %v, want ErrProcessExited", ev.Err)
	}
	if got := r.State(); got != StateFailed {
		t.Fatalf("state = %s, want %s", got, StateFailed)
	}
}

func TestLaunchMissingMediaIsSpawnError(t *testing.T) {
	stubPlayer(t, "exit 0")
	cue, err := show.NewCue(show.KindAudio, filepath.Join(t.TempDir(), "gone.wav"))
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	r := New(cue, Options{Deck: "A", Binary: "ffplay", Logger: logging.NewNop()})

	err = r.Launch(context.Background())
	if !errors.Is(err, services.ErrSpawn) {
		t.Fatalf("Launch error = %v, want ErrSpawn", err)
	}
	if got := r.State(); got != StateFailed {
		t.Fatalf("state = %s, want %s", got, StateFailed)
	}
}

func TestLaunchMissingBinaryIsBackendUnavailable(t *testing.T) {
	origLook := lookPath
	lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	t.Cleanup(func() { lookPath = origLook })

	r := newTestRunner(t, show.KindAudio, nil)
	err := r.Launch(context.Background())
	if !errors.Is(err, services.ErrBackendUnavailable) {
		t.Fatalf("Launch error = %v, want ErrBackendUnavailable", err)
	}
	if !services.Fatal(err) {
		t.Fatal("missing backend should be fatal")
	}
}

func TestTerminateStopsWithoutEvent(t *testing.T) {
	stubPlayer(t, "sleep 60")
	events := make(chan Event, 1)
	r := newTestRunner(t, show.KindAudio, events)

	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	r.Terminate()

	if got := r.State(); got != StateStopped {
		t.Fatalf("state = %s, want %s", got, StateStopped)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event after Terminate: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTerminateIdempotentInAllStates(t *testing.T) {
	stubPlayer(t, "sleep 60")
	r := newTestRunner(t, show.KindAudio, nil)

	// Idle terminate is a no-op that still lands in a terminal state.
	r.Terminate()
	if got := r.State(); got != StateStopped {
		t.Fatalf("state after idle terminate = %s, want %s", got, StateStopped)
	}
	r.Terminate()
	r.Terminate()
	if got := r.State(); got != StateStopped {
		t.Fatalf("state after repeated terminate = %s, want %s", got, StateStopped)
	}
}

func TestTerminateEscalationBounded(t *testing.T) {
	// A player that ignores SIGTERM must still be gone shortly after the
	// grace period via SIGKILL.
	stubPlayer(t, "trap '' TERM; sleep 60")
	r := newTestRunner(t, show.KindAudio, nil)

	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	start := time.Now()
	r.Terminate()
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("Terminate took %v, escalation not bounded", elapsed)
	}
}

func TestRegistryReleasedOnExit(t *testing.T) {
	stubPlayer(t, "exit 0")
	events := make(chan Event, 1)
	reg := procreg.New(200*time.Millisecond, logging.NewNop())

	cue, err := show.NewCue(show.KindAudio, mediaFile(t, "a.wav"))
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	r := New(cue, Options{
		Deck:     "A",
		Binary:   "ffplay",
		Registry: reg,
		Logger:   logging.NewNop(),
		Events:   events,
	})
	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	waitEvent(t, events)
	if got := reg.Len(); got != 0 {
		t.Fatalf("registry holds %d entries after exit, want 0", got)
	}
}

func TestTogglePauseUnsupported(t *testing.T) {
	stubPlayer(t, "sleep 60")
	r := newTestRunner(t, show.KindAudio, nil)
	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer r.Terminate()

	if err := r.TogglePause(); !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("TogglePause error = %v, want ErrUnsupported", err)
	}
}

func TestStepVolumeIdempotent(t *testing.T) {
	stubPlayer(t, "sleep 60")
	events := make(chan Event, 4)
	r := newTestRunner(t, show.KindAudio, events)
	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer r.Terminate()

	if err := r.StepVolume(context.Background(), VolumeMute); err != nil {
		t.Fatalf("StepVolume mute: %v", err)
	}
	if err := r.StepVolume(context.Background(), VolumeMute); err != nil {
		t.Fatalf("repeated StepVolume mute: %v", err)
	}
	if got := r.VolumeLevel(); got != VolumeMute {
		t.Fatalf("volume level = %s, want %s", got, VolumeMute)
	}
	if got := r.State(); got != StatePlaying {
		t.Fatalf("state after volume steps = %s, want %s", got, StatePlaying)
	}
	// The superseded monitor from the restart must stay silent.
	select {
	case ev := <-events:
		t.Fatalf("unexpected event from superseded monitor: %+v", ev)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStepVolumeUnsupportedForImages(t *testing.T) {
	stubPlayer(t, "sleep 60")
	r := newTestRunner(t, show.KindImage, nil)
	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer r.Terminate()

	if err := r.StepVolume(context.Background(), VolumeMute); !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("StepVolume error = %v, want ErrUnsupported", err)
	}
}

func TestSeekClampsToTrimWindow(t *testing.T) {
	stubPlayer(t, "sleep 60")
	events := make(chan Event, 4)

	cue, err := show.NewCue(show.KindAudio, mediaFile(t, "a.wav"))
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	cue.StartOffset = 10
	stop := 30.0
	cue.StopOffset = &stop

	r := New(cue, Options{
		Deck:   "A",
		Binary: "ffplay",
		Grace:  200 * time.Millisecond,
		Logger: logging.NewNop(),
		Events: events,
	})
	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer r.Terminate()

	if err := r.Seek(context.Background(), 2); err != nil {
		t.Fatalf("Seek below window: %v", err)
	}
	pos, ok := r.Position()
	if !ok {
		t.Fatal("Position not available while playing")
	}
	if pos < 10 || pos > 11 {
		t.Fatalf("position = %.2f, want clamped near 10", pos)
	}
	if got := r.State(); got != StatePlaying {
		t.Fatalf("state after seek = %s, want %s", got, StatePlaying)
	}
}

func TestSeekUnsupportedForSlides(t *testing.T) {
	cue, err := show.NewCue(show.KindPPT, mediaFile(t, "deck.pptx"))
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	r := New(cue, Options{Deck: "B", Logger: logging.NewNop()})
	if err := r.Seek(context.Background(), 5); !errors.Is(err, services.ErrUnsupported) {
		t.Fatalf("Seek error = %v, want ErrUnsupported", err)
	}
}

func TestLaunchTwiceRejected(t *testing.T) {
	stubPlayer(t, "sleep 60")
	r := newTestRunner(t, show.KindAudio, nil)
	if err := r.Launch(context.Background()); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	defer r.Terminate()

	if err := r.Launch(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("second Launch error = %v, want ErrValidation", err)
	}
}
