package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stagecue/internal/config"
	"stagecue/internal/deck"
	"stagecue/internal/logging"
	"stagecue/internal/output"
	"stagecue/internal/procreg"
	"stagecue/internal/runner"
	"stagecue/internal/services"
	"stagecue/internal/show"
	"stagecue/internal/testsupport"
)

// fakeSession stands in for a player process. Tests drive terminal
// transitions by pushing events onto the engine's runner channel.
type fakeSession struct {
	cue show.Cue

	mu    sync.Mutex
	state runner.State
}

func (f *fakeSession) Cue() show.Cue { return f.cue }

func (f *fakeSession) State() runner.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeSession) setState(s runner.State) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *fakeSession) Launch(context.Context) error {
	f.setState(runner.StatePlaying)
	return nil
}

func (f *fakeSession) Terminate() { f.setState(runner.StateStopped) }

func (f *fakeSession) TogglePause() error {
	return services.Wrap(services.ErrUnsupported, "runner", "pause", "no pausable backend", nil)
}

func (f *fakeSession) Seek(context.Context, float64) error { return nil }

func (f *fakeSession) StepVolume(context.Context, runner.VolumeStep) error { return nil }

func (f *fakeSession) Position() (float64, bool) { return 1, f.State() == runner.StatePlaying }

func (f *fakeSession) VolumeLevel() runner.VolumeStep { return runner.VolumeFull }

type surfaceStub struct {
	mu    sync.Mutex
	shown bool
}

func (s *surfaceStub) Available() bool { return true }

func (s *surfaceStub) ShowBlackout(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = true
	return nil
}

func (s *surfaceStub) HideBlackout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = false
}

type harness struct {
	engine  *Engine
	surface *surfaceStub
	cancel  context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*fakeSession
}

func newHarness(t *testing.T, opts ...testsupport.ConfigOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	return newHarnessWithConfig(t, cfg)
}

func newHarnessWithConfig(t *testing.T, cfg *config.Config) *harness {
	t.Helper()

	origProbe := probeDuration
	probeDuration = func(context.Context, string, string) (float64, error) { return 30, nil }
	t.Cleanup(func() { probeDuration = origProbe })

	h := &harness{
		surface:  &surfaceStub{},
		sessions: make(map[string]*fakeSession),
	}
	h.engine = New(Options{
		Config:   cfg,
		Logger:   logging.NewNop(),
		Registry: procreg.New(200*time.Millisecond, logging.NewNop()),
		Surface:  h.surface,
		SessionFactory: func(cue show.Cue) deck.Session {
			s := &fakeSession{cue: cue, state: runner.StateIdle}
			h.mu.Lock()
			h.sessions[cue.ID] = s
			h.mu.Unlock()
			return s
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.engine.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("engine did not stop")
		}
	})
	return h
}

func (h *harness) session(t *testing.T, cueID string) *fakeSession {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[cueID]
	if !ok {
		t.Fatalf("no session for cue %s", cueID)
	}
	return s
}

// finish simulates natural end of stream for a cue's session.
func (h *harness) finish(t *testing.T, cue show.Cue) {
	t.Helper()
	h.session(t, cue.ID).setState(runner.StateFinished)
	h.engine.runnerEvents <- runner.Event{
		Deck: deckNameFor(cue.Kind),
		Cue:  cue,
		Kind: runner.EventFinished,
	}
	h.sync(t)
}

func (h *harness) fail(t *testing.T, cue show.Cue, err error) {
	t.Helper()
	h.session(t, cue.ID).setState(runner.StateFailed)
	h.engine.runnerEvents <- runner.Event{
		Deck: deckNameFor(cue.Kind),
		Cue:  cue,
		Kind: runner.EventFailed,
		Err:  err,
	}
	h.sync(t)
}

// sync waits until the control goroutine has drained everything queued
// before this call.
func (h *harness) sync(t *testing.T) {
	t.Helper()
	if err := h.engine.do(func() error { return nil }); err != nil {
		t.Fatalf("sync: %v", err)
	}
}

func deckNameFor(kind show.Kind) string {
	if kind.Visual() {
		return DeckVisual
	}
	return DeckAudio
}

func addCue(t *testing.T, h *harness, sceneIdx int, kind show.Kind, name string) show.Cue {
	t.Helper()
	cue, err := show.NewCue(kind, "/media/"+name)
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	cue.Name = name
	if err := h.engine.AddCue(sceneIdx, cue); err != nil {
		t.Fatalf("AddCue: %v", err)
	}
	return cue
}

func deckStatusByName(t *testing.T, st Status, name string) DeckStatus {
	t.Helper()
	for _, ds := range st.Decks {
		if ds.Name == name {
			return ds
		}
	}
	t.Fatalf("no deck %q in status", name)
	return DeckStatus{}
}

func TestGoLiveWithoutCueRejected(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.GoLive(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("GoLive error = %v, want ErrValidation", err)
	}
}

func TestGoLivePlaysAndAdvancesCursor(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("opening"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	audio := addCue(t, h, 0, show.KindAudio, "walk-in.wav")
	addCue(t, h, 0, show.KindVideo, "opener.mp4")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}

	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	ds := deckStatusByName(t, st, DeckAudio)
	if ds.Status != string(deck.StatusRunning) {
		t.Fatalf("audio deck status = %s, want running", ds.Status)
	}
	if ds.Cue == nil || ds.Cue.ID != audio.ID {
		t.Fatal("audio deck not playing the fired cue")
	}
	if st.CueIndex != 1 {
		t.Fatalf("cursor = %d, want 1 after firing the first cue", st.CueIndex)
	}
}

func TestAudioFinishArmsNextWithoutPlaying(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("opening"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	audio := addCue(t, h, 0, show.KindAudio, "walk-in.wav")
	video := addCue(t, h, 0, show.KindVideo, "opener.mp4")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	h.finish(t, audio)

	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	ds := deckStatusByName(t, st, DeckVisual)
	if ds.Status != string(deck.StatusLoaded) {
		t.Fatalf("visual deck status = %s, want loaded (armed, not playing)", ds.Status)
	}
	if ds.Cue == nil || ds.Cue.ID != video.ID {
		t.Fatal("visual deck did not arm the next cue")
	}
	audioDeck := deckStatusByName(t, st, DeckAudio)
	if audioDeck.Status == string(deck.StatusRunning) {
		t.Fatal("audio deck still running after natural finish")
	}
}

func TestImageNeverAutoAdvances(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("hold"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	image := addCue(t, h, 0, show.KindImage, "logo.png")
	addCue(t, h, 0, show.KindAudio, "bed.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	// Even a simulated finish for a hold kind must not arm or start
	// anything else.
	h.finish(t, image)

	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	visual := deckStatusByName(t, st, DeckVisual)
	if visual.Cue == nil || visual.Cue.ID != image.ID {
		t.Fatal("image cue unloaded without an explicit stop or load")
	}
	audio := deckStatusByName(t, st, DeckAudio)
	if audio.Status == string(deck.StatusRunning) {
		t.Fatal("hold kind triggered automatic advance")
	}
}

func TestGoLiveStopsPreviousCueOnSameDeck(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	first := addCue(t, h, 0, show.KindAudio, "first.wav")
	second := addCue(t, h, 0, show.KindAudio, "second.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive first: %v", err)
	}
	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive second: %v", err)
	}

	if got := h.session(t, first.ID).State(); !got.Terminal() {
		t.Fatalf("first session state = %s, want terminal before second launch", got)
	}
	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	ds := deckStatusByName(t, st, DeckAudio)
	if ds.Cue == nil || ds.Cue.ID != second.ID {
		t.Fatal("second cue not live after stop-and-go")
	}
}

func TestNoWraparoundAtEndOfScene(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindAudio, "only.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CueIndex != 0 {
		t.Fatalf("cursor = %d, want 0 on the last cue", st.CueIndex)
	}
	if err := h.engine.NextCue(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("NextCue at end error = %v, want ErrValidation", err)
	}
}

func TestGoOnRunningLastCueHolds(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	only := addCue(t, h, 0, show.KindAudio, "only.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	first := h.session(t, only.ID)

	// GO again with no next cue: the playing cue holds, nothing restarts.
	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("second GoLive: %v", err)
	}
	if got := first.State(); got != runner.StatePlaying {
		t.Fatalf("first session state = %s, want still playing", got)
	}

	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CueIndex != 0 {
		t.Fatalf("cursor = %d, want 0 on the last cue", st.CueIndex)
	}
	ds := deckStatusByName(t, st, DeckAudio)
	if ds.Status != string(deck.StatusRunning) {
		t.Fatalf("audio deck status = %s, want running", ds.Status)
	}
	if ds.Cue == nil || ds.Cue.ID != only.ID {
		t.Fatal("audio deck no longer holds the last cue")
	}
}

func TestVisualLifecycleDrivesOutput(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	video := addCue(t, h, 0, show.KindVideo, "opener.mp4")

	if state, err := h.engine.OutputState(); err != nil || state != output.StateBlackout {
		t.Fatalf("initial output = %s (%v), want blackout", state, err)
	}

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	if state, _ := h.engine.OutputState(); state != output.StateLive {
		t.Fatalf("output = %s after visual go, want live", state)
	}

	h.finish(t, video)
	if state, _ := h.engine.OutputState(); state != output.StateBlackout {
		t.Fatalf("output = %s after visual finish, want blackout", state)
	}
}

func TestStopPlaybackKeepsCursor(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindAudio, "a.wav")
	addCue(t, h, 0, show.KindAudio, "b.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	if err := h.engine.StopPlayback(context.Background()); err != nil {
		t.Fatalf("StopPlayback: %v", err)
	}

	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CueIndex != 1 {
		t.Fatalf("cursor = %d after stop, want 1", st.CueIndex)
	}
	for _, ds := range st.Decks {
		if ds.Status == string(deck.StatusRunning) {
			t.Fatalf("deck %s still running after StopPlayback", ds.Name)
		}
	}
}

func TestFailedCueHoldsForOperator(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	audio := addCue(t, h, 0, show.KindAudio, "broken.wav")
	addCue(t, h, 0, show.KindAudio, "next.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	h.fail(t, audio, services.Wrap(services.ErrProcessExited, "runner", "monitor", "exit 1", nil))

	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	// A failure never auto-advances; the operator decides what happens next.
	ds := deckStatusByName(t, st, DeckAudio)
	if ds.Status == string(deck.StatusRunning) {
		t.Fatal("deck running after failure")
	}
	if ds.Cue == nil || ds.Cue.ID != audio.ID {
		t.Fatal("failed cue unloaded without operator action")
	}
}

func TestSelectSceneAutoloadsFirstCue(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("one"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	if _, err := h.engine.AddScene("two"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindAudio, "a.wav")
	cue := addCue(t, h, 1, show.KindAudio, "b.wav")

	if err := h.engine.SelectScene(context.Background(), 1); err != nil {
		t.Fatalf("SelectScene: %v", err)
	}
	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.SceneIndex != 1 || st.CueIndex != 0 {
		t.Fatalf("cursor = scene %d cue %d, want scene 1 cue 0", st.SceneIndex, st.CueIndex)
	}
	ds := deckStatusByName(t, st, DeckAudio)
	if ds.Status != string(deck.StatusLoaded) || ds.Cue == nil || ds.Cue.ID != cue.ID {
		t.Fatal("scene selection did not autoload the first cue")
	}
}

func TestEmergencyStopClearsEverything(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindVideo, "opener.mp4")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	if err := h.engine.EmergencyStop(context.Background()); err != nil {
		t.Fatalf("EmergencyStop: %v", err)
	}
	if state, _ := h.engine.OutputState(); state != output.StateBlackout {
		t.Fatalf("output = %s after emergency stop, want blackout", state)
	}
	st, err := h.engine.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	for _, ds := range st.Decks {
		if ds.Status == string(deck.StatusRunning) {
			t.Fatalf("deck %s running after emergency stop", ds.Name)
		}
	}
}

func TestControlsRequireLivePlayback(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Seek(context.Background(), 10); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("Seek error = %v, want ErrValidation", err)
	}
	if err := h.engine.SetVolume(context.Background(), runner.VolumeHalf); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("SetVolume error = %v, want ErrValidation", err)
	}
	if err := h.engine.TogglePause(context.Background()); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("TogglePause error = %v, want ErrValidation", err)
	}
}

func TestForcedBlackoutOverridesLiveVideo(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindVideo, "opener.mp4")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	if err := h.engine.ForceBlackout(context.Background(), true); err != nil {
		t.Fatalf("ForceBlackout: %v", err)
	}
	if state, _ := h.engine.OutputState(); state != output.StateBlackout {
		t.Fatalf("output = %s under forced blackout, want blackout", state)
	}
	if err := h.engine.ForceBlackout(context.Background(), false); err != nil {
		t.Fatalf("release ForceBlackout: %v", err)
	}
	if state, _ := h.engine.OutputState(); state != output.StateLive {
		t.Fatalf("output = %s after release, want live", state)
	}
}

func TestTrimEditRejectedWhileLive(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindAudio, "a.wav")

	if err := h.engine.GoLive(context.Background()); err != nil {
		t.Fatalf("GoLive: %v", err)
	}
	stop := 20.0
	if err := h.engine.UpdateTrim(0, 0, 5, &stop); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("UpdateTrim error = %v, want ErrValidation while live", err)
	}
	if err := h.engine.StopPlayback(context.Background()); err != nil {
		t.Fatalf("StopPlayback: %v", err)
	}
	if err := h.engine.UpdateTrim(0, 0, 5, &stop); err != nil {
		t.Fatalf("UpdateTrim after stop: %v", err)
	}
}

func TestSnapshotRoundTripThroughImport(t *testing.T) {
	h := newHarness(t)
	if _, err := h.engine.AddScene("set"); err != nil {
		t.Fatalf("AddScene: %v", err)
	}
	addCue(t, h, 0, show.KindAudio, "a.wav")
	addCue(t, h, 0, show.KindVideo, "b.mp4")

	data, err := h.engine.ExportSnapshot()
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}

	other := newHarness(t)
	if err := other.engine.ImportSnapshot(context.Background(), data); err != nil {
		t.Fatalf("ImportSnapshot: %v", err)
	}
	scenes, err := other.engine.Scenes()
	if err != nil {
		t.Fatalf("Scenes: %v", err)
	}
	if len(scenes) != 1 || scenes[0].Name != "set" || len(scenes[0].Cues) != 2 {
		t.Fatalf("imported show shape wrong: %+v", scenes)
	}
	if scenes[0].Cues[0].Kind != string(show.KindAudio) || scenes[0].Cues[1].Kind != string(show.KindVideo) {
		t.Fatal("cue order not preserved through snapshot")
	}
}
