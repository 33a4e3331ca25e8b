package runner

import (
	"slices"
	"testing"

	"stagecue/internal/show"
)

func testCue(t *testing.T, kind show.Kind, path string) show.Cue {
	t.Helper()
	cue, err := show.NewCue(kind, path)
	if err != nil {
		t.Fatalf("NewCue: %v", err)
	}
	return cue
}

func TestBuildArgsAudio(t *testing.T) {
	cue := testCue(t, show.KindAudio, "/m/track.wav")
	cue.StartOffset = 3.5
	stop := 20.0
	cue.StopOffset = &stop

	limit := 16.5
	args := buildArgs(cue, SinkTarget{}, launchSpec{seek: 3.5, durationLimit: &limit, volume: 80})

	for _, want := range [][]string{
		{"-ss", "3.500"},
		{"-t", "16.500"},
		{"-volume", "80"},
	} {
		if !containsPair(args, want[0], want[1]) {
			t.Fatalf("args missing %v: %v", want, args)
		}
	}
	if !slices.Contains(args, "-nodisp") {
		t.Fatalf("audio args missing -nodisp: %v", args)
	}
	if !slices.Contains(args, "-autoexit") {
		t.Fatalf("audio args missing -autoexit: %v", args)
	}
	if args[len(args)-1] != "/m/track.wav" {
		t.Fatalf("media path must be last arg: %v", args)
	}
}

func TestBuildArgsVideoSecondScreen(t *testing.T) {
	cue := testCue(t, show.KindVideo, "/m/opener.mp4")
	sink := SinkTarget{SecondScreen: true, Left: -1920, Top: 0, Fullscreen: true}

	args := buildArgs(cue, sink, launchSpec{volume: 100})

	if !containsPair(args, "-left", "-1920") {
		t.Fatalf("negative left coordinate not passed: %v", args)
	}
	if !slices.Contains(args, "-fs") {
		t.Fatalf("fullscreen flag missing: %v", args)
	}
	if !slices.Contains(args, "-alwaysontop") {
		t.Fatalf("alwaysontop missing: %v", args)
	}
}

func TestBuildArgsImageLoopsWithoutAutoexit(t *testing.T) {
	cue := testCue(t, show.KindImage, "/m/logo.png")
	args := buildArgs(cue, SinkTarget{SecondScreen: true}, launchSpec{volume: 50})

	if !containsPair(args, "-loop", "0") {
		t.Fatalf("image args missing -loop 0: %v", args)
	}
	if slices.Contains(args, "-autoexit") {
		t.Fatalf("image args must not autoexit: %v", args)
	}
}

func TestBuildArgsVolumeClamped(t *testing.T) {
	cue := testCue(t, show.KindAudio, "/m/a.wav")
	args := buildArgs(cue, SinkTarget{}, launchSpec{volume: 250})
	if !containsPair(args, "-volume", "100") {
		t.Fatalf("volume not clamped: %v", args)
	}
}

func containsPair(args []string, flag, value string) bool {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag && args[i+1] == value {
			return true
		}
	}
	return false
}
