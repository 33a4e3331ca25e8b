package show_test

import (
	"reflect"
	"testing"

	"stagecue/internal/show"
)

func buildGraph(t *testing.T) *show.Graph {
	t.Helper()
	g := show.NewGraph()
	g.AddScene("Walk-in")
	g.AddScene("Main Act")

	audio := mustCue(t, show.KindAudio, "/media/walkin_loop.mp3")
	audio.StartOffset = 4.25
	audio.StopOffset = floatPtr(95.5)
	vol := 60
	audio.Volume = &vol

	video := mustCue(t, show.KindVideo, "/media/opener.mp4")
	video.DurationHint = 182.04

	image := mustCue(t, show.KindImage, "/media/sponsor_wall.png")

	if err := g.AddCue(0, audio); err != nil {
		t.Fatal(err)
	}
	if err := g.AddCue(1, video); err != nil {
		t.Fatal(err)
	}
	if err := g.AddCue(1, image); err != nil {
		t.Fatal(err)
	}
	return g
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := buildGraph(t)
	snap := g.Snapshot()

	data, err := show.MarshalSnapshot(snap)
	if err != nil {
		t.Fatalf("MarshalSnapshot: %v", err)
	}
	decoded, err := show.UnmarshalSnapshot(data)
	if err != nil {
		t.Fatalf("UnmarshalSnapshot: %v", err)
	}

	restored := show.NewGraph()
	if err := restored.Restore(decoded); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if !reflect.DeepEqual(g.Scenes(), restored.Scenes()) {
		t.Fatalf("round trip mismatch:\noriginal: %+v\nrestored: %+v", g.Scenes(), restored.Scenes())
	}
	if restored.CurrentSceneIndex() != 0 {
		t.Fatalf("restore should select first scene, got %d", restored.CurrentSceneIndex())
	}
	if restored.CurrentCueIndex() != 0 {
		t.Fatalf("restore should point at first cue, got %d", restored.CurrentCueIndex())
	}
}

func TestRestoreRejectsInvalidCue(t *testing.T) {
	snap := show.Snapshot{
		Scenes: []show.SceneSnapshot{{
			Name: "Broken",
			Cues: []show.CueSnapshot{{
				Kind:      "audio",
				Path:      "/m/a.wav",
				StartSec:  30,
				StopAtSec: floatPtr(10),
			}},
		}},
	}
	if err := show.NewGraph().Restore(snap); err == nil {
		t.Fatal("expected restore rejection for inverted trim window")
	}
}

func TestRestoreAssignsMissingIDs(t *testing.T) {
	snap := show.Snapshot{
		Scenes: []show.SceneSnapshot{{
			Name: "One",
			Cues: []show.CueSnapshot{{Kind: "video", Path: "/m/v.mp4"}},
		}},
	}
	g := show.NewGraph()
	if err := g.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	cue, ok := g.CurrentCue()
	if !ok || cue.ID == "" {
		t.Fatalf("expected generated cue ID, got %+v ok=%v", cue, ok)
	}
}
