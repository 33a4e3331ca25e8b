package show

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"stagecue/internal/services"
)

// Snapshot is the serializable form of a show handed to the persistence
// collaborator. The field names follow the on-disk JSON show format.
type Snapshot struct {
	Name   string          `json:"name,omitempty"`
	Scenes []SceneSnapshot `json:"scenes"`
}

// SceneSnapshot serializes one scene.
type SceneSnapshot struct {
	Name  string        `json:"name"`
	Notes string        `json:"notes,omitempty"`
	Cues  []CueSnapshot `json:"cues"`
}

// CueSnapshot serializes one cue including its trim points.
type CueSnapshot struct {
	ID         string   `json:"id"`
	Kind       string   `json:"kind"`
	Path       string   `json:"path"`
	Name       string   `json:"name,omitempty"`
	Note       string   `json:"note,omitempty"`
	StartSec   float64  `json:"start_sec"`
	StopAtSec  *float64 `json:"stop_at_sec,omitempty"`
	VolumePct  *int     `json:"volume_percent,omitempty"`
	DurationSc float64  `json:"duration_sec,omitempty"`
}

// Snapshot captures the full scene/cue state for persistence.
func (g *Graph) Snapshot() Snapshot {
	snap := Snapshot{Scenes: make([]SceneSnapshot, 0, len(g.scenes))}
	for _, scene := range g.scenes {
		ss := SceneSnapshot{Name: scene.Name, Notes: scene.Notes, Cues: make([]CueSnapshot, 0, len(scene.Cues))}
		for _, cue := range scene.Cues {
			ss.Cues = append(ss.Cues, CueSnapshot{
				ID:         cue.ID,
				Kind:       string(cue.Kind),
				Path:       cue.MediaPath,
				Name:       cue.Name,
				Note:       cue.Note,
				StartSec:   cue.StartOffset,
				StopAtSec:  copyFloatPtr(cue.StopOffset),
				VolumePct:  copyIntPtr(cue.Volume),
				DurationSc: cue.DurationHint,
			})
		}
		snap.Scenes = append(snap.Scenes, ss)
	}
	return snap
}

// Restore replaces the graph contents with the snapshot. Scene and cue order
// and trim offsets are reproduced exactly; the first scene becomes active.
// Invalid cues reject the whole snapshot.
func (g *Graph) Restore(snap Snapshot) error {
	scenes := make([]Scene, 0, len(snap.Scenes))
	for si, ss := range snap.Scenes {
		scene := Scene{Name: ss.Name, Notes: ss.Notes, Cues: make([]Cue, 0, len(ss.Cues))}
		for ci, cs := range ss.Cues {
			cue := Cue{
				ID:           cs.ID,
				Kind:         Kind(cs.Kind),
				MediaPath:    cs.Path,
				Name:         cs.Name,
				Note:         cs.Note,
				StartOffset:  cs.StartSec,
				StopOffset:   copyFloatPtr(cs.StopAtSec),
				Volume:       copyIntPtr(cs.VolumePct),
				DurationHint: cs.DurationSc,
			}
			if cue.ID == "" {
				cue.ID = uuid.NewString()
			}
			if err := cue.Validate(); err != nil {
				return services.Wrap(services.ErrValidation, "show", "restore",
					fmt.Sprintf("scene %d cue %d", si, ci), err)
			}
			scene.Cues = append(scene.Cues, cue)
		}
		scenes = append(scenes, scene)
	}

	g.scenes = scenes
	if len(g.scenes) > 0 {
		g.sceneIdx = 0
		g.cueIdx = g.firstCueIndex(0)
	} else {
		g.sceneIdx = -1
		g.cueIdx = -1
	}
	return nil
}

// MarshalSnapshot encodes a snapshot as indented JSON for export.
func MarshalSnapshot(snap Snapshot) ([]byte, error) {
	return json.MarshalIndent(snap, "", "  ")
}

// UnmarshalSnapshot decodes an exported snapshot.
func UnmarshalSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode show snapshot: %w", err)
	}
	return snap, nil
}

func copyFloatPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
