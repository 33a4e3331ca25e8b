package engine

import (
	"stagecue/internal/deck"
	"stagecue/internal/output"
	"stagecue/internal/runner"
	"stagecue/internal/show"
)

// CueStatus describes one cue for operator display.
type CueStatus struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Kind      string  `json:"kind"`
	MediaPath string  `json:"path"`
	Duration  float64 `json:"duration_sec,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Note      string  `json:"note,omitempty"`
}

// DeckStatus describes one deck.
type DeckStatus struct {
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Cue         *CueStatus `json:"cue,omitempty"`
	Position    float64    `json:"position_sec,omitempty"`
	HasPosition bool       `json:"has_position"`
	Volume      string     `json:"volume"`
}

// SceneStatus describes one scene for listing.
type SceneStatus struct {
	Name     string      `json:"name"`
	Notes    string      `json:"notes,omitempty"`
	Cues     []CueStatus `json:"cues"`
	Selected bool        `json:"selected"`
}

// Status is the full operator-facing engine state.
type Status struct {
	SceneIndex int          `json:"scene_index"`
	SceneName  string       `json:"scene_name,omitempty"`
	SceneCount int          `json:"scene_count"`
	CueIndex   int          `json:"cue_index"`
	CueCount   int          `json:"cue_count"`
	Current    *CueStatus   `json:"current,omitempty"`
	Next       *CueStatus   `json:"next,omitempty"`
	Decks      []DeckStatus `json:"decks"`
	Output     string       `json:"output"`
	Forced     bool         `json:"blackout_forced"`
}

// Status reports the engine state as one consistent snapshot.
func (e *Engine) Status() (Status, error) {
	var st Status
	err := e.do(func() error {
		st = e.statusLocked()
		return nil
	})
	return st, err
}

// Scenes lists every scene with its cues.
func (e *Engine) Scenes() ([]SceneStatus, error) {
	var out []SceneStatus
	err := e.do(func() error {
		selected := e.graph.CurrentSceneIndex()
		for i, scene := range e.graph.Scenes() {
			ss := SceneStatus{
				Name:     scene.Name,
				Notes:    scene.Notes,
				Selected: i == selected,
				Cues:     make([]CueStatus, 0, len(scene.Cues)),
			}
			for _, cue := range scene.Cues {
				ss.Cues = append(ss.Cues, e.cueStatus(cue))
			}
			out = append(out, ss)
		}
		return nil
	})
	return out, err
}

func (e *Engine) statusLocked() Status {
	st := Status{
		SceneIndex: e.graph.CurrentSceneIndex(),
		SceneCount: e.graph.SceneCount(),
		CueIndex:   e.graph.CurrentCueIndex(),
		Output:     string(e.outputs.State()),
		Forced:     e.outputs.Forced(),
	}
	if scene, ok := e.graph.CurrentScene(); ok {
		st.SceneName = scene.Name
		st.CueCount = len(scene.Cues)
	}
	if cue, ok := e.graph.CurrentCue(); ok {
		cs := e.cueStatus(cue)
		st.Current = &cs
	}
	if cue, ok := e.graph.PeekNext(); ok {
		cs := e.cueStatus(cue)
		st.Next = &cs
	}
	st.Decks = []DeckStatus{
		e.deckStatus(e.deckA),
		e.deckStatus(e.deckB),
	}
	return st
}

func (e *Engine) cueStatus(cue show.Cue) CueStatus {
	return CueStatus{
		ID:        cue.ID,
		Name:      cue.DisplayName(),
		Kind:      string(cue.Kind),
		MediaPath: cue.MediaPath,
		Duration:  cue.TrimmedDuration(),
		Thumbnail: e.thumbs[cue.ID],
		Note:      cue.Note,
	}
}

func (e *Engine) deckStatus(d *deck.Deck) DeckStatus {
	ds := DeckStatus{
		Name:   d.Name(),
		Status: string(d.Status()),
		Volume: string(runner.VolumeFull),
	}
	if cue, ok := d.Cue(); ok {
		cs := e.cueStatus(cue)
		ds.Cue = &cs
	}
	if d.Status() == deck.StatusRunning {
		ds.Volume = string(d.VolumeLevel())
		ds.Position, ds.HasPosition = d.Position()
	}
	return ds
}

// OutputState returns what the second screen shows without a full status
// round trip.
func (e *Engine) OutputState() (output.State, error) {
	var state output.State
	err := e.do(func() error {
		state = e.outputs.State()
		return nil
	})
	return state, err
}
