package show

import (
	"fmt"
	"strings"

	"stagecue/internal/services"
)

// Scene is an ordered sequence of cues plus display metadata. A cue belongs
// to exactly one scene at a time; moves transfer ownership, never share.
type Scene struct {
	Name  string
	Notes string
	Cues  []Cue
}

// Graph holds the ordered scenes of a show and the current scene/cue
// cursors. It is owned exclusively by the engine's control goroutine and is
// not safe for concurrent use.
type Graph struct {
	scenes   []Scene
	sceneIdx int
	cueIdx   int
}

// NewGraph returns an empty graph with no selection.
func NewGraph() *Graph {
	return &Graph{sceneIdx: -1, cueIdx: -1}
}

// AddScene appends a scene and returns its index. The first scene added is
// auto-selected.
func (g *Graph) AddScene(name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("Scene %d", len(g.scenes)+1)
	}
	g.scenes = append(g.scenes, Scene{Name: name})
	idx := len(g.scenes) - 1
	if g.sceneIdx < 0 {
		g.sceneIdx = idx
		g.cueIdx = -1
	}
	return idx
}

// RemoveScene deletes the scene at idx and its cues. Deleting the active
// scene selects the previous scene if one exists, else the next, else
// clears the selection.
func (g *Graph) RemoveScene(idx int) error {
	if idx < 0 || idx >= len(g.scenes) {
		return services.Wrap(services.ErrNotFound, "show", "remove scene", fmt.Sprintf("scene %d", idx), nil)
	}
	active := g.sceneIdx
	g.scenes = append(g.scenes[:idx], g.scenes[idx+1:]...)

	switch {
	case len(g.scenes) == 0:
		g.sceneIdx = -1
		g.cueIdx = -1
	case idx == active:
		if idx > 0 {
			g.sceneIdx = idx - 1
		} else {
			g.sceneIdx = 0
		}
		g.cueIdx = g.firstCueIndex(g.sceneIdx)
	case idx < active:
		g.sceneIdx = active - 1
	}
	return nil
}

// SelectScene makes idx the active scene and resets the cue cursor to the
// scene's first cue.
func (g *Graph) SelectScene(idx int) error {
	if idx < 0 || idx >= len(g.scenes) {
		return services.Wrap(services.ErrNotFound, "show", "select scene", fmt.Sprintf("scene %d", idx), nil)
	}
	g.sceneIdx = idx
	g.cueIdx = g.firstCueIndex(idx)
	return nil
}

// SceneCount returns the number of scenes.
func (g *Graph) SceneCount() int {
	return len(g.scenes)
}

// CurrentSceneIndex returns the active scene index, or -1 when no scene is
// selected.
func (g *Graph) CurrentSceneIndex() int {
	return g.sceneIdx
}

// CurrentScene returns a copy of the active scene.
func (g *Graph) CurrentScene() (Scene, bool) {
	if g.sceneIdx < 0 || g.sceneIdx >= len(g.scenes) {
		return Scene{}, false
	}
	return copyScene(g.scenes[g.sceneIdx]), true
}

// SceneAt returns a copy of the scene at idx.
func (g *Graph) SceneAt(idx int) (Scene, bool) {
	if idx < 0 || idx >= len(g.scenes) {
		return Scene{}, false
	}
	return copyScene(g.scenes[idx]), true
}

// Scenes returns copies of all scenes in order.
func (g *Graph) Scenes() []Scene {
	out := make([]Scene, len(g.scenes))
	for i, scene := range g.scenes {
		out[i] = copyScene(scene)
	}
	return out
}

// AddCue validates and appends a cue to the scene at sceneIdx. Adding the
// first cue of the active scene points the cue cursor at it.
func (g *Graph) AddCue(sceneIdx int, cue Cue) error {
	if sceneIdx < 0 || sceneIdx >= len(g.scenes) {
		return services.Wrap(services.ErrNotFound, "show", "add cue", fmt.Sprintf("scene %d", sceneIdx), nil)
	}
	if err := cue.Validate(); err != nil {
		return err
	}
	g.scenes[sceneIdx].Cues = append(g.scenes[sceneIdx].Cues, cue)
	if sceneIdx == g.sceneIdx && g.cueIdx < 0 {
		g.cueIdx = 0
	}
	return nil
}

// RemoveCue deletes the cue at cueIdx from the scene at sceneIdx, adjusting
// the cursor when it pointed at or beyond the removed cue.
func (g *Graph) RemoveCue(sceneIdx, cueIdx int) error {
	if sceneIdx < 0 || sceneIdx >= len(g.scenes) {
		return services.Wrap(services.ErrNotFound, "show", "remove cue", fmt.Sprintf("scene %d", sceneIdx), nil)
	}
	cues := g.scenes[sceneIdx].Cues
	if cueIdx < 0 || cueIdx >= len(cues) {
		return services.Wrap(services.ErrNotFound, "show", "remove cue", fmt.Sprintf("cue %d", cueIdx), nil)
	}
	g.scenes[sceneIdx].Cues = append(cues[:cueIdx], cues[cueIdx+1:]...)

	if sceneIdx == g.sceneIdx {
		switch {
		case len(g.scenes[sceneIdx].Cues) == 0:
			g.cueIdx = -1
		case cueIdx < g.cueIdx:
			g.cueIdx--
		case g.cueIdx >= len(g.scenes[sceneIdx].Cues):
			g.cueIdx = len(g.scenes[sceneIdx].Cues) - 1
		}
	}
	return nil
}

// MoveCue transfers the cue at (fromScene, fromIdx) to position toIdx in
// toScene. Ownership transfers with the move.
func (g *Graph) MoveCue(fromScene, fromIdx, toScene, toIdx int) error {
	if fromScene < 0 || fromScene >= len(g.scenes) || toScene < 0 || toScene >= len(g.scenes) {
		return services.Wrap(services.ErrNotFound, "show", "move cue", "scene index out of range", nil)
	}
	src := g.scenes[fromScene].Cues
	if fromIdx < 0 || fromIdx >= len(src) {
		return services.Wrap(services.ErrNotFound, "show", "move cue", fmt.Sprintf("cue %d", fromIdx), nil)
	}
	cue := src[fromIdx]
	g.scenes[fromScene].Cues = append(src[:fromIdx], src[fromIdx+1:]...)

	dst := g.scenes[toScene].Cues
	if toIdx < 0 || toIdx > len(dst) {
		toIdx = len(dst)
	}
	dst = append(dst, Cue{})
	copy(dst[toIdx+1:], dst[toIdx:])
	dst[toIdx] = cue
	g.scenes[toScene].Cues = dst

	if fromScene == g.sceneIdx && fromIdx == g.cueIdx {
		g.cueIdx = g.firstCueIndex(g.sceneIdx)
	}
	return nil
}

// UpdateTrim sets the trim window of the cue at (sceneIdx, cueIdx). The edit
// is rejected when it would violate the trim invariant.
func (g *Graph) UpdateTrim(sceneIdx, cueIdx int, start float64, stop *float64) error {
	cue, err := g.cueRef(sceneIdx, cueIdx)
	if err != nil {
		return err
	}
	updated := *cue
	updated.StartOffset = start
	updated.StopOffset = stop
	if err := updated.Validate(); err != nil {
		return err
	}
	cue.StartOffset = start
	cue.StopOffset = stop
	return nil
}

// RenameCue sets the cue's display name.
func (g *Graph) RenameCue(sceneIdx, cueIdx int, name string) error {
	cue, err := g.cueRef(sceneIdx, cueIdx)
	if err != nil {
		return err
	}
	cue.Name = strings.TrimSpace(name)
	return nil
}

// SetDurationHint caches a probed duration on the cue with the given ID,
// wherever it currently lives.
func (g *Graph) SetDurationHint(cueID string, seconds float64) {
	for si := range g.scenes {
		for ci := range g.scenes[si].Cues {
			if g.scenes[si].Cues[ci].ID == cueID {
				g.scenes[si].Cues[ci].DurationHint = seconds
				return
			}
		}
	}
}

// SelectCue points the cursor at the cue at idx within the active scene.
func (g *Graph) SelectCue(idx int) error {
	if g.sceneIdx < 0 {
		return services.Wrap(services.ErrNotFound, "show", "select cue", "no scene selected", nil)
	}
	cues := g.scenes[g.sceneIdx].Cues
	if idx < 0 || idx >= len(cues) {
		return services.Wrap(services.ErrNotFound, "show", "select cue", fmt.Sprintf("cue %d", idx), nil)
	}
	g.cueIdx = idx
	return nil
}

// CurrentCueIndex returns the cue cursor within the active scene, or -1.
func (g *Graph) CurrentCueIndex() int {
	return g.cueIdx
}

// CurrentCue returns a copy of the cue under the cursor.
func (g *Graph) CurrentCue() (Cue, bool) {
	if g.sceneIdx < 0 || g.cueIdx < 0 {
		return Cue{}, false
	}
	cues := g.scenes[g.sceneIdx].Cues
	if g.cueIdx >= len(cues) {
		return Cue{}, false
	}
	return cues[g.cueIdx], true
}

// PeekNext returns the cue after the cursor in the active scene. There is no
// wraparound: the last cue has no next.
func (g *Graph) PeekNext() (Cue, bool) {
	if g.sceneIdx < 0 || g.cueIdx < 0 {
		return Cue{}, false
	}
	cues := g.scenes[g.sceneIdx].Cues
	next := g.cueIdx + 1
	if next >= len(cues) {
		return Cue{}, false
	}
	return cues[next], true
}

// Advance moves the cursor to the next cue in the active scene and returns
// it. When the cursor is already on the last cue it stays put.
func (g *Graph) Advance() (Cue, bool) {
	next, ok := g.PeekNext()
	if !ok {
		return Cue{}, false
	}
	g.cueIdx++
	return next, true
}

// FindCue locates a cue by ID and returns a copy with its position.
func (g *Graph) FindCue(cueID string) (Cue, int, int, bool) {
	for si := range g.scenes {
		for ci := range g.scenes[si].Cues {
			if g.scenes[si].Cues[ci].ID == cueID {
				return g.scenes[si].Cues[ci], si, ci, true
			}
		}
	}
	return Cue{}, 0, 0, false
}

func (g *Graph) cueRef(sceneIdx, cueIdx int) (*Cue, error) {
	if sceneIdx < 0 || sceneIdx >= len(g.scenes) {
		return nil, services.Wrap(services.ErrNotFound, "show", "edit cue", fmt.Sprintf("scene %d", sceneIdx), nil)
	}
	cues := g.scenes[sceneIdx].Cues
	if cueIdx < 0 || cueIdx >= len(cues) {
		return nil, services.Wrap(services.ErrNotFound, "show", "edit cue", fmt.Sprintf("cue %d", cueIdx), nil)
	}
	return &g.scenes[sceneIdx].Cues[cueIdx], nil
}

func (g *Graph) firstCueIndex(sceneIdx int) int {
	if sceneIdx < 0 || sceneIdx >= len(g.scenes) || len(g.scenes[sceneIdx].Cues) == 0 {
		return -1
	}
	return 0
}

func copyScene(s Scene) Scene {
	out := Scene{Name: s.Name, Notes: s.Notes}
	out.Cues = append([]Cue(nil), s.Cues...)
	return out
}
