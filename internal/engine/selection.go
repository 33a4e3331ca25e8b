package engine

import (
	"context"
	"fmt"

	"stagecue/internal/deck"
	"stagecue/internal/logging"
	"stagecue/internal/services"
	"stagecue/internal/show"
)

// SelectScene moves the scene cursor. The cue cursor resets to the first cue
// of the scene, and when autoload is on that cue is armed on its deck.
func (e *Engine) SelectScene(ctx context.Context, idx int) error {
	return e.do(func() error {
		if err := e.graph.SelectScene(idx); err != nil {
			return err
		}
		scene, _ := e.graph.CurrentScene()
		e.logger.Info("scene selected",
			logging.String(logging.FieldScene, scene.Name),
			logging.Int("scene_index", idx),
		)
		for _, cue := range scene.Cues {
			e.requestPreview(cue)
		}
		e.autoload(ctx)
		return nil
	})
}

// SelectCue moves the cue cursor within the active scene.
func (e *Engine) SelectCue(ctx context.Context, idx int) error {
	return e.do(func() error {
		if err := e.graph.SelectCue(idx); err != nil {
			return err
		}
		e.autoload(ctx)
		return nil
	})
}

// NextCue moves the cursor forward by one. The last cue has no next.
func (e *Engine) NextCue(ctx context.Context) error {
	return e.do(func() error {
		if _, ok := e.graph.Advance(); !ok {
			return services.Wrap(services.ErrValidation, "engine", "next", "already on the last cue", nil)
		}
		e.autoload(ctx)
		return nil
	})
}

// PrevCue moves the cursor back by one.
func (e *Engine) PrevCue(ctx context.Context) error {
	return e.do(func() error {
		idx := e.graph.CurrentCueIndex()
		if idx <= 0 {
			return services.Wrap(services.ErrValidation, "engine", "prev", "already on the first cue", nil)
		}
		if err := e.graph.SelectCue(idx - 1); err != nil {
			return err
		}
		e.autoload(ctx)
		return nil
	})
}

// autoload arms the cursor cue on its idle deck when the policy is enabled.
func (e *Engine) autoload(ctx context.Context) {
	if !e.cfg.Engine.AutoloadOnSelect {
		return
	}
	cue, ok := e.graph.CurrentCue()
	if !ok {
		return
	}
	target := e.deckFor(cue.Kind)
	if target.Status() == deck.StatusRunning {
		return
	}
	if loaded, ok := target.Cue(); ok && loaded.ID == cue.ID {
		return
	}
	cue = e.probed(ctx, cue)
	if err := target.Load(cue); err != nil {
		e.logger.Warn("autoload failed",
			logging.String(logging.FieldCueID, cue.ID),
			logging.Error(err),
		)
		return
	}
	e.requestPreview(cue)
}

// AddScene appends an empty scene and returns its index.
func (e *Engine) AddScene(name string) (int, error) {
	var idx int
	err := e.do(func() error {
		idx = e.graph.AddScene(name)
		return nil
	})
	return idx, err
}

// RemoveScene deletes a scene by index.
func (e *Engine) RemoveScene(idx int) error {
	return e.do(func() error {
		return e.graph.RemoveScene(idx)
	})
}

// AddCue validates and appends a cue to a scene, kicking off a preview
// extraction for visual media.
func (e *Engine) AddCue(sceneIdx int, cue show.Cue) error {
	return e.do(func() error {
		if err := e.graph.AddCue(sceneIdx, cue); err != nil {
			return err
		}
		e.requestPreview(cue)
		return nil
	})
}

// RemoveCue deletes a cue.
func (e *Engine) RemoveCue(sceneIdx, cueIdx int) error {
	return e.do(func() error {
		return e.graph.RemoveCue(sceneIdx, cueIdx)
	})
}

// MoveCue reorders a cue, possibly across scenes.
func (e *Engine) MoveCue(fromScene, fromIdx, toScene, toIdx int) error {
	return e.do(func() error {
		return e.graph.MoveCue(fromScene, fromIdx, toScene, toIdx)
	})
}

// UpdateTrim edits a cue's trim window. Rejected while the cue is loaded on a
// running deck: trims apply at launch.
func (e *Engine) UpdateTrim(sceneIdx, cueIdx int, start float64, stop *float64) error {
	return e.do(func() error {
		cue, err := e.cueAt(sceneIdx, cueIdx)
		if err != nil {
			return err
		}
		if e.cueIsLive(cue.ID) {
			return services.Wrap(services.ErrValidation, "engine", "trim",
				"cue is playing; stop it before editing the trim", nil)
		}
		return e.graph.UpdateTrim(sceneIdx, cueIdx, start, stop)
	})
}

// RenameCue sets a cue's display name.
func (e *Engine) RenameCue(sceneIdx, cueIdx int, name string) error {
	return e.do(func() error {
		return e.graph.RenameCue(sceneIdx, cueIdx, name)
	})
}

func (e *Engine) cueAt(sceneIdx, cueIdx int) (show.Cue, error) {
	scene, ok := e.graph.SceneAt(sceneIdx)
	if !ok {
		return show.Cue{}, services.Wrap(services.ErrNotFound, "engine", "edit", fmt.Sprintf("scene %d", sceneIdx), nil)
	}
	if cueIdx < 0 || cueIdx >= len(scene.Cues) {
		return show.Cue{}, services.Wrap(services.ErrNotFound, "engine", "edit", fmt.Sprintf("cue %d", cueIdx), nil)
	}
	return scene.Cues[cueIdx], nil
}

func (e *Engine) cueIsLive(cueID string) bool {
	for _, d := range []*deck.Deck{e.deckA, e.deckB} {
		if d.Status() != deck.StatusRunning {
			continue
		}
		if loaded, ok := d.Cue(); ok && loaded.ID == cueID {
			return true
		}
	}
	return false
}

// SaveShow persists the current show under the given name.
func (e *Engine) SaveShow(ctx context.Context, name string) error {
	return e.do(func() error {
		if e.store == nil {
			return services.Wrap(services.ErrValidation, "engine", "save", "no show store configured", nil)
		}
		return e.store.Save(ctx, name, e.graph.Snapshot())
	})
}

// LoadShow replaces the current show with a stored one. Playback must be
// stopped first: loading a show mid-cue would strand the running decks.
func (e *Engine) LoadShow(ctx context.Context, name string) error {
	return e.do(func() error {
		if e.store == nil {
			return services.Wrap(services.ErrValidation, "engine", "load", "no show store configured", nil)
		}
		if err := e.requireStopped(); err != nil {
			return err
		}
		snap, err := e.store.Load(ctx, name)
		if err != nil {
			return err
		}
		return e.replaceShow(ctx, snap)
	})
}

// ListShows returns stored shows, most recently updated first.
func (e *Engine) ListShows(ctx context.Context) ([]show.ShowInfo, error) {
	var infos []show.ShowInfo
	err := e.do(func() error {
		if e.store == nil {
			return services.Wrap(services.ErrValidation, "engine", "list", "no show store configured", nil)
		}
		var err error
		infos, err = e.store.List(ctx)
		return err
	})
	return infos, err
}

// DeleteShow removes a stored show. Deleting an unknown name reports false.
func (e *Engine) DeleteShow(ctx context.Context, name string) (bool, error) {
	var deleted bool
	err := e.do(func() error {
		if e.store == nil {
			return services.Wrap(services.ErrValidation, "engine", "delete", "no show store configured", nil)
		}
		var err error
		deleted, err = e.store.Delete(ctx, name)
		return err
	})
	return deleted, err
}

// ImportSnapshot replaces the current show with a JSON snapshot.
func (e *Engine) ImportSnapshot(ctx context.Context, data []byte) error {
	return e.do(func() error {
		if err := e.requireStopped(); err != nil {
			return err
		}
		snap, err := show.UnmarshalSnapshot(data)
		if err != nil {
			return err
		}
		return e.replaceShow(ctx, snap)
	})
}

// ExportSnapshot serializes the current show as JSON.
func (e *Engine) ExportSnapshot() ([]byte, error) {
	var data []byte
	err := e.do(func() error {
		var err error
		data, err = show.MarshalSnapshot(e.graph.Snapshot())
		return err
	})
	return data, err
}

func (e *Engine) requireStopped() error {
	if e.deckA.Status() == deck.StatusRunning || e.deckB.Status() == deck.StatusRunning {
		return services.Wrap(services.ErrAlreadyRunning, "engine", "load",
			"playback is live; stop it before swapping shows", nil)
	}
	return nil
}

func (e *Engine) replaceShow(ctx context.Context, snap show.Snapshot) error {
	graph := show.NewGraph()
	if err := graph.Restore(snap); err != nil {
		return err
	}
	e.graph = graph
	e.firedCue = ""
	e.deckA.Clear()
	e.deckB.Clear()
	if scene, ok := e.graph.CurrentScene(); ok {
		for _, cue := range scene.Cues {
			e.requestPreview(cue)
		}
	}
	e.autoload(ctx)
	e.logger.Info("show loaded",
		logging.Int("scenes", e.graph.SceneCount()),
	)
	return nil
}
