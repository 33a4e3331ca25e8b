package ipc

import (
	"time"

	"stagecue/internal/deps"
	"stagecue/internal/engine"
)

// CueStatus mirrors the engine's cue DTO for wire use.
type CueStatus = engine.CueStatus

// DeckStatus mirrors the engine's deck DTO for wire use.
type DeckStatus = engine.DeckStatus

// SceneStatus mirrors the engine's scene DTO for wire use.
type SceneStatus = engine.SceneStatus

// DependencyStatus describes availability of an external binary.
type DependencyStatus = deps.Status

// StatusRequest fetches engine status.
type StatusRequest struct{}

// StatusResponse is the full operator-facing state.
type StatusResponse struct {
	Engine       engine.Status      `json:"engine"`
	Dependencies []DependencyStatus `json:"dependencies,omitempty"`
	PID          int                `json:"pid"`
}

// ScenesRequest lists scenes and cues.
type ScenesRequest struct{}

// ScenesResponse contains every scene in cursor order.
type ScenesResponse struct {
	Scenes []SceneStatus `json:"scenes"`
}

// GoRequest fires the selected cue.
type GoRequest struct{}

// GoResponse reports the cue that went live.
type GoResponse struct {
	Fired *CueStatus `json:"fired,omitempty"`
}

// StopRequest stops playback. Deck may name a single deck; empty stops both.
type StopRequest struct {
	Deck string `json:"deck,omitempty"`
}

// StopResponse acknowledges a stop.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StopAllRequest is the emergency stop.
type StopAllRequest struct{}

// StopAllResponse acknowledges the emergency stop.
type StopAllResponse struct {
	Stopped bool `json:"stopped"`
}

// PauseRequest toggles pause on the running deck.
type PauseRequest struct{}

// PauseResponse acknowledges the toggle.
type PauseResponse struct {
	Toggled bool `json:"toggled"`
}

// SeekRequest moves the running deck to an absolute media offset.
type SeekRequest struct {
	OffsetSeconds float64 `json:"offset_seconds"`
}

// SeekResponse acknowledges the seek.
type SeekResponse struct {
	Sought bool `json:"sought"`
}

// VolumeRequest applies a discrete volume step: mute, half or full.
type VolumeRequest struct {
	Step string `json:"step"`
}

// VolumeResponse acknowledges the step.
type VolumeResponse struct {
	Applied bool `json:"applied"`
}

// BlackoutRequest forces operator blackout on or off.
type BlackoutRequest struct {
	On bool `json:"on"`
}

// BlackoutResponse reports the resulting output state.
type BlackoutResponse struct {
	Output string `json:"output"`
}

// SelectSceneRequest moves the scene cursor.
type SelectSceneRequest struct {
	Index int `json:"index"`
}

// SelectCueRequest moves the cue cursor within the active scene.
type SelectCueRequest struct {
	Index int `json:"index"`
}

// SelectResponse acknowledges a cursor move.
type SelectResponse struct {
	Selected bool `json:"selected"`
}

// NextCueRequest advances the cue cursor.
type NextCueRequest struct{}

// PrevCueRequest moves the cue cursor back.
type PrevCueRequest struct{}

// ShowSaveRequest persists the current show under a name.
type ShowSaveRequest struct {
	Name string `json:"name"`
}

// ShowLoadRequest replaces the current show with a stored one.
type ShowLoadRequest struct {
	Name string `json:"name"`
}

// ShowDeleteRequest removes a stored show.
type ShowDeleteRequest struct {
	Name string `json:"name"`
}

// ShowDeleteResponse reports whether anything was removed.
type ShowDeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// ShowAckResponse acknowledges a show mutation.
type ShowAckResponse struct {
	OK bool `json:"ok"`
}

// ShowInfo summarizes one stored show.
type ShowInfo struct {
	Name      string    `json:"name"`
	Scenes    int       `json:"scenes"`
	Cues      int       `json:"cues"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ShowListRequest lists stored shows.
type ShowListRequest struct{}

// ShowListResponse contains stored shows, most recent first.
type ShowListResponse struct {
	Shows []ShowInfo `json:"shows"`
}

// ShowExportRequest serializes the current show.
type ShowExportRequest struct{}

// ShowExportResponse carries the JSON snapshot.
type ShowExportResponse struct {
	Snapshot []byte `json:"snapshot"`
}

// ShowImportRequest replaces the current show with a JSON snapshot.
type ShowImportRequest struct {
	Snapshot []byte `json:"snapshot"`
}

// ShutdownRequest asks the daemon to exit.
type ShutdownRequest struct{}

// ShutdownResponse acknowledges the shutdown.
type ShutdownResponse struct {
	ShuttingDown bool `json:"shutting_down"`
}
