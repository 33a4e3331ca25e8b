// Package show models the cue sheet: scenes, cues, trim points, and the
// selection cursors the engine drives during a performance. It also owns the
// serializable snapshot format and the sqlite show library.
package show
