package runner

import (
	"fmt"

	"stagecue/internal/show"
)

// SinkTarget describes where playback output lands.
type SinkTarget struct {
	// SecondScreen places video output on the second-screen surface at the
	// given virtual-desktop coordinates. Negative values are valid for
	// displays arranged left of or above the primary.
	SecondScreen bool
	Left         int
	Top          int
	Fullscreen   bool

	// OperatorLeft/OperatorTop position the windowed fallback used when a
	// visual cue is routed to the operator display instead.
	OperatorLeft int
	OperatorTop  int
}

type launchSpec struct {
	seek          float64
	durationLimit *float64
	volume        int
}

// buildArgs assembles the ffplay invocation for a cue. Trim points map to
// -ss and -t; audio cues suppress the video window; visual cues are placed
// on the configured sink.
func buildArgs(cue show.Cue, sink SinkTarget, spec launchSpec) []string {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-volume", fmt.Sprintf("%d", clampInt(spec.volume, 0, 100)),
	}

	// Images loop forever so the surface holds until the operator stops it;
	// everything else exits at end of stream.
	if cue.Kind == show.KindImage {
		args = append(args, "-loop", "0")
	} else {
		args = append(args, "-autoexit")
	}

	if spec.seek > 0 {
		args = append(args, "-ss", fmt.Sprintf("%.3f", spec.seek))
	}

	switch cue.Kind {
	case show.KindAudio:
		args = append(args, "-nodisp")
	case show.KindVideo, show.KindImage:
		if sink.SecondScreen {
			args = append(args,
				"-left", fmt.Sprintf("%d", sink.Left),
				"-top", fmt.Sprintf("%d", sink.Top),
			)
			if sink.Fullscreen {
				args = append(args, "-fs")
			}
		} else {
			args = append(args,
				"-left", fmt.Sprintf("%d", sink.OperatorLeft),
				"-top", fmt.Sprintf("%d", sink.OperatorTop),
				"-x", "960", "-y", "540",
			)
		}
		args = append(args, "-alwaysontop")
	}

	if spec.durationLimit != nil {
		args = append(args, "-t", fmt.Sprintf("%.3f", *spec.durationLimit))
	}

	args = append(args, cue.MediaPath)
	return args
}

func clampInt(v, low, high int) int {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}

func clampFloat(v, low, high float64) float64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
