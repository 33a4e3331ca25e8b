// Package deps probes the availability of the external binaries playback
// depends on.
package deps

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"stagecue/internal/config"
)

// Requirement defines an external dependency stagecue relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Requirements lists the external binaries needed for the configured setup.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "ffplay", Command: cfg.Players.FFplayBinary, Description: "media playback backend"},
		{Name: "ffmpeg", Command: cfg.Players.FFmpegBinary, Description: "preview frame extraction"},
		{Name: "ffprobe", Command: cfg.Players.FFprobeBinary, Description: "media duration probing"},
	}
	if runtime.GOOS == "darwin" {
		reqs = append(reqs, Requirement{
			Name:        "osascript",
			Command:     "osascript",
			Description: "slide deck control",
			Optional:    true,
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// MissingRequired returns the names of required dependencies that are not
// available.
func MissingRequired(statuses []Status) []string {
	var missing []string
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			missing = append(missing, status.Name)
		}
	}
	return missing
}
