package slides

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"stagecue/internal/services"
)

var commandContext = exec.CommandContext

// AppleScript drives Microsoft PowerPoint through osascript. It only works
// on macOS hosts with PowerPoint installed.
type AppleScript struct{}

// NewController returns the best slide controller for this host.
func NewController() Controller {
	ctrl := AppleScript{}
	if ctrl.Available() {
		return ctrl
	}
	return Unavailable{}
}

func (AppleScript) Available() bool {
	if runtime.GOOS != "darwin" {
		return false
	}
	_, err := exec.LookPath("osascript")
	return err == nil
}

func (a AppleScript) Open(ctx context.Context, path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrValidation, "slides", "open", "presentation path required", nil)
	}
	script := `
on run argv
    set pptPath to item 1 of argv
    tell application "Microsoft PowerPoint"
        activate
        open (POSIX file pptPath)
        run slide show slide show settings of active presentation
    end tell
end run`
	return a.run(ctx, "open", script, path)
}

func (a AppleScript) Next(ctx context.Context) error {
	return a.run(ctx, "next",
		`tell application "Microsoft PowerPoint" to go to next slide slide show view of slide show window 1`)
}

func (a AppleScript) Previous(ctx context.Context) error {
	return a.run(ctx, "previous",
		`tell application "Microsoft PowerPoint" to go to previous slide slide show view of slide show window 1`)
}

func (a AppleScript) Close(ctx context.Context) error {
	return a.run(ctx, "close",
		`tell application "Microsoft PowerPoint" to exit slide show slide show view of slide show window 1`)
}

func (a AppleScript) run(ctx context.Context, operation, script string, args ...string) error {
	cmdArgs := []string{"-e", script}
	if len(args) > 0 {
		cmdArgs = append(cmdArgs, args...)
	}
	cmd := commandContext(ctx, "osascript", cmdArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := strings.TrimSpace(string(output))
		return services.Wrap(services.ErrSpawn, "slides", operation, detail, fmt.Errorf("osascript: %w", err))
	}
	return nil
}
