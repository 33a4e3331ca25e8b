package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSpawn marks a failure to start an external player or extractor
	// process. The cue stays loaded and is not retried automatically.
	ErrSpawn = errors.New("spawn error")
	// ErrBackendUnavailable marks the absence of any installed backend able
	// to play the requested cue kind.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrUnsupported marks an operation the current backend or cue kind
	// cannot perform, such as pause on ffplay.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrProcessExited marks a player process that died before signaling
	// natural end of stream.
	ErrProcessExited = errors.New("process exited unexpectedly")
	// ErrExtraction marks a preview frame extraction failure.
	ErrExtraction = errors.New("extraction failed")
	// ErrAlreadyRunning marks a play request against a deck that already
	// hosts an active runner.
	ErrAlreadyRunning = errors.New("already running")
	// ErrValidation marks rejected cue or scene edits.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups for scenes, cues, or decks that do not exist.
	ErrNotFound = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrValidation
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Fatal reports whether an error makes further playback attempts for the same
// cue kind pointless until resolved externally.
func Fatal(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
