package show

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"stagecue/internal/services"
)

// Kind classifies a cue's media type. It is fixed at creation.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
	KindImage Kind = "image"
	KindPPT   Kind = "ppt"
)

// Valid reports whether the kind is one of the four playable kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAudio, KindVideo, KindImage, KindPPT:
		return true
	}
	return false
}

// Visual reports whether the kind occupies the second-screen surface.
func (k Kind) Visual() bool {
	switch k {
	case KindVideo, KindImage, KindPPT:
		return true
	}
	return false
}

// AutoAdvances reports whether natural completion moves the show to the next
// cue. Static visual media never advances without operator intent.
func (k Kind) AutoAdvances() bool {
	return k == KindAudio || k == KindVideo
}

// Cue is one playable unit with optional trim points.
type Cue struct {
	ID        string
	Kind      Kind
	MediaPath string
	Name      string
	Note      string

	// StartOffset and StopOffset trim playback in seconds. A nil StopOffset
	// means play to natural end.
	StartOffset float64
	StopOffset  *float64

	// DurationHint caches the probed total duration. Zero means unknown; the
	// value is advisory until a running player confirms it.
	DurationHint float64

	// Volume overrides the startup volume for this cue when set (0-100).
	Volume *int
}

// NewCue constructs a validated cue for the given media path.
func NewCue(kind Kind, mediaPath string) (Cue, error) {
	cue := Cue{
		ID:        uuid.NewString(),
		Kind:      kind,
		MediaPath: strings.TrimSpace(mediaPath),
	}
	if err := cue.Validate(); err != nil {
		return Cue{}, err
	}
	cue.Name = deriveName(cue.MediaPath)
	return cue, nil
}

// Validate checks the cue invariants. Violations are rejected at edit time,
// never deferred to playback.
func (c Cue) Validate() error {
	if !c.Kind.Valid() {
		return services.Wrap(services.ErrValidation, "cue", "validate", fmt.Sprintf("unknown kind %q", c.Kind), nil)
	}
	if strings.TrimSpace(c.MediaPath) == "" {
		return services.Wrap(services.ErrValidation, "cue", "validate", "media path required", nil)
	}
	if c.StartOffset < 0 {
		return services.Wrap(services.ErrValidation, "cue", "validate", "start offset must not be negative", nil)
	}
	if c.StopOffset != nil && *c.StopOffset <= c.StartOffset {
		return services.Wrap(services.ErrValidation, "cue", "validate",
			fmt.Sprintf("stop offset %.3f must be greater than start offset %.3f", *c.StopOffset, c.StartOffset), nil)
	}
	if c.Volume != nil && (*c.Volume < 0 || *c.Volume > 100) {
		return services.Wrap(services.ErrValidation, "cue", "validate", "volume must be between 0 and 100", nil)
	}
	return nil
}

// DisplayName returns the cue name, deriving one from the media path when the
// operator has not set one.
func (c Cue) DisplayName() string {
	if name := strings.TrimSpace(c.Name); name != "" {
		return name
	}
	return deriveName(c.MediaPath)
}

// TrimmedDuration returns the playable duration inside the trim window, or 0
// when the total duration is unknown.
func (c Cue) TrimmedDuration() float64 {
	if c.StopOffset != nil {
		return *c.StopOffset - c.StartOffset
	}
	if c.DurationHint > 0 && c.DurationHint > c.StartOffset {
		return c.DurationHint - c.StartOffset
	}
	return 0
}

func deriveName(mediaPath string) string {
	if mediaPath == "" {
		return "Untitled Cue"
	}
	base := filepath.Base(mediaPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	cleaned := strings.Builder{}
	prevSpace := false
	for _, r := range base {
		switch {
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			cleaned.WriteRune(r)
			prevSpace = false
		case unicode.IsSpace(r) || r == '-' || r == '_' || r == '.':
			if !prevSpace {
				cleaned.WriteRune(' ')
				prevSpace = true
			}
		}
	}
	name := strings.TrimSpace(cleaned.String())
	if name == "" {
		return "Untitled Cue"
	}
	return cases.Title(language.Und).String(name)
}
