// Package slides abstracts the external slide-deck controller. A ppt cue is
// "running" while the controller has a presentation open; there is no
// natural-completion signal, so only an explicit operator action closes it.
package slides

import (
	"context"

	"stagecue/internal/services"
)

// Controller drives an external presentation application.
type Controller interface {
	// Available reports whether the controller can drive presentations on
	// this host.
	Available() bool
	Open(ctx context.Context, path string) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	Close(ctx context.Context) error
}

// Unavailable is the fallback controller used when no presentation
// application can be driven. Every operation fails with
// services.ErrBackendUnavailable.
type Unavailable struct{}

func (Unavailable) Available() bool { return false }

func (Unavailable) Open(context.Context, string) error {
	return services.Wrap(services.ErrBackendUnavailable, "slides", "open", "no slide controller on this host", nil)
}

func (Unavailable) Next(context.Context) error {
	return services.Wrap(services.ErrBackendUnavailable, "slides", "next", "no slide controller on this host", nil)
}

func (Unavailable) Previous(context.Context) error {
	return services.Wrap(services.ErrBackendUnavailable, "slides", "previous", "no slide controller on this host", nil)
}

func (Unavailable) Close(context.Context) error {
	return nil
}
