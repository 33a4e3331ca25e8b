// Package logging wires log/slog with the console and JSON handlers used by
// the stagecue daemon and CLI, plus the attribute helpers shared across
// components.
package logging
