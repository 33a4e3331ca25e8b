// Package services holds the error taxonomy shared by playback components.
// Every failure a runner, deck, or preview worker can surface is tagged with
// one of the sentinel errors defined here so callers can classify it without
// string matching.
package services
