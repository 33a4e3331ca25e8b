// Package daemon composes the playback engine, the IPC server, the show
// library and the display monitor into a single lifecycle with flock-based
// locking to prevent multiple instances from fighting over the second screen.
//
// The daemon guarantees that no player process outlives it: the engine stops
// both decks on shutdown and the process registry kills anything left.
package daemon
