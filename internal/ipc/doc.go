// Package ipc exposes the daemon over JSON-RPC Unix sockets and ships the
// matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. The
// server fronts the engine's control API; every call is serialized by the
// engine's control goroutine, so concurrent RPC clients cannot interleave
// state transitions.
package ipc
