// Package runner manages the lifecycle of one external player process per
// playback session. A runner moves through
//
//	Idle -> Launching -> Playing <-> Paused -> Finished | Stopped | Failed
//
// where Finished, Stopped, and Failed are terminal. Completion is observed by
// a monitor goroutine that reaps the process and delivers an Event; callers
// subscribe rather than assume synchronous completion. The runner exclusively
// owns its process handle; the process registry only keeps a bookkeeping
// entry for crash-path cleanup.
package runner
