// Package procreg tracks every external process stagecue spawns so a single
// TerminateAll call can reap them on shutdown or crash recovery.
//
// The registry holds bookkeeping references only. A MediaRunner owns its
// process handle for the runner's lifetime; the registry's entry exists so
// global cleanup can still terminate the process if the owning deck is lost.
// Callers scope the registry to the engine lifetime:
//
//	reg := procreg.New(grace, logger)
//	defer reg.TerminateAll()
//
// TerminateAll is idempotent and is also invoked from the daemon signal path.
package procreg
