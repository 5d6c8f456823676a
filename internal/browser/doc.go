// Package browser supervises a single spawned browser process.
//
// A Supervisor appends the remote-debugging flags to a caller-built argument
// list, spawns the browser in its own session with the caller's environment
// overlaid on the host's, waits for the DevTools endpoint to answer, and
// terminates the process on Stop. A failed Start never leaves the process
// running.
package browser
