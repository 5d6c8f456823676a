// Package ledger persists the browser instances an orchestrator started in
// a SQLite database, so that instances orphaned by a crashed orchestrator
// can be found and killed later.
//
// The ledger observes a pool through core.Hooks: OnStarted records a row
// owned by the current process and OnStopped removes it. Reap kills the
// recorded browsers whose owner process no longer exists.
package ledger
