// Package core provides the internal implementation of browserenv.
// It contains the Pool (browser supervisors keyed by profile id, guarded by a
// refcounted per-id mutex, with a shared port allocator and display manager),
// the launch-argument assembly, and the Hooks through which the ledger and
// metrics observe instance lifecycle events.
package core
