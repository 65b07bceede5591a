// Package usage provides an optional local ledger of refinement
// decisions, backed by SQLite.
//
// The ledger records one row per refinement operation (identifier,
// operation kind, cache hit, admission outcome, batch size, latency)
// for local audit and capacity planning. It is disabled by default;
// when off the process keeps no local state. Quota and cache state
// always live in the shared key-value store, never here.
//
// Writes are asynchronous: recording never blocks or fails a
// refinement. A cron-scheduled pruner deletes records older than the
// configured retention window.
package usage
