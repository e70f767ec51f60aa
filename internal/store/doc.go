// Package store provides SQLite-backed durable storage for guides, steps,
// and the recorder's persisted state.
//
// Three record kinds:
//   - Guides: guide metadata plus the canonical ordered step-id list
//   - Steps: recorded steps, with a secondary index on guide_id
//   - Recorder state: a single-row snapshot so a restart can resume
//     mid-recording
//
// All operations are atomic at single-record granularity. The only
// cross-record operations are the guide cascade delete and ApplyEdit, each
// a single transaction, so a crash can never leave a guide whose StepIDs
// point at deleted steps. Steps whose guide row was never persisted (the
// recorder acknowledges before it persists) are orphans; they are swept
// when their guide is deleted, never resurrected.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON
package store
