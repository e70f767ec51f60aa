// Package recorder implements the recording orchestrator.
//
// The recorder is the single source of truth for recording state. It owns
// the idle/recording/paused state machine and drives the capture pipeline:
// event intake, overlay suppression, screenshot capture, annotation
// dispatch, step assembly, persistence, and state broadcast.
//
// ARCHITECTURE:
//
// Single-Writer Pipeline Loop:
// Captured events are enqueued to a FIFO queue and processed by Run() in a
// single goroutine. Step indices are assigned and persisted inside that
// goroutine, so steps for one session always receive strictly increasing,
// contiguous indices in event-arrival order - even when events from
// several pages interleave.
//
// State transitions (start/stop/pause) are applied to in-memory state
// before any broadcast or durable write is issued, so a concurrent state
// query always observes the most recent transition even while persistence
// is still in flight. Durable writes happen after acknowledgment; a crash
// in between loses at most the latest transition, which the persisted
// snapshot recovers as the last successfully saved state.
//
// ERROR HANDLING: pipeline stages degrade instead of aborting. An
// uncapturable page yields an empty screenshot, a failed annotation falls
// back to the raw image, and an unreachable page agent is skipped after one
// provision-and-retry attempt. A failed event is logged with full context
// and processing continues.
package recorder
