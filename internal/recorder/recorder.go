package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guidesnap/guidesnap/internal/guide"
	"github.com/guidesnap/guidesnap/internal/store"
)

// DefaultOverlaySettle is how long the pipeline waits after hiding the
// overlay so the page gets a rendering tick before capture.
const DefaultOverlaySettle = 60 * time.Millisecond

// DefaultKeepAlive is the default wake-timer period. The host may suspend
// an idle orchestrator; the periodic tick keeps long recording sessions
// from being silently terminated.
const DefaultKeepAlive = 25 * time.Second

// Recorder owns recording state and the capture pipeline.
//
// Thread-safety model:
//   - Start/Stop/TogglePause/Submit/Snapshot: safe from any goroutine
//   - Run(): must be called from exactly one goroutine; all step index
//     assignment and step/guide persistence happen there
type Recorder struct {
	store  *store.Store
	shots  ScreenshotSource
	agents AgentChannel
	annot  Annotator
	queue  *eventQueue
	ids    guide.IDGenerator
	now    func() time.Time

	settle    time.Duration
	keepAlive time.Duration

	mu        sync.Mutex
	status    guide.Status
	current   guide.Guide // valid while status != idle, retained after stop
	stepCount int

	subMu  sync.Mutex
	subs   map[int]chan guide.StateSnapshot
	nextID int
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithIDGenerator overrides the guide/step ID generator (for testing).
func WithIDGenerator(g guide.IDGenerator) Option {
	return func(r *Recorder) { r.ids = g }
}

// WithNow overrides the wall clock used for timestamps (for testing).
func WithNow(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithOverlaySettle sets the post-hide settle delay. Tests use zero.
func WithOverlaySettle(d time.Duration) Option {
	return func(r *Recorder) { r.settle = d }
}

// WithKeepAlive sets the wake-timer period.
func WithKeepAlive(d time.Duration) Option {
	return func(r *Recorder) { r.keepAlive = d }
}

// New creates a Recorder and restores any persisted recording state, so a
// process restart resumes mid-recording with the saved guide and counter.
func New(ctx context.Context, st *store.Store, shots ScreenshotSource, agents AgentChannel, annot Annotator, opts ...Option) (*Recorder, error) {
	r := &Recorder{
		store:     st,
		shots:     shots,
		agents:    agents,
		annot:     annot,
		queue:     newEventQueue(),
		ids:       guide.UUIDv7Generator{},
		now:       time.Now,
		settle:    DefaultOverlaySettle,
		keepAlive: DefaultKeepAlive,
		status:    guide.StatusIdle,
		subs:      make(map[int]chan guide.StateSnapshot),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := r.restore(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// restore loads the persisted snapshot. The last successfully persisted
// state wins; a transition lost between acknowledgment and persistence is
// acceptable degradation, not corruption.
func (r *Recorder) restore(ctx context.Context) error {
	snap, err := r.store.LoadState(ctx)
	if err != nil {
		return err
	}

	r.status = snap.Status
	r.stepCount = snap.StepCount
	r.current = guide.Guide{
		ID:    snap.GuideID,
		Title: snap.GuideTitle,
		Type:  snap.GuideType,
	}

	if snap.Status != guide.StatusIdle && snap.GuideID != "" {
		g, err := r.store.GetGuide(ctx, snap.GuideID)
		switch {
		case err == nil:
			r.current = g
		case errors.Is(err, sql.ErrNoRows):
			// Guide row never made it to disk before the restart; the
			// in-flight snapshot fields reconstruct it on the next write.
			slog.Warn("restored recording without guide record", "guide_id", snap.GuideID)
		default:
			return err
		}
		slog.Info("resumed recording session",
			"guide_id", snap.GuideID,
			"status", snap.Status,
			"step_count", snap.StepCount,
		)
	}

	return nil
}

// Start begins recording a new guide and acknowledges immediately: the
// in-memory transition happens before any broadcast or durable write, and
// persistence runs in the background off the critical path.
//
// target identifies the page whose overlay should activate first; it may
// be empty when no page is known yet.
func (r *Recorder) Start(ctx context.Context, title string, gtype guide.GuideType, target string) (string, error) {
	if title == "" {
		title = "Untitled Guide"
	}
	if gtype == "" {
		gtype = guide.TypeTutorial
	}
	if !guide.ValidGuideTypes[gtype] {
		return "", fmt.Errorf("invalid guide type %q", gtype)
	}

	r.mu.Lock()
	if r.status != guide.StatusIdle {
		from := r.status
		r.mu.Unlock()
		return "", &StateError{Op: "start", From: from}
	}

	now := r.now()
	g := guide.Guide{
		ID:        r.ids.NewID(),
		Title:     title,
		Type:      gtype,
		CreatedAt: now,
		UpdatedAt: now,
		StepIDs:   []string{},
	}
	r.status = guide.StatusRecording
	r.current = g
	r.stepCount = 0
	snap := r.snapshotLocked()
	r.mu.Unlock()

	slog.Info("recording started", "guide_id", g.ID, "title", g.Title, "type", g.Type)

	// Fastest path to the page overlay, then the general broadcast.
	if target != "" {
		go r.notifyAgent(context.Background(), target, OverlayUpdate{Status: snap.Status, StepCount: snap.StepCount})
	}
	r.broadcast(snap)

	// Durability off the critical path, but through the single writer: a
	// detached goroutine could land the empty-StepIDs guide row after the
	// pipeline's first append and erase it.
	r.persistAsync(func(ctx context.Context) {
		if err := r.store.PutGuide(ctx, g); err != nil {
			slog.Error("persist guide failed", "guide_id", g.ID, "error", err)
		}
		if err := r.store.SaveState(ctx, snap); err != nil {
			slog.Error("persist state failed", "error", err)
		}
	})

	// Pre-warm the annotation backend so the first capture doesn't pay the
	// startup cost. Screen-capture-only guides never annotate.
	if gtype != guide.TypeScreenCapture {
		go func() {
			if err := r.annot.Ensure(context.Background()); err != nil {
				slog.Debug("annotation backend pre-warm failed", "error", err)
			}
		}()
	}

	return g.ID, nil
}

// Stop ends the current recording session. Stopping while idle is a no-op.
//
// A pipeline invocation already dequeued completes and persists its step;
// events still queued behind it observe idle and are dropped.
func (r *Recorder) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.status == guide.StatusIdle {
		r.mu.Unlock()
		return nil
	}
	r.status = guide.StatusIdle
	snap := r.snapshotLocked()
	r.mu.Unlock()

	slog.Info("recording stopped", "guide_id", snap.GuideID, "steps", snap.StepCount)

	r.annot.Shutdown()
	r.broadcast(snap)

	r.persistAsync(func(ctx context.Context) {
		if err := r.store.SaveState(ctx, snap); err != nil {
			slog.Error("persist state failed", "error", err)
		}
	})

	return nil
}

// TogglePause flips between recording and paused. Events that arrive while
// paused are dropped, not queued for later.
func (r *Recorder) TogglePause(ctx context.Context) (guide.Status, error) {
	r.mu.Lock()
	if r.status == guide.StatusIdle {
		r.mu.Unlock()
		return guide.StatusIdle, &StateError{Op: "pause", From: guide.StatusIdle}
	}
	if r.status == guide.StatusPaused {
		r.status = guide.StatusRecording
	} else {
		r.status = guide.StatusPaused
	}
	snap := r.snapshotLocked()
	r.mu.Unlock()

	slog.Info("recording pause toggled", "status", snap.Status, "guide_id", snap.GuideID)

	r.broadcast(snap)

	r.persistAsync(func(ctx context.Context) {
		if err := r.store.SaveState(ctx, snap); err != nil {
			slog.Error("persist state failed", "error", err)
		}
	})

	return snap.Status, nil
}

// persistAsync hands a durable write to the Run loop, which executes it
// in order with pipeline persistence. Once the queue is closed the Run
// loop is winding down, so the write runs inline instead of being lost.
func (r *Recorder) persistAsync(job func(context.Context)) {
	if !r.queue.Enqueue(submission{job: job}) {
		job(context.Background())
	}
}

// Submit enqueues a captured event for the pipeline.
// Thread-safe: may be called from any goroutine.
// Returns false if the recorder has been stopped for good (queue closed).
func (r *Recorder) Submit(ev guide.UserEvent, source string) bool {
	return r.queue.Enqueue(submission{event: ev, source: source})
}

// Snapshot returns the current state. Always reflects the most recent
// in-memory transition, even when persistence is still in flight.
func (r *Recorder) Snapshot() guide.StateSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() guide.StateSnapshot {
	return guide.StateSnapshot{
		Status:     r.status,
		GuideID:    r.current.ID,
		GuideTitle: r.current.Title,
		GuideType:  r.current.Type,
		StepCount:  r.stepCount,
	}
}

// QueueLen returns the number of pending events. Useful for tests.
func (r *Recorder) QueueLen() int {
	return r.queue.Len()
}

// Run starts the single-writer pipeline loop.
// Blocks until the context is cancelled or Close() is called.
//
// Must be called from exactly ONE goroutine: index assignment and all
// step/guide persistence happen here, which is what serializes pipeline
// invocations even though individual I/O steps are asynchronous.
func (r *Recorder) Run(ctx context.Context) error {
	slog.Info("recorder starting")

	// Wake timer, re-armed on every startup so host-level idling cannot
	// silently end a long recording session.
	ticker := time.NewTicker(r.keepAlive)
	defer ticker.Stop()

	for {
		sub, ok := r.queue.TryDequeue()
		if ok {
			r.process(ctx, sub)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("recorder stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-ticker.C:
			slog.Debug("keep-alive tick", "status", r.Snapshot().Status)

		case <-r.queue.Wait():
			// Signal received - loop back to TryDequeue. The signal
			// channel closes when the queue closes, so this fires
			// immediately once Close() is called. An empty queue alone
			// does not mean closed: a coalesced signal can outlive the
			// item it announced when TryDequeue drained it first.
			if r.queue.Closed() && r.queue.Len() == 0 {
				slog.Info("recorder stopping: queue closed")
				return nil
			}
		}
	}
}

// Close shuts the intake queue, which causes Run() to return once drained.
func (r *Recorder) Close() {
	r.queue.Close()
}

// process runs one unit of queued work: a persistence job from a state
// transition, or a pipeline invocation if the recorder is still
// recording. Events observed while paused or idle are dropped, not
// queued.
func (r *Recorder) process(ctx context.Context, sub submission) {
	if sub.job != nil {
		// A shutdown in progress must not abort the transition's write;
		// the last successfully persisted state is what a restart resumes.
		sub.job(context.WithoutCancel(ctx))
		return
	}

	r.mu.Lock()
	status := r.status
	r.mu.Unlock()

	if status != guide.StatusRecording {
		slog.Debug("event dropped", "status", status, "event_type", sub.event.EventType)
		return
	}

	if err := r.runPipeline(ctx, sub); err != nil {
		// Log and continue: no failure is fatal to the orchestrator, and
		// failures stay isolated to the invocation they occurred in.
		slog.Error("pipeline invocation failed",
			"error", err,
			"event_type", sub.event.EventType,
			"source", sub.source,
			"page_url", sub.event.PageURL,
		)
	}
}

// notifyAgent delivers an overlay update with one-shot provisioning
// fallback: direct send, on failure inject the agent and retry once, then
// give up silently.
func (r *Recorder) notifyAgent(ctx context.Context, target string, upd OverlayUpdate) {
	if err := r.agents.NotifyOverlay(ctx, target, upd); err == nil {
		return
	}
	if err := r.agents.Provision(ctx, target); err != nil {
		slog.Debug("agent provisioning failed", "target", target, "error", err)
		return
	}
	if err := r.agents.NotifyOverlay(ctx, target, upd); err != nil {
		slog.Debug("overlay notify failed after provisioning", "target", target, "error", err)
	}
}
