package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// runPipeline processes a single captured event end to end:
//
//	hide overlay -> capture -> restore overlay -> annotate -> describe
//	-> persist step -> append to guide -> persist state -> broadcast
//
// Called only from the Run() goroutine - single-writer guarantee. The step
// index is assigned here and the counter advances only after the step row
// is durably written, so a crash or failure mid-pipeline never produces a
// gap in the recorded sequence.
func (r *Recorder) runPipeline(ctx context.Context, sub submission) error {
	ev := sub.event

	raw := r.captureScreenshot(ctx, sub.source)
	annotated := r.annotateScreenshot(ctx, raw, ev)
	desc := guide.Describe(ev)

	r.mu.Lock()
	g := r.current
	index := r.stepCount
	r.mu.Unlock()

	step := guide.RecordedStep{
		ID:                  r.ids.NewID(),
		GuideID:             g.ID,
		Index:               index,
		Timestamp:           ev.Timestamp,
		EventType:           ev.EventType,
		Description:         desc,
		Element:             ev.Element,
		ClickPoint:          ev.ClickPoint,
		ScreenshotRaw:       raw,
		ScreenshotAnnotated: annotated,
		PageTitle:           ev.PageTitle,
		PageURL:             ev.PageURL,
	}
	if step.Timestamp.IsZero() {
		step.Timestamp = r.now()
	}

	// The step row is the one write that decides success: if it fails the
	// counter does not advance and the event is lost, by policy, rather
	// than retried out of order.
	if err := r.store.PutStep(ctx, step); err != nil {
		return fmt.Errorf("persist step: %w", err)
	}

	g.StepIDs = append(g.StepIDs, step.ID)
	g.UpdatedAt = r.now()
	if err := r.store.PutGuide(ctx, g); err != nil {
		// Step row is durable; the guide's step list can be rebuilt from
		// the guide_id index, so this does not fail the invocation.
		slog.Error("append step to guide failed", "guide_id", g.ID, "step_id", step.ID, "error", err)
	}

	r.mu.Lock()
	r.current.StepIDs = g.StepIDs
	r.current.UpdatedAt = g.UpdatedAt
	r.stepCount++
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if err := r.store.SaveState(ctx, snap); err != nil {
		slog.Error("persist state failed", "error", err)
	}

	slog.Debug("step recorded",
		"guide_id", g.ID,
		"step_id", step.ID,
		"index", index,
		"event_type", ev.EventType,
		"description", desc,
	)

	r.broadcast(snap)
	return nil
}

// captureScreenshot hides the page overlay, grabs the visible viewport and
// restores the overlay. Every stage degrades: a hidden-overlay failure
// still captures (the overlay may appear in the image), a capture failure
// records the step with no screenshot.
func (r *Recorder) captureScreenshot(ctx context.Context, source string) []byte {
	if err := r.agents.HideOverlay(ctx, source); err != nil {
		slog.Debug("overlay hide failed", "source", source, "error", err)
	} else if r.settle > 0 {
		// Give the page a rendering tick so the overlay is actually gone
		// from the frame we capture.
		time.Sleep(r.settle)
	}

	raw, err := r.shots.CaptureVisible(ctx, source)
	if err != nil {
		slog.Warn("screenshot capture failed", "source", source, "error", err)
		raw = nil
	}

	// Best-effort restore; the overlay self-heals on the next broadcast.
	if err := r.agents.ShowOverlay(ctx, source); err != nil {
		slog.Debug("overlay show failed", "source", source, "error", err)
	}

	return raw
}

// annotateScreenshot runs the annotation pass unless the guide is
// screen-capture-only or there is nothing to annotate. Any backend failure
// falls back to the raw image so the step is never lost to annotation.
func (r *Recorder) annotateScreenshot(ctx context.Context, raw []byte, ev guide.UserEvent) []byte {
	if len(raw) == 0 {
		return nil
	}

	r.mu.Lock()
	gtype := r.current.Type
	stepNumber := r.stepCount + 1
	r.mu.Unlock()

	if gtype == guide.TypeScreenCapture {
		return raw
	}

	if err := r.annot.Ensure(ctx); err != nil {
		slog.Warn("annotation backend unavailable", "error", err)
		return raw
	}

	annotated, err := r.annot.Annotate(ctx, AnnotateRequest{
		Screenshot: raw,
		StepNumber: stepNumber,
		Element:    ev.Element,
		ClickPoint: ev.ClickPoint,
	})
	if err != nil {
		slog.Warn("annotation failed, keeping raw screenshot", "error", err)
		return raw
	}
	return annotated
}
