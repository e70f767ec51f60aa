package recorder

import (
	"context"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// ScreenshotSource captures the visible viewport of a recording target.
// An error means the page is not capturable; the pipeline degrades to an
// empty screenshot rather than aborting the step.
type ScreenshotSource interface {
	CaptureVisible(ctx context.Context, target string) ([]byte, error)
}

// OverlayUpdate is the payload pushed to page-side overlays.
type OverlayUpdate struct {
	Status    guide.Status `json:"state"`
	StepCount int          `json:"stepCount"`
}

// AgentChannel delivers signals to the page-side capture agent of one
// target. All sends are best-effort: a closed or never-injected page
// returns an error the recorder swallows or retries once after Provision.
type AgentChannel interface {
	// HideOverlay asks the page overlay to hide before a screenshot.
	HideOverlay(ctx context.Context, target string) error
	// ShowOverlay restores the overlay after capture.
	ShowOverlay(ctx context.Context, target string) error
	// NotifyOverlay pushes a state update to the page overlay.
	NotifyOverlay(ctx context.Context, target string, upd OverlayUpdate) error
	// Provision injects the capture agent into a page that lacks one.
	Provision(ctx context.Context, target string) error
}

// AnnotateRequest carries one screenshot to the annotation backend.
type AnnotateRequest struct {
	Screenshot []byte
	StepNumber int
	Element    *guide.ElementInfo
	ClickPoint *guide.Point
}

// Annotator is the isolated annotation backend.
//
// Ensure is idempotent: the backend is a lazily-created singleton and must
// never be created twice concurrently. Annotate may fail because the
// backend was shut down mid-request; callers fall back to the raw image.
type Annotator interface {
	Ensure(ctx context.Context) error
	Annotate(ctx context.Context, req AnnotateRequest) ([]byte, error)
	Shutdown()
}
