package guide

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// GuideType enumerates the flavors of recorded guides.
type GuideType string

const (
	// TypeTutorial is a step-by-step how-to guide.
	TypeTutorial GuideType = "tutorial"
	// TypeTraining is an employee-training walkthrough.
	TypeTraining GuideType = "training"
	// TypeScreenCapture records raw screenshots with no annotation pass.
	TypeScreenCapture GuideType = "screen-capture-only"
)

// ValidGuideTypes defines the allowed guide types.
var ValidGuideTypes = map[GuideType]bool{
	TypeTutorial:      true,
	TypeTraining:      true,
	TypeScreenCapture: true,
}

// EventType enumerates the interaction kinds a step can record.
type EventType string

const (
	EventClick    EventType = "click"
	EventInput    EventType = "input"
	EventNavigate EventType = "navigate"
	EventScroll   EventType = "scroll"
	// EventManual marks a step inserted by hand in the editor, not captured.
	EventManual EventType = "manual"
)

// Status is the recorder's lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRecording Status = "recording"
	StatusPaused    Status = "paused"
)

// BoundingBox locates an element in the screenshot's pixel buffer.
//
// Coordinates are viewport-relative (not scroll-adjusted) and scaled by the
// device pixel ratio, so they address physical pixels of the captured image
// rather than the CSS layout grid.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Point is a single coordinate in the same pixel space as BoundingBox.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ElementInfo is an immutable snapshot of the interacted element.
type ElementInfo struct {
	Tag         string      `json:"tag"`
	Text        string      `json:"text"`
	Locator     string      `json:"locator"`
	BoundingBox BoundingBox `json:"boundingBox"`
}

// MaxElementText bounds the visible text captured in an element snapshot.
const MaxElementText = 80

// MaxInputValue bounds the typed value captured from an input event.
const MaxInputValue = 80

// NormalizeText NFC-normalizes, trims, and bounds captured visible text.
// Applied at snapshot time so locator text and derived descriptions are
// stable regardless of which agent captured them.
func NormalizeText(s string, max int) string {
	s = strings.TrimSpace(norm.NFC.String(s))
	return truncateRunes(s, max)
}

func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// UserEvent is the normalized payload a page agent emits per interaction.
type UserEvent struct {
	EventType  EventType    `json:"eventType"`
	Timestamp  time.Time    `json:"timestamp,omitzero"`
	Element    *ElementInfo `json:"element,omitempty"`
	ClickPoint *Point       `json:"clickPoint,omitempty"`
	InputValue string       `json:"inputValue,omitempty"`
	PageTitle  string       `json:"pageTitle"`
	PageURL    string       `json:"pageUrl"`
}

// RecordedStep is one captured or manually-added unit of a guide.
//
// Index values within one guide form a contiguous permutation of 0..n-1.
// Screenshots are owned by the step; ScreenshotAnnotated may be empty or
// equal to ScreenshotRaw when no annotation was applied.
type RecordedStep struct {
	ID                  string       `json:"id"`
	GuideID             string       `json:"guideId"`
	Index               int          `json:"index"`
	Timestamp           time.Time    `json:"timestamp"`
	EventType           EventType    `json:"eventType"`
	Description         string       `json:"description"`
	Element             *ElementInfo `json:"element,omitempty"`
	ClickPoint          *Point       `json:"clickPoint,omitempty"`
	ScreenshotRaw       []byte       `json:"screenshotRaw,omitempty"`
	ScreenshotAnnotated []byte       `json:"screenshotAnnotated,omitempty"`
	PageTitle           string       `json:"pageTitle"`
	PageURL             string       `json:"pageUrl"`
}

// Guide is a named collection of ordered steps.
//
// StepIDs is the authoritative display order, not insertion order into
// storage. A step unreachable through any guide's StepIDs is orphaned and
// is garbage-collected when its guide is deleted.
type Guide struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      GuideType `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	StepIDs   []string  `json:"stepIds"`
}

// StateSnapshot is the process-wide recording state, persisted so a restart
// can resume mid-recording.
type StateSnapshot struct {
	Status     Status    `json:"state"`
	GuideID    string    `json:"guideId"`
	GuideTitle string    `json:"guideTitle"`
	GuideType  GuideType `json:"guideType"`
	StepCount  int       `json:"stepCount"`
}

// DefaultState is the snapshot reported when nothing has been persisted.
func DefaultState() StateSnapshot {
	return StateSnapshot{Status: StatusIdle}
}
