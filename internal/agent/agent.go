package agent

import (
	"log/slog"
	"sync"
	"time"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// ScrollThreshold is the cumulative scroll distance, in CSS pixels, below
// which scrolling is considered noise and emits nothing.
const ScrollThreshold = 300

// ScrollQuiet is the trailing debounce window: a scroll event is emitted
// only once this long has passed with no further qualifying scrolling.
const ScrollQuiet = 500 * time.Millisecond

// EventSink receives normalized events. Implemented by the recorder.
type EventSink interface {
	Submit(ev guide.UserEvent, source string) bool
}

// PageElement is an interaction target as observed in the page. Bounds
// are viewport-relative CSS pixels; the agent scales them to device
// pixels before emission.
type PageElement struct {
	Tag       string            `json:"tag"`
	Text      string            `json:"text"`
	ID        string            `json:"id,omitempty"`
	Classes   []string          `json:"classes,omitempty"`
	Path      string            `json:"path,omitempty"` // structural fallback locator, e.g. "div > form > button:nth-of-type(2)"
	InputType string            `json:"inputType,omitempty"`
	InOverlay bool              `json:"inOverlay,omitempty"` // target lies inside the recorder's own overlay subtree
	Bounds    guide.BoundingBox `json:"bounds"`
}

// Agent filters and normalizes interactions for one recording target.
type Agent struct {
	sink   EventSink
	source string
	dpr    float64
	now    func() time.Time

	threshold float64
	quiet     time.Duration
	maxText   int
	maxInput  int

	mu          sync.Mutex
	recording   bool
	paused      bool
	lastScrollY float64
	scrollTimer *time.Timer
	scrollSeq   int // invalidates stale timer callbacks
}

// Option configures an Agent.
type Option func(*Agent)

// WithDevicePixelRatio sets the display's pixel density. Defaults to 1.
func WithDevicePixelRatio(dpr float64) Option {
	return func(a *Agent) {
		if dpr > 0 {
			a.dpr = dpr
		}
	}
}

// WithScrollDebounce overrides the scroll threshold and quiet period.
func WithScrollDebounce(threshold float64, quiet time.Duration) Option {
	return func(a *Agent) {
		a.threshold = threshold
		a.quiet = quiet
	}
}

// WithTextBounds overrides the element text and input value limits.
// Non-positive values keep the defaults.
func WithTextBounds(maxText, maxInput int) Option {
	return func(a *Agent) {
		if maxText > 0 {
			a.maxText = maxText
		}
		if maxInput > 0 {
			a.maxInput = maxInput
		}
	}
}

// WithNow overrides the event timestamp clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(a *Agent) { a.now = now }
}

// New creates an agent for one recording target. The agent starts idle;
// feed it the answer to an initial state query via ApplyState.
func New(sink EventSink, source string, opts ...Option) *Agent {
	a := &Agent{
		sink:      sink,
		source:    source,
		dpr:       1,
		now:       time.Now,
		threshold: ScrollThreshold,
		quiet:     ScrollQuiet,
		maxText:   guide.MaxElementText,
		maxInput:  guide.MaxInputValue,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ApplyState mirrors a recorder state broadcast. Transition to idle also
// discards any pending scroll emission.
func (a *Agent) ApplyState(status guide.Status) {
	a.mu.Lock()
	defer a.mu.Unlock()

	switch status {
	case guide.StatusIdle:
		a.recording = false
		a.paused = false
		a.cancelScrollLocked()
	case guide.StatusRecording:
		a.recording = true
		a.paused = false
	case guide.StatusPaused:
		a.paused = true
	}
}

// Capturing reports whether interactions are currently forwarded.
func (a *Agent) Capturing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.recording && !a.paused
}

// HandleClick forwards a click unless it landed on the agent's own
// overlay.
func (a *Agent) HandleClick(el PageElement, x, y float64, pageTitle, pageURL string) {
	if !a.Capturing() || el.InOverlay {
		return
	}

	a.emit(guide.UserEvent{
		EventType:  guide.EventClick,
		Element:    a.snapshot(el),
		ClickPoint: &guide.Point{X: x * a.dpr, Y: y * a.dpr},
		PageTitle:  pageTitle,
		PageURL:    pageURL,
	})
}

// HandleChange forwards a committed input value. Password fields are
// fully suppressed: no value, no element snapshot, no event at all.
func (a *Agent) HandleChange(el PageElement, value, pageTitle, pageURL string) {
	if !a.Capturing() {
		return
	}
	if el.InputType == "password" {
		return
	}

	a.emit(guide.UserEvent{
		EventType:  guide.EventInput,
		Element:    a.snapshot(el),
		InputValue: guide.NormalizeText(value, a.maxInput),
		PageTitle:  pageTitle,
		PageURL:    pageURL,
	})
}

// HandleNavigation forwards a history-state or hash change. Full page
// loads restart the agent and go through ApplyState instead.
func (a *Agent) HandleNavigation(pageTitle, pageURL string) {
	if !a.Capturing() {
		return
	}

	a.emit(guide.UserEvent{
		EventType: guide.EventNavigate,
		PageTitle: pageTitle,
		PageURL:   pageURL,
	})
}

// HandleScroll applies the trailing debounce. Movement accumulates
// against the position of the last emission; once the cumulative delta
// passes the threshold a quiet-period timer arms, and while that timer
// is pending ANY further movement re-arms it, so the event fires only
// after scrolling truly settles.
func (a *Agent) HandleScroll(scrollY float64, pageTitle, pageURL string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.recording || a.paused {
		return
	}

	delta := scrollY - a.lastScrollY
	if delta < 0 {
		delta = -delta
	}
	if delta < a.threshold {
		if a.scrollTimer != nil {
			a.armScrollLocked(pageTitle, pageURL)
		}
		return
	}
	a.lastScrollY = scrollY
	a.armScrollLocked(pageTitle, pageURL)
}

// armScrollLocked (re)starts the quiet-period timer. The sequence number
// keeps a replaced timer's callback from emitting or clearing the timer
// slot out from under its successor.
func (a *Agent) armScrollLocked(pageTitle, pageURL string) {
	if a.scrollTimer != nil {
		a.scrollTimer.Stop()
	}
	a.scrollSeq++
	seq := a.scrollSeq
	a.scrollTimer = time.AfterFunc(a.quiet, func() {
		a.mu.Lock()
		if seq != a.scrollSeq {
			a.mu.Unlock()
			return
		}
		a.scrollTimer = nil
		capturing := a.recording && !a.paused
		a.mu.Unlock()

		if !capturing {
			return
		}
		a.emit(guide.UserEvent{
			EventType: guide.EventScroll,
			PageTitle: pageTitle,
			PageURL:   pageURL,
		})
	})
}

func (a *Agent) cancelScrollLocked() {
	a.scrollSeq++
	if a.scrollTimer != nil {
		a.scrollTimer.Stop()
		a.scrollTimer = nil
	}
	a.lastScrollY = 0
}

// snapshot normalizes an element: bounded text, derived locator, bounds
// scaled from CSS pixels to the device pixels the screenshot is made of.
func (a *Agent) snapshot(el PageElement) *guide.ElementInfo {
	return &guide.ElementInfo{
		Tag:     el.Tag,
		Text:    guide.NormalizeText(el.Text, a.maxText),
		Locator: Locator(el),
		BoundingBox: guide.BoundingBox{
			X:      el.Bounds.X * a.dpr,
			Y:      el.Bounds.Y * a.dpr,
			Width:  el.Bounds.Width * a.dpr,
			Height: el.Bounds.Height * a.dpr,
		},
	}
}

func (a *Agent) emit(ev guide.UserEvent) {
	ev.Timestamp = a.now()
	if !a.sink.Submit(ev, a.source) {
		// Recorder gone; nothing to do but note it.
		slog.Debug("event dropped, sink closed", "source", a.source, "event_type", ev.EventType)
	}
}
