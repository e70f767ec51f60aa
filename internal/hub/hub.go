package hub

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/guidesnap/guidesnap/internal/recorder"
)

const (
	// DefaultCaptureTimeout bounds how long CaptureVisible waits for an
	// agent to post a screenshot back.
	DefaultCaptureTimeout = 5 * time.Second
	// DefaultProvisionWait bounds how long Provision waits for an agent
	// to connect to a target that has none.
	DefaultProvisionWait = 2 * time.Second

	commandBuffer = 16
)

var (
	// ErrNoAgent is returned when no capture agent is connected for the
	// requested target.
	ErrNoAgent = errors.New("hub: no capture agent connected")
	// ErrAgentBusy is returned when the agent's command buffer is full.
	ErrAgentBusy = errors.New("hub: agent command buffer full")
	// ErrCaptureTimeout is returned when a connected agent never posts
	// the requested screenshot back.
	ErrCaptureTimeout = errors.New("hub: capture timed out")
)

// Command ops understood by page agents.
const (
	OpCapture     = "capture"
	OpHideOverlay = "hideOverlay"
	OpShowOverlay = "showOverlay"
	OpState       = "state"
)

// Command is one instruction pushed down an agent's stream.
type Command struct {
	Op      string                  `json:"op"`
	Capture uint64                  `json:"captureId,omitempty"`
	State   *recorder.OverlayUpdate `json:"state,omitempty"`
}

// Hub tracks connected agents and in-flight screenshot captures.
// The zero value is not usable; call New.
type Hub struct {
	captureTimeout time.Duration
	provisionWait  time.Duration

	mu          sync.Mutex
	conns       map[string]*conn
	pending     map[uint64]chan []byte
	waiters     map[string][]chan struct{}
	nextCapture uint64
}

// Option configures a Hub.
type Option func(*Hub)

// WithCaptureTimeout overrides the screenshot round-trip timeout.
func WithCaptureTimeout(d time.Duration) Option {
	return func(h *Hub) { h.captureTimeout = d }
}

// WithProvisionWait overrides how long Provision waits for an agent.
func WithProvisionWait(d time.Duration) Option {
	return func(h *Hub) { h.provisionWait = d }
}

// New creates an empty hub.
func New(opts ...Option) *Hub {
	h := &Hub{
		captureTimeout: DefaultCaptureTimeout,
		provisionWait:  DefaultProvisionWait,
		conns:          make(map[string]*conn),
		pending:        make(map[uint64]chan []byte),
		waiters:        make(map[string][]chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// conn is one agent connection. Sends go through send so a detached
// connection reports ErrNoAgent instead of panicking on a closed channel.
type conn struct {
	mu       sync.Mutex
	closed   bool
	commands chan Command
}

func (c *conn) send(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNoAgent
	}
	select {
	case c.commands <- cmd:
		return nil
	default:
		return ErrAgentBusy
	}
}

func (c *conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.commands)
	}
}

// Attach registers an agent connection for a target, replacing any
// previous one, and returns the command stream plus a detach func. The
// stream is closed when the connection is replaced or detached.
func (h *Hub) Attach(target string) (<-chan Command, func()) {
	c := &conn{commands: make(chan Command, commandBuffer)}

	h.mu.Lock()
	if old := h.conns[target]; old != nil {
		old.close()
	}
	h.conns[target] = c
	for _, w := range h.waiters[target] {
		close(w)
	}
	delete(h.waiters, target)
	h.mu.Unlock()

	detach := func() {
		h.mu.Lock()
		if h.conns[target] == c {
			delete(h.conns, target)
		}
		h.mu.Unlock()
		c.close()
	}
	return c.commands, detach
}

// Connected reports whether an agent is attached for the target.
func (h *Hub) Connected(target string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[target] != nil
}

func (h *Hub) conn(target string) *conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[target]
}

// CaptureVisible asks the target's agent for a viewport screenshot and
// waits for the correlated upload.
func (h *Hub) CaptureVisible(ctx context.Context, target string) ([]byte, error) {
	c := h.conn(target)
	if c == nil {
		return nil, ErrNoAgent
	}

	h.mu.Lock()
	h.nextCapture++
	id := h.nextCapture
	result := make(chan []byte, 1)
	h.pending[id] = result
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()
	}()

	if err := c.send(Command{Op: OpCapture, Capture: id}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(h.captureTimeout)
	defer timer.Stop()
	select {
	case data := <-result:
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrCaptureTimeout
	}
}

// CompleteCapture resolves an in-flight capture with the uploaded image.
// Returns false when the capture is unknown or already timed out.
func (h *Hub) CompleteCapture(id uint64, data []byte) bool {
	h.mu.Lock()
	result, ok := h.pending[id]
	delete(h.pending, id)
	h.mu.Unlock()
	if !ok {
		return false
	}
	result <- data
	return true
}

// HideOverlay asks the target's overlay to hide before a screenshot.
func (h *Hub) HideOverlay(ctx context.Context, target string) error {
	return h.sendOp(target, Command{Op: OpHideOverlay})
}

// ShowOverlay restores the target's overlay after capture.
func (h *Hub) ShowOverlay(ctx context.Context, target string) error {
	return h.sendOp(target, Command{Op: OpShowOverlay})
}

// NotifyOverlay pushes a recorder state update to the target's overlay.
func (h *Hub) NotifyOverlay(ctx context.Context, target string, upd recorder.OverlayUpdate) error {
	return h.sendOp(target, Command{Op: OpState, State: &upd})
}

func (h *Hub) sendOp(target string, cmd Command) error {
	c := h.conn(target)
	if c == nil {
		return ErrNoAgent
	}
	return c.send(cmd)
}

// Provision waits for an agent to connect to the target. The daemon
// cannot inject code into a page, so provisioning is purely waiting for
// the page side to dial in.
func (h *Hub) Provision(ctx context.Context, target string) error {
	h.mu.Lock()
	if h.conns[target] != nil {
		h.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	h.waiters[target] = append(h.waiters[target], ready)
	h.mu.Unlock()

	timer := time.NewTimer(h.provisionWait)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		h.dropWaiter(target, ready)
		return ctx.Err()
	case <-timer.C:
		h.dropWaiter(target, ready)
		return ErrNoAgent
	}
}

func (h *Hub) dropWaiter(target string, ready chan struct{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ws := h.waiters[target]
	for i, w := range ws {
		if w == ready {
			h.waiters[target] = append(ws[:i], ws[i+1:]...)
			return
		}
	}
}
