package annotate

import (
	"context"
	"errors"
	"sync"

	"github.com/guidesnap/guidesnap/internal/recorder"
)

// ErrShutdown is returned for requests interrupted by a teardown. The
// recorder treats it like any annotation failure: the raw image stands in.
var ErrShutdown = errors.New("annotation backend shut down")

// ErrNotRunning is returned by Annotate before Ensure has started the
// worker.
var ErrNotRunning = errors.New("annotation backend not running")

type request struct {
	req  recorder.AnnotateRequest
	resp chan response
}

type response struct {
	data []byte
	err  error
}

// Backend runs the annotation transform on a dedicated worker goroutine.
//
// Only one worker ever exists at a time: Ensure is idempotent and a second
// concurrent Ensure joins the already-running worker instead of spawning
// another. Requests are processed one at a time in arrival order.
type Backend struct {
	mu      sync.Mutex
	reqs    chan request
	done    chan struct{}
	running bool
}

// NewBackend returns a Backend with no worker. The first Ensure starts it.
func NewBackend() *Backend {
	return &Backend{}
}

// Ensure starts the worker if it is not already running. Idempotent and
// safe for concurrent use.
func (b *Backend) Ensure(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return nil
	}

	b.reqs = make(chan request)
	b.done = make(chan struct{})
	b.running = true
	go worker(b.reqs, b.done)
	return nil
}

// Annotate sends one screenshot through the worker and waits for the
// result. Fails with ErrShutdown if the backend is torn down while the
// request is pending.
func (b *Backend) Annotate(ctx context.Context, req recorder.AnnotateRequest) ([]byte, error) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil, ErrNotRunning
	}
	reqs, done := b.reqs, b.done
	b.mu.Unlock()

	r := request{req: req, resp: make(chan response, 1)}

	select {
	case reqs <- r:
	case <-done:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-r.resp:
		return resp.data, resp.err
	case <-done:
		return nil, ErrShutdown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Shutdown stops the worker. Safe to call repeatedly and while requests
// are in flight; those requests fail with ErrShutdown.
func (b *Backend) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return
	}
	close(b.done)
	b.running = false
}

func worker(reqs <-chan request, done <-chan struct{}) {
	for {
		select {
		case r := <-reqs:
			data, err := Apply(r.req.Screenshot, r.req.StepNumber, r.req.Element, r.req.ClickPoint)
			r.resp <- response{data: data, err: err}
		case <-done:
			return
		}
	}
}
