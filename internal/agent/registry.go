package agent

import (
	"sync"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// Registry manages one Agent per interaction source, all sharing the
// same capture options. Recorder state broadcasts fan out to every
// agent, and a source seen for the first time starts mirrored to the
// latest observed status rather than idle.
type Registry struct {
	sink EventSink
	opts []Option

	mu     sync.Mutex
	agents map[string]*Agent
	status guide.Status
}

// NewRegistry creates a registry whose agents submit to sink. opts apply
// to every agent it creates.
func NewRegistry(sink EventSink, opts ...Option) *Registry {
	return &Registry{
		sink:   sink,
		opts:   opts,
		agents: make(map[string]*Agent),
		status: guide.StatusIdle,
	}
}

// Agent returns the agent for source, creating it on first sight. The
// pixel ratio is fixed at creation; later values for the same source are
// ignored, since a reloaded page keeps its source identity.
func (r *Registry) Agent(source string, dpr float64) *Agent {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[source]
	if !ok {
		opts := append([]Option{WithDevicePixelRatio(dpr)}, r.opts...)
		a = New(r.sink, source, opts...)
		a.ApplyState(r.status)
		r.agents[source] = a
	}
	return a
}

// ApplyState mirrors a recorder broadcast onto every known agent and
// remembers it for agents created later.
func (r *Registry) ApplyState(status guide.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = status
	for _, a := range r.agents {
		a.ApplyState(status)
	}
}
