package recorder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guidesnap/guidesnap/internal/guide"
	"github.com/guidesnap/guidesnap/internal/store"
)

// fakeShots returns a fixed payload, or fails when err is set.
type fakeShots struct {
	mu      sync.Mutex
	payload []byte
	err     error
	calls   int
}

func (f *fakeShots) CaptureVisible(ctx context.Context, target string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

// fakeAgents records overlay traffic. notifyFails makes NotifyOverlay fail
// until Provision has been called, mimicking a page without an agent.
type fakeAgents struct {
	mu          sync.Mutex
	hides       int
	shows       int
	notifies    int
	provisions  int
	notifyFails bool
	provisioned bool
}

func (f *fakeAgents) HideOverlay(ctx context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
	return nil
}

func (f *fakeAgents) ShowOverlay(ctx context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shows++
	return nil
}

func (f *fakeAgents) NotifyOverlay(ctx context.Context, target string, upd OverlayUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notifyFails && !f.provisioned {
		return errors.New("no agent in page")
	}
	f.notifies++
	return nil
}

func (f *fakeAgents) Provision(ctx context.Context, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.provisions++
	f.provisioned = true
	return nil
}

// fakeAnnotator prefixes screenshots with a marker so tests can tell the
// annotated image from the raw one.
type fakeAnnotator struct {
	mu        sync.Mutex
	ensures   int
	annotates int
	shutdowns int
	ensureErr error
	annotErr  error
}

func (f *fakeAnnotator) Ensure(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensures++
	return f.ensureErr
}

func (f *fakeAnnotator) Annotate(ctx context.Context, req AnnotateRequest) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.annotates++
	if f.annotErr != nil {
		return nil, f.annotErr
	}
	return append([]byte("annotated:"), req.Screenshot...), nil
}

func (f *fakeAnnotator) Shutdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdowns++
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type testRig struct {
	rec    *Recorder
	store  *store.Store
	shots  *fakeShots
	agents *fakeAgents
	annot  *fakeAnnotator
}

func setupRecorder(t *testing.T, opts ...Option) *testRig {
	t.Helper()
	s := setupTestStore(t)
	shots := &fakeShots{payload: []byte("png-bytes")}
	agents := &fakeAgents{}
	annot := &fakeAnnotator{}

	opts = append([]Option{WithOverlaySettle(0)}, opts...)
	rec, err := New(context.Background(), s, shots, agents, annot, opts...)
	require.NoError(t, err)

	return &testRig{rec: rec, store: s, shots: shots, agents: agents, annot: annot}
}

// runRecorder starts the Run loop and wires shutdown into test cleanup.
func runRecorder(t *testing.T, r *Recorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Error("recorder did not stop")
		}
	})
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", msg)
}

func clickEvent(text string) guide.UserEvent {
	return guide.UserEvent{
		EventType: guide.EventClick,
		Element: &guide.ElementInfo{
			Tag:  "button",
			Text: text,
		},
		ClickPoint: &guide.Point{X: 10, Y: 20},
		PageTitle:  "Checkout",
		PageURL:    "https://shop.example/checkout",
	}
}

func TestRecorder_StartTransitions(t *testing.T) {
	rig := setupRecorder(t)

	id, err := rig.rec.Start(context.Background(), "My Guide", guide.TypeTutorial, "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	snap := rig.rec.Snapshot()
	assert.Equal(t, guide.StatusRecording, snap.Status)
	assert.Equal(t, id, snap.GuideID)
	assert.Equal(t, "My Guide", snap.GuideTitle)
	assert.Equal(t, guide.TypeTutorial, snap.GuideType)
	assert.Equal(t, 0, snap.StepCount)
}

func TestRecorder_Start_WhileRecordingFails(t *testing.T) {
	rig := setupRecorder(t)

	_, err := rig.rec.Start(context.Background(), "First", guide.TypeTutorial, "")
	require.NoError(t, err)

	_, err = rig.rec.Start(context.Background(), "Second", guide.TypeTutorial, "")
	require.Error(t, err)
	assert.True(t, IsStateError(err))
}

func TestRecorder_Start_DefaultsTitleAndType(t *testing.T) {
	rig := setupRecorder(t)

	_, err := rig.rec.Start(context.Background(), "", "", "")
	require.NoError(t, err)

	snap := rig.rec.Snapshot()
	assert.Equal(t, "Untitled Guide", snap.GuideTitle)
	assert.Equal(t, guide.TypeTutorial, snap.GuideType)
}

func TestRecorder_Start_RejectsUnknownType(t *testing.T) {
	rig := setupRecorder(t)

	_, err := rig.rec.Start(context.Background(), "Bad", "slideshow", "")
	require.Error(t, err)
	assert.False(t, IsStateError(err))
}

func TestRecorder_Start_PersistsGuideAndState(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Durable", guide.TypeTraining, "")
	require.NoError(t, err)

	waitFor(t, func() bool {
		_, err := rig.store.GetGuide(ctx, id)
		return err == nil
	}, "guide row")

	waitFor(t, func() bool {
		snap, err := rig.store.LoadState(ctx)
		return err == nil && snap.Status == guide.StatusRecording && snap.GuideID == id
	}, "persisted state")
}

func TestRecorder_TogglePause(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()

	_, err := rig.rec.TogglePause(ctx)
	require.Error(t, err, "pause while idle")
	assert.True(t, IsStateError(err))

	_, err = rig.rec.Start(ctx, "Pausable", guide.TypeTutorial, "")
	require.NoError(t, err)

	st, err := rig.rec.TogglePause(ctx)
	require.NoError(t, err)
	assert.Equal(t, guide.StatusPaused, st)

	st, err = rig.rec.TogglePause(ctx)
	require.NoError(t, err)
	assert.Equal(t, guide.StatusRecording, st)
}

func TestRecorder_Stop_IdleIsNoop(t *testing.T) {
	rig := setupRecorder(t)

	require.NoError(t, rig.rec.Stop(context.Background()))
	assert.Equal(t, guide.StatusIdle, rig.rec.Snapshot().Status)
}

func TestRecorder_Stop_ReleasesAnnotator(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()

	_, err := rig.rec.Start(ctx, "Short", guide.TypeTutorial, "")
	require.NoError(t, err)
	require.NoError(t, rig.rec.Stop(ctx))

	rig.annot.mu.Lock()
	shutdowns := rig.annot.shutdowns
	rig.annot.mu.Unlock()
	assert.Equal(t, 1, shutdowns)

	// Stopped state keeps the finished guide visible to status consumers.
	snap := rig.rec.Snapshot()
	assert.Equal(t, guide.StatusIdle, snap.Status)
	assert.NotEmpty(t, snap.GuideID)
}

func TestRecorder_Pipeline_RecordsSteps(t *testing.T) {
	rig := setupRecorder(t, WithIDGenerator(guide.NewFixedGenerator(
		"guide-1", "step-1", "step-2", "step-3",
	)))
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Three Clicks", guide.TypeTutorial, "")
	require.NoError(t, err)
	require.Equal(t, "guide-1", id)

	require.True(t, rig.rec.Submit(clickEvent("Save"), "tab-1"))
	require.True(t, rig.rec.Submit(clickEvent("Confirm"), "tab-1"))
	require.True(t, rig.rec.Submit(clickEvent("Done"), "tab-2"))

	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 3 }, "three steps")

	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 3)

	for i, step := range steps {
		assert.Equal(t, i, step.Index)
		assert.Equal(t, id, step.GuideID)
		assert.Equal(t, []byte("png-bytes"), step.ScreenshotRaw)
		assert.Equal(t, []byte("annotated:png-bytes"), step.ScreenshotAnnotated)
		assert.False(t, step.Timestamp.IsZero())
	}
	assert.Equal(t, `Click the "Save" button`, steps[0].Description)
	assert.Equal(t, `Click the "Confirm" button`, steps[1].Description)
	assert.Equal(t, `Click the "Done" button`, steps[2].Description)

	g, err := rig.store.GetGuide(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"step-1", "step-2", "step-3"}, g.StepIDs)

	waitFor(t, func() bool {
		snap, err := rig.store.LoadState(ctx)
		return err == nil && snap.StepCount == 3
	}, "persisted step count")
}

func TestRecorder_Start_WriteCannotClobberRecordedSteps(t *testing.T) {
	rig := setupRecorder(t, WithIDGenerator(guide.NewFixedGenerator(
		"guide-1", "step-1",
	)))
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Ordered", guide.TypeTutorial, "")
	require.NoError(t, err)
	require.True(t, rig.rec.Submit(clickEvent("Save"), "tab-1"))

	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "one step")

	// Start's durable write must have committed before the pipeline's
	// guide append; give a misordered late write time to surface.
	time.Sleep(300 * time.Millisecond)

	g, err := rig.store.GetGuide(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"step-1"}, g.StepIDs)

	snap, err := rig.store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.StepCount)
}

func TestRecorder_Run_SurvivesEventQueuedBeforeStart(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()

	id, err := rig.rec.Start(ctx, "Early", guide.TypeTutorial, "")
	require.NoError(t, err)
	require.True(t, rig.rec.Submit(clickEvent("First"), "tab-1"))

	// The pre-queued event leaves its coalesced signal buffered; the loop
	// must drain it and keep consuming rather than exit.
	runRecorder(t, rig.rec)
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "first step")

	require.True(t, rig.rec.Submit(clickEvent("Second"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 2 }, "second step")

	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	assert.Len(t, steps, 2)
}

func TestRecorder_Pipeline_PausedDropsEvents(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Paused", guide.TypeTutorial, "")
	require.NoError(t, err)

	_, err = rig.rec.TogglePause(ctx)
	require.NoError(t, err)

	require.True(t, rig.rec.Submit(clickEvent("Ignored"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.QueueLen() == 0 }, "queue drained")

	assert.Equal(t, 0, rig.rec.Snapshot().StepCount)
	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestRecorder_Pipeline_IdleDropsEvents(t *testing.T) {
	rig := setupRecorder(t)
	runRecorder(t, rig.rec)

	require.True(t, rig.rec.Submit(clickEvent("Nobody home"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.QueueLen() == 0 }, "queue drained")

	assert.Equal(t, 0, rig.rec.Snapshot().StepCount)
}

func TestRecorder_Pipeline_EventsAfterStopDropped(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Brief", guide.TypeTutorial, "")
	require.NoError(t, err)

	require.True(t, rig.rec.Submit(clickEvent("Kept"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "first step")

	require.NoError(t, rig.rec.Stop(ctx))
	require.True(t, rig.rec.Submit(clickEvent("Dropped"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.QueueLen() == 0 }, "queue drained")

	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, `Click the "Kept" button`, steps[0].Description)
}

func TestRecorder_Pipeline_ScreenCaptureOnlySkipsAnnotation(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Raw Only", guide.TypeScreenCapture, "")
	require.NoError(t, err)

	require.True(t, rig.rec.Submit(clickEvent("Shoot"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "one step")

	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, steps[0].ScreenshotRaw, steps[0].ScreenshotAnnotated)

	rig.annot.mu.Lock()
	defer rig.annot.mu.Unlock()
	assert.Equal(t, 0, rig.annot.annotates)
	assert.Equal(t, 0, rig.annot.ensures, "no pre-warm for screen-capture-only")
}

func TestRecorder_Pipeline_AnnotationFailureKeepsRaw(t *testing.T) {
	rig := setupRecorder(t)
	rig.annot.annotErr = errors.New("backend torn down")
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Degraded", guide.TypeTutorial, "")
	require.NoError(t, err)

	require.True(t, rig.rec.Submit(clickEvent("Try"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "one step")

	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, []byte("png-bytes"), steps[0].ScreenshotAnnotated)
}

func TestRecorder_Pipeline_CaptureFailureStillRecords(t *testing.T) {
	rig := setupRecorder(t)
	rig.shots.err = errors.New("page not capturable")
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Blind", guide.TypeTutorial, "")
	require.NoError(t, err)

	require.True(t, rig.rec.Submit(clickEvent("Unseen"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "one step")

	steps, err := rig.store.StepsForGuide(ctx, id)
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Empty(t, steps[0].ScreenshotRaw)
	assert.Empty(t, steps[0].ScreenshotAnnotated)
	assert.Equal(t, `Click the "Unseen" button`, steps[0].Description)
}

func TestRecorder_Pipeline_HidesAndRestoresOverlay(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()
	runRecorder(t, rig.rec)

	_, err := rig.rec.Start(ctx, "Overlay", guide.TypeTutorial, "")
	require.NoError(t, err)

	require.True(t, rig.rec.Submit(clickEvent("Peek"), "tab-1"))
	waitFor(t, func() bool { return rig.rec.Snapshot().StepCount == 1 }, "one step")

	rig.agents.mu.Lock()
	defer rig.agents.mu.Unlock()
	assert.Equal(t, 1, rig.agents.hides)
	assert.Equal(t, 1, rig.agents.shows)
}

func TestRecorder_NotifyAgent_ProvisionFallback(t *testing.T) {
	rig := setupRecorder(t)
	rig.agents.notifyFails = true

	rig.rec.notifyAgent(context.Background(), "tab-1", OverlayUpdate{Status: guide.StatusRecording})

	rig.agents.mu.Lock()
	defer rig.agents.mu.Unlock()
	assert.Equal(t, 1, rig.agents.provisions)
	assert.Equal(t, 1, rig.agents.notifies, "retry after provisioning succeeds")
}

func TestRecorder_RestoreResumesSession(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()
	runRecorder(t, rig.rec)

	id, err := rig.rec.Start(ctx, "Survivor", guide.TypeTutorial, "")
	require.NoError(t, err)

	waitFor(t, func() bool {
		snap, err := rig.store.LoadState(ctx)
		return err == nil && snap.GuideID == id
	}, "persisted state")

	resumed, err := New(ctx, rig.store, rig.shots, rig.agents, rig.annot, WithOverlaySettle(0))
	require.NoError(t, err)

	snap := resumed.Snapshot()
	assert.Equal(t, guide.StatusRecording, snap.Status)
	assert.Equal(t, id, snap.GuideID)
	assert.Equal(t, "Survivor", snap.GuideTitle)
}

func TestRecorder_Broadcast_DeliversTransitions(t *testing.T) {
	rig := setupRecorder(t)
	ctx := context.Background()

	ch, cancel := rig.rec.Subscribe()
	defer cancel()

	id, err := rig.rec.Start(ctx, "Live", guide.TypeTutorial, "")
	require.NoError(t, err)

	select {
	case snap := <-ch:
		assert.Equal(t, guide.StatusRecording, snap.Status)
		assert.Equal(t, id, snap.GuideID)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestRecorder_Subscribe_CancelIsIdempotent(t *testing.T) {
	rig := setupRecorder(t)

	_, cancel := rig.rec.Subscribe()
	cancel()
	cancel()

	// Broadcasting after unsubscribe must not panic on the closed channel.
	_, err := rig.rec.Start(context.Background(), "After", guide.TypeTutorial, "")
	require.NoError(t, err)
}

func TestRecorder_Submit_AfterClose(t *testing.T) {
	rig := setupRecorder(t)

	rig.rec.Close()
	assert.False(t, rig.rec.Submit(clickEvent("Late"), "tab-1"))
}
