// Package editor mutates saved guides: reordering, deleting and inserting
// steps, and revising text. Every mutation that touches step order writes
// the guide's step list and the steps' index fields in one transaction, so
// indices always form a contiguous 0..n-1 permutation matching stepIds.
package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guidesnap/guidesnap/internal/guide"
	"github.com/guidesnap/guidesnap/internal/store"
)

// ErrBadOrder is returned when a reorder request is not a permutation of
// the guide's current steps.
var ErrBadOrder = errors.New("step order is not a permutation of the guide's steps")

// DefaultManualDescription is the placeholder text for hand-added steps.
const DefaultManualDescription = "Describe this step"

type Editor struct {
	store *store.Store
	ids   guide.IDGenerator
	now   func() time.Time
}

// Option configures an Editor.
type Option func(*Editor)

// WithIDGenerator overrides the manual-step ID generator (for testing).
func WithIDGenerator(g guide.IDGenerator) Option {
	return func(e *Editor) { e.ids = g }
}

// WithNow overrides the wall clock (for testing).
func WithNow(now func() time.Time) Option {
	return func(e *Editor) { e.now = now }
}

func New(st *store.Store, opts ...Option) *Editor {
	e := &Editor{
		store: st,
		ids:   guide.UUIDv7Generator{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ReorderSteps rewrites the guide's step order. orderedIDs must contain
// exactly the guide's current step IDs.
func (e *Editor) ReorderSteps(ctx context.Context, guideID string, orderedIDs []string) error {
	g, err := e.store.GetGuide(ctx, guideID)
	if err != nil {
		return fmt.Errorf("load guide: %w", err)
	}
	steps, err := e.store.StepsForGuide(ctx, guideID)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}

	byID := make(map[string]guide.RecordedStep, len(steps))
	for _, s := range steps {
		byID[s.ID] = s
	}
	if len(orderedIDs) != len(steps) {
		return ErrBadOrder
	}

	reindexed := make([]guide.RecordedStep, 0, len(orderedIDs))
	for i, id := range orderedIDs {
		s, ok := byID[id]
		if !ok {
			return ErrBadOrder
		}
		delete(byID, id)
		s.Index = i
		reindexed = append(reindexed, s)
	}

	g.StepIDs = append([]string(nil), orderedIDs...)
	g.UpdatedAt = e.now()
	return e.store.ApplyEdit(ctx, g, reindexed, nil)
}

// DeleteStep removes one step and closes the index gap it leaves.
func (e *Editor) DeleteStep(ctx context.Context, guideID, stepID string) error {
	g, err := e.store.GetGuide(ctx, guideID)
	if err != nil {
		return fmt.Errorf("load guide: %w", err)
	}
	steps, err := e.store.StepsForGuide(ctx, guideID)
	if err != nil {
		return fmt.Errorf("load steps: %w", err)
	}

	remaining := make([]guide.RecordedStep, 0, len(steps))
	ids := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.ID == stepID {
			continue
		}
		s.Index = len(remaining)
		remaining = append(remaining, s)
		ids = append(ids, s.ID)
	}

	g.StepIDs = ids
	g.UpdatedAt = e.now()
	return e.store.ApplyEdit(ctx, g, remaining, []string{stepID})
}

// InsertManualStep appends a hand-written step with no screenshot.
func (e *Editor) InsertManualStep(ctx context.Context, guideID, description string) (guide.RecordedStep, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		description = DefaultManualDescription
	}

	g, err := e.store.GetGuide(ctx, guideID)
	if err != nil {
		return guide.RecordedStep{}, fmt.Errorf("load guide: %w", err)
	}

	step := guide.RecordedStep{
		ID:          e.ids.NewID(),
		GuideID:     guideID,
		Index:       len(g.StepIDs),
		Timestamp:   e.now(),
		EventType:   guide.EventManual,
		Description: description,
	}

	g.StepIDs = append(g.StepIDs, step.ID)
	g.UpdatedAt = e.now()
	if err := e.store.ApplyEdit(ctx, g, []guide.RecordedStep{step}, nil); err != nil {
		return guide.RecordedStep{}, err
	}
	return step, nil
}

// UpdateDescription revises one step's description text.
func (e *Editor) UpdateDescription(ctx context.Context, stepID, description string) error {
	s, err := e.store.GetStep(ctx, stepID)
	if err != nil {
		return fmt.Errorf("load step: %w", err)
	}
	s.Description = description
	return e.store.PutStep(ctx, s)
}

// RenameGuide sets a new guide title. Blank titles keep the old one.
func (e *Editor) RenameGuide(ctx context.Context, guideID, title string) error {
	title = strings.TrimSpace(title)
	g, err := e.store.GetGuide(ctx, guideID)
	if err != nil {
		return fmt.Errorf("load guide: %w", err)
	}
	if title == "" || title == g.Title {
		return nil
	}
	g.Title = title
	g.UpdatedAt = e.now()
	return e.store.PutGuide(ctx, g)
}
