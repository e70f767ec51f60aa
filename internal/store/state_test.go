package store

import (
	"context"
	"testing"

	"github.com/guidesnap/guidesnap/internal/guide"
)

func TestLoadState_DefaultWhenAbsent(t *testing.T) {
	s := openTestStore(t)

	snap, err := s.LoadState(context.Background())
	if err != nil {
		t.Fatalf("LoadState() failed: %v", err)
	}
	if snap.Status != guide.StatusIdle {
		t.Errorf("status = %q, want idle", snap.Status)
	}
	if snap.GuideID != "" || snap.StepCount != 0 {
		t.Errorf("snapshot not default: %+v", snap)
	}
}

func TestSaveState_RoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := guide.StateSnapshot{
		Status:     guide.StatusRecording,
		GuideID:    "guide-1",
		GuideTitle: "Onboarding",
		GuideType:  guide.TypeTraining,
		StepCount:  4,
	}
	if err := s.SaveState(ctx, want); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}

	got, err := s.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState() failed: %v", err)
	}
	if got != want {
		t.Errorf("snapshot = %+v, want %+v", got, want)
	}
}

func TestSaveState_LastWriteWins(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := guide.StateSnapshot{Status: guide.StatusRecording, GuideID: "g1", StepCount: 2}
	second := guide.StateSnapshot{Status: guide.StatusIdle}

	if err := s.SaveState(ctx, first); err != nil {
		t.Fatalf("SaveState() failed: %v", err)
	}
	if err := s.SaveState(ctx, second); err != nil {
		t.Fatalf("second SaveState() failed: %v", err)
	}

	got, err := s.LoadState(ctx)
	if err != nil {
		t.Fatalf("LoadState() failed: %v", err)
	}
	if got != second {
		t.Errorf("snapshot = %+v, want %+v", got, second)
	}

	// Exactly one row regardless of how many saves happened.
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM recorder_state`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("recorder_state rows = %d, want 1", count)
	}
}
