package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// SaveState persists the recorder's state snapshot.
// The snapshot lives in a single fixed row; every save replaces it.
func (s *Store) SaveState(ctx context.Context, snap guide.StateSnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recorder_state (id, status, guide_id, guide_title, guide_type, step_count)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			guide_id = excluded.guide_id,
			guide_title = excluded.guide_title,
			guide_type = excluded.guide_type,
			step_count = excluded.step_count
	`,
		string(snap.Status),
		snap.GuideID,
		snap.GuideTitle,
		string(snap.GuideType),
		snap.StepCount,
	)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	return nil
}

// LoadState returns the persisted recorder state, or the default idle
// snapshot when nothing has been saved yet.
func (s *Store) LoadState(ctx context.Context) (guide.StateSnapshot, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, guide_id, guide_title, guide_type, step_count
		FROM recorder_state
		WHERE id = 1
	`)

	var (
		snap      guide.StateSnapshot
		status    string
		guideType string
	)
	err := row.Scan(&status, &snap.GuideID, &snap.GuideTitle, &guideType, &snap.StepCount)
	if err == sql.ErrNoRows {
		return guide.DefaultState(), nil
	}
	if err != nil {
		return guide.StateSnapshot{}, fmt.Errorf("load state: %w", err)
	}

	snap.Status = guide.Status(status)
	snap.GuideType = guide.GuideType(guideType)
	return snap, nil
}
