package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// PutGuide inserts or replaces a guide record.
func (s *Store) PutGuide(ctx context.Context, g guide.Guide) error {
	stepIDs, err := marshalStepIDs(g.StepIDs)
	if err != nil {
		return fmt.Errorf("put guide: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO guides (id, title, type, created_at, updated_at, step_ids)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			updated_at = excluded.updated_at,
			step_ids = excluded.step_ids
	`,
		g.ID,
		g.Title,
		string(g.Type),
		toMillis(g.CreatedAt),
		toMillis(g.UpdatedAt),
		stepIDs,
	)
	if err != nil {
		return fmt.Errorf("put guide: %w", err)
	}

	return nil
}

// GetGuide retrieves a single guide by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetGuide(ctx context.Context, id string) (guide.Guide, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, type, created_at, updated_at, step_ids
		FROM guides
		WHERE id = ?
	`, id)

	return scanGuide(row)
}

// ListGuides returns all guides ordered by creation time, newest first.
// Ties on created_at break by id so output is stable for golden tests.
//
// Returns an empty slice (not nil) when no guides exist.
func (s *Store) ListGuides(ctx context.Context) ([]guide.Guide, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, type, created_at, updated_at, step_ids
		FROM guides
		ORDER BY created_at DESC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query guides: %w", err)
	}
	defer rows.Close()

	var guides []guide.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		guides = append(guides, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate guides: %w", err)
	}

	if guides == nil {
		guides = []guide.Guide{}
	}

	return guides, nil
}

// DeleteGuide removes a guide and all of its steps in one transaction.
//
// Steps are removed in the same transaction as the guide record, so a crash
// can never leave the guide's StepIDs pointing at steps that remain live.
// Deleting a missing guide is a no-op.
func (s *Store) DeleteGuide(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete guide: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE guide_id = ?`, id); err != nil {
		return fmt.Errorf("delete guide: steps: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM guides WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete guide: guide: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete guide: commit: %w", err)
	}

	return nil
}

// ApplyEdit atomically persists an edited guide together with its updated
// and deleted steps. Editor operations (reorder, delete, manual insert)
// must keep step indices and the guide's StepIDs consistent, so both sides
// commit or neither does.
func (s *Store) ApplyEdit(ctx context.Context, g guide.Guide, upserts []guide.RecordedStep, deleteStepIDs []string) error {
	stepIDs, err := marshalStepIDs(g.StepIDs)
	if err != nil {
		return fmt.Errorf("apply edit: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apply edit: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE guides SET title = ?, type = ?, updated_at = ?, step_ids = ?
		WHERE id = ?
	`, g.Title, string(g.Type), toMillis(g.UpdatedAt), stepIDs, g.ID)
	if err != nil {
		return fmt.Errorf("apply edit: guide: %w", err)
	}

	for _, id := range deleteStepIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM steps WHERE id = ?`, id); err != nil {
			return fmt.Errorf("apply edit: delete step %s: %w", id, err)
		}
	}

	for _, step := range upserts {
		element, err := marshalElement(step.Element)
		if err != nil {
			return fmt.Errorf("apply edit: %w", err)
		}
		clickPoint, err := marshalPoint(step.ClickPoint)
		if err != nil {
			return fmt.Errorf("apply edit: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO steps
			(id, guide_id, idx, timestamp, event_type, description, element, click_point,
			 screenshot_raw, screenshot_annotated, page_title, page_url)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				idx = excluded.idx,
				description = excluded.description,
				element = excluded.element,
				click_point = excluded.click_point,
				screenshot_raw = excluded.screenshot_raw,
				screenshot_annotated = excluded.screenshot_annotated,
				page_title = excluded.page_title,
				page_url = excluded.page_url
		`,
			step.ID,
			step.GuideID,
			step.Index,
			toMillis(step.Timestamp),
			string(step.EventType),
			step.Description,
			element,
			clickPoint,
			step.ScreenshotRaw,
			step.ScreenshotAnnotated,
			step.PageTitle,
			step.PageURL,
		)
		if err != nil {
			return fmt.Errorf("apply edit: step %s: %w", step.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("apply edit: commit: %w", err)
	}

	return nil
}

func scanGuide(r rowScanner) (guide.Guide, error) {
	var (
		g         guide.Guide
		guideType string
		created   int64
		updated   int64
		stepIDs   string
	)

	err := r.Scan(&g.ID, &g.Title, &guideType, &created, &updated, &stepIDs)
	if err != nil {
		if err == sql.ErrNoRows {
			return guide.Guide{}, err
		}
		return guide.Guide{}, fmt.Errorf("scan guide: %w", err)
	}

	g.Type = guide.GuideType(guideType)
	g.CreatedAt = fromMillis(created)
	g.UpdatedAt = fromMillis(updated)

	if g.StepIDs, err = unmarshalStepIDs(stepIDs); err != nil {
		return guide.Guide{}, err
	}

	return g, nil
}
