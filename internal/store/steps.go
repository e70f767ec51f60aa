package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// PutStep inserts or replaces a step record.
// Upsert semantics: editor operations rewrite index and description in
// place under the same id.
func (s *Store) PutStep(ctx context.Context, step guide.RecordedStep) error {
	element, err := marshalElement(step.Element)
	if err != nil {
		return fmt.Errorf("put step: %w", err)
	}

	clickPoint, err := marshalPoint(step.ClickPoint)
	if err != nil {
		return fmt.Errorf("put step: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
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
		return fmt.Errorf("put step: %w", err)
	}

	return nil
}

// GetStep retrieves a single step by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetStep(ctx context.Context, id string) (guide.RecordedStep, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, guide_id, idx, timestamp, event_type, description, element, click_point,
		       screenshot_raw, screenshot_annotated, page_title, page_url
		FROM steps
		WHERE id = ?
	`, id)

	return scanStep(row)
}

// StepsForGuide returns all steps owned by a guide, ordered by index.
// The id tiebreak keeps results deterministic even if indices are briefly
// duplicated mid-edit.
//
// Returns an empty slice (not nil) when the guide has no steps.
func (s *Store) StepsForGuide(ctx context.Context, guideID string) ([]guide.RecordedStep, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guide_id, idx, timestamp, event_type, description, element, click_point,
		       screenshot_raw, screenshot_annotated, page_title, page_url
		FROM steps
		WHERE guide_id = ?
		ORDER BY idx ASC, id COLLATE BINARY ASC
	`, guideID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var steps []guide.RecordedStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}

	if steps == nil {
		steps = []guide.RecordedStep{}
	}

	return steps, nil
}

// DeleteStep removes a single step record. Deleting a missing id is a no-op.
func (s *Store) DeleteStep(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM steps WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete step: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanStep(r rowScanner) (guide.RecordedStep, error) {
	var (
		step       guide.RecordedStep
		ts         int64
		eventType  string
		element    sql.NullString
		clickPoint sql.NullString
	)

	err := r.Scan(
		&step.ID,
		&step.GuideID,
		&step.Index,
		&ts,
		&eventType,
		&step.Description,
		&element,
		&clickPoint,
		&step.ScreenshotRaw,
		&step.ScreenshotAnnotated,
		&step.PageTitle,
		&step.PageURL,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return guide.RecordedStep{}, err
		}
		return guide.RecordedStep{}, fmt.Errorf("scan step: %w", err)
	}

	step.Timestamp = fromMillis(ts)
	step.EventType = guide.EventType(eventType)

	if step.Element, err = unmarshalElement(element); err != nil {
		return guide.RecordedStep{}, err
	}
	if step.ClickPoint, err = unmarshalPoint(clickPoint); err != nil {
		return guide.RecordedStep{}, err
	}

	return step, nil
}
