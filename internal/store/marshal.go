package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// marshalElement converts an optional element snapshot to JSON TEXT.
// A nil element is stored as SQL NULL, not an empty object.
func marshalElement(el *guide.ElementInfo) (sql.NullString, error) {
	if el == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(el)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal element: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalElement(data sql.NullString) (*guide.ElementInfo, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var el guide.ElementInfo
	if err := json.Unmarshal([]byte(data.String), &el); err != nil {
		return nil, fmt.Errorf("unmarshal element: %w", err)
	}
	return &el, nil
}

// marshalPoint converts an optional click point to JSON TEXT.
func marshalPoint(p *guide.Point) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal click point: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalPoint(data sql.NullString) (*guide.Point, error) {
	if !data.Valid || data.String == "" {
		return nil, nil
	}
	var p guide.Point
	if err := json.Unmarshal([]byte(data.String), &p); err != nil {
		return nil, fmt.Errorf("unmarshal click point: %w", err)
	}
	return &p, nil
}

// marshalStepIDs converts the canonical step-id ordering to a JSON array.
// Nil and empty both serialize as "[]" so the column is never NULL.
func marshalStepIDs(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("marshal step ids: %w", err)
	}
	return string(data), nil
}

func unmarshalStepIDs(data string) ([]string, error) {
	if data == "" {
		return []string{}, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		return nil, fmt.Errorf("unmarshal step ids: %w", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}

// Timestamps are stored as unix milliseconds for lexical-free comparison.

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
