// Package export renders a guide and its ordered steps into portable
// formats: a ZIP archive of per-step images plus a manifest, and a
// self-contained HTML document. Exporters only read; steps must arrive in
// index order.
package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// Options selects what the rendered document includes.
type Options struct {
	IncludeDescriptions bool
	UseAnnotated        bool
}

// DefaultOptions matches what the interactive exporter preselects.
var DefaultOptions = Options{IncludeDescriptions: true, UseAnnotated: true}

// manifest is the guide.json document at the root of a ZIP export.
type manifest struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	CreatedAt string         `json:"createdAt"`
	Steps     []manifestStep `json:"steps"`
}

type manifestStep struct {
	Step        int    `json:"step"`
	Description string `json:"description"`
	PageTitle   string `json:"pageTitle"`
	PageURL     string `json:"pageUrl"`
	EventType   string `json:"eventType"`
	Image       string `json:"image"`
}

// WriteZIP writes the archive export: guide.json, one numbered PNG per
// step that has a screenshot, and a minimal README.html viewer.
func WriteZIP(w io.Writer, g guide.Guide, steps []guide.RecordedStep) error {
	zw := zip.NewWriter(w)

	m := manifest{
		ID:        g.ID,
		Title:     g.Title,
		CreatedAt: g.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
		Steps:     make([]manifestStep, 0, len(steps)),
	}
	for i, s := range steps {
		m.Steps = append(m.Steps, manifestStep{
			Step:        i + 1,
			Description: s.Description,
			PageTitle:   s.PageTitle,
			PageURL:     s.PageURL,
			EventType:   string(s.EventType),
			Image:       imageName(i),
		})
	}

	mw, err := zw.Create("guide.json")
	if err != nil {
		return fmt.Errorf("create manifest: %w", err)
	}
	enc := json.NewEncoder(mw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	for i, s := range steps {
		img := s.ScreenshotAnnotated
		if len(img) == 0 {
			img = s.ScreenshotRaw
		}
		if len(img) == 0 {
			continue
		}
		fw, err := zw.Create(imageName(i))
		if err != nil {
			return fmt.Errorf("create %s: %w", imageName(i), err)
		}
		if _, err := fw.Write(img); err != nil {
			return fmt.Errorf("write %s: %w", imageName(i), err)
		}
	}

	rw, err := zw.Create("README.html")
	if err != nil {
		return fmt.Errorf("create readme: %w", err)
	}
	if err := writeReadme(rw, g, steps); err != nil {
		return fmt.Errorf("write readme: %w", err)
	}

	return zw.Close()
}

// imageName numbers images from 1 with two-digit padding so archive tools
// list them in step order.
func imageName(index int) string {
	return fmt.Sprintf("step-%02d.png", index+1)
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_\-\s]`)
var whitespace = regexp.MustCompile(`\s+`)

// SanitizeFilename reduces a guide title to a safe filename stem.
func SanitizeFilename(name string) string {
	cleaned := unsafeFilename.ReplaceAllString(name, "")
	cleaned = whitespace.ReplaceAllString(strings.TrimSpace(cleaned), "_")
	if cleaned == "" {
		return "guide"
	}
	return cleaned
}
