package export

import (
	"encoding/base64"
	"fmt"
	"html/template"
	"io"

	"github.com/guidesnap/guidesnap/internal/guide"
)

// htmlDoc is the template input for the standalone document.
type htmlDoc struct {
	Title     string
	CreatedAt string
	StepCount int
	Steps     []htmlStep
}

type htmlStep struct {
	Number      int
	Description string
	Image       template.URL
	PageTitle   string
	PageURL     string
}

var docTemplate = template.Must(template.New("doc").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8" />
<meta name="viewport" content="width=device-width, initial-scale=1.0" />
<title>{{.Title}}</title>
<style>
  *, *::before, *::after { box-sizing: border-box; margin: 0; padding: 0; }
  body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif; display: flex; min-height: 100vh; background: #f8f8f8; color: #1a1a1a; }
  .sidebar { width: 220px; flex-shrink: 0; background: #1e1e2e; color: #e0e0e0; padding: 24px 0; position: sticky; top: 0; height: 100vh; overflow-y: auto; }
  .sidebar h2 { font-size: 13px; font-weight: 700; text-transform: uppercase; letter-spacing: 1px; color: #FF6B35; padding: 0 20px 16px; }
  .nav-link { display: block; padding: 8px 20px; color: #ccc; text-decoration: none; font-size: 13px; border-left: 3px solid transparent; transition: all .15s; }
  .nav-link:hover { background: rgba(255,107,53,.1); color: #fff; border-left-color: #FF6B35; }
  .main { flex: 1; padding: 40px; max-width: 960px; }
  .guide-title { font-size: 28px; font-weight: 700; margin-bottom: 8px; }
  .guide-meta { font-size: 13px; color: #888; margin-bottom: 40px; }
  .step { background: #fff; border-radius: 12px; box-shadow: 0 2px 8px rgba(0,0,0,.08); margin-bottom: 32px; overflow: hidden; }
  .step-header { display: flex; align-items: flex-start; gap: 14px; padding: 20px 24px 16px; }
  .step-num { background: #FF6B35; color: #fff; font-size: 13px; font-weight: 700; width: 28px; height: 28px; border-radius: 50%; display: flex; align-items: center; justify-content: center; flex-shrink: 0; }
  .step-desc { font-size: 15px; line-height: 1.5; padding-top: 4px; }
  .step-img { width: 100%; display: block; border-top: 1px solid #f0f0f0; }
  .step-meta { font-size: 11px; color: #aaa; padding: 10px 24px; border-top: 1px solid #f0f0f0; white-space: nowrap; overflow: hidden; text-overflow: ellipsis; }
</style>
</head>
<body>
<nav class="sidebar">
  <h2>{{.Title}}</h2>
{{- range .Steps}}
  <a href="#step-{{.Number}}" class="nav-link">Step {{.Number}}</a>
{{- end}}
</nav>
<main class="main">
  <h1 class="guide-title">{{.Title}}</h1>
  <p class="guide-meta">Created {{.CreatedAt}} &middot; {{.StepCount}} steps &middot; Generated by GuideSnap</p>
{{- range .Steps}}
  <section class="step" id="step-{{.Number}}">
    <div class="step-header">
      <span class="step-num">{{.Number}}</span>
      {{- if .Description}}
      <p class="step-desc">{{.Description}}</p>
      {{- end}}
    </div>
    {{- if .Image}}
    <img class="step-img" src="{{.Image}}" alt="Step {{.Number}}" loading="lazy" />
    {{- end}}
    <div class="step-meta">{{.PageTitle}} &mdash; {{.PageURL}}</div>
  </section>
{{- end}}
</main>
</body>
</html>
`))

// WriteHTML renders the self-contained document. Screenshots are inlined
// as data URLs so the file needs nothing else on disk.
func WriteHTML(w io.Writer, g guide.Guide, steps []guide.RecordedStep, opts Options) error {
	doc := htmlDoc{
		Title:     g.Title,
		CreatedAt: g.CreatedAt.UTC().Format("2006-01-02"),
		StepCount: len(steps),
		Steps:     make([]htmlStep, 0, len(steps)),
	}
	for i, s := range steps {
		hs := htmlStep{
			Number:    i + 1,
			PageTitle: s.PageTitle,
			PageURL:   s.PageURL,
		}
		if opts.IncludeDescriptions {
			hs.Description = s.Description
		}
		img := s.ScreenshotRaw
		if opts.UseAnnotated && len(s.ScreenshotAnnotated) > 0 {
			img = s.ScreenshotAnnotated
		}
		if len(img) > 0 {
			hs.Image = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(img))
		}
		doc.Steps = append(doc.Steps, hs)
	}
	return docTemplate.Execute(w, doc)
}

var readmeTemplate = template.Must(template.New("readme").Parse(
	`<!DOCTYPE html><html><head><title>{{.Title}}</title></head><body><h1>{{.Title}}</h1><ol>
{{- range .Steps}}
<li><a href="{{.Image}}">Step {{.Number}}</a>: {{.Description}}</li>
{{- end}}
</ol></body></html>
`))

func writeReadme(w io.Writer, g guide.Guide, steps []guide.RecordedStep) error {
	type readmeStep struct {
		Number      int
		Image       string
		Description string
	}
	data := struct {
		Title string
		Steps []readmeStep
	}{Title: g.Title}
	for i, s := range steps {
		data.Steps = append(data.Steps, readmeStep{
			Number:      i + 1,
			Image:       imageName(i),
			Description: s.Description,
		})
	}
	if err := readmeTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("render readme: %w", err)
	}
	return nil
}
