package render

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/bilgisen/feedviewer/internal/viewer"
)

// DateLayout is how publish dates are shown.
const DateLayout = "Jan 2, 2006 3:04 PM"

//go:embed templates/page.html
var templates embed.FS

// Renderer turns a ViewState into the viewer page.
type Renderer struct {
	tmpl           *template.Template
	loc            *time.Location
	refreshSeconds int
}

type pageData struct {
	State          viewer.ViewState
	RefreshSeconds int
}

func New(loc *time.Location) (*Renderer, error) {
	if loc == nil {
		loc = time.UTC
	}
	r := &Renderer{loc: loc, refreshSeconds: 2}

	tmpl, err := template.New("page.html").Funcs(template.FuncMap{
		"formatDate": r.formatDate,
		// Descriptions are sanitized by the feed parser before they get here.
		"trustedHTML": func(s string) template.HTML { return template.HTML(s) },
	}).ParseFS(templates, "templates/page.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	r.tmpl = tmpl

	return r, nil
}

// Render writes the page for state to w.
func (r *Renderer) Render(w io.Writer, state viewer.ViewState) error {
	return r.tmpl.Execute(w, pageData{State: state, RefreshSeconds: r.refreshSeconds})
}

// formatDate returns "" for unset dates so the date line is omitted.
func (r *Renderer) formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.In(r.loc).Format(DateLayout)
}
