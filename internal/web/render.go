package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/hpungsan/dupsweep/internal/db"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/ops"
	"github.com/hpungsan/dupsweep/internal/report"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "all", "detect", "apply"
}

// ListPageData is the template data for the run list page.
type ListPageData struct {
	PageData
	Runs       []db.Run
	Pagination ops.Pagination
	Kind       string
}

// DetailPageData is the template data for the run detail page.
type DetailPageData struct {
	PageData
	Run          *db.Run
	RenderedHTML template.HTML
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) (*Renderer, error) {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"formatSize": report.FormatSize,
		"comma":      func(n int) string { return humanize.Comma(int64(n)) },
		"shortID":    shortID,
	}

	layoutTmpl, err := template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("parsing layout: %w", err)
	}

	pages := map[string]string{
		"list":   "list.html",
		"detail": "detail.html",
		"error":  "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t, err := layoutTmpl.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, file); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", file, err)
		}
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}, nil
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, name string, data any) {
	r.renderPageStatus(w, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		slog.Error("template not found", "name", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template execution error", "name", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var sErr *errors.SweepError
	if !stderrors.As(err, &sErr) {
		sErr = errors.NewInternal(err)
	}

	status := sErr.Status
	message := sErr.Message
	if sErr.Code == errors.ErrInternal {
		slog.Error("request failed", "path", req.URL.Path, "error", message)
		message = "an internal error occurred"
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(sErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// wantsJSON reports whether the client asked for a JSON response.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts a stored report to HTML. Raw HTML in the source is
// omitted by goldmark's default renderer.
func renderMarkdown(md string) template.HTML {
	html, err := report.HTML(md)
	if err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(html)
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// shortID truncates a ULID for display.
func shortID(id string) string {
	if len(id) > 10 {
		return id[:10] + "..."
	}
	return id
}
