package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/hpungsan/dupsweep/internal/config"
	"github.com/hpungsan/dupsweep/internal/errors"
	"github.com/hpungsan/dupsweep/internal/ops"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /runs: recorded runs, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")

	result, err := ops.History(h.db, ops.HistoryInput{
		Kind:   kind,
		Limit:  parseIntParam(r, "limit", ops.DefaultHistoryLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	nav := kind
	if nav == "" {
		nav = "all"
	}
	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     nav,
		},
		Runs:       result.Runs,
		Pagination: result.Pagination,
		Kind:       kind,
	})
}

// HandleDetail handles GET /runs/{id}: one run with its rendered report.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	run, err := ops.GetRun(h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, map[string]any{
			"run":    run,
			"report": run.Report,
		})
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   run.Kind + " " + shortID(run.ID),
			Version: h.renderer.version,
			Nav:     run.Kind,
		},
		Run:          run,
		RenderedHTML: renderMarkdown(run.Report),
	})
}

// HandleReportMarkdown handles GET /runs/{id}/report.md: the stored report as text.
func (h *Handlers) HandleReportMarkdown(w http.ResponseWriter, r *http.Request) {
	run, err := ops.GetRun(h.db, r.PathValue("id"))
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if run.Report == "" {
		h.renderer.renderError(w, r, errors.NewNotFound(run.ID+"/report.md"))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(run.Report))
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
