package web

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hpungsan/dupsweep/internal/config"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// NewServer creates and configures the HTTP server for the run history UI.
func NewServer(db *sql.DB, cfg *config.Config, version, bind string, port int) (*http.Server, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	renderer, err := NewRenderer(templateSub, version)
	if err != nil {
		return nil, err
	}

	h := &Handlers{
		db:       db,
		cfg:      cfg,
		renderer: renderer,
	}

	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           securityHeaders(h.routes(staticSub)),
		ReadHeaderTimeout: 10 * time.Second,
	}, nil
}

func (h *Handlers) routes(static fs.FS) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/runs", http.StatusFound)
	})
	mux.HandleFunc("GET /runs", h.HandleList)
	mux.HandleFunc("GET /runs/{id}", h.HandleDetail)
	mux.HandleFunc("GET /runs/{id}/report.md", h.HandleReportMarkdown)

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(static)))
	return mux
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; style-src 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	slog.Info("dupsweep UI running", "url", "http://"+srv.Addr)

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		slog.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		slog.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
