// Package api serves the host commands over HTTP and MCP for shells that do
// not run inside the desktop window.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/inkwell/internal/history"
	"github.com/kalambet/inkwell/internal/host"
	"github.com/kalambet/inkwell/internal/settings"
)

const maxRequestBodySize = 16 << 20 // 16MB, documents travel in the body

// FilesFunc builds the file access for one request from the selection the
// caller made in its own dialog. An empty selection reads as cancelled.
type FilesFunc func(selection string) host.Files

// HistoryReader is the read side of the snapshot history.
type HistoryReader interface {
	Get(id string) (history.Snapshot, error)
	List(path string, limit int) ([]history.Snapshot, error)
	Recent(limit int) ([]history.Entry, error)
	Search(query string, limit int) ([]history.Entry, error)
}

// Deps holds what the HTTP handler serves.
type Deps struct {
	Host     *host.Host
	FilesFor FilesFunc
	History  HistoryReader // optional; history routes answer 404 when nil
	Events   http.Handler  // optional websocket endpoint
	Token    string        // bearer token; when empty every protected route answers 401
	Logger   *slog.Logger
}

// OpenRequest is the body of POST /files/open.
type OpenRequest struct {
	Selection string `json:"selection"`
}

// SaveAsRequest is the body of POST /files/save-as.
type SaveAsRequest struct {
	Selection     string `json:"selection"`
	Content       string `json:"content"`
	SuggestedName string `json:"suggestedName,omitempty"`
}

// SaveRequest is the body of POST /files/save.
type SaveRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// NewHandler returns the host's HTTP API.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/settings", handleGetSettings(deps))
		r.Put("/settings", handlePutSettings(deps))
		r.Post("/settings/reset", handleResetSettings(deps))

		r.Post("/files/open", handleOpen(deps))
		r.Post("/files/save-as", handleSaveAs(deps))
		r.Post("/files/save", handleSave(deps))

		r.Get("/history", handleListHistory(deps))
		r.Get("/history/search", handleSearchHistory(deps))
		r.Get("/history/{id}", handleGetSnapshot(deps))

		r.Post("/window/close-requested", handleCloseRequested(deps))

		if deps.Events != nil {
			r.Handle("/events", deps.Events)
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleGetSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Host.LoadSettings()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handlePutSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireJSON(w, r) {
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "reading body: %v", err)
			return
		}
		v, err := settings.Decode(body)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid settings: %v", err)
			return
		}
		if err := deps.Host.SaveSettings(v); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
	}
}

func handleResetSettings(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := deps.Host.ResetSettings()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func handleOpen(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenRequest
		if !decodeBody(w, r, &req) {
			return
		}
		f, err := deps.Host.WithFiles(deps.FilesFor(req.Selection)).OpenTextFile(r.Context())
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, f)
	}
}

func handleSaveAs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveAsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		saved, err := deps.Host.WithFiles(deps.FilesFor(req.Selection)).
			SaveTextFile(r.Context(), req.Content, req.SuggestedName)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	}
}

func handleSave(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SaveRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if err := deps.Host.SaveToExistingFile(r.Context(), req.Path, req.Content); err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "saved", "path": req.Path})
	}
}

func handleListHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "not_found", "history is disabled")
			return
		}
		limit := parseIntParam(r, "limit", 20, 100)

		if path := r.URL.Query().Get("path"); path != "" {
			snaps, err := deps.History.List(path, limit)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to list snapshots: %v", err)
				return
			}
			if snaps == nil {
				snaps = []history.Snapshot{}
			}
			writeJSON(w, http.StatusOK, snaps)
			return
		}

		entries, err := deps.History.Recent(limit)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list history: %v", err)
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleSearchHistory(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "not_found", "history is disabled")
			return
		}
		entries, err := deps.History.Search(r.URL.Query().Get("q"), parseIntParam(r, "limit", 20, 100))
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to search history: %v", err)
			return
		}
		if entries == nil {
			entries = []history.Entry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func handleGetSnapshot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.History == nil {
			httpError(w, http.StatusNotFound, "not_found", "history is disabled")
			return
		}
		snap, err := deps.History.Get(chi.URLParam(r, "id"))
		if errors.Is(err, history.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "snapshot not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get snapshot: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleCloseRequested(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps.Host.RequestClose(r.Context())
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "notified"})
	}
}

// requireJSON rejects bodies not declared as application/json. Browsers send
// text/plain and form posts cross-origin without a preflight.
func requireJSON(w http.ResponseWriter, r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mt != "application/json" {
		httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error", "Content-Type must be application/json")
		return false
	}
	return true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if !requireJSON(w, r) {
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
