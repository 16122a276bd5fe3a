// Package api exposes the row store over a REST-shaped HTTP surface.
// Every JSON body carries a success flag; failures add a reason string.
// Search results and bulk-upload outcomes stream back as newline-delimited
// JSON so responses never buffer whole result sets.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/jacentio/stratum/bulk"
	"github.com/jacentio/stratum/query"
	"github.com/jacentio/stratum/store"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	catalog   *store.Catalog
	rows      *store.Rows
	engine    *query.Engine
	processor *bulk.Processor
	log       *slog.Logger
	mux       *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(catalog *store.Catalog, rows *store.Rows, engine *query.Engine, processor *bulk.Processor, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		catalog:   catalog,
		rows:      rows,
		engine:    engine,
		processor: processor,
		log:       log,
		mux:       http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	h.mux.HandleFunc("GET /health", h.health)

	h.mux.HandleFunc("GET /{owner}/stores", h.listStores)
	h.mux.HandleFunc("POST /{owner}/stores", h.createStore)
	h.mux.HandleFunc("GET /{owner}/stores/{store}", h.getStore)
	h.mux.HandleFunc("PUT /{owner}/stores/{store}", h.updateStore)
	h.mux.HandleFunc("DELETE /{owner}/stores/{store}", h.deleteStore)

	h.mux.HandleFunc("GET /{owner}/stores/{store}/keys", h.listKeys)
	h.mux.HandleFunc("POST /{owner}/stores/{store}/keys", h.createRow)
	h.mux.HandleFunc("GET /{owner}/stores/{store}/keys/{key}", h.getRow)
	h.mux.HandleFunc("PUT /{owner}/stores/{store}/keys/{key}", h.updateRow)
	h.mux.HandleFunc("DELETE /{owner}/stores/{store}/keys/{key}", h.deleteRow)

	h.mux.HandleFunc("PUT /{owner}/stores/{store}/upload", h.upload)
	h.mux.HandleFunc("GET /{owner}/stores/{store}/search", h.search)
}

// envelope is the common response shape. Success is the authoritative
// signal; the HTTP status only reflects the failure class.
type envelope map[string]any

func ok(fields envelope) envelope {
	out := envelope{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, reason := classify(err)
	if status >= 500 {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, envelope{"success": false, "reason": reason})
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// pageParams extracts the optional token/limit pagination query parameters.
func pageParams(r *http.Request) (token string, limit int, err error) {
	token = r.URL.Query().Get("token")
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return "", 0, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw)
		}
	}
	return token, limit, nil
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ok(envelope{"status": "healthy"}))
}
