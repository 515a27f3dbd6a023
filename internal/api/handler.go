// Package api provides the HTTP handlers for the query REST API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"sheetql/internal/domain"
	"sheetql/internal/history"
	"sheetql/internal/query"
)

// Handler serves the query, validation, tables, and history endpoints.
type Handler struct {
	executor *query.Executor
	source   domain.DataSource
	history  *history.Store // nil when history is disabled
	log      *slog.Logger
}

// NewHandler creates a Handler. history may be nil.
func NewHandler(executor *query.Executor, source domain.DataSource, hist *history.Store, log *slog.Logger) *Handler {
	return &Handler{executor: executor, source: source, history: hist, log: log}
}

// Routes mounts the API endpoints on a chi router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/v1/query", h.handleQuery)
	r.Post("/v1/query/validate", h.handleValidate)
	r.Get("/v1/tables", h.handleTables)
	r.Get("/v1/history", h.handleHistory)
	r.Get("/healthz", h.handleHealth)
}

type queryRequest struct {
	SQL    string                 `json:"sql"`
	Params map[string]interface{} `json:"params,omitempty"`
	Rules  []string               `json:"rules,omitempty"`
}

// handleQuery executes a query. Execution failures come back inside the
// result envelope with HTTP 200; only malformed requests are HTTP errors.
func (h *Handler) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQueryRequest(w, r)
	if !ok {
		return
	}
	result := h.executor.Execute(r.Context(), req.SQL, req.Params)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeQueryRequest(w, r)
	if !ok {
		return
	}
	if len(req.Rules) == 0 {
		writeError(w, http.StatusBadRequest, "at least one rule is required")
		return
	}
	result := h.executor.ExecuteWithValidation(r.Context(), req.SQL, req.Params, req.Rules)
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) decodeQueryRequest(w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return req, false
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, "sql is required")
		return req, false
	}
	return req, true
}

func (h *Handler) handleTables(w http.ResponseWriter, r *http.Request) {
	tables, err := h.source.Tables()
	if err != nil {
		writeError(w, httpStatusFromDomainError(err), err.Error())
		return
	}
	if tables == nil {
		tables = []domain.TableDescriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tables": tables})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "query history is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := h.history.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, httpStatusFromDomainError(err), err.Error())
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"code":    status,
		"message": message,
	})
}
