// Package v1 - Versioned API handler
// Routes: POST /optimize, GET /runs, GET /runs/{id},
// DELETE /runs/{id}, GET /runs/{id}/diff/{other}
package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"housecost/adapters/storage"
	"housecost/api/envelope"
	"housecost/core/catalogue"
	"housecost/core/diff"
	"housecost/core/engine"
	"housecost/core/request"
	"housecost/internal/errors"
	"housecost/internal/logging"
)

// DefaultListLimit caps GET /runs when no limit is given
const DefaultListLimit = 50

// Handler handles v1 API requests
type Handler struct {
	catalogue *catalogue.Store
	engine    *engine.Engine
	history   storage.Store
	logger    *zap.Logger
}

// NewHandler creates a v1 handler. history may be nil.
func NewHandler(cat *catalogue.Store, eng *engine.Engine, history storage.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		catalogue: cat,
		engine:    eng,
		history:   history,
		logger:    logger,
	}
}

// Routes returns the v1 router
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/optimize", h.handleOptimize)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.handleListRuns)
		r.Get("/{id}", h.handleGetRun)
		r.Delete("/{id}", h.handleDeleteRun)
		r.Get("/{id}/diff/{other}", h.handleDiffRuns)
	})
	return r
}

// Optimize decodes, validates and optimizes the request body against the
// current catalogue snapshot. Every request is audited.
func (h *Handler) Optimize(r *http.Request) (*engine.Result, error) {
	start := time.Now()
	audit := envelope.NewAuditEntry(middleware.GetReqID(r.Context()), r.RemoteAddr, r.UserAgent())

	result, err := h.optimize(r)
	audit.SetDuration(time.Since(start))
	if err != nil {
		audit.MarkFailed(err)
	} else {
		audit.RunID = result.ID
		audit.Fingerprint = result.Fingerprint
		audit.Catalogue = result.Catalogue.Hash
	}
	audit.Log(logging.FromContext(r.Context(), h.logger).Named("audit"))

	return result, err
}

func (h *Handler) optimize(r *http.Request) (*engine.Result, error) {
	cat, err := h.catalogue.Current()
	if err != nil {
		return nil, err
	}
	raw, err := request.Decode(r.Body)
	if err != nil {
		return nil, err
	}
	req, err := request.Normalize(cat, raw)
	if err != nil {
		return nil, err
	}
	return h.engine.Optimize(r.Context(), cat, req)
}

// handleOptimize handles POST /api/v1/optimize
func (h *Handler) handleOptimize(w http.ResponseWriter, r *http.Request) {
	result, err := h.Optimize(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.WriteJSON(w, http.StatusOK, result)
}

// RunList is the response for GET /runs
type RunList struct {
	Runs  []*storage.StoredRun `json:"runs"`
	Count int                  `json:"count"`
}

// handleListRuns handles GET /api/v1/runs
func (h *Handler) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		envelope.WriteJSON(w, http.StatusOK, RunList{Runs: []*storage.StoredRun{}})
		return
	}

	filter, err := parseListFilter(r)
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	runs, err := h.history.List(r.Context(), filter)
	if err != nil {
		envelope.WriteError(w, errors.Internal("failed to list runs", err))
		return
	}
	// listings omit the full result; memory-backed runs are shared, so copy
	summaries := make([]*storage.StoredRun, len(runs))
	for i, run := range runs {
		summary := *run
		summary.RawResult = nil
		summaries[i] = &summary
	}
	envelope.WriteJSON(w, http.StatusOK, RunList{Runs: summaries, Count: len(summaries)})
}

// handleGetRun handles GET /api/v1/runs/{id}
func (h *Handler) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.lookup(r, chi.URLParam(r, "id"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.WriteJSON(w, http.StatusOK, run)
}

// handleDeleteRun handles DELETE /api/v1/runs/{id}
func (h *Handler) handleDeleteRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if h.history == nil {
		envelope.WriteError(w, errors.NotFound("run", id))
		return
	}
	if err := h.history.Delete(r.Context(), id); err != nil {
		envelope.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDiffRuns handles GET /api/v1/runs/{id}/diff/{other}
func (h *Handler) handleDiffRuns(w http.ResponseWriter, r *http.Request) {
	before, err := h.lookup(r, chi.URLParam(r, "id"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	after, err := h.lookup(r, chi.URLParam(r, "other"))
	if err != nil {
		envelope.WriteError(w, err)
		return
	}
	envelope.WriteJSON(w, http.StatusOK, diff.Compare(before.Outcome(), after.Outcome()))
}

func (h *Handler) lookup(r *http.Request, id string) (*storage.StoredRun, error) {
	if h.history == nil {
		return nil, errors.NotFound("run", id)
	}
	return h.history.Get(r.Context(), id)
}

func parseListFilter(r *http.Request) (*storage.ListFilter, error) {
	q := r.URL.Query()
	filter := &storage.ListFilter{
		Fingerprint:   q.Get("fingerprint"),
		CatalogueHash: q.Get("catalogue"),
		Limit:         DefaultListLimit,
	}

	var err error
	if filter.Since, err = parseTime(q.Get("since")); err != nil {
		return nil, errors.InvalidRequest("since must be an RFC 3339 timestamp")
	}
	if filter.Until, err = parseTime(q.Get("until")); err != nil {
		return nil, errors.InvalidRequest("until must be an RFC 3339 timestamp")
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil || filter.Limit < 1 {
			return nil, errors.InvalidRequest("limit must be a positive integer")
		}
	}
	if v := q.Get("offset"); v != "" {
		if filter.Offset, err = strconv.Atoi(v); err != nil || filter.Offset < 0 {
			return nil, errors.InvalidRequest("offset must be a non-negative integer")
		}
	}
	return filter, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}
