/*
handlers.go - HTTP API handlers for the compensation engine

PURPOSE:
  Exposes the engine via REST API: on-demand recomputation, batch runs,
  read access to stored records and maintenance of location rate tables.
  Handles HTTP request/response, JSON serialization, and delegates to the
  payroll package.

ENDPOINTS:
  Compensation:
    POST   /api/compensation/recompute       Compute one teacher/period now
    POST   /api/compensation/runs            Run the batch for a period
    GET    /api/compensation/runs            List batch runs
    GET    /api/compensation/teachers/{id}   Stored record of one teacher
    GET    /api/compensation/records         Page through stored records

  Locations:
    GET    /api/locations/{id}               Location and its rate table
    PUT    /api/locations/{id}               Create or replace a location
    PUT    /api/locations/{id}/rates         Replace only the rate table

QUERY PARAMETERS:
  start_time, end_time  RFC 3339; both or neither. Neither means the
                        circle containing now in the configured zone.
  teacher_id, limit, offset on /records.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid period or id
  - 404: Teacher, location or record not found
  - 422: Reference rate data that cannot produce an amount
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. Deploy behind the internal gateway.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/warp/compensation-engine/factory"
	"github.com/warp/compensation-engine/generic"
	"github.com/warp/compensation-engine/payroll"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       payroll.Store
	Batch       *payroll.Batch
	RateFactory *factory.RateFactory
	Zone        *time.Location
	Logger      *zap.Logger

	validate *validator.Validate
	now      func() time.Time
}

// NewHandler creates a handler. The batch's aggregator must write to store.
func NewHandler(store payroll.Store, batch *payroll.Batch, zone *time.Location, logger *zap.Logger) *Handler {
	if zone == nil {
		zone = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:       store,
		Batch:       batch,
		RateFactory: factory.NewRateFactory(),
		Zone:        zone,
		Logger:      logger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		now:         time.Now,
	}
}

// =============================================================================
// COMPENSATION HANDLERS
// =============================================================================

// Recompute computes and stores one record, overwriting any previous one.
// POST /api/compensation/recompute
func (h *Handler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req RecomputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	period := generic.Period{Start: req.StartTime, End: req.EndTime}
	rec, err := h.Batch.Aggregator.Compute(r.Context(), req.TeacherID, period)
	if err != nil {
		h.writeEngineError(w, "Failed to compute record", err)
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// TriggerRun runs the batch for the requested period or the current circle.
// POST /api/compensation/runs
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	var req RunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	period := generic.CircleFor(h.now(), h.Zone)
	if req.StartTime != nil {
		period = generic.Period{Start: *req.StartTime, End: *req.EndTime}
	}

	run, err := h.Batch.Run(r.Context(), period)
	if err != nil {
		h.writeEngineError(w, "Batch run failed", err)
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// ListRuns returns the most recent batch runs.
// GET /api/compensation/runs?limit=20
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	runs, err := h.Store.ListRuns(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []payroll.Run{}
	}

	writeJSON(w, http.StatusOK, RunListResponse{Runs: runs})
}

// GetTeacherRecord returns the stored record of one teacher for a period.
// GET /api/compensation/teachers/{id}?start_time=...&end_time=...
func (h *Handler) GetTeacherRecord(w http.ResponseWriter, r *http.Request) {
	teacherID := chi.URLParam(r, "id")

	period, err := h.queryPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	rec, err := h.Store.GetRecord(r.Context(), teacherID, period.UTC())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get record", err)
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "Record not found",
			fmt.Errorf("no record for teacher %s in %s", teacherID, period))
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// ListRecords pages through stored records.
// GET /api/compensation/records?start_time=...&end_time=...&teacher_id=...&limit=50&offset=0
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	filter := payroll.RecordFilter{TeacherID: r.URL.Query().Get("teacher_id")}

	if r.URL.Query().Get("start_time") != "" || r.URL.Query().Get("end_time") != "" {
		period, err := h.queryPeriod(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid period", err)
			return
		}
		utc := period.UTC()
		filter.Period = &utc
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", defaultPageSize); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid offset", err)
		return
	}

	records, err := h.Store.ListRecords(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list records", err)
		return
	}
	if records == nil {
		records = []payroll.Record{}
	}

	writeJSON(w, http.StatusOK, RecordListResponse{Records: records, Limit: filter.Limit, Offset: filter.Offset})
}

// =============================================================================
// LOCATION HANDLERS
// =============================================================================

// GetLocation returns a location and its rate table.
// GET /api/locations/{id}
func (h *Handler) GetLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	loc, err := h.Store.GetLocation(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get location", err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "Location not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, h.RateFactory.ToJSON(*loc))
}

// PutLocation creates or replaces a location from its JSON definition.
// PUT /api/locations/{id}
func (h *Handler) PutLocation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	loc, err := h.RateFactory.ParseLocation(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid location", err)
		return
	}
	if loc.ID != id {
		writeError(w, http.StatusBadRequest, "Location id does not match path",
			fmt.Errorf("%w: %q != %q", generic.ErrInvalidID, loc.ID, id))
		return
	}

	if err := h.Store.SaveLocation(r.Context(), *loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save location", err)
		return
	}
	h.Logger.Info("location saved", zap.String("location_id", id))

	writeJSON(w, http.StatusOK, h.RateFactory.ToJSON(*loc))
}

// PutRates replaces the rate table of an existing location. Records already
// computed are not touched; recompute to apply the new rates.
// PUT /api/locations/{id}/rates
func (h *Handler) PutRates(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ctx := r.Context()

	loc, err := h.Store.GetLocation(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get location", err)
		return
	}
	if loc == nil {
		writeError(w, http.StatusNotFound, "Location not found", nil)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}
	rates, err := h.RateFactory.ParseRateTable(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rate table", err)
		return
	}

	loc.Rates = rates
	if err := h.Store.SaveLocation(ctx, *loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save location", err)
		return
	}
	h.Logger.Info("rates updated", zap.String("location_id", id))

	writeJSON(w, http.StatusOK, h.RateFactory.ToJSON(*loc))
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps engine errors to HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case generic.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case generic.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, generic.ErrInvalidRate):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// queryPeriod reads start_time/end_time, defaulting to the current circle.
func (h *Handler) queryPeriod(r *http.Request) (generic.Period, error) {
	start := r.URL.Query().Get("start_time")
	end := r.URL.Query().Get("end_time")
	if start == "" && end == "" {
		return generic.CircleFor(h.now(), h.Zone), nil
	}
	if start == "" || end == "" {
		return generic.Period{}, fmt.Errorf("%w: start_time and end_time go together", generic.ErrInvalidPeriod)
	}

	s, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return generic.Period{}, fmt.Errorf("start_time: %w", err)
	}
	e, err := time.Parse(time.RFC3339, end)
	if err != nil {
		return generic.Period{}, fmt.Errorf("end_time: %w", err)
	}
	return generic.NewPeriod(s, e)
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return n, nil
}
