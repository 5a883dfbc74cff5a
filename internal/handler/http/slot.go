package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fawwazmw/travelease-api/internal/service"
	"github.com/fawwazmw/travelease-api/pkg/httputil"
	"github.com/fawwazmw/travelease-api/pkg/middleware"
	"github.com/fawwazmw/travelease-api/pkg/validator"
)

// SlotHandler handles HTTP requests for visit slot endpoints. Public slot
// listing addresses destinations by slug; admin management uses IDs.
type SlotHandler struct {
	slots   *service.SlotService
	catalog *service.CatalogService
	logger  *slog.Logger
}

// NewSlotHandler creates a new slot HTTP handler.
func NewSlotHandler(slots *service.SlotService, catalog *service.CatalogService, logger *slog.Logger) *SlotHandler {
	return &SlotHandler{
		slots:   slots,
		catalog: catalog,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateSlotRequest is the JSON request body for creating a slot.
type CreateSlotRequest struct {
	SlotDate  string `json:"slot_date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Capacity  int    `json:"capacity" validate:"gte=0"`
}

// UpdateSlotRequest is the JSON request body for updating a slot.
type UpdateSlotRequest struct {
	SlotDate  *string `json:"slot_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Capacity  *int    `json:"capacity" validate:"omitempty,gte=0"`
	IsActive  *bool   `json:"is_active"`
}

// --- Handlers ---

// ListDestinationSlots handles GET /api/v1/destinations/{slug}/slots
func (h *SlotHandler) ListDestinationSlots(w http.ResponseWriter, r *http.Request) {
	includeInactive := middleware.RoleFromContext(r.Context()) == service.RoleAdmin

	dest, err := h.catalog.GetDestinationBySlug(r.Context(), chi.URLParam(r, "slug"), includeInactive)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	q := r.URL.Query()

	// The public listing only ever shows slots with remaining capacity.
	// Admins may pass only_available=false to inspect sold-out slots.
	input := service.ListSlotsInput{
		OnlyAvailable:   true,
		IncludeInactive: includeInactive,
	}
	if includeInactive && q.Get("only_available") == "false" {
		input.OnlyAvailable = false
	}
	if v := q.Get("date"); v != "" {
		// A single date narrows the window to that day.
		day, ok := parseDateParam(w, "date", v)
		if !ok {
			return
		}
		input.From = day
		input.To = day
	} else {
		if v := q.Get("start_date"); v != "" {
			from, ok := parseDateParam(w, "start_date", v)
			if !ok {
				return
			}
			input.From = from
		}
		if v := q.Get("end_date"); v != "" {
			to, ok := parseDateParam(w, "end_date", v)
			if !ok {
				return
			}
			input.To = to
		}
	}

	slots, err := h.slots.ListSlots(r.Context(), dest.ID, input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: slots})
}

// CreateSlot handles POST /api/v1/destinations/{id}/slots
func (h *SlotHandler) CreateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	slotDate, _ := time.Parse("2006-01-02", req.SlotDate)

	slot, err := h.slots.CreateSlot(r.Context(), id.String(), service.CreateSlotInput{
		SlotDate:  slotDate,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: slot})
}

// UpdateSlot handles PUT /api/v1/slots/{id}
func (h *SlotHandler) UpdateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateSlotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return
	}

	if err := validator.Validate(req); err != nil {
		httputil.WriteValidationError(w, err)
		return
	}

	input := service.UpdateSlotInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
		IsActive:  req.IsActive,
	}
	if req.SlotDate != nil {
		slotDate, _ := time.Parse("2006-01-02", *req.SlotDate)
		input.SlotDate = &slotDate
	}

	slot, err := h.slots.UpdateSlot(r.Context(), id.String(), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: slot})
}

// DeactivateSlot handles DELETE /api/v1/slots/{id}
func (h *SlotHandler) DeactivateSlot(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.slots.DeactivateSlot(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// parseDateParam parses a YYYY-MM-DD query parameter, writing a 400 response
// on failure.
func parseDateParam(w http.ResponseWriter, name, value string) (time.Time, bool) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{
				Code:    "INVALID_PARAMETER",
				Message: name + " must be a date in YYYY-MM-DD format",
			},
		})
		return time.Time{}, false
	}
	return t, true
}
