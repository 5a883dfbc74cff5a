package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fawwazmw/travelease-api/internal/repository"
	"github.com/fawwazmw/travelease-api/internal/service"
	"github.com/fawwazmw/travelease-api/pkg/httputil"
	"github.com/fawwazmw/travelease-api/pkg/middleware"
	"github.com/fawwazmw/travelease-api/pkg/pagination"
	"github.com/fawwazmw/travelease-api/pkg/validator"
)

// BookingHandler handles HTTP requests for booking endpoints.
type BookingHandler struct {
	service *service.BookingService
	logger  *slog.Logger
}

// NewBookingHandler creates a new booking HTTP handler.
func NewBookingHandler(svc *service.BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateBookingRequest is the JSON request body for creating a booking. The
// total price is computed server-side from the destination's ticket price.
type CreateBookingRequest struct {
	DestinationID string  `json:"destination_id" validate:"required,uuid"`
	SlotID        *string `json:"slot_id" validate:"omitempty,uuid"`
	VisitDate     string  `json:"visit_date" validate:"required,datetime=2006-01-02"`
	NumTickets    int     `json:"num_tickets" validate:"required,gte=1,lte=50"`
}

// CancelBookingRequest is the JSON request body for cancelling a booking.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// UpdateBookingStatusRequest is the JSON request body for the admin status
// transition endpoint.
type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled"`
}

// --- Handlers ---

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateBookingRequest
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

	visitDate, _ := time.Parse("2006-01-02", req.VisitDate)

	booking, err := h.service.CreateBooking(r.Context(), middleware.UserIDFromContext(r.Context()), service.CreateBookingInput{
		DestinationID: req.DestinationID,
		SlotID:        req.SlotID,
		VisitDate:     visitDate,
		NumTickets:    req.NumTickets,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: booking})
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	filter := repository.BookingFilter{
		Page:    params.Page,
		PerPage: params.PerPage,
	}

	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	// Only honored for admins; the service pins regular users to their own
	// bookings.
	if v := q.Get("user_id"); v != "" {
		filter.UserID = &v
	}

	requesterID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())

	bookings, total, err := h.service.ListBookings(r.Context(), requesterID, role, filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(bookings, total, params.Page, params.PerPage))
}

// GetBooking handles GET /api/v1/bookings/{id}
func (h *BookingHandler) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	requesterID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())

	booking, err := h.service.GetBooking(r.Context(), id.String(), requesterID, role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: booking})
}

// GetBookingByCode handles GET /api/v1/bookings/code/{code}
func (h *BookingHandler) GetBookingByCode(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())

	booking, err := h.service.GetBookingByCode(r.Context(), chi.URLParam(r, "code"), requesterID, role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: booking})
}

// CancelBooking handles POST /api/v1/bookings/{id}/cancel
func (h *BookingHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Allow empty body for cancel; default reason is empty.
		req = CancelBookingRequest{}
	}

	requesterID := middleware.UserIDFromContext(r.Context())
	role := middleware.RoleFromContext(r.Context())

	if err := h.service.CancelBooking(r.Context(), id.String(), requesterID, role, req.Reason); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	booking, err := h.service.GetBooking(r.Context(), id.String(), requesterID, role)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: booking})
}

// UpdateBookingStatus handles PUT /api/v1/bookings/{id}/status
func (h *BookingHandler) UpdateBookingStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateBookingStatusRequest
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

	booking, err := h.service.UpdateBookingStatus(r.Context(), id.String(), req.Status)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: booking})
}
