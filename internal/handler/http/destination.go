package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fawwazmw/travelease-api/internal/repository"
	"github.com/fawwazmw/travelease-api/internal/service"
	"github.com/fawwazmw/travelease-api/pkg/httputil"
	"github.com/fawwazmw/travelease-api/pkg/middleware"
	"github.com/fawwazmw/travelease-api/pkg/pagination"
	"github.com/fawwazmw/travelease-api/pkg/validator"
)

// DestinationHandler handles HTTP requests for destination endpoints.
type DestinationHandler struct {
	service *service.CatalogService
	logger  *slog.Logger
}

// NewDestinationHandler creates a new destination HTTP handler.
func NewDestinationHandler(svc *service.CatalogService, logger *slog.Logger) *DestinationHandler {
	return &DestinationHandler{
		service: svc,
		logger:  logger,
	}
}

// --- Request DTOs ---

// CreateDestinationRequest is the JSON request body for creating a destination.
type CreateDestinationRequest struct {
	Name             string   `json:"name" validate:"required,min=2,max=200"`
	Description      string   `json:"description" validate:"max=5000"`
	Address          string   `json:"address" validate:"max=500"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CategoryID       *string  `json:"category_id" validate:"omitempty,uuid"`
	TicketPrice      int64    `json:"ticket_price" validate:"gte=0"`
	OperationalHours string   `json:"operational_hours" validate:"max=200"`
	ContactPhone     string   `json:"contact_phone" validate:"max=30"`
	ContactEmail     string   `json:"contact_email" validate:"omitempty,email"`
	Images           []string `json:"images" validate:"max=10"`
}

// UpdateDestinationRequest is the JSON request body for updating a destination.
type UpdateDestinationRequest struct {
	Name             *string  `json:"name" validate:"omitempty,min=2,max=200"`
	Description      *string  `json:"description" validate:"omitempty,max=5000"`
	Address          *string  `json:"address" validate:"omitempty,max=500"`
	Latitude         *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude        *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	CategoryID       *string  `json:"category_id" validate:"omitempty,uuid"`
	TicketPrice      *int64   `json:"ticket_price" validate:"omitempty,gte=0"`
	OperationalHours *string  `json:"operational_hours" validate:"omitempty,max=200"`
	ContactPhone     *string  `json:"contact_phone" validate:"omitempty,max=30"`
	ContactEmail     *string  `json:"contact_email" validate:"omitempty,email"`
	Images           []string `json:"images" validate:"omitempty,max=10"`
	IsActive         *bool    `json:"is_active"`
}

// --- Handlers ---

// ListDestinations handles GET /api/v1/destinations
func (h *DestinationHandler) ListDestinations(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	filter := repository.DestinationFilter{
		Page:            params.Page,
		PerPage:         params.PerPage,
		IncludeInactive: middleware.RoleFromContext(r.Context()) == service.RoleAdmin,
	}

	q := r.URL.Query()
	if v := q.Get("category_slug"); v != "" {
		filter.CategorySlug = &v
	}
	if v := q.Get("search"); v != "" {
		filter.Search = &v
	}
	filter.SortBy = q.Get("sort_by")
	filter.SortOrder = q.Get("sort_order")

	destinations, total, err := h.service.ListDestinations(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(destinations, total, params.Page, params.PerPage))
}

// GetDestination handles GET /api/v1/destinations/{slug}
func (h *DestinationHandler) GetDestination(w http.ResponseWriter, r *http.Request) {
	includeInactive := middleware.RoleFromContext(r.Context()) == service.RoleAdmin

	dest, err := h.service.GetDestinationBySlug(r.Context(), chi.URLParam(r, "slug"), includeInactive)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: dest})
}

// CreateDestination handles POST /api/v1/destinations
func (h *DestinationHandler) CreateDestination(w http.ResponseWriter, r *http.Request) {
	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req CreateDestinationRequest
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

	createdBy := middleware.UserIDFromContext(r.Context())

	dest, err := h.service.CreateDestination(r.Context(), createdBy, service.CreateDestinationInput{
		Name:             req.Name,
		Description:      req.Description,
		Address:          req.Address,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		CategoryID:       req.CategoryID,
		TicketPrice:      req.TicketPrice,
		OperationalHours: req.OperationalHours,
		ContactPhone:     req.ContactPhone,
		ContactEmail:     req.ContactEmail,
		Images:           req.Images,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: dest})
}

// UpdateDestination handles PUT /api/v1/destinations/{id}
func (h *DestinationHandler) UpdateDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	// Limit request body to 1MB to prevent DoS via large payloads.
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	var req UpdateDestinationRequest
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

	dest, err := h.service.UpdateDestination(r.Context(), id.String(), service.UpdateDestinationInput{
		Name:             req.Name,
		Description:      req.Description,
		Address:          req.Address,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		CategoryID:       req.CategoryID,
		TicketPrice:      req.TicketPrice,
		OperationalHours: req.OperationalHours,
		ContactPhone:     req.ContactPhone,
		ContactEmail:     req.ContactEmail,
		Images:           req.Images,
		IsActive:         req.IsActive,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: dest})
}

// DeleteDestination handles DELETE /api/v1/destinations/{id}
func (h *DestinationHandler) DeleteDestination(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteDestination(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
