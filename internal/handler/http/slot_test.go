package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/repository"
)

// sampleSlot returns a realistic slot for test expectations.
func sampleSlot() *domain.Slot {
	now := time.Now().UTC()
	return &domain.Slot{
		ID:            "550e8400-e29b-41d4-a716-446655440200",
		DestinationID: "550e8400-e29b-41d4-a716-446655440001",
		SlotDate:      now.AddDate(0, 0, 1),
		StartTime:     "08:00",
		EndTime:       "12:00",
		Capacity:      100,
		BookedCount:   40,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// ============================================================================
// GET /api/v1/destinations/{slug}/slots
// ============================================================================

func TestListDestinationSlots_PublicDefaultsToAvailableOnly(t *testing.T) {
	router, repos := newTestRouter(t)

	repos.destinations.On("GetBySlug", mock.Anything, "pantai-kuta").Return(sampleDestination(), nil)
	repos.slots.On("List", mock.Anything, mock.MatchedBy(func(f repository.SlotFilter) bool {
		return f.OnlyAvailable && !f.IncludeInactive
	})).Return([]domain.Slot{*sampleSlot()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/destinations/pantai-kuta/slots", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repos.slots.AssertExpectations(t)
}

func TestListDestinationSlots_PublicCannotDisableAvailabilityFilter(t *testing.T) {
	router, repos := newTestRouter(t)

	repos.destinations.On("GetBySlug", mock.Anything, "pantai-kuta").Return(sampleDestination(), nil)
	repos.slots.On("List", mock.Anything, mock.MatchedBy(func(f repository.SlotFilter) bool {
		return f.OnlyAvailable
	})).Return([]domain.Slot{*sampleSlot()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/destinations/pantai-kuta/slots?only_available=false", nil)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repos.slots.AssertExpectations(t)
}

func TestListDestinationSlots_AdminOptOutSeesSoldOut(t *testing.T) {
	router, repos := newTestRouter(t)

	repos.destinations.On("GetBySlug", mock.Anything, "pantai-kuta").Return(sampleDestination(), nil)
	repos.slots.On("List", mock.Anything, mock.MatchedBy(func(f repository.SlotFilter) bool {
		return !f.OnlyAvailable && f.IncludeInactive
	})).Return([]domain.Slot{*sampleSlot()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/destinations/pantai-kuta/slots?only_available=false", nil)
	authorize(t, req, "admin-001", "admin")
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	repos.slots.AssertExpectations(t)
}
