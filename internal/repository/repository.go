package repository

import (
	"context"
	"time"

	"github.com/fawwazmw/travelease-api/internal/domain"
)

// DestinationFilter defines filter criteria for listing destinations.
type DestinationFilter struct {
	CategorySlug    *string
	Search          *string
	SortBy          string
	SortOrder       string
	IncludeInactive bool
	Page            int
	PerPage         int
}

// SlotFilter defines filter criteria for listing slots of a destination.
type SlotFilter struct {
	DestinationID string
	From          time.Time
	To            time.Time
	OnlyAvailable bool
	IncludeInactive bool
}

// BookingFilter defines filter criteria for listing bookings.
type BookingFilter struct {
	UserID  *string
	Status  *string
	Page    int
	PerPage int
}

// CategoryRepository defines persistence operations for categories.
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Category, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Category, error)
	Update(ctx context.Context, c *domain.Category) error
	Delete(ctx context.Context, id string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// DestinationRepository defines persistence operations for destinations.
type DestinationRepository interface {
	Create(ctx context.Context, d *domain.Destination) error
	GetByID(ctx context.Context, id string) (*domain.Destination, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Destination, error)
	List(ctx context.Context, filter DestinationFilter) ([]domain.Destination, int, error)
	Update(ctx context.Context, d *domain.Destination) error

	// Delete removes the destination row. It fails when bookings still
	// reference it; callers fall back to Deactivate.
	Delete(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	HasBookings(ctx context.Context, id string) (bool, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// SlotRepository defines persistence operations for visit slots. Capacity
// reservation and release happen inside booking transactions and live on
// BookingRepository.
type SlotRepository interface {
	Create(ctx context.Context, s *domain.Slot) error
	GetByID(ctx context.Context, id string) (*domain.Slot, error)
	List(ctx context.Context, filter SlotFilter) ([]domain.Slot, error)
	Update(ctx context.Context, s *domain.Slot) error
	Deactivate(ctx context.Context, id string) error
}

// BookingRepository defines persistence operations for bookings. Create and
// the status-change methods run the slot capacity adjustment in the same
// transaction as the booking write so counts can never drift.
type BookingRepository interface {
	// Create inserts the booking, atomically reserving slot capacity with a
	// conditional UPDATE when a slot is attached. Returns ErrAlreadyExists
	// when the booking code collides, ErrCapacityExceeded when the slot
	// cannot hold the requested tickets, and ErrInvalidInput when the slot
	// does not match the destination or visit date.
	Create(ctx context.Context, b *domain.Booking) error

	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, int, error)

	// UpdateStatus changes the booking status. When releaseSlot is true and
	// the booking holds a slot, booked_count is decremented in the same
	// transaction (floored at zero).
	UpdateStatus(ctx context.Context, b *domain.Booking, newStatus string, releaseSlot bool) error

	// SetPayment records payment details on a booking.
	SetPayment(ctx context.Context, id, method, reference string, details []byte) error

	// ExpirePending transitions pending bookings created before the cutoff
	// to expired, releasing any held slot capacity. Returns the number of
	// bookings expired.
	ExpirePending(ctx context.Context, cutoff time.Time) (int, error)
}

// ReviewRepository defines persistence operations for reviews and the
// destination rating aggregate they drive.
type ReviewRepository interface {
	// Create inserts a review. Returns ErrAlreadyExists when the user has
	// already reviewed the destination.
	Create(ctx context.Context, rv *domain.Review) error

	GetByID(ctx context.Context, id string) (*domain.Review, error)
	ExistsForUserAndDestination(ctx context.Context, userID, destinationID string) (bool, error)
	ListApprovedByDestination(ctx context.Context, destinationID string, page, perPage int) ([]domain.Review, int, error)

	// SetStatus updates the review status and recomputes the destination's
	// average_rating and total_reviews from approved reviews in the same
	// transaction.
	SetStatus(ctx context.Context, id, status string) (*domain.Review, error)

	// Delete removes the review and recomputes the destination aggregate in
	// the same transaction.
	Delete(ctx context.Context, id string) error
}
