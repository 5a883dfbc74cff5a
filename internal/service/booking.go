package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/event"
	"github.com/fawwazmw/travelease-api/internal/repository"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
)

// maxCodeAttempts bounds booking code regeneration on unique collisions.
const maxCodeAttempts = 5

// RoleAdmin is the role claim that grants cross-user access.
const RoleAdmin = "admin"

// Notifier delivers booking status notifications to an external webhook.
// Implementations must not block the request path on delivery failures.
type Notifier interface {
	NotifyBookingStatus(ctx context.Context, b *domain.Booking, oldStatus string)
}

// BookingService implements the booking workflow.
type BookingService struct {
	bookings     repository.BookingRepository
	destinations repository.DestinationRepository
	producer     *event.Producer
	notifier     Notifier
	logger       *slog.Logger
}

// NewBookingService creates a new booking service. notifier may be nil.
func NewBookingService(
	bookings repository.BookingRepository,
	destinations repository.DestinationRepository,
	producer *event.Producer,
	notifier Notifier,
	logger *slog.Logger,
) *BookingService {
	return &BookingService{
		bookings:     bookings,
		destinations: destinations,
		producer:     producer,
		notifier:     notifier,
		logger:       logger,
	}
}

// CreateBookingInput holds the parameters for creating a booking. Price is
// never accepted from the client; it is computed from the destination's
// ticket price.
type CreateBookingInput struct {
	DestinationID string    `json:"destination_id" validate:"required,uuid"`
	SlotID        *string   `json:"slot_id" validate:"omitempty,uuid"`
	VisitDate     time.Time `json:"visit_date" validate:"required"`
	NumTickets    int       `json:"num_tickets" validate:"required,gte=1,lte=50"`
}

// CreateBooking creates a pending booking, atomically reserving slot capacity
// when a slot is chosen.
func (s *BookingService) CreateBooking(ctx context.Context, userID string, input CreateBookingInput) (*domain.Booking, error) {
	if userID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}
	if input.NumTickets < 1 {
		return nil, apperrors.InvalidInput("num_tickets must be at least 1")
	}

	dest, err := s.destinations.GetByID(ctx, input.DestinationID)
	if err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}
	if !dest.IsActive {
		return nil, apperrors.NotFound("destination", input.DestinationID)
	}

	now := nowUTC()
	booking := &domain.Booking{
		ID:            uuid.New().String(),
		UserID:        userID,
		DestinationID: input.DestinationID,
		SlotID:        input.SlotID,
		VisitDate:     dateOnly(input.VisitDate),
		NumTickets:    input.NumTickets,
		TotalPrice:    dest.TicketPrice * int64(input.NumTickets),
		Status:        domain.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	// Booking codes are random; retry the whole transaction on the rare
	// unique collision.
	for attempt := 1; ; attempt++ {
		code, err := domain.GenerateBookingCode()
		if err != nil {
			return nil, fmt.Errorf("generate booking code: %w", err)
		}
		booking.BookingCode = code

		err = s.bookings.Create(ctx, booking)
		if err == nil {
			break
		}
		if errors.Is(err, apperrors.ErrAlreadyExists) && attempt < maxCodeAttempts {
			s.logger.WarnContext(ctx, "booking code collision, regenerating",
				slog.String("booking_code", code),
				slog.Int("attempt", attempt),
			)
			continue
		}
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := s.producer.PublishBookingCreated(ctx, booking); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.created event",
			slog.String("booking_id", booking.ID),
			slog.String("error", err.Error()),
		)
		// Do not fail the operation if event publishing fails.
	}

	s.logger.InfoContext(ctx, "booking created",
		slog.String("booking_id", booking.ID),
		slog.String("booking_code", booking.BookingCode),
		slog.String("destination_id", booking.DestinationID),
		slog.Int("num_tickets", booking.NumTickets),
		slog.Int64("total_price", booking.TotalPrice),
	)

	return booking, nil
}

// GetBooking retrieves a booking, restricted to its owner or an admin.
func (s *BookingService) GetBooking(ctx context.Context, id, requesterID, role string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking by id: %w", err)
	}

	if booking.UserID != requesterID && role != RoleAdmin {
		return nil, apperrors.Forbidden("booking belongs to another user")
	}

	return booking, nil
}

// GetBookingByCode retrieves a booking by its code, restricted to its owner
// or an admin.
func (s *BookingService) GetBookingByCode(ctx context.Context, code, requesterID, role string) (*domain.Booking, error) {
	booking, err := s.bookings.GetByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("get booking by code: %w", err)
	}

	if booking.UserID != requesterID && role != RoleAdmin {
		return nil, apperrors.Forbidden("booking belongs to another user")
	}

	return booking, nil
}

// ListBookings returns a paginated booking list. Non-admin callers only ever
// see their own bookings.
func (s *BookingService) ListBookings(ctx context.Context, requesterID, role string, filter repository.BookingFilter) ([]domain.Booking, int, error) {
	if role != RoleAdmin {
		filter.UserID = &requesterID
	}

	if filter.Status != nil && !domain.IsValidBookingStatus(*filter.Status) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", *filter.Status))
	}

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	bookings, total, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	return bookings, total, nil
}

// CancelBooking cancels a booking, releasing held slot capacity. Only the
// owner, an admin, or the system (payment failure path) may cancel.
func (s *BookingService) CancelBooking(ctx context.Context, id, requesterID, role, reason string) error {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get booking for cancel: %w", err)
	}

	if role != RoleAdmin && role != "system" && booking.UserID != requesterID {
		return apperrors.Forbidden("booking belongs to another user")
	}

	if !booking.CanTransitionTo(domain.BookingStatusCancelled) {
		return apperrors.InvalidTransition(booking.Status, domain.BookingStatusCancelled)
	}

	oldStatus := booking.Status
	releaseSlot := booking.HoldsCapacity()

	if err := s.bookings.UpdateStatus(ctx, booking, domain.BookingStatusCancelled, releaseSlot); err != nil {
		return fmt.Errorf("cancel booking: %w", err)
	}
	booking.Status = domain.BookingStatusCancelled

	if err := s.producer.PublishBookingCancelled(ctx, booking, reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.cancelled event",
			slog.String("booking_id", id),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		s.notifier.NotifyBookingStatus(ctx, booking, oldStatus)
	}

	s.logger.InfoContext(ctx, "booking cancelled",
		slog.String("booking_id", id),
		slog.String("old_status", oldStatus),
		slog.String("reason", reason),
	)

	return nil
}

// UpdateBookingStatus transitions a booking to a new status (admin action).
// Slot capacity is released when the booking leaves a capacity-holding state
// for one that does not hold capacity.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, id, newStatus string) (*domain.Booking, error) {
	if !domain.IsValidBookingStatus(newStatus) {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid status %q", newStatus))
	}

	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get booking for status update: %w", err)
	}

	if !booking.CanTransitionTo(newStatus) {
		return nil, apperrors.InvalidTransition(booking.Status, newStatus)
	}

	oldStatus := booking.Status
	releaseSlot := booking.HoldsCapacity() && !holdsCapacity(newStatus)

	if err := s.bookings.UpdateStatus(ctx, booking, newStatus, releaseSlot); err != nil {
		return nil, fmt.Errorf("update booking status: %w", err)
	}
	booking.Status = newStatus

	if err := s.producer.PublishBookingStatusChanged(ctx, booking, oldStatus, newStatus); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.status_changed event",
			slog.String("booking_id", id),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		s.notifier.NotifyBookingStatus(ctx, booking, oldStatus)
	}

	s.logger.InfoContext(ctx, "booking status updated",
		slog.String("booking_id", id),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
	)

	return booking, nil
}

// ConfirmBookingPayment confirms a pending booking after a completed payment.
// Already confirmed bookings are treated as a no-op so redelivered payment
// events stay idempotent.
func (s *BookingService) ConfirmBookingPayment(ctx context.Context, bookingID, method, reference string, details json.RawMessage) error {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("get booking for payment confirm: %w", err)
	}

	if booking.Status == domain.BookingStatusConfirmed {
		s.logger.InfoContext(ctx, "booking already confirmed, skipping",
			slog.String("booking_id", bookingID),
		)
		return nil
	}

	if !booking.CanTransitionTo(domain.BookingStatusConfirmed) {
		return apperrors.InvalidTransition(booking.Status, domain.BookingStatusConfirmed)
	}

	if err := s.bookings.SetPayment(ctx, bookingID, method, reference, details); err != nil {
		return fmt.Errorf("record booking payment: %w", err)
	}

	oldStatus := booking.Status
	if err := s.bookings.UpdateStatus(ctx, booking, domain.BookingStatusConfirmed, false); err != nil {
		return fmt.Errorf("confirm booking: %w", err)
	}
	booking.Status = domain.BookingStatusConfirmed

	if err := s.producer.PublishBookingStatusChanged(ctx, booking, oldStatus, domain.BookingStatusConfirmed); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish booking.status_changed event",
			slog.String("booking_id", bookingID),
			slog.String("error", err.Error()),
		)
	}

	if s.notifier != nil {
		s.notifier.NotifyBookingStatus(ctx, booking, oldStatus)
	}

	s.logger.InfoContext(ctx, "booking confirmed after payment",
		slog.String("booking_id", bookingID),
		slog.String("payment_reference", reference),
	)

	return nil
}

// ExpireStaleBookings moves pending bookings older than ttl to expired and
// releases their held capacity. Returns the number of bookings expired.
func (s *BookingService) ExpireStaleBookings(ctx context.Context, ttl time.Duration) (int, error) {
	cutoff := nowUTC().Add(-ttl)

	count, err := s.bookings.ExpirePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire pending bookings: %w", err)
	}

	if count > 0 {
		if err := s.producer.PublishBookingsExpired(ctx, count, cutoff); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish booking.expired event",
				slog.String("error", err.Error()),
			)
		}

		s.logger.InfoContext(ctx, "expired stale bookings",
			slog.Int("count", count),
			slog.Time("cutoff", cutoff),
		)
	}

	return count, nil
}

func holdsCapacity(status string) bool {
	return status == domain.BookingStatusPending || status == domain.BookingStatusConfirmed
}
