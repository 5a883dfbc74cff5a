package service

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/internal/repository"
	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
)

// defaultSlotWindowDays is the lookahead when a listing gives no date range.
const defaultSlotWindowDays = 6

var timeOfDayRegexp = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// SlotService implements the business logic for visit slots.
type SlotService struct {
	slots        repository.SlotRepository
	destinations repository.DestinationRepository
	logger       *slog.Logger
}

// NewSlotService creates a new slot service.
func NewSlotService(
	slots repository.SlotRepository,
	destinations repository.DestinationRepository,
	logger *slog.Logger,
) *SlotService {
	return &SlotService{
		slots:        slots,
		destinations: destinations,
		logger:       logger,
	}
}

// CreateSlotInput holds the parameters for creating a slot.
type CreateSlotInput struct {
	SlotDate  time.Time `json:"slot_date" validate:"required"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Capacity  int       `json:"capacity" validate:"gte=0"`
}

// CreateSlot creates a visit slot for a destination.
func (s *SlotService) CreateSlot(ctx context.Context, destinationID string, input CreateSlotInput) (*domain.Slot, error) {
	if err := validateSlotTimes(input.StartTime, input.EndTime); err != nil {
		return nil, err
	}
	if input.Capacity < 0 {
		return nil, apperrors.InvalidInput("capacity must not be negative")
	}

	if _, err := s.destinations.GetByID(ctx, destinationID); err != nil {
		return nil, fmt.Errorf("resolve destination: %w", err)
	}

	now := nowUTC()
	slot := &domain.Slot{
		ID:            uuid.New().String(),
		DestinationID: destinationID,
		SlotDate:      dateOnly(input.SlotDate),
		StartTime:     input.StartTime,
		EndTime:       input.EndTime,
		Capacity:      input.Capacity,
		BookedCount:   0,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.slots.Create(ctx, slot); err != nil {
		return nil, fmt.Errorf("create slot: %w", err)
	}

	s.logger.InfoContext(ctx, "slot created",
		slog.String("slot_id", slot.ID),
		slog.String("destination_id", destinationID),
		slog.String("slot_date", slot.SlotDate.Format("2006-01-02")),
		slog.Int("capacity", slot.Capacity),
	)

	return slot, nil
}

// ListSlotsInput narrows the slot listing window.
type ListSlotsInput struct {
	From            time.Time
	To              time.Time
	OnlyAvailable   bool
	IncludeInactive bool
}

// ListSlots returns a destination's slots inside the date window. A zero
// window defaults to today through today plus six days.
func (s *SlotService) ListSlots(ctx context.Context, destinationID string, input ListSlotsInput) ([]domain.Slot, error) {
	from := input.From
	to := input.To

	if from.IsZero() {
		from = dateOnly(nowUTC())
	} else {
		from = dateOnly(from)
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, defaultSlotWindowDays)
	} else {
		to = dateOnly(to)
	}

	if to.Before(from) {
		return nil, apperrors.InvalidInput("end_date must not be before start_date")
	}

	filter := repository.SlotFilter{
		DestinationID:   destinationID,
		From:            from,
		To:              to,
		OnlyAvailable:   input.OnlyAvailable,
		IncludeInactive: input.IncludeInactive,
	}

	slots, err := s.slots.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}

	return slots, nil
}

// UpdateSlotInput holds the updatable slot fields. booked_count is owned by
// the booking workflow and cannot be set here.
type UpdateSlotInput struct {
	SlotDate  *time.Time `json:"slot_date"`
	StartTime *string    `json:"start_time"`
	EndTime   *string    `json:"end_time"`
	Capacity  *int       `json:"capacity" validate:"omitempty,gte=0"`
	IsActive  *bool      `json:"is_active"`
}

// UpdateSlot applies a partial update. Capacity may not drop below the
// already booked count.
func (s *SlotService) UpdateSlot(ctx context.Context, id string, input UpdateSlotInput) (*domain.Slot, error) {
	slot, err := s.slots.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get slot for update: %w", err)
	}

	if input.SlotDate != nil {
		slot.SlotDate = dateOnly(*input.SlotDate)
	}
	if input.StartTime != nil {
		slot.StartTime = *input.StartTime
	}
	if input.EndTime != nil {
		slot.EndTime = *input.EndTime
	}
	if err := validateSlotTimes(slot.StartTime, slot.EndTime); err != nil {
		return nil, err
	}
	if input.Capacity != nil {
		if *input.Capacity < slot.BookedCount {
			return nil, apperrors.InvalidInput(fmt.Sprintf(
				"capacity %d is below the %d tickets already booked", *input.Capacity, slot.BookedCount))
		}
		slot.Capacity = *input.Capacity
	}
	if input.IsActive != nil {
		slot.IsActive = *input.IsActive
	}

	if err := s.slots.Update(ctx, slot); err != nil {
		return nil, fmt.Errorf("update slot: %w", err)
	}

	s.logger.InfoContext(ctx, "slot updated", slog.String("slot_id", id))

	return slot, nil
}

// DeactivateSlot stops a slot from accepting bookings. Existing bookings are
// untouched.
func (s *SlotService) DeactivateSlot(ctx context.Context, id string) error {
	if err := s.slots.Deactivate(ctx, id); err != nil {
		return fmt.Errorf("deactivate slot: %w", err)
	}

	s.logger.InfoContext(ctx, "slot deactivated", slog.String("slot_id", id))
	return nil
}

func validateSlotTimes(start, end string) error {
	if start != "" && !timeOfDayRegexp.MatchString(start) {
		return apperrors.InvalidInput("start_time must be in HH:MM format")
	}
	if end != "" && !timeOfDayRegexp.MatchString(end) {
		return apperrors.InvalidInput("end_time must be in HH:MM format")
	}
	if start != "" && end != "" && end <= start {
		return apperrors.InvalidInput("end_time must be after start_time")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
