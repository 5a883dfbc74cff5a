package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fawwazmw/travelease-api/internal/domain"
	pkgkafka "github.com/fawwazmw/travelease-api/pkg/kafka"
)

// Kafka topic constants for the platform's domain events.
const (
	TopicBookingCreated       = "travelease.booking.created"
	TopicBookingStatusChanged = "travelease.booking.status_changed"
	TopicBookingCancelled     = "travelease.booking.cancelled"
	TopicBookingExpired       = "travelease.booking.expired"
	TopicReviewSubmitted      = "travelease.review.submitted"
	TopicReviewModerated      = "travelease.review.moderated"
	TopicReviewDeleted        = "travelease.review.deleted"
	TopicRatingUpdated        = "travelease.destination.rating_updated"
)

// Aggregate type constants.
const (
	AggregateTypeBooking     = "booking"
	AggregateTypeReview      = "review"
	AggregateTypeDestination = "destination"
)

// Source identifier for events originating from this API.
const SourceAPI = "travelease-api"

// BookingCreatedData is the payload for a booking.created event (full booking snapshot).
type BookingCreatedData struct {
	ID            string    `json:"id"`
	BookingCode   string    `json:"booking_code"`
	UserID        string    `json:"user_id"`
	DestinationID string    `json:"destination_id"`
	SlotID        *string   `json:"slot_id,omitempty"`
	VisitDate     time.Time `json:"visit_date"`
	NumTickets    int       `json:"num_tickets"`
	TotalPrice    int64     `json:"total_price"`
	Status        string    `json:"status"`
}

// BookingStatusChangedData is the payload for a booking.status_changed event.
type BookingStatusChangedData struct {
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	OldStatus   string `json:"old_status"`
	NewStatus   string `json:"new_status"`
}

// BookingCancelledData is the payload for a booking.cancelled event.
type BookingCancelledData struct {
	BookingID   string `json:"booking_id"`
	BookingCode string `json:"booking_code"`
	Reason      string `json:"reason,omitempty"`
}

// BookingsExpiredData is the payload for a booking.expired sweep event.
type BookingsExpiredData struct {
	Count  int       `json:"count"`
	Cutoff time.Time `json:"cutoff"`
}

// ReviewSubmittedData is the payload for a review.submitted event.
type ReviewSubmittedData struct {
	ReviewID      string `json:"review_id"`
	UserID        string `json:"user_id"`
	DestinationID string `json:"destination_id"`
	Rating        int    `json:"rating"`
}

// ReviewModeratedData is the payload for a review.moderated event.
type ReviewModeratedData struct {
	ReviewID      string `json:"review_id"`
	DestinationID string `json:"destination_id"`
	Status        string `json:"status"`
}

// ReviewDeletedData is the payload for a review.deleted event. Image paths
// are included so the external blob store can clean up.
type ReviewDeletedData struct {
	ReviewID      string   `json:"review_id"`
	DestinationID string   `json:"destination_id"`
	Images        []string `json:"images,omitempty"`
}

// RatingUpdatedData is the payload for a destination.rating_updated event.
type RatingUpdatedData struct {
	DestinationID string  `json:"destination_id"`
	AverageRating float64 `json:"average_rating"`
	TotalReviews  int     `json:"total_reviews"`
}

// Producer publishes domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishBookingCreated publishes a booking.created event with the full booking snapshot.
func (p *Producer) PublishBookingCreated(ctx context.Context, b *domain.Booking) error {
	data := BookingCreatedData{
		ID:            b.ID,
		BookingCode:   b.BookingCode,
		UserID:        b.UserID,
		DestinationID: b.DestinationID,
		SlotID:        b.SlotID,
		VisitDate:     b.VisitDate,
		NumTickets:    b.NumTickets,
		TotalPrice:    b.TotalPrice,
		Status:        b.Status,
	}

	event, err := pkgkafka.NewEvent(TopicBookingCreated, b.ID, AggregateTypeBooking, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create booking.created event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicBookingCreated, event); err != nil {
		return fmt.Errorf("publish booking.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published booking.created event",
		slog.String("booking_id", b.ID),
		slog.String("booking_code", b.BookingCode),
	)

	return nil
}

// PublishBookingStatusChanged publishes a booking.status_changed event.
func (p *Producer) PublishBookingStatusChanged(ctx context.Context, b *domain.Booking, oldStatus, newStatus string) error {
	data := BookingStatusChangedData{
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
	}

	event, err := pkgkafka.NewEvent(TopicBookingStatusChanged, b.ID, AggregateTypeBooking, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create booking.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicBookingStatusChanged, event); err != nil {
		return fmt.Errorf("publish booking.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published booking.status_changed event",
		slog.String("booking_id", b.ID),
		slog.String("old_status", oldStatus),
		slog.String("new_status", newStatus),
	)

	return nil
}

// PublishBookingCancelled publishes a booking.cancelled event.
func (p *Producer) PublishBookingCancelled(ctx context.Context, b *domain.Booking, reason string) error {
	data := BookingCancelledData{
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		Reason:      reason,
	}

	event, err := pkgkafka.NewEvent(TopicBookingCancelled, b.ID, AggregateTypeBooking, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create booking.cancelled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicBookingCancelled, event); err != nil {
		return fmt.Errorf("publish booking.cancelled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published booking.cancelled event",
		slog.String("booking_id", b.ID),
		slog.String("reason", reason),
	)

	return nil
}

// PublishBookingsExpired publishes a booking.expired event after an expiry sweep.
func (p *Producer) PublishBookingsExpired(ctx context.Context, count int, cutoff time.Time) error {
	data := BookingsExpiredData{Count: count, Cutoff: cutoff}

	event, err := pkgkafka.NewEvent(TopicBookingExpired, "expiry-sweep", AggregateTypeBooking, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create booking.expired event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicBookingExpired, event); err != nil {
		return fmt.Errorf("publish booking.expired event: %w", err)
	}

	return nil
}

// PublishReviewSubmitted publishes a review.submitted event.
func (p *Producer) PublishReviewSubmitted(ctx context.Context, rv *domain.Review) error {
	data := ReviewSubmittedData{
		ReviewID:      rv.ID,
		UserID:        rv.UserID,
		DestinationID: rv.DestinationID,
		Rating:        rv.Rating,
	}

	event, err := pkgkafka.NewEvent(TopicReviewSubmitted, rv.ID, AggregateTypeReview, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create review.submitted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewSubmitted, event); err != nil {
		return fmt.Errorf("publish review.submitted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published review.submitted event",
		slog.String("review_id", rv.ID),
		slog.String("destination_id", rv.DestinationID),
	)

	return nil
}

// PublishReviewModerated publishes a review.moderated event.
func (p *Producer) PublishReviewModerated(ctx context.Context, rv *domain.Review) error {
	data := ReviewModeratedData{
		ReviewID:      rv.ID,
		DestinationID: rv.DestinationID,
		Status:        rv.Status,
	}

	event, err := pkgkafka.NewEvent(TopicReviewModerated, rv.ID, AggregateTypeReview, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create review.moderated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewModerated, event); err != nil {
		return fmt.Errorf("publish review.moderated event: %w", err)
	}

	return nil
}

// PublishReviewDeleted publishes a review.deleted event.
func (p *Producer) PublishReviewDeleted(ctx context.Context, rv *domain.Review) error {
	data := ReviewDeletedData{
		ReviewID:      rv.ID,
		DestinationID: rv.DestinationID,
		Images:        rv.Images,
	}

	event, err := pkgkafka.NewEvent(TopicReviewDeleted, rv.ID, AggregateTypeReview, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create review.deleted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicReviewDeleted, event); err != nil {
		return fmt.Errorf("publish review.deleted event: %w", err)
	}

	return nil
}

// PublishRatingUpdated publishes a destination.rating_updated event.
func (p *Producer) PublishRatingUpdated(ctx context.Context, destinationID string, averageRating float64, totalReviews int) error {
	data := RatingUpdatedData{
		DestinationID: destinationID,
		AverageRating: averageRating,
		TotalReviews:  totalReviews,
	}

	event, err := pkgkafka.NewEvent(TopicRatingUpdated, destinationID, AggregateTypeDestination, SourceAPI, data)
	if err != nil {
		return fmt.Errorf("create destination.rating_updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicRatingUpdated, event); err != nil {
		return fmt.Errorf("publish destination.rating_updated event: %w", err)
	}

	return nil
}
