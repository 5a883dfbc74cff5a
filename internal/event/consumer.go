package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/fawwazmw/travelease-api/pkg/errors"
	pkgkafka "github.com/fawwazmw/travelease-api/pkg/kafka"
)

// Kafka topics consumed by the booking workflow.
const (
	TopicPaymentCompleted = "travelease.payment.completed"
	TopicPaymentFailed    = "travelease.payment.failed"
)

// BookingService defines the interface required by the event consumer.
type BookingService interface {
	ConfirmBookingPayment(ctx context.Context, bookingID, method, reference string, details json.RawMessage) error
	CancelBooking(ctx context.Context, bookingID, userID, role, reason string) error
}

// PaymentCompletedData is the expected payload of a payment.completed event.
type PaymentCompletedData struct {
	BookingID string          `json:"booking_id"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// PaymentFailedData is the expected payload of a payment.failed event.
type PaymentFailedData struct {
	BookingID string `json:"booking_id"`
	Reason    string `json:"reason"`
}

// Consumer processes incoming payment events for the booking workflow.
type Consumer struct {
	logger  *slog.Logger
	service BookingService
}

// NewConsumer creates a new payment event consumer.
func NewConsumer(service BookingService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandlePaymentCompleted processes payment.completed events by confirming the booking.
func (c *Consumer) HandlePaymentCompleted(ctx context.Context, event *pkgkafka.Event) error {
	var data PaymentCompletedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal payment.completed data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing payment.completed event",
		slog.String("booking_id", data.BookingID),
		slog.String("reference", data.Reference),
	)

	if err := c.service.ConfirmBookingPayment(ctx, data.BookingID, data.Method, data.Reference, data.Details); err != nil {
		return fmt.Errorf("confirm booking %s after payment: %w", data.BookingID, err)
	}

	c.logger.InfoContext(ctx, "booking confirmed after payment",
		slog.String("booking_id", data.BookingID),
	)

	return nil
}

// HandlePaymentFailed processes payment.failed events by cancelling the booking
// so its held capacity returns to the pool. A booking already in a terminal
// state is skipped so redelivered events stay idempotent.
func (c *Consumer) HandlePaymentFailed(ctx context.Context, event *pkgkafka.Event) error {
	var data PaymentFailedData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal payment.failed data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing payment.failed event",
		slog.String("booking_id", data.BookingID),
		slog.String("reason", data.Reason),
	)

	if err := c.service.CancelBooking(ctx, data.BookingID, "", "system", data.Reason); err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			c.logger.InfoContext(ctx, "booking already settled, skipping cancel",
				slog.String("booking_id", data.BookingID),
			)
			return nil
		}
		return fmt.Errorf("cancel booking %s after failed payment: %w", data.BookingID, err)
	}

	return nil
}
