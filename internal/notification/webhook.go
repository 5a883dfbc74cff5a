package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fawwazmw/travelease-api/internal/domain"
	"github.com/fawwazmw/travelease-api/pkg/httpclient"
)

// bookingStatusPayload is the webhook body sent on booking status changes.
type bookingStatusPayload struct {
	BookingID   string    `json:"booking_id"`
	BookingCode string    `json:"booking_code"`
	UserID      string    `json:"user_id"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	VisitDate   time.Time `json:"visit_date"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// WebhookNotifier posts booking status changes to an external notification
// endpoint. Delivery is best-effort behind a circuit breaker; a broken
// notification channel must never fail a booking operation.
type WebhookNotifier struct {
	client *httpclient.CircuitBreakerClient
	url    string
	logger *slog.Logger
}

// NewWebhookNotifier creates a notifier for the given webhook URL.
func NewWebhookNotifier(url string, timeout time.Duration, logger *slog.Logger) *WebhookNotifier {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout

	client := httpclient.NewCircuitBreakerClient(
		httpclient.New(cfg),
		httpclient.DefaultCircuitBreakerConfig("booking-webhook"),
		logger,
	)

	return &WebhookNotifier{
		client: client,
		url:    url,
		logger: logger,
	}
}

// NotifyBookingStatus delivers a status-change notification. Failures are
// logged and swallowed.
func (n *WebhookNotifier) NotifyBookingStatus(ctx context.Context, b *domain.Booking, oldStatus string) {
	payload := bookingStatusPayload{
		BookingID:   b.ID,
		BookingCode: b.BookingCode,
		UserID:      b.UserID,
		OldStatus:   oldStatus,
		NewStatus:   b.Status,
		VisitDate:   b.VisitDate,
		OccurredAt:  time.Now().UTC(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to marshal booking notification",
			slog.String("booking_id", b.ID),
			slog.String("error", err.Error()),
		)
		return
	}

	resp, err := n.client.Post(ctx, n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		n.logger.WarnContext(ctx, "booking notification delivery failed",
			slog.String("booking_id", b.ID),
			slog.String("error", err.Error()),
		)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		n.logger.WarnContext(ctx, "booking notification rejected",
			slog.String("booking_id", b.ID),
			slog.Int("status", resp.StatusCode),
		)
		return
	}

	n.logger.DebugContext(ctx, "booking notification delivered",
		slog.String("booking_id", b.ID),
		slog.String("new_status", b.Status),
	)
}
