package domain

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"time"
)

// Booking status constants.
const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusCompleted = "completed"
	BookingStatusExpired   = "expired"
)

// BookingCodePrefix prefixes every human-facing booking reference.
const BookingCodePrefix = "TRV-"

const bookingCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const bookingCodeLength = 8

// Booking represents a reservation of tickets for a destination visit.
// TotalPrice is always computed server-side from the destination's ticket
// price; client-supplied amounts are never trusted.
type Booking struct {
	ID               string          `json:"id"`
	BookingCode      string          `json:"booking_code"`
	UserID           string          `json:"user_id"`
	DestinationID    string          `json:"destination_id"`
	SlotID           *string         `json:"slot_id,omitempty"`
	VisitDate        time.Time       `json:"visit_date"`
	NumTickets       int             `json:"num_tickets"`
	TotalPrice       int64           `json:"total_price"`
	Status           string          `json:"status"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	PaymentDetails   json.RawMessage `json:"payment_details,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ValidBookingStatuses returns all valid booking statuses.
func ValidBookingStatuses() []string {
	return []string{
		BookingStatusPending,
		BookingStatusConfirmed,
		BookingStatusCancelled,
		BookingStatusCompleted,
		BookingStatusExpired,
	}
}

// IsValidBookingStatus checks if a status string is valid.
func IsValidBookingStatus(status string) bool {
	for _, s := range ValidBookingStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

// BookingTransitions defines which status transitions are valid.
// cancelled, completed, and expired are terminal.
func BookingTransitions() map[string][]string {
	return map[string][]string{
		BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusExpired},
		BookingStatusConfirmed: {BookingStatusCancelled, BookingStatusCompleted},
		BookingStatusCancelled: {},
		BookingStatusCompleted: {},
		BookingStatusExpired:   {},
	}
}

// CanTransitionTo checks if the booking can transition to the target status.
func (b *Booking) CanTransitionTo(target string) bool {
	allowed, ok := BookingTransitions()[b.Status]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == target {
			return true
		}
	}
	return false
}

// HoldsCapacity reports whether the booking currently holds slot capacity.
// Capacity is reserved at creation and released on any exit from these states.
func (b *Booking) HoldsCapacity() bool {
	return b.Status == BookingStatusPending || b.Status == BookingStatusConfirmed
}

// IsTerminal reports whether the booking is in a terminal status.
func (b *Booking) IsTerminal() bool {
	return len(BookingTransitions()[b.Status]) == 0 && IsValidBookingStatus(b.Status)
}

// GenerateBookingCode produces a booking reference of the form TRV-XXXXXXXX
// with 8 uppercase alphanumerics. Uniqueness is enforced by the database;
// callers regenerate on collision.
func GenerateBookingCode() (string, error) {
	// Reject bytes at or above the largest multiple of the charset size so
	// every character is drawn with equal probability.
	const limit = byte(256 - 256%len(bookingCodeCharset))

	code := make([]byte, 0, bookingCodeLength)
	buf := make([]byte, bookingCodeLength)
	for len(code) < bookingCodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("generate booking code: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, bookingCodeCharset[int(b)%len(bookingCodeCharset)])
			if len(code) == bookingCodeLength {
				break
			}
		}
	}
	return BookingCodePrefix + string(code), nil
}
