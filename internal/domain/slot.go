package domain

import "time"

// Slot is a visit window for a destination on a specific date. BookedCount
// never exceeds Capacity; reservations adjust it atomically in the database.
type Slot struct {
	ID            string    `json:"id"`
	DestinationID string    `json:"destination_id"`
	SlotDate      time.Time `json:"slot_date"`
	StartTime     string    `json:"start_time,omitempty"`
	EndTime       string    `json:"end_time,omitempty"`
	Capacity      int       `json:"capacity"`
	BookedCount   int       `json:"booked_count"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Available returns the number of tickets still reservable.
func (s *Slot) Available() int {
	remaining := s.Capacity - s.BookedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// HasCapacity reports whether the slot can hold n more tickets.
func (s *Slot) HasCapacity(n int) bool {
	return s.Available() >= n
}
