package domain

import "time"

// Review status constants.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Review is a user's rating of a destination. A user may review a destination
// at most once, regardless of the review's moderation status. Only approved
// reviews count toward the destination's aggregate rating.
type Review struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	DestinationID string    `json:"destination_id"`
	BookingID     *string   `json:"booking_id,omitempty"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment,omitempty"`
	Status        string    `json:"status"`
	Images        []string  `json:"images"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ValidReviewStatuses returns all valid review statuses.
func ValidReviewStatuses() []string {
	return []string{ReviewStatusPending, ReviewStatusApproved, ReviewStatusRejected}
}

// IsValidReviewStatus checks if a status string is valid.
func IsValidReviewStatus(status string) bool {
	for _, s := range ValidReviewStatuses() {
		if s == status {
			return true
		}
	}
	return false
}
