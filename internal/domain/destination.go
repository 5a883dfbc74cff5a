package domain

import "time"

// Destination represents a bookable tourism destination. TicketPrice is in the
// smallest currency unit. AverageRating and TotalReviews are derived from
// approved reviews and are only written by the rating aggregator.
type Destination struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description,omitempty"`
	Address          string    `json:"address,omitempty"`
	Latitude         *float64  `json:"latitude,omitempty"`
	Longitude        *float64  `json:"longitude,omitempty"`
	CategoryID       *string   `json:"category_id,omitempty"`
	CreatedBy        string    `json:"created_by,omitempty"`
	TicketPrice      int64     `json:"ticket_price"`
	OperationalHours string    `json:"operational_hours,omitempty"`
	ContactPhone     string    `json:"contact_phone,omitempty"`
	ContactEmail     string    `json:"contact_email,omitempty"`
	AverageRating    float64   `json:"average_rating"`
	TotalReviews     int       `json:"total_reviews"`
	Images           []string  `json:"images"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DestinationSortColumns returns the whitelisted sort columns for listing.
func DestinationSortColumns() map[string]string {
	return map[string]string{
		"name":           "name",
		"ticket_price":   "ticket_price",
		"average_rating": "average_rating",
		"created_at":     "created_at",
	}
}
