package models

import (
	"fmt"
	"time"
)

type Booking struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	GardenID        string    `json:"garden_id"`
	GardenName      string    `json:"garden_name,omitempty"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	DurationMonths  int       `json:"duration_months"`
	TotalPriceCents int64     `json:"total_price_cents"`
	Status          string    `json:"status"` // pending, confirmed, cancelled
	PaymentMethod   string    `json:"payment_method"`
	CardLast4       string    `json:"card_last4,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// IsActive reports whether the booking still holds a plot.
func (b *Booking) IsActive() bool {
	return b.Status != StatusCancelled
}

// ActiveSlot is the uniqueness key held by a non-cancelled booking.
func ActiveSlot(userID, gardenID string) string {
	return userID + ":" + gardenID
}

// PaymentInfo is the simulated card data submitted with a reservation.
// It is only format-checked and never stored beyond the last four digits.
type PaymentInfo struct {
	CardNumber  string `json:"card_number"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CVV         string `json:"cvv"`
}

// FormatCents renders an amount of cents as "12.50".
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}
