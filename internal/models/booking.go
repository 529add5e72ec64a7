package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Booking struct {
	ID               int64           `json:"id"`
	ItemID           int64           `json:"item_id"`
	RenterID         int64           `json:"renter_id"`
	OwnerID          int64           `json:"owner_id"`
	StartDate        time.Time       `json:"start_date"`
	EndDate          time.Time       `json:"end_date"`
	DailyPrice       decimal.Decimal `json:"daily_price"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Status           BookingStatus   `json:"status"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	RenterConfirmed  bool            `json:"renter_confirmed"`
	OwnerConfirmed   bool            `json:"owner_confirmed"`
	ReturnedAt       *time.Time      `json:"returned_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int64           `json:"version"`
}

// Days returns the number of rented days in [StartDate, EndDate).
func (b *Booking) Days() int {
	return DaysBetween(b.StartDate, b.EndDate)
}

func (b *Booking) FullyConfirmed() bool {
	return b.RenterConfirmed && b.OwnerConfirmed
}

// StatusIn reports whether the booking is in one of the given statuses.
func (b *Booking) StatusIn(statuses ...BookingStatus) bool {
	for _, s := range statuses {
		if b.Status == s {
			return true
		}
	}
	return false
}

// DateRange is a half-open calendar interval [Start, End).
type DateRange struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// Overlaps uses strict interval overlap: a.Start < b.End && a.End > b.Start.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.Start.Before(other.End) && r.End.After(other.Start)
}
