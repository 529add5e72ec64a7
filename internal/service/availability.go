package service

import (
	"context"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/models"
)

// AvailabilityChecker answers whether an item's calendar is free. It only reads;
// callers that insert afterwards run it inside their own transaction.
type AvailabilityChecker struct {
	repo domain.BookingRepository
}

func NewAvailabilityChecker(repo domain.BookingRepository) *AvailabilityChecker {
	return &AvailabilityChecker{repo: repo}
}

// HasConflict reports whether a REQUESTED or ACCEPTED booking of the item overlaps [start, end).
func (c *AvailabilityChecker) HasConflict(ctx context.Context, itemID int64, start, end time.Time) (bool, error) {
	return c.repo.HasOverlappingBooking(ctx, itemID, models.DateOf(start), models.DateOf(end), 0)
}

// HasConflictExcluding is HasConflict ignoring the booking being re-checked.
func (c *AvailabilityChecker) HasConflictExcluding(ctx context.Context, booking *models.Booking) (bool, error) {
	return c.repo.HasOverlappingBooking(ctx, booking.ItemID, booking.StartDate, booking.EndDate, booking.ID)
}

func (c *AvailabilityChecker) UnavailableRanges(ctx context.Context, itemID int64) ([]models.DateRange, error) {
	bookings, err := c.repo.GetActiveBookingsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	ranges := make([]models.DateRange, 0, len(bookings))
	for _, b := range bookings {
		ranges = append(ranges, models.DateRange{Start: b.StartDate, End: b.EndDate})
	}
	return ranges, nil
}
