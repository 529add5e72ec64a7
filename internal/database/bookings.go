package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/models"
)

const bookingColumns = `id, item_id, renter_id, owner_id, start_date, end_date, daily_price, total_price,
	status, payment_status, payment_reference, renter_confirmed, owner_confirmed, returned_at,
	created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end string
		returnedAt sql.NullTime
	)
	err := row.Scan(
		&b.ID, &b.ItemID, &b.RenterID, &b.OwnerID, &start, &end, &b.DailyPrice, &b.TotalPrice,
		&b.Status, &b.PaymentStatus, &b.PaymentReference, &b.RenterConfirmed, &b.OwnerConfirmed, &returnedAt,
		&b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}

	if b.StartDate, err = models.ParseDate(start); err != nil {
		return nil, fmt.Errorf("bad start_date %q for booking %d: %w", start, b.ID, err)
	}
	if b.EndDate, err = models.ParseDate(end); err != nil {
		return nil, fmt.Errorf("bad end_date %q for booking %d: %w", end, b.ID, err)
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		b.ReturnedAt = &t
	}
	return &b, nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]*models.Booking, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

func (db *DB) CreateBooking(ctx context.Context, booking *models.Booking) error {
	query := `INSERT INTO bookings (
				item_id, renter_id, owner_id, start_date, end_date, daily_price, total_price,
				status, payment_status, payment_reference, renter_confirmed, owner_confirmed,
				returned_at, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	if booking.Status == "" {
		booking.Status = models.StatusRequested
	}
	if booking.PaymentStatus == "" {
		booking.PaymentStatus = models.PaymentPending
	}

	result, err := db.conn(ctx).ExecContext(ctx, query,
		booking.ItemID,
		booking.RenterID,
		booking.OwnerID,
		models.FormatDate(booking.StartDate),
		models.FormatDate(booking.EndDate),
		booking.DailyPrice,
		booking.TotalPrice,
		booking.Status,
		booking.PaymentStatus,
		booking.PaymentReference,
		booking.RenterConfirmed,
		booking.OwnerConfirmed,
		booking.ReturnedAt,
		now,
		now,
		1,
	)
	if err != nil {
		return fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = now
	booking.UpdatedAt = now
	booking.Version = 1

	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

	booking, err := scanBooking(db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, err)
	}
	return booking, nil
}

// UpdateBooking writes every mutable column if the stored version still matches booking.Version.
func (db *DB) UpdateBooking(ctx context.Context, booking *models.Booking) error {
	query := `UPDATE bookings SET
				daily_price = ?, total_price = ?, status = ?, payment_status = ?, payment_reference = ?,
				renter_confirmed = ?, owner_confirmed = ?, returned_at = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`

	now := time.Now()
	result, err := db.conn(ctx).ExecContext(ctx, query,
		booking.DailyPrice,
		booking.TotalPrice,
		booking.Status,
		booking.PaymentStatus,
		booking.PaymentReference,
		booking.RenterConfirmed,
		booking.OwnerConfirmed,
		booking.ReturnedAt,
		now,
		booking.ID,
		booking.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update booking %d: %w", booking.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}

	booking.UpdatedAt = now
	booking.Version++
	return nil
}

// HasOverlappingBooking reports whether an active booking of the item other than excludeID
// intersects [start, end).
func (db *DB) HasOverlappingBooking(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (bool, error) {
	query := `SELECT EXISTS (
				SELECT 1 FROM bookings
				WHERE item_id = ? AND id != ? AND status IN (?, ?)
				AND start_date < ? AND end_date > ?
			)`

	var exists bool
	err := db.conn(ctx).QueryRowContext(ctx, query,
		itemID,
		excludeID,
		models.StatusRequested,
		models.StatusAccepted,
		models.FormatDate(end),
		models.FormatDate(start),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check overlapping bookings: %w", err)
	}
	return exists, nil
}

func (db *DB) GetActiveBookingsByItem(ctx context.Context, itemID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
			WHERE item_id = ? AND status IN (?, ?)
			ORDER BY start_date`

	bookings, err := db.queryBookings(ctx, query, itemID, models.StatusRequested, models.StatusAccepted)
	if err != nil {
		return nil, fmt.Errorf("failed to get active bookings for item %d: %w", itemID, err)
	}
	return bookings, nil
}

func (db *DB) GetBookingsByRenter(ctx context.Context, renterID int64) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE renter_id = ? ORDER BY created_at DESC, id DESC`

	bookings, err := db.queryBookings(ctx, query, renterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings for renter %d: %w", renterID, err)
	}
	return bookings, nil
}

// GetBookingsByOwner returns the owner's bookings, optionally narrowed to statuses.
func (db *DB) GetBookingsByOwner(ctx context.Context, ownerID int64, statuses []models.BookingStatus) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE owner_id = ?`
	args := []any{ownerID}

	if len(statuses) > 0 {
		placeholders := make([]string, len(statuses))
		for i, s := range statuses {
			placeholders[i] = "?"
			args = append(args, s)
		}
		query += ` AND status IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY start_date, id`

	bookings, err := db.queryBookings(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings for owner %d: %w", ownerID, err)
	}
	return bookings, nil
}
