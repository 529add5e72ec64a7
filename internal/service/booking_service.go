package service

import (
	"context"
	"fmt"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/events"
	"rentflow/internal/metrics"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type BookingService struct {
	tx             domain.TxManager
	repo           domain.BookingRepository
	items          domain.ItemLookup
	refunds        domain.EscrowRefunder
	checker        *AvailabilityChecker
	eventBus       domain.EventPublisher
	maxBookingDays int
	logger         *zerolog.Logger
	now            func() time.Time
}

func NewBookingService(
	tx domain.TxManager,
	repo domain.BookingRepository,
	items domain.ItemLookup,
	refunds domain.EscrowRefunder,
	eventBus domain.EventPublisher,
	maxBookingDays int,
	logger *zerolog.Logger,
) *BookingService {
	if maxBookingDays <= 0 {
		maxBookingDays = models.DefaultMaxBookingDays
	}
	return &BookingService{
		tx:             tx,
		repo:           repo,
		items:          items,
		refunds:        refunds,
		checker:        NewAvailabilityChecker(repo),
		eventBus:       eventBus,
		maxBookingDays: maxBookingDays,
		logger:         logger,
		now:            time.Now,
	}
}

func (s *BookingService) today() time.Time {
	return models.DateOf(s.now())
}

// ValidateBookingDates checks a requested [start, end) period against today.
func (s *BookingService) ValidateBookingDates(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return domain.ErrDatesRequired
	}

	today := s.today()
	start, end = models.DateOf(start), models.DateOf(end)

	if start.Before(today) {
		return domain.ErrPastDate
	}
	if !end.After(start) {
		return domain.ErrInvalidDateRange
	}

	if start.After(today.AddDate(0, 0, s.maxBookingDays)) {
		return domain.ErrDateTooFar
	}
	return nil
}

func (s *BookingService) CreateBooking(ctx context.Context, req domain.CreateBookingRequest) (*models.Booking, error) {
	if req.RenterID == 0 {
		return nil, domain.ErrRenterRequired
	}

	item, err := s.items.GetItemByID(ctx, req.ItemID)
	if err != nil {
		return nil, err
	}
	if !item.IsActive {
		return nil, domain.ErrItemInactive
	}
	if item.OwnerID == req.RenterID {
		return nil, domain.ErrOwnItem
	}

	dailyPrice, err := ResolveDailyPrice(item.DailyPrice, req.ProposedPrice)
	if err != nil {
		return nil, err
	}
	if err := s.ValidateBookingDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}

	start, end := models.DateOf(req.StartDate), models.DateOf(req.EndDate)
	total, err := TotalPrice(dailyPrice, start, end)
	if err != nil {
		return nil, err
	}

	booking := &models.Booking{
		ItemID:        item.ID,
		RenterID:      req.RenterID,
		OwnerID:       item.OwnerID,
		StartDate:     start,
		EndDate:       end,
		DailyPrice:    dailyPrice,
		TotalPrice:    total,
		Status:        models.StatusRequested,
		PaymentStatus: models.PaymentPending,
	}

	// check and insert in one transaction
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		conflict, err := s.checker.HasConflict(ctx, booking.ItemID, start, end)
		if err != nil {
			return err
		}
		if conflict {
			return domain.ErrNotAvailable
		}
		return s.repo.CreateBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	metrics.IncBookingTransition("create", string(booking.Status))
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Int64("item_id", booking.ItemID).
		Int64("renter_id", booking.RenterID).
		Str("total_price", booking.TotalPrice.String()).
		Msg("booking requested")
	s.publishEvent(ctx, events.EventBookingRequested, booking, "", booking.RenterID)

	return booking, nil
}

func (s *BookingService) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return s.repo.GetBooking(ctx, id)
}

// AcceptBooking moves REQUESTED or COUNTER_OFFER to ACCEPTED. A countered booking left the
// calendar, so its dates are checked again before it re-enters.
func (s *BookingService) AcceptBooking(ctx context.Context, bookingID, ownerID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "accept", events.EventBookingAccepted, ownerID, func(ctx context.Context, b *models.Booking) error {
		if b.OwnerID != ownerID {
			return domain.ErrNotOwner
		}
		if !b.StatusIn(models.StatusRequested, models.StatusCounterOffer) {
			return domain.ErrInvalidTransition
		}
		if b.Status == models.StatusCounterOffer {
			if err := s.ensureStillAvailable(ctx, b); err != nil {
				return err
			}
		}
		b.Status = models.StatusAccepted
		return nil
	})
}

func (s *BookingService) DeclineBooking(ctx context.Context, bookingID, ownerID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "decline", events.EventBookingRejected, ownerID, func(_ context.Context, b *models.Booking) error {
		if b.OwnerID != ownerID {
			return domain.ErrNotOwner
		}
		if !b.StatusIn(models.StatusRequested, models.StatusCounterOffer) {
			return domain.ErrInvalidTransition
		}
		b.Status = models.StatusRejected
		return nil
	})
}

func (s *BookingService) CounterOfferBooking(ctx context.Context, bookingID int64, newDailyPrice decimal.Decimal, ownerID int64) (*models.Booking, error) {
	if !newDailyPrice.IsPositive() {
		return nil, domain.ErrInvalidPrice
	}

	return s.mutate(ctx, bookingID, "counter_offer", events.EventBookingCounterOffered, ownerID, func(_ context.Context, b *models.Booking) error {
		if b.OwnerID != ownerID {
			return domain.ErrNotOwner
		}
		if !b.StatusIn(models.StatusRequested, models.StatusCounterOffer) {
			return domain.ErrInvalidTransition
		}
		total, err := TotalPrice(newDailyPrice, b.StartDate, b.EndDate)
		if err != nil {
			return err
		}
		b.DailyPrice = newDailyPrice
		b.TotalPrice = total
		b.Status = models.StatusCounterOffer
		return nil
	})
}

func (s *BookingService) AcceptCounterOffer(ctx context.Context, bookingID, renterID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "accept_counter_offer", events.EventBookingAccepted, renterID, func(ctx context.Context, b *models.Booking) error {
		if b.RenterID != renterID {
			return domain.ErrNotRenter
		}
		if b.Status != models.StatusCounterOffer {
			return domain.ErrInvalidTransition
		}
		if err := s.ensureStillAvailable(ctx, b); err != nil {
			return err
		}
		b.Status = models.StatusAccepted
		return nil
	})
}

// DeclineCounterOffer ends the negotiation; the booking is CANCELLED, not returned to REQUESTED.
func (s *BookingService) DeclineCounterOffer(ctx context.Context, bookingID, renterID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "decline_counter_offer", events.EventBookingCancelled, renterID, func(_ context.Context, b *models.Booking) error {
		if b.RenterID != renterID {
			return domain.ErrNotRenter
		}
		if b.Status != models.StatusCounterOffer {
			return domain.ErrInvalidTransition
		}
		b.Status = models.StatusCancelled
		return nil
	})
}

// CancelBooking is renter-only, legal from REQUESTED or ACCEPTED while the rental period
// has not ended. A paid booking's escrow hold is refunded in the same transaction, so
// the booking is never CANCELLED with its money still held.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID, renterID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "cancel", events.EventBookingCancelled, renterID, func(ctx context.Context, b *models.Booking) error {
		if b.RenterID != renterID {
			return domain.ErrNotRenter
		}
		if !b.StatusIn(models.StatusRequested, models.StatusAccepted) {
			return domain.ErrInvalidTransition
		}
		if !b.EndDate.After(s.today()) {
			return domain.ErrBookingEnded
		}
		if b.PaymentStatus == models.PaymentProcessing {
			return domain.ErrPaymentInProgress
		}

		if b.PaymentStatus == models.PaymentPaid && s.refunds != nil {
			if _, err := s.refunds.RefundFunds(ctx, b.ID); err != nil {
				return fmt.Errorf("refund booking %d: %w", b.ID, err)
			}
		}
		b.Status = models.StatusCancelled
		return nil
	})
}

// BeginPayment claims an ACCEPTED booking for checkout. Only one claim can be open,
// so the renter is charged at most once per attempt.
func (s *BookingService) BeginPayment(ctx context.Context, bookingID, renterID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "payment_begin", "", renterID, func(_ context.Context, b *models.Booking) error {
		if b.RenterID != renterID {
			return domain.ErrNotRenter
		}
		if b.Status != models.StatusAccepted {
			return domain.ErrInvalidTransition
		}
		switch b.PaymentStatus {
		case models.PaymentPaid:
			return domain.ErrAlreadyPaid
		case models.PaymentProcessing:
			return domain.ErrPaymentInProgress
		}
		b.PaymentStatus = models.PaymentProcessing
		return nil
	})
}

// AbortPayment drops an open claim when the charge never reached a verdict.
func (s *BookingService) AbortPayment(ctx context.Context, bookingID int64) (*models.Booking, error) {
	return s.mutate(ctx, bookingID, "payment_abort", "", 0, func(_ context.Context, b *models.Booking) error {
		if b.PaymentStatus != models.PaymentProcessing {
			return domain.ErrInvalidTransition
		}
		b.PaymentStatus = models.PaymentPending
		return nil
	})
}

// RecordPayment stores what the payment collaborator reported for an ACCEPTED booking.
func (s *BookingService) RecordPayment(ctx context.Context, bookingID int64, result models.PaymentResult) (*models.Booking, error) {
	eventType := ""
	if result.Success {
		eventType = events.EventBookingPaid
	}

	return s.mutate(ctx, bookingID, "payment", eventType, 0, func(_ context.Context, b *models.Booking) error {
		if b.Status != models.StatusAccepted {
			return domain.ErrInvalidTransition
		}
		if b.PaymentStatus == models.PaymentPaid {
			return domain.ErrAlreadyPaid
		}
		b.PaymentReference = result.Reference
		if result.Success {
			b.PaymentStatus = models.PaymentPaid
		} else {
			b.PaymentStatus = models.PaymentFailed
		}
		return nil
	})
}

func (s *BookingService) ListRenterBookings(ctx context.Context, renterID int64) ([]*models.Booking, error) {
	return s.repo.GetBookingsByRenter(ctx, renterID)
}

// ListOwnerRequests returns bookings waiting for the owner or the renter to answer.
func (s *BookingService) ListOwnerRequests(ctx context.Context, ownerID int64) ([]*models.Booking, error) {
	return s.repo.GetBookingsByOwner(ctx, ownerID, []models.BookingStatus{models.StatusRequested, models.StatusCounterOffer})
}

// ListOwnerRentals splits ACCEPTED bookings into upcoming/ongoing (end after today) and past.
func (s *BookingService) ListOwnerRentals(ctx context.Context, ownerID int64, upcoming bool) ([]*models.Booking, error) {
	accepted, err := s.repo.GetBookingsByOwner(ctx, ownerID, []models.BookingStatus{models.StatusAccepted})
	if err != nil {
		return nil, err
	}

	today := s.today()
	result := make([]*models.Booking, 0, len(accepted))
	for _, b := range accepted {
		if b.EndDate.After(today) == upcoming {
			result = append(result, b)
		}
	}
	return result, nil
}

func (s *BookingService) UnavailableRanges(ctx context.Context, itemID int64) ([]models.DateRange, error) {
	return s.checker.UnavailableRanges(ctx, itemID)
}

func (s *BookingService) ensureStillAvailable(ctx context.Context, b *models.Booking) error {
	conflict, err := s.checker.HasConflictExcluding(ctx, b)
	if err != nil {
		return err
	}
	if conflict {
		return domain.ErrNotAvailable
	}
	return nil
}

// mutate is the read-modify-write unit for one booking. fn sees the current row inside
// the transaction; the version check in UpdateBooking rejects lost updates.
func (s *BookingService) mutate(
	ctx context.Context,
	bookingID int64,
	operation, eventType string,
	actorID int64,
	fn func(ctx context.Context, b *models.Booking) error,
) (*models.Booking, error) {
	var (
		booking  *models.Booking
		previous models.BookingStatus
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}
		previous = b.Status
		if err := fn(ctx, b); err != nil {
			return err
		}
		if err := s.repo.UpdateBooking(ctx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		s.logger.Debug().Err(err).Int64("booking_id", bookingID).Str("operation", operation).Msg("booking operation refused")
		return nil, err
	}

	metrics.IncBookingTransition(operation, string(booking.Status))
	s.logger.Info().
		Int64("booking_id", booking.ID).
		Str("operation", operation).
		Str("from", string(previous)).
		Str("to", string(booking.Status)).
		Int64("actor_id", actorID).
		Msg("booking updated")

	if eventType != "" {
		s.publishEvent(ctx, eventType, booking, previous, actorID)
	}
	return booking, nil
}

func (s *BookingService) publishEvent(ctx context.Context, eventType string, booking *models.Booking, previous models.BookingStatus, actorID int64) {
	if s.eventBus == nil {
		return
	}

	payload := events.BookingEventPayload{
		BookingID:      booking.ID,
		ItemID:         booking.ItemID,
		RenterID:       booking.RenterID,
		OwnerID:        booking.OwnerID,
		Status:         string(booking.Status),
		PreviousStatus: string(previous),
		StartDate:      models.FormatDate(booking.StartDate),
		EndDate:        models.FormatDate(booking.EndDate),
		DailyPrice:     booking.DailyPrice.String(),
		TotalPrice:     booking.TotalPrice.String(),
		ActorID:        actorID,
	}

	if err := s.eventBus.PublishJSON(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}
