package service

import (
	"context"
	"errors"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/events"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
)

type party string

const (
	partyRenter party = "renter"
	partyOwner  party = "owner"
)

type fundsReleaser interface {
	ReleaseFunds(ctx context.Context, bookingID int64) (bool, error)
}

// ConfirmationService records the renter's and owner's handover confirmations and releases
// escrow once both are in.
type ConfirmationService struct {
	tx       domain.TxManager
	bookings domain.BookingRepository
	wallet   fundsReleaser
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewConfirmationService(
	tx domain.TxManager,
	bookings domain.BookingRepository,
	wallet fundsReleaser,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ConfirmationService {
	return &ConfirmationService{
		tx:       tx,
		bookings: bookings,
		wallet:   wallet,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *ConfirmationService) ConfirmByRenter(ctx context.Context, bookingID, renterID int64) (bool, error) {
	return s.confirm(ctx, bookingID, renterID, partyRenter)
}

func (s *ConfirmationService) ConfirmByOwner(ctx context.Context, bookingID, ownerID int64) (bool, error) {
	return s.confirm(ctx, bookingID, ownerID, partyOwner)
}

// IsFullyConfirmed is false for unknown bookings.
func (s *ConfirmationService) IsFullyConfirmed(ctx context.Context, bookingID int64) bool {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return false
	}
	return booking.FullyConfirmed()
}

// confirm sets one side's flag and, when the other side is already in, returns the result
// of the release. The flag and the release commit together.
func (s *ConfirmationService) confirm(ctx context.Context, bookingID, actorID int64, side party) (bool, error) {
	var (
		result  bool
		changed *models.Booking
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetBooking(ctx, bookingID)
		if errors.Is(err, domain.ErrBookingNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		switch side {
		case partyRenter:
			if booking.RenterID != actorID {
				return domain.ErrNotRenter
			}
			if booking.RenterConfirmed {
				result = true
				return nil
			}
			booking.RenterConfirmed = true
			if booking.ReturnedAt == nil {
				at := s.now()
				booking.ReturnedAt = &at
			}
		case partyOwner:
			if booking.OwnerID != actorID {
				return domain.ErrNotOwner
			}
			if booking.OwnerConfirmed {
				result = true
				return nil
			}
			booking.OwnerConfirmed = true
		}

		if err := s.bookings.UpdateBooking(ctx, booking); err != nil {
			return err
		}
		changed = booking

		if !booking.FullyConfirmed() {
			result = true
			return nil
		}
		result, err = s.wallet.ReleaseFunds(ctx, booking.ID)
		return err
	})
	if err != nil {
		return false, err
	}

	if changed == nil {
		if !result {
			s.logger.Warn().Int64("booking_id", bookingID).Str("party", string(side)).Msg("confirmation for unknown booking")
		}
		return result, nil
	}

	s.logger.Info().
		Int64("booking_id", bookingID).
		Str("party", string(side)).
		Bool("fully_confirmed", changed.FullyConfirmed()).
		Bool("result", result).
		Msg("handover confirmed")

	if s.eventBus != nil {
		payload := events.BookingEventPayload{
			BookingID: changed.ID,
			ItemID:    changed.ItemID,
			RenterID:  changed.RenterID,
			OwnerID:   changed.OwnerID,
			Status:    string(changed.Status),
			StartDate: models.FormatDate(changed.StartDate),
			EndDate:   models.FormatDate(changed.EndDate),
			ActorID:   actorID,
		}
		if err := s.eventBus.PublishJSON(ctx, events.EventBookingConfirmed, payload); err != nil {
			s.logger.Error().Err(err).Int64("booking_id", bookingID).Msg("publish event error")
		}
	}
	return result, nil
}
