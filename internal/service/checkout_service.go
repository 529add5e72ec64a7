package service

import (
	"context"
	"fmt"

	"rentflow/internal/domain"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
)

type paymentRecorder interface {
	BeginPayment(ctx context.Context, bookingID, renterID int64) (*models.Booking, error)
	AbortPayment(ctx context.Context, bookingID int64) (*models.Booking, error)
	RecordPayment(ctx context.Context, bookingID int64, result models.PaymentResult) (*models.Booking, error)
}

type fundsHolder interface {
	HoldFunds(ctx context.Context, bookingID int64) (*models.WalletTransaction, error)
}

// CheckoutService charges the renter for an ACCEPTED booking and opens the escrow hold.
type CheckoutService struct {
	tx       domain.TxManager
	bookings paymentRecorder
	wallet   fundsHolder
	gateway  domain.PaymentGateway
	logger   *zerolog.Logger
}

func NewCheckoutService(tx domain.TxManager, bookings paymentRecorder, wallet fundsHolder, gateway domain.PaymentGateway, logger *zerolog.Logger) *CheckoutService {
	return &CheckoutService{
		tx:       tx,
		bookings: bookings,
		wallet:   wallet,
		gateway:  gateway,
		logger:   logger,
	}
}

// PayBooking claims the booking, charges the renter and records the outcome. The claim
// is taken before the gateway is called, so concurrent attempts fail with
// ErrPaymentInProgress instead of charging twice.
func (s *CheckoutService) PayBooking(ctx context.Context, bookingID, renterID int64) (*models.Booking, error) {
	booking, err := s.bookings.BeginPayment(ctx, bookingID, renterID)
	if err != nil {
		return nil, err
	}

	result, err := s.gateway.Charge(ctx, domain.ChargeRequest{
		BookingID: booking.ID,
		RenterID:  booking.RenterID,
		ItemID:    booking.ItemID,
		Amount:    booking.TotalPrice,
	})
	// the verdict is recorded even if the caller has gone away
	ctx = context.WithoutCancel(ctx)
	if err != nil {
		if _, abortErr := s.bookings.AbortPayment(ctx, booking.ID); abortErr != nil {
			s.logger.Error().Err(abortErr).Int64("booking_id", booking.ID).Msg("payment claim not released")
		}
		return nil, fmt.Errorf("charge booking %d: %w", booking.ID, err)
	}

	if !result.Success {
		if _, err := s.bookings.RecordPayment(ctx, booking.ID, result); err != nil {
			return nil, err
		}
		s.logger.Warn().Int64("booking_id", booking.ID).Str("reason", result.Reason).Msg("payment declined")

		reason := result.Reason
		if reason == "" {
			reason = "declined"
		}
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentFailed, reason)
	}

	var paid *models.Booking
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		if paid, err = s.bookings.RecordPayment(ctx, booking.ID, result); err != nil {
			return err
		}
		_, err = s.wallet.HoldFunds(ctx, booking.ID)
		return err
	})
	if err != nil {
		// The claim stays PROCESSING: the renter was charged, so a retry must not charge again.
		s.logger.Error().
			Err(err).
			Int64("booking_id", booking.ID).
			Str("reference", result.Reference).
			Str("amount", booking.TotalPrice.String()).
			Msg("charged but not recorded")
		return nil, err
	}

	s.logger.Info().Int64("booking_id", booking.ID).Str("reference", result.Reference).Msg("booking paid")
	return paid, nil
}
