package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/events"
	"rentflow/internal/metrics"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WalletDrift is a wallet whose stored pending balance disagrees with its PENDING holds.
type WalletDrift struct {
	WalletID int64           `json:"wallet_id"`
	OwnerID  int64           `json:"owner_id"`
	Recorded decimal.Decimal `json:"recorded"`
	Expected decimal.Decimal `json:"expected"`
}

// WalletService is the escrow ledger. Every movement rewrites the wallet row and the hold
// row in one transaction; the wallet version check serializes movements per owner.
type WalletService struct {
	tx       domain.TxManager
	repo     domain.WalletRepository
	bookings domain.BookingRepository
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewWalletService(
	tx domain.TxManager,
	repo domain.WalletRepository,
	bookings domain.BookingRepository,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *WalletService {
	return &WalletService{
		tx:       tx,
		repo:     repo,
		bookings: bookings,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *WalletService) CreateWallet(ctx context.Context, ownerID int64) (*models.Wallet, error) {
	wallet := models.NewWallet(ownerID)
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("wallet_id", wallet.ID).Int64("owner_id", ownerID).Msg("wallet created")
	return wallet, nil
}

func (s *WalletService) GetWallet(ctx context.Context, ownerID int64) (*models.Wallet, error) {
	return s.repo.GetWalletByOwner(ctx, ownerID)
}

// ListTransactions is empty for an owner who has no wallet yet.
func (s *WalletService) ListTransactions(ctx context.Context, ownerID int64) ([]*models.WalletTransaction, error) {
	wallet, err := s.repo.GetWalletByOwner(ctx, ownerID)
	if errors.Is(err, domain.ErrWalletNotFound) {
		return []*models.WalletTransaction{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.repo.GetTransactionsByWallet(ctx, wallet.ID)
}

// HoldFunds opens the escrow hold for a booking, creating the owner's wallet on first use.
func (s *WalletService) HoldFunds(ctx context.Context, bookingID int64) (*models.WalletTransaction, error) {
	var (
		hold   *models.WalletTransaction
		wallet *models.Wallet
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		booking, err := s.bookings.GetBooking(ctx, bookingID)
		if err != nil {
			return err
		}

		_, err = s.repo.GetTransactionByBooking(ctx, bookingID)
		switch {
		case err == nil:
			return domain.ErrAlreadyHeld
		case !errors.Is(err, domain.ErrHoldNotFound):
			return err
		}

		wallet, err = s.walletOf(ctx, booking.OwnerID)
		if err != nil {
			return err
		}

		wallet.AddPending(booking.TotalPrice)
		if err := s.repo.UpdateWallet(ctx, wallet); err != nil {
			return err
		}

		hold = &models.WalletTransaction{
			WalletID:  wallet.ID,
			BookingID: booking.ID,
			Amount:    booking.TotalPrice,
			Status:    models.TransactionPending,
		}
		return s.repo.CreateTransaction(ctx, hold)
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveEscrow("hold", hold.Amount)
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("wallet_id", wallet.ID).
		Str("amount", hold.Amount.String()).
		Msg("funds held")
	s.publish(ctx, events.EventFundsHeld, wallet, hold)

	return hold, nil
}

// ReleaseFunds moves a PENDING hold to the owner's available balance once both parties
// confirmed. Missing holds, settled holds, bookings that are no longer ACCEPTED and
// unconfirmed bookings return false.
func (s *WalletService) ReleaseFunds(ctx context.Context, bookingID int64) (bool, error) {
	return s.settle(ctx, bookingID, "release", func(ctx context.Context, wallet *models.Wallet, hold *models.WalletTransaction) (bool, error) {
		booking, err := s.bookings.GetBooking(ctx, bookingID)
		if errors.Is(err, domain.ErrBookingNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if booking.Status != models.StatusAccepted || !booking.FullyConfirmed() {
			return false, nil
		}

		wallet.ReleasePending(hold.Amount)
		hold.Release(s.now())
		return true, nil
	})
}

// RefundFunds drops a PENDING hold from the pending balance. The money goes back to the
// payer outside this ledger.
func (s *WalletService) RefundFunds(ctx context.Context, bookingID int64) (bool, error) {
	return s.settle(ctx, bookingID, "refund", func(_ context.Context, wallet *models.Wallet, hold *models.WalletTransaction) (bool, error) {
		wallet.RefundPending(hold.Amount)
		hold.Refund()
		return true, nil
	})
}

func (s *WalletService) settle(
	ctx context.Context,
	bookingID int64,
	kind string,
	apply func(ctx context.Context, wallet *models.Wallet, hold *models.WalletTransaction) (bool, error),
) (bool, error) {
	var (
		done   bool
		wallet *models.Wallet
		hold   *models.WalletTransaction
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		hold, err = s.repo.GetTransactionByBooking(ctx, bookingID)
		if errors.Is(err, domain.ErrHoldNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if hold.Status != models.TransactionPending {
			return nil
		}

		wallet, err = s.repo.GetWalletByID(ctx, hold.WalletID)
		if err != nil {
			return err
		}

		ok, err := apply(ctx, wallet, hold)
		if err != nil || !ok {
			return err
		}

		if err := s.repo.UpdateWallet(ctx, wallet); err != nil {
			return err
		}
		if err := s.repo.UpdateTransaction(ctx, hold); err != nil {
			return err
		}
		done = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if !done {
		s.logger.Warn().Int64("booking_id", bookingID).Str("kind", kind).Msg("escrow settlement skipped")
		return false, nil
	}

	metrics.ObserveEscrow(kind, hold.Amount)
	s.logger.Info().
		Int64("booking_id", bookingID).
		Int64("wallet_id", wallet.ID).
		Str("kind", kind).
		Str("amount", hold.Amount.String()).
		Msg("escrow settled")

	eventType := events.EventFundsReleased
	if kind == "refund" {
		eventType = events.EventFundsRefunded
	}
	s.publish(ctx, eventType, wallet, hold)
	return true, nil
}

// Withdraw takes a positive amount from the available balance and returns what is left.
func (s *WalletService) Withdraw(ctx context.Context, ownerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, domain.ErrInvalidAmount
	}

	wallet, err := s.withdraw(ctx, ownerID, func(w *models.Wallet) (decimal.Decimal, error) {
		if amount.GreaterThan(w.Balance) {
			return decimal.Zero, fmt.Errorf("%w: balance %s, requested %s", domain.ErrInsufficientFunds, w.Balance, amount)
		}
		return amount, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return wallet.Balance, nil
}

// WithdrawAll empties the available balance and returns the withdrawn amount.
func (s *WalletService) WithdrawAll(ctx context.Context, ownerID int64) (decimal.Decimal, error) {
	var withdrawn decimal.Decimal
	_, err := s.withdraw(ctx, ownerID, func(w *models.Wallet) (decimal.Decimal, error) {
		if !w.Balance.IsPositive() {
			return decimal.Zero, domain.ErrNoBalance
		}
		withdrawn = w.Balance
		return withdrawn, nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return withdrawn, nil
}

func (s *WalletService) withdraw(ctx context.Context, ownerID int64, pick func(w *models.Wallet) (decimal.Decimal, error)) (*models.Wallet, error) {
	var (
		wallet *models.Wallet
		amount decimal.Decimal
	)

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		wallet, err = s.repo.GetWalletByOwner(ctx, ownerID)
		if err != nil {
			return err
		}
		if amount, err = pick(wallet); err != nil {
			return err
		}
		wallet.Balance = wallet.Balance.Sub(amount)
		return s.repo.UpdateWallet(ctx, wallet)
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveEscrow("withdraw", amount)
	s.logger.Info().
		Int64("wallet_id", wallet.ID).
		Int64("owner_id", ownerID).
		Str("amount", amount.String()).
		Str("balance", wallet.Balance.String()).
		Msg("withdrawal")
	s.publish(ctx, events.EventWithdrawal, wallet, &models.WalletTransaction{Amount: amount})

	return wallet, nil
}

// Reconcile recomputes every wallet's pending balance from its PENDING holds. It only reads.
func (s *WalletService) Reconcile(ctx context.Context) ([]WalletDrift, error) {
	var drifts []WalletDrift

	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		wallets, err := s.repo.GetAllWallets(ctx)
		if err != nil {
			return err
		}

		for _, w := range wallets {
			txs, err := s.repo.GetTransactionsByWallet(ctx, w.ID)
			if err != nil {
				return err
			}

			expected := decimal.Zero
			for _, t := range txs {
				if t.Status == models.TransactionPending {
					expected = expected.Add(t.Amount)
				}
			}

			if !expected.Equal(w.PendingBalance) {
				drifts = append(drifts, WalletDrift{
					WalletID: w.ID,
					OwnerID:  w.OwnerID,
					Recorded: w.PendingBalance,
					Expected: expected,
				})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return drifts, nil
}

// walletOf returns the owner's wallet, creating it inside the caller's transaction.
func (s *WalletService) walletOf(ctx context.Context, ownerID int64) (*models.Wallet, error) {
	wallet, err := s.repo.GetWalletByOwner(ctx, ownerID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, domain.ErrWalletNotFound) {
		return nil, err
	}

	wallet = models.NewWallet(ownerID)
	if err := s.repo.CreateWallet(ctx, wallet); err != nil {
		return nil, err
	}
	s.logger.Info().Int64("wallet_id", wallet.ID).Int64("owner_id", ownerID).Msg("wallet created on first hold")
	return wallet, nil
}

func (s *WalletService) publish(ctx context.Context, eventType string, wallet *models.Wallet, tx *models.WalletTransaction) {
	if s.eventBus == nil {
		return
	}

	payload := events.EscrowEventPayload{
		BookingID: tx.BookingID,
		WalletID:  wallet.ID,
		OwnerID:   wallet.OwnerID,
		Amount:    tx.Amount.String(),
		Status:    string(tx.Status),
	}
	if err := s.eventBus.PublishJSON(ctx, eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("wallet_id", wallet.ID).Msg("publish event error")
	}
}
