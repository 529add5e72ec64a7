package domain

import (
	"context"
	"time"

	"rentflow/internal/models"

	"github.com/shopspring/decimal"
)

// TxManager runs fn as one storage transaction. Repositories called with the
// ctx passed to fn take part in that transaction.
type TxManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	UpdateBooking(ctx context.Context, booking *models.Booking) error
	HasOverlappingBooking(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (bool, error)
	GetActiveBookingsByItem(ctx context.Context, itemID int64) ([]*models.Booking, error)
	GetBookingsByRenter(ctx context.Context, renterID int64) ([]*models.Booking, error)
	GetBookingsByOwner(ctx context.Context, ownerID int64, statuses []models.BookingStatus) ([]*models.Booking, error)
}

type WalletRepository interface {
	CreateWallet(ctx context.Context, wallet *models.Wallet) error
	GetWalletByOwner(ctx context.Context, ownerID int64) (*models.Wallet, error)
	GetWalletByID(ctx context.Context, id int64) (*models.Wallet, error)
	GetAllWallets(ctx context.Context) ([]*models.Wallet, error)
	UpdateWallet(ctx context.Context, wallet *models.Wallet) error
	CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error
	GetTransactionByBooking(ctx context.Context, bookingID int64) (*models.WalletTransaction, error)
	GetTransactionsByWallet(ctx context.Context, walletID int64) ([]*models.WalletTransaction, error)
	UpdateTransaction(ctx context.Context, tx *models.WalletTransaction) error
}

type ItemRepository interface {
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
	GetActiveItems(ctx context.Context) ([]*models.Item, error)
	UpsertItem(ctx context.Context, item *models.Item) error
}

// ItemLookup resolves the item a booking refers to.
type ItemLookup interface {
	GetItemByID(ctx context.Context, id int64) (*models.Item, error)
}

// ItemCache returns (nil, nil) on a miss.
type ItemCache interface {
	Get(ctx context.Context, id int64) (*models.Item, error)
	Set(ctx context.Context, item *models.Item) error
	Invalidate(ctx context.Context, id int64) error
}

// EscrowRefunder returns a booking's PENDING hold to the payer. It reports false
// when there is nothing to refund.
type EscrowRefunder interface {
	RefundFunds(ctx context.Context, bookingID int64) (bool, error)
}

type EventPublisher interface {
	PublishJSON(ctx context.Context, eventType string, payload interface{}) error
}

type ChargeRequest struct {
	BookingID int64
	RenterID  int64
	ItemID    int64
	Amount    decimal.Decimal
}

// PaymentGateway is the external payment collaborator. A declined charge is a
// PaymentResult with Success=false, not an error.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (models.PaymentResult, error)
}

type CreateBookingRequest struct {
	ItemID        int64
	RenterID      int64
	StartDate     time.Time
	EndDate       time.Time
	ProposedPrice *decimal.Decimal
}

type BookingService interface {
	CreateBooking(ctx context.Context, req CreateBookingRequest) (*models.Booking, error)
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	AcceptBooking(ctx context.Context, bookingID, ownerID int64) (*models.Booking, error)
	DeclineBooking(ctx context.Context, bookingID, ownerID int64) (*models.Booking, error)
	CounterOfferBooking(ctx context.Context, bookingID int64, newDailyPrice decimal.Decimal, ownerID int64) (*models.Booking, error)
	AcceptCounterOffer(ctx context.Context, bookingID, renterID int64) (*models.Booking, error)
	DeclineCounterOffer(ctx context.Context, bookingID, renterID int64) (*models.Booking, error)
	CancelBooking(ctx context.Context, bookingID, renterID int64) (*models.Booking, error)
	RecordPayment(ctx context.Context, bookingID int64, result models.PaymentResult) (*models.Booking, error)
	ListRenterBookings(ctx context.Context, renterID int64) ([]*models.Booking, error)
	ListOwnerRequests(ctx context.Context, ownerID int64) ([]*models.Booking, error)
	ListOwnerRentals(ctx context.Context, ownerID int64, upcoming bool) ([]*models.Booking, error)
	UnavailableRanges(ctx context.Context, itemID int64) ([]models.DateRange, error)
}

type WalletService interface {
	CreateWallet(ctx context.Context, ownerID int64) (*models.Wallet, error)
	GetWallet(ctx context.Context, ownerID int64) (*models.Wallet, error)
	ListTransactions(ctx context.Context, ownerID int64) ([]*models.WalletTransaction, error)
	HoldFunds(ctx context.Context, bookingID int64) (*models.WalletTransaction, error)
	ReleaseFunds(ctx context.Context, bookingID int64) (bool, error)
	RefundFunds(ctx context.Context, bookingID int64) (bool, error)
	Withdraw(ctx context.Context, ownerID int64, amount decimal.Decimal) (decimal.Decimal, error)
	WithdrawAll(ctx context.Context, ownerID int64) (decimal.Decimal, error)
}

type ConfirmationService interface {
	ConfirmByRenter(ctx context.Context, bookingID, renterID int64) (bool, error)
	ConfirmByOwner(ctx context.Context, bookingID, ownerID int64) (bool, error)
	IsFullyConfirmed(ctx context.Context, bookingID int64) bool
}

type CheckoutService interface {
	PayBooking(ctx context.Context, bookingID, renterID int64) (*models.Booking, error)
}
