package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet holds an owner's released (Balance) and escrowed (PendingBalance) funds.
type Wallet struct {
	ID             int64           `json:"id"`
	OwnerID        int64           `json:"owner_id"`
	Balance        decimal.Decimal `json:"balance"`
	PendingBalance decimal.Decimal `json:"pending_balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int64           `json:"version"`
}

func NewWallet(ownerID int64) *Wallet {
	return &Wallet{
		OwnerID:        ownerID,
		Balance:        decimal.Zero,
		PendingBalance: decimal.Zero,
	}
}

func (w *Wallet) AddPending(amount decimal.Decimal) {
	w.PendingBalance = w.PendingBalance.Add(amount)
}

// ReleasePending moves amount from pending to available.
func (w *Wallet) ReleasePending(amount decimal.Decimal) {
	w.PendingBalance = w.PendingBalance.Sub(amount)
	w.Balance = w.Balance.Add(amount)
}

// RefundPending drops amount from pending; the money goes back to the payer outside the ledger.
func (w *Wallet) RefundPending(amount decimal.Decimal) {
	w.PendingBalance = w.PendingBalance.Sub(amount)
}

type WalletTransaction struct {
	ID         int64             `json:"id"`
	WalletID   int64             `json:"wallet_id"`
	BookingID  int64             `json:"booking_id"`
	Amount     decimal.Decimal   `json:"amount"`
	Status     TransactionStatus `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	ReleasedAt *time.Time        `json:"released_at,omitempty"`
}

func (t *WalletTransaction) Release(at time.Time) {
	t.Status = TransactionReleased
	t.ReleasedAt = &at
}

func (t *WalletTransaction) Refund() {
	t.Status = TransactionRefunded
}

// PaymentResult is what the payment collaborator returns for a charge.
type PaymentResult struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}
