package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/models"
)

const (
	walletColumns      = `id, owner_id, balance, pending_balance, created_at, updated_at, version`
	transactionColumns = `id, wallet_id, booking_id, amount, status, created_at, released_at`
)

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.PendingBalance, &w.CreatedAt, &w.UpdatedAt, &w.Version)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(row rowScanner) (*models.WalletTransaction, error) {
	var (
		t          models.WalletTransaction
		releasedAt sql.NullTime
	)
	err := row.Scan(&t.ID, &t.WalletID, &t.BookingID, &t.Amount, &t.Status, &t.CreatedAt, &releasedAt)
	if err != nil {
		return nil, err
	}
	if releasedAt.Valid {
		at := releasedAt.Time
		t.ReleasedAt = &at
	}
	return &t, nil
}

// CreateWallet returns domain.ErrWalletExists when the owner already has one.
func (db *DB) CreateWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `INSERT INTO wallets (owner_id, balance, pending_balance, created_at, updated_at, version)
			VALUES (?, ?, ?, ?, ?, ?)`

	now := time.Now()
	result, err := db.conn(ctx).ExecContext(ctx, query, wallet.OwnerID, wallet.Balance, wallet.PendingBalance, now, now, 1)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrWalletExists
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	wallet.ID = id
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	wallet.Version = 1
	return nil
}

func (db *DB) GetWalletByOwner(ctx context.Context, ownerID int64) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = ?`

	wallet, err := scanWallet(db.conn(ctx).QueryRowContext(ctx, query, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet of owner %d: %w", ownerID, err)
	}
	return wallet, nil
}

func (db *DB) GetWalletByID(ctx context.Context, id int64) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = ?`

	wallet, err := scanWallet(db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %d: %w", id, err)
	}
	return wallet, nil
}

func (db *DB) GetAllWallets(ctx context.Context) ([]*models.Wallet, error) {
	rows, err := db.conn(ctx).QueryContext(ctx, `SELECT `+walletColumns+` FROM wallets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// UpdateWallet stores both balances if the stored version still matches wallet.Version.
func (db *DB) UpdateWallet(ctx context.Context, wallet *models.Wallet) error {
	query := `UPDATE wallets SET balance = ?, pending_balance = ?, updated_at = ?, version = version + 1
			WHERE id = ? AND version = ?`

	now := time.Now()
	result, err := db.conn(ctx).ExecContext(ctx, query, wallet.Balance, wallet.PendingBalance, now, wallet.ID, wallet.Version)
	if err != nil {
		return fmt.Errorf("failed to update wallet %d: %w", wallet.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}

	wallet.UpdatedAt = now
	wallet.Version++
	return nil
}

// CreateTransaction returns domain.ErrAlreadyHeld when the booking already has a hold.
func (db *DB) CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (wallet_id, booking_id, amount, status, created_at, released_at)
			VALUES (?, ?, ?, ?, ?, ?)`

	if tx.Status == "" {
		tx.Status = models.TransactionPending
	}
	now := time.Now()
	result, err := db.conn(ctx).ExecContext(ctx, query, tx.WalletID, tx.BookingID, tx.Amount, tx.Status, now, tx.ReleasedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyHeld
		}
		return fmt.Errorf("failed to create wallet transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	tx.ID = id
	tx.CreatedAt = now
	return nil
}

func (db *DB) GetTransactionByBooking(ctx context.Context, bookingID int64) (*models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE booking_id = ?`

	tx, err := scanTransaction(db.conn(ctx).QueryRowContext(ctx, query, bookingID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrHoldNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction for booking %d: %w", bookingID, err)
	}
	return tx, nil
}

func (db *DB) GetTransactionsByWallet(ctx context.Context, walletID int64) ([]*models.WalletTransaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE wallet_id = ? ORDER BY created_at, id`

	rows, err := db.conn(ctx).QueryContext(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transactions of wallet %d: %w", walletID, err)
	}
	defer rows.Close()

	var txs []*models.WalletTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// UpdateTransaction moves a PENDING hold to its terminal status. A hold that is no longer
// PENDING is never rewritten.
func (db *DB) UpdateTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	query := `UPDATE wallet_transactions SET status = ?, released_at = ? WHERE id = ? AND status = ?`

	result, err := db.conn(ctx).ExecContext(ctx, query, tx.Status, tx.ReleasedAt, tx.ID, models.TransactionPending)
	if err != nil {
		return fmt.Errorf("failed to update transaction %d: %w", tx.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}
