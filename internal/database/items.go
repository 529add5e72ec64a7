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

const itemColumns = `id, owner_id, name, daily_price, is_active, created_at, updated_at`

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	err := row.Scan(&item.ID, &item.OwnerID, &item.Name, &item.DailyPrice, &item.IsActive, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (db *DB) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

	item, err := scanItem(db.conn(ctx).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item %d: %w", id, err)
	}
	return item, nil
}

func (db *DB) GetActiveItems(ctx context.Context) ([]*models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE is_active = 1 ORDER BY id`

	rows, err := db.conn(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpsertItem inserts the item, or overwrites the row with the same id. A zero id gets a new one.
func (db *DB) UpsertItem(ctx context.Context, item *models.Item) error {
	query := `INSERT INTO items (id, owner_id, name, daily_price, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				owner_id = excluded.owner_id,
				name = excluded.name,
				daily_price = excluded.daily_price,
				is_active = excluded.is_active,
				updated_at = excluded.updated_at`

	var id any
	if item.ID != 0 {
		id = item.ID
	}

	now := time.Now()
	result, err := db.conn(ctx).ExecContext(ctx, query, id, item.OwnerID, item.Name, item.DailyPrice, item.IsActive, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	if item.ID == 0 {
		newID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		item.ID = newID
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return nil
}
