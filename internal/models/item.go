package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Item struct {
	ID         int64           `json:"id"`
	OwnerID    int64           `json:"owner_id"`
	Name       string          `json:"name"`
	DailyPrice decimal.Decimal `json:"daily_price"`
	IsActive   bool            `json:"is_active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}
