package service

import (
	"time"

	"rentflow/internal/domain"
	"rentflow/internal/models"

	"github.com/shopspring/decimal"
)

// ResolveDailyPrice picks the negotiated price when one is proposed, the listed price otherwise.
func ResolveDailyPrice(listed decimal.Decimal, proposed *decimal.Decimal) (decimal.Decimal, error) {
	price := listed
	if proposed != nil {
		price = *proposed
	}
	if !price.IsPositive() {
		return decimal.Zero, domain.ErrInvalidPrice
	}
	return price, nil
}

// TotalPrice = daily price × calendar days in [start, end).
func TotalPrice(dailyPrice decimal.Decimal, start, end time.Time) (decimal.Decimal, error) {
	days := models.DaysBetween(start, end)
	if days <= 0 {
		return decimal.Zero, domain.ErrInvalidDateRange
	}
	return dailyPrice.Mul(decimal.NewFromInt(int64(days))), nil
}
