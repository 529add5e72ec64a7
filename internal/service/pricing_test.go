package service

import (
	"testing"
	"time"

	"rentflow/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveDailyPrice(t *testing.T) {
	listed := money("40")
	proposed := money("32.5")
	zero := decimal.Zero

	price, err := ResolveDailyPrice(listed, nil)
	require.NoError(t, err)
	assertMoney(t, "40", price)

	price, err = ResolveDailyPrice(listed, &proposed)
	require.NoError(t, err)
	assertMoney(t, "32.5", price)

	_, err = ResolveDailyPrice(listed, &zero)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = ResolveDailyPrice(decimal.Zero, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestTotalPrice(t *testing.T) {
	tests := []struct {
		name    string
		daily   string
		start   int
		end     int
		want    string
		wantErr error
	}{
		{name: "two days", daily: "40", start: 1, end: 3, want: "80"},
		{name: "one day", daily: "19.99", start: 0, end: 1, want: "19.99"},
		{name: "fractional cents stay exact", daily: "0.10", start: 0, end: 3, want: "0.30"},
		{name: "empty period", daily: "40", start: 2, end: 2, wantErr: domain.ErrInvalidDateRange},
		{name: "reversed period", daily: "40", start: 3, end: 1, wantErr: domain.ErrInvalidDateRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, err := TotalPrice(money(tt.daily), day(tt.start), day(tt.end))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assertMoney(t, tt.want, total)
		})
	}
}

func TestTotalPriceIgnoresTimeOfDay(t *testing.T) {
	start := fixedNow.Add(13 * time.Hour)
	total, err := TotalPrice(money("10"), start, fixedNow.AddDate(0, 0, 2))
	require.NoError(t, err)
	assertMoney(t, "20", total)
}
