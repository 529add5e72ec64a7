package service

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"rentflow/internal/database"
	"rentflow/internal/domain"
	"rentflow/internal/events"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	ownerID  int64 = 100
	renterID int64 = 200
)

var fixedNow = time.Date(2030, 6, 1, 10, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return models.DateOf(fixedNow).AddDate(0, 0, n)
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

type fixture struct {
	db       *database.DB
	bus      *events.EventBus
	items    *ItemService
	bookings *BookingService
	wallet   *WalletService
	confirm  *ConfirmationService
	checkout *CheckoutService

	item   *models.Item // 40.00 per day
	pricey *models.Item // 250.00 per day
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zerolog.Nop()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := events.NewEventBus()
	items := NewItemService(db, db, nil, &logger)

	wallet := NewWalletService(db, db, db, bus, &logger)
	wallet.now = func() time.Time { return fixedNow }

	bookings := NewBookingService(db, db, items, wallet, bus, 365, &logger)
	bookings.now = func() time.Time { return fixedNow }

	confirm := NewConfirmationService(db, db, wallet, bus, &logger)
	confirm.now = func() time.Time { return fixedNow }

	checkout := NewCheckoutService(db, bookings, wallet, NewMockGateway(), &logger)

	f := &fixture{
		db:       db,
		bus:      bus,
		items:    items,
		bookings: bookings,
		wallet:   wallet,
		confirm:  confirm,
		checkout: checkout,
		item:     &models.Item{ID: 1, OwnerID: ownerID, Name: "Палатка", DailyPrice: money("40.0"), IsActive: true},
		pricey:   &models.Item{ID: 2, OwnerID: ownerID, Name: "Катамаран", DailyPrice: money("250.00"), IsActive: true},
	}
	require.NoError(t, items.SyncItems(context.Background(), []*models.Item{f.item, f.pricey}))
	return f
}

func (f *fixture) request(t *testing.T, item *models.Item, start, end int) *models.Booking {
	t.Helper()
	b, err := f.bookings.CreateBooking(context.Background(), domain.CreateBookingRequest{
		ItemID:    item.ID,
		RenterID:  renterID,
		StartDate: day(start),
		EndDate:   day(end),
	})
	require.NoError(t, err)
	return b
}

// paid creates a booking, has the owner accept it and the renter pay for it.
func (f *fixture) paid(t *testing.T, item *models.Item, start, end int) *models.Booking {
	t.Helper()
	ctx := context.Background()
	b := f.request(t, item, start, end)
	_, err := f.bookings.AcceptBooking(ctx, b.ID, ownerID)
	require.NoError(t, err)
	b, err = f.checkout.PayBooking(ctx, b.ID, renterID)
	require.NoError(t, err)
	return b
}

func (f *fixture) walletOf(t *testing.T, owner int64) *models.Wallet {
	t.Helper()
	w, err := f.wallet.GetWallet(context.Background(), owner)
	require.NoError(t, err)
	return w
}

func (f *fixture) hold(t *testing.T, bookingID int64) *models.WalletTransaction {
	t.Helper()
	h, err := f.db.GetTransactionByBooking(context.Background(), bookingID)
	require.NoError(t, err)
	return h
}

// countEvents subscribes a counter for eventType.
func (f *fixture) countEvents(eventType string) *atomic.Int64 {
	n := new(atomic.Int64)
	f.bus.Subscribe(eventType, func(context.Context, *events.Event) error {
		n.Add(1)
		return nil
	})
	return n
}

type passthroughTx struct{}

func (passthroughTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) UpdateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}

func (m *mockBookingRepo) HasOverlappingBooking(ctx context.Context, itemID int64, start, end time.Time, excludeID int64) (bool, error) {
	args := m.Called(ctx, itemID, start, end, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *mockBookingRepo) GetActiveBookingsByItem(ctx context.Context, itemID int64) ([]*models.Booking, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetBookingsByRenter(ctx context.Context, id int64) ([]*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

func (m *mockBookingRepo) GetBookingsByOwner(ctx context.Context, id int64, statuses []models.BookingStatus) ([]*models.Booking, error) {
	args := m.Called(ctx, id, statuses)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Booking), args.Error(1)
}

type mockItemLookup struct {
	mock.Mock
}

func (m *mockItemLookup) GetItemByID(ctx context.Context, id int64) (*models.Item, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Item), args.Error(1)
}
