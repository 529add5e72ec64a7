package service

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"

	"rentflow/internal/domain"
	"rentflow/internal/events"
	"rentflow/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)

	b := f.request(t, f.item, 1, 3)

	assert.NotZero(t, b.ID)
	assert.Equal(t, models.StatusRequested, b.Status)
	assert.Equal(t, models.PaymentPending, b.PaymentStatus)
	assert.Equal(t, ownerID, b.OwnerID)
	assertMoney(t, "40", b.DailyPrice)
	assertMoney(t, "80", b.TotalPrice)
	assert.Equal(t, 2, b.Days())

	stored, err := f.bookings.GetBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.StartDate, stored.StartDate)
	assertMoney(t, "80", stored.TotalPrice)
}

func TestCreateBookingProposedPrice(t *testing.T) {
	f := newFixture(t)
	proposed := money("35.50")

	b, err := f.bookings.CreateBooking(context.Background(), domain.CreateBookingRequest{
		ItemID:        f.item.ID,
		RenterID:      renterID,
		StartDate:     day(0),
		EndDate:       day(4),
		ProposedPrice: &proposed,
	})
	require.NoError(t, err)
	assertMoney(t, "35.50", b.DailyPrice)
	assertMoney(t, "142", b.TotalPrice)
}

func TestCreateBookingValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := &models.Item{ID: 3, OwnerID: ownerID, Name: "Списанный велосипед", DailyPrice: money("10"), IsActive: false}
	require.NoError(t, f.items.SyncItems(ctx, []*models.Item{inactive}))

	zero := decimal.Zero
	negative := money("-5")

	tests := []struct {
		name    string
		req     domain.CreateBookingRequest
		wantErr error
	}{
		{
			name:    "no renter",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, StartDate: day(1), EndDate: day(2)},
			wantErr: domain.ErrRenterRequired,
		},
		{
			name:    "unknown item",
			req:     domain.CreateBookingRequest{ItemID: 999, RenterID: renterID, StartDate: day(1), EndDate: day(2)},
			wantErr: domain.ErrItemNotFound,
		},
		{
			name:    "inactive item",
			req:     domain.CreateBookingRequest{ItemID: inactive.ID, RenterID: renterID, StartDate: day(1), EndDate: day(2)},
			wantErr: domain.ErrItemInactive,
		},
		{
			name:    "own item",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: ownerID, StartDate: day(1), EndDate: day(2)},
			wantErr: domain.ErrOwnItem,
		},
		{
			name:    "zero proposed price",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID, StartDate: day(1), EndDate: day(2), ProposedPrice: &zero},
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "negative proposed price",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID, StartDate: day(1), EndDate: day(2), ProposedPrice: &negative},
			wantErr: domain.ErrInvalidPrice,
		},
		{
			name:    "missing dates",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID},
			wantErr: domain.ErrDatesRequired,
		},
		{
			name:    "start in the past",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID, StartDate: day(-1), EndDate: day(2)},
			wantErr: domain.ErrPastDate,
		},
		{
			name:    "end equals start",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID, StartDate: day(2), EndDate: day(2)},
			wantErr: domain.ErrInvalidDateRange,
		},
		{
			name:    "end before start",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID, StartDate: day(3), EndDate: day(2)},
			wantErr: domain.ErrInvalidDateRange,
		},
		{
			name:    "start too far ahead",
			req:     domain.CreateBookingRequest{ItemID: f.item.ID, RenterID: renterID, StartDate: day(366), EndDate: day(368)},
			wantErr: domain.ErrDateTooFar,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := f.bookings.CreateBooking(ctx, tt.req)
			assert.Nil(t, b)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	renterBookings, err := f.bookings.ListRenterBookings(ctx, renterID)
	require.NoError(t, err)
	assert.Empty(t, renterBookings, "rejected requests must not be stored")
}

func TestValidateBookingDatesBoundaries(t *testing.T) {
	f := newFixture(t)

	assert.NoError(t, f.bookings.ValidateBookingDates(day(0), day(1)), "today is bookable")
	assert.NoError(t, f.bookings.ValidateBookingDates(day(365), day(366)), "the last allowed start")
	assert.NoError(t, f.bookings.ValidateBookingDates(fixedNow, fixedNow.AddDate(0, 0, 1)), "time of day is ignored")
	assert.ErrorIs(t, f.bookings.ValidateBookingDates(day(366), day(367)), domain.ErrDateTooFar)
}

func TestCreateBookingConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.request(t, f.item, 2, 5)

	_, err := f.bookings.CreateBooking(ctx, domain.CreateBookingRequest{
		ItemID: f.item.ID, RenterID: 201, StartDate: day(4), EndDate: day(6),
	})
	assert.ErrorIs(t, err, domain.ErrNotAvailable)
	assert.Equal(t, "conflict", domain.KindOf(err))

	// Смежные периоды не пересекаются
	f.request(t, f.item, 5, 7)
	f.request(t, f.item, 0, 2)

	// Другой предмет на те же даты свободен
	f.request(t, f.pricey, 2, 5)

	_, err = f.bookings.DeclineBooking(ctx, first.ID, ownerID)
	require.NoError(t, err)

	again := f.request(t, f.item, 3, 4)
	assert.Equal(t, models.StatusRequested, again.Status)
}

func TestCreateBookingConcurrentSameDates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(renter int64) {
			defer wg.Done()
			_, err := f.bookings.CreateBooking(ctx, domain.CreateBookingRequest{
				ItemID: f.item.ID, RenterID: renter, StartDate: day(10), EndDate: day(12),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrNotAvailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(int64(1000 + i))
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)

	ranges, err := f.bookings.UnavailableRanges(ctx, f.item.ID)
	require.NoError(t, err)
	assert.Len(t, ranges, 1)
}

func TestAcceptAndDecline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("only owner accepts", func(t *testing.T) {
		b := f.request(t, f.item, 1, 2)

		_, err := f.bookings.AcceptBooking(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, domain.ErrNotOwner)
		assert.Equal(t, "forbidden", domain.KindOf(err))

		accepted, err := f.bookings.AcceptBooking(ctx, b.ID, ownerID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, accepted.Status)

		_, err = f.bookings.AcceptBooking(ctx, b.ID, ownerID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)

		_, err = f.bookings.DeclineBooking(ctx, b.ID, ownerID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("decline is terminal", func(t *testing.T) {
		b := f.request(t, f.item, 3, 4)

		_, err := f.bookings.DeclineBooking(ctx, b.ID, 999)
		assert.ErrorIs(t, err, domain.ErrNotOwner)

		declined, err := f.bookings.DeclineBooking(ctx, b.ID, ownerID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusRejected, declined.Status)

		_, err = f.bookings.AcceptBooking(ctx, b.ID, ownerID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		_, err = f.bookings.CancelBooking(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("unknown booking", func(t *testing.T) {
		_, err := f.bookings.AcceptBooking(ctx, 4242, ownerID)
		assert.ErrorIs(t, err, domain.ErrBookingNotFound)
		assert.Equal(t, "not_found", domain.KindOf(err))
	})
}

func TestCounterOfferFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.request(t, f.item, 1, 3)

	countered, err := f.bookings.CounterOfferBooking(ctx, b.ID, money("50"), ownerID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCounterOffer, countered.Status)
	assertMoney(t, "50", countered.DailyPrice)
	assertMoney(t, "100", countered.TotalPrice)

	// Повторное встречное предложение допустимо
	countered, err = f.bookings.CounterOfferBooking(ctx, b.ID, money("45"), ownerID)
	require.NoError(t, err)
	assertMoney(t, "90", countered.TotalPrice)

	_, err = f.bookings.AcceptCounterOffer(ctx, b.ID, 999)
	assert.ErrorIs(t, err, domain.ErrNotRenter)

	accepted, err := f.bookings.AcceptCounterOffer(ctx, b.ID, renterID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
	assertMoney(t, "90", accepted.TotalPrice)

	_, err = f.bookings.CounterOfferBooking(ctx, b.ID, money("60"), ownerID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = f.bookings.AcceptCounterOffer(ctx, b.ID, renterID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCounterOfferValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.request(t, f.item, 1, 3)

	_, err := f.bookings.CounterOfferBooking(ctx, b.ID, decimal.Zero, ownerID)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = f.bookings.CounterOfferBooking(ctx, b.ID, money("-1"), ownerID)
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)

	_, err = f.bookings.CounterOfferBooking(ctx, b.ID, money("50"), renterID)
	assert.ErrorIs(t, err, domain.ErrNotOwner)

	stored, err := f.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRequested, stored.Status)
	assertMoney(t, "80", stored.TotalPrice)
}

func TestDeclineCounterOfferCancels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cancelled := f.countEvents(events.EventBookingCancelled)

	b := f.request(t, f.item, 1, 3)
	_, err := f.bookings.DeclineCounterOffer(ctx, b.ID, renterID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "nothing to decline yet")

	_, err = f.bookings.CounterOfferBooking(ctx, b.ID, money("50"), ownerID)
	require.NoError(t, err)

	declined, err := f.bookings.DeclineCounterOffer(ctx, b.ID, renterID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, declined.Status)
	assert.Equal(t, int64(1), cancelled.Load())
}

func TestCounterOfferedDatesAreRecheckedOnAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.request(t, f.item, 1, 4)
	_, err := f.bookings.CounterOfferBooking(ctx, b.ID, money("30"), ownerID)
	require.NoError(t, err)

	// Встречное предложение освобождает календарь
	other, err := f.bookings.CreateBooking(ctx, domain.CreateBookingRequest{
		ItemID: f.item.ID, RenterID: 201, StartDate: day(2), EndDate: day(3),
	})
	require.NoError(t, err)

	_, err = f.bookings.AcceptCounterOffer(ctx, b.ID, renterID)
	assert.ErrorIs(t, err, domain.ErrNotAvailable)

	_, err = f.bookings.AcceptBooking(ctx, b.ID, ownerID)
	assert.ErrorIs(t, err, domain.ErrNotAvailable)

	_, err = f.bookings.DeclineBooking(ctx, other.ID, ownerID)
	require.NoError(t, err)

	accepted, err := f.bookings.AcceptCounterOffer(ctx, b.ID, renterID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, accepted.Status)
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("requested", func(t *testing.T) {
		b := f.request(t, f.item, 1, 2)

		_, err := f.bookings.CancelBooking(ctx, b.ID, ownerID)
		assert.ErrorIs(t, err, domain.ErrNotRenter)

		cancelled, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)

		_, err = f.bookings.CancelBooking(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("ongoing rental", func(t *testing.T) {
		b := &models.Booking{
			ItemID: f.item.ID, RenterID: renterID, OwnerID: ownerID,
			StartDate: day(-1), EndDate: day(1),
			DailyPrice: money("40"), TotalPrice: money("80"),
			Status: models.StatusAccepted,
		}
		require.NoError(t, f.db.CreateBooking(ctx, b))

		cancelled, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusCancelled, cancelled.Status)
	})

	t.Run("period ended", func(t *testing.T) {
		b := &models.Booking{
			ItemID: f.item.ID, RenterID: renterID, OwnerID: ownerID,
			StartDate: day(-3), EndDate: day(-1),
			DailyPrice: money("40"), TotalPrice: money("80"),
			Status: models.StatusAccepted,
		}
		require.NoError(t, f.db.CreateBooking(ctx, b))

		_, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, domain.ErrBookingEnded)
		assert.Equal(t, "validation", domain.KindOf(err))

		stored, err := f.bookings.GetBooking(ctx, b.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAccepted, stored.Status)
	})

	t.Run("ends today", func(t *testing.T) {
		b := &models.Booking{
			ItemID: f.pricey.ID, RenterID: renterID, OwnerID: ownerID,
			StartDate: day(-2), EndDate: day(0),
			DailyPrice: money("250"), TotalPrice: money("500"),
			Status: models.StatusAccepted,
		}
		require.NoError(t, f.db.CreateBooking(ctx, b))

		_, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
		assert.ErrorIs(t, err, domain.ErrBookingEnded)
	})
}

func TestCancelPaidBookingRefundsHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	refunded := f.countEvents(events.EventFundsRefunded)

	b := f.paid(t, f.item, 1, 3)
	assertMoney(t, "80", f.walletOf(t, ownerID).PendingBalance)

	_, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
	require.NoError(t, err)

	w := f.walletOf(t, ownerID)
	assertMoney(t, "0", w.PendingBalance)
	assertMoney(t, "0", w.Balance)
	assert.Equal(t, models.TransactionRefunded, f.hold(t, b.ID).Status)
	assert.Equal(t, int64(1), refunded.Load())
}

func TestRecordPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	paidEvents := f.countEvents(events.EventBookingPaid)

	b := f.request(t, f.item, 1, 2)

	_, err := f.bookings.RecordPayment(ctx, b.ID, models.PaymentResult{Success: true, Reference: "PAY-x"})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "requested bookings cannot be paid")

	_, err = f.bookings.AcceptBooking(ctx, b.ID, ownerID)
	require.NoError(t, err)

	failed, err := f.bookings.RecordPayment(ctx, b.ID, models.PaymentResult{Success: false, Reason: "card declined"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, failed.PaymentStatus)
	assert.Equal(t, int64(0), paidEvents.Load())

	paid, err := f.bookings.RecordPayment(ctx, b.ID, models.PaymentResult{Success: true, Reference: "PAY-1"})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, "PAY-1", paid.PaymentReference)
	assert.Equal(t, int64(1), paidEvents.Load())

	_, err = f.bookings.RecordPayment(ctx, b.ID, models.PaymentResult{Success: true, Reference: "PAY-2"})
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
}

func TestBookingListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requested := f.request(t, f.item, 1, 2)
	countered := f.request(t, f.item, 3, 4)
	_, err := f.bookings.CounterOfferBooking(ctx, countered.ID, money("20"), ownerID)
	require.NoError(t, err)

	upcoming := f.request(t, f.pricey, 1, 2)
	_, err = f.bookings.AcceptBooking(ctx, upcoming.ID, ownerID)
	require.NoError(t, err)

	past := &models.Booking{
		ItemID: f.pricey.ID, RenterID: renterID, OwnerID: ownerID,
		StartDate: day(-5), EndDate: day(-2),
		DailyPrice: money("250"), TotalPrice: money("750"),
		Status: models.StatusAccepted,
	}
	require.NoError(t, f.db.CreateBooking(ctx, past))

	requests, err := f.bookings.ListOwnerRequests(ctx, ownerID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{requested.ID, countered.ID}, bookingIDs(requests))

	rentals, err := f.bookings.ListOwnerRentals(ctx, ownerID, true)
	require.NoError(t, err)
	assert.Equal(t, []int64{upcoming.ID}, bookingIDs(rentals))

	history, err := f.bookings.ListOwnerRentals(ctx, ownerID, false)
	require.NoError(t, err)
	assert.Equal(t, []int64{past.ID}, bookingIDs(history))

	mine, err := f.bookings.ListRenterBookings(ctx, renterID)
	require.NoError(t, err)
	assert.Len(t, mine, 4)

	none, err := f.bookings.ListOwnerRequests(ctx, 555)
	require.NoError(t, err)
	assert.Empty(t, none)

	ranges, err := f.bookings.UnavailableRanges(ctx, f.item.ID)
	require.NoError(t, err)
	require.Len(t, ranges, 1, "counter-offers do not block the calendar")
	assert.Equal(t, models.DateRange{Start: day(1), End: day(2)}, ranges[0])
}

func TestCounterOfferTotalsProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 30; i++ {
		start := i * 3
		length := 1 + rng.Intn(3)
		b := f.request(t, f.item, start, start+length)

		for j := 0; j < 1+rng.Intn(3); j++ {
			price := decimal.New(int64(1+rng.Intn(100000)), -2)
			countered, err := f.bookings.CounterOfferBooking(ctx, b.ID, price, ownerID)
			require.NoError(t, err)
			assert.True(t, countered.TotalPrice.Equal(price.Mul(decimal.NewFromInt(int64(length)))),
				"booking %d: %s × %d != %s", b.ID, price, length, countered.TotalPrice)
		}
	}
}

func TestMutatePropagatesStorageErrors(t *testing.T) {
	logger := zerolog.Nop()
	repo := new(mockBookingRepo)
	svc := NewBookingService(passthroughTx{}, repo, new(mockItemLookup), nil, nil, 30, &logger)

	diskErr := errors.New("disk I/O error")
	repo.On("GetBooking", mock.Anything, int64(1)).
		Return(&models.Booking{ID: 1, OwnerID: ownerID, Status: models.StatusRequested}, nil)
	repo.On("UpdateBooking", mock.Anything, mock.AnythingOfType("*models.Booking")).Return(diskErr)

	b, err := svc.AcceptBooking(context.Background(), 1, ownerID)
	assert.Nil(t, b)
	assert.ErrorIs(t, err, diskErr)
	assert.Equal(t, "internal", domain.KindOf(err))
	repo.AssertExpectations(t)
}

func TestCreateBookingItemLookupError(t *testing.T) {
	logger := zerolog.Nop()
	repo := new(mockBookingRepo)
	items := new(mockItemLookup)
	svc := NewBookingService(passthroughTx{}, repo, items, nil, nil, 30, &logger)

	items.On("GetItemByID", mock.Anything, int64(7)).Return(nil, domain.ErrItemNotFound)

	_, err := svc.CreateBooking(context.Background(), domain.CreateBookingRequest{
		ItemID: 7, RenterID: renterID, StartDate: day(1), EndDate: day(2),
	})
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
	repo.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
	items.AssertExpectations(t)
}

func bookingIDs(bookings []*models.Booking) []int64 {
	ids := make([]int64, 0, len(bookings))
	for _, b := range bookings {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestCancelRollsBackWhenRefundFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.paid(t, f.item, 1, 3)

	// Кошелек не принимает изменений: отмена должна откатиться целиком
	_, err := f.db.ExecContext(ctx, `CREATE TRIGGER wallets_frozen BEFORE UPDATE ON wallets
		BEGIN SELECT RAISE(ABORT, 'wallets frozen'); END`)
	require.NoError(t, err)

	_, err = f.bookings.CancelBooking(ctx, b.ID, renterID)
	require.Error(t, err)
	assert.Equal(t, "internal", domain.KindOf(err))

	stored, err := f.bookings.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, stored.Status)
	assert.Equal(t, models.TransactionPending, f.hold(t, b.ID).Status)
	assertMoney(t, "80", f.walletOf(t, ownerID).PendingBalance)

	_, err = f.db.ExecContext(ctx, `DROP TRIGGER wallets_frozen`)
	require.NoError(t, err)

	cancelled, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, models.TransactionRefunded, f.hold(t, b.ID).Status)
	assertMoney(t, "0", f.walletOf(t, ownerID).PendingBalance)
}

func TestPaymentClaim(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	requested := f.request(t, f.item, 5, 6)
	_, err := f.bookings.BeginPayment(ctx, requested.ID, renterID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	b := f.accepted(t, f.item, 1, 3)

	_, err = f.bookings.BeginPayment(ctx, b.ID, ownerID)
	assert.ErrorIs(t, err, domain.ErrNotRenter)

	claimed, err := f.bookings.BeginPayment(ctx, b.ID, renterID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProcessing, claimed.PaymentStatus)

	_, err = f.bookings.BeginPayment(ctx, b.ID, renterID)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)
	assert.Equal(t, "conflict", domain.KindOf(err))

	// Пока идет оплата, отмена запрещена
	_, err = f.bookings.CancelBooking(ctx, b.ID, renterID)
	assert.ErrorIs(t, err, domain.ErrPaymentInProgress)

	released, err := f.bookings.AbortPayment(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPending, released.PaymentStatus)

	_, err = f.bookings.AbortPayment(ctx, b.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	cancelled, err := f.bookings.CancelBooking(ctx, b.ID, renterID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)
}
