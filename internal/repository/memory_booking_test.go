package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 18, 0, 0, 0, time.UTC)

func newPendingBooking(t *testing.T, repo *MemoryBookingRepository, userID int64) *domain.Booking {
	t.Helper()

	booking := &domain.Booking{
		UserID:    userID,
		ShowID:    1,
		SeatCount: 2,
		Status:    domain.BookingStatusPending,
		CreatedAt: repo.clock.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), booking))

	return booking
}

func confirmUpdate(token string, seatIDs ...int64) domain.BookingUpdate {
	return domain.BookingUpdate{
		Status:     domain.BookingStatusConfirmed,
		SeatIDs:    seatIDs,
		TotalPrice: decimal.NewFromInt(200),
		HoldToken:  token,
	}
}

func TestMemoryBookingRepository_Transition(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(testNow)
	repo := NewMemoryBookingRepository(clk)

	booking := newPendingBooking(t, repo, 1)
	require.Equal(t, int64(1), booking.ID)

	clk.Advance(time.Second)

	confirmed, err := repo.Transition(ctx, booking.ID, domain.BookingStatusPending, confirmUpdate("hold-1", 1, 2))
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, []int64{1, 2}, confirmed.SeatIDs)
	assert.Equal(t, "hold-1", confirmed.HoldToken)
	assert.Equal(t, testNow.Add(time.Second), confirmed.UpdatedAt)

	_, err = repo.Transition(ctx, booking.ID, domain.BookingStatusPending, domain.BookingUpdate{Status: domain.BookingStatusRejected})
	require.ErrorIs(t, err, domain.ErrEditConflict)

	_, err = repo.Transition(ctx, 42, domain.BookingStatusPending, domain.BookingUpdate{Status: domain.BookingStatusRejected})
	require.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = repo.Transition(ctx, booking.ID, domain.BookingStatusConfirmed, domain.BookingUpdate{Status: domain.BookingStatusWaiting})
	require.ErrorIs(t, err, domain.ErrInvalidState)

	cancelled, err := repo.Transition(ctx, booking.ID, domain.BookingStatusConfirmed, domain.BookingUpdate{Status: domain.BookingStatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, cancelled.SeatIDs, "cancelled bookings keep their seat history")
	assert.Equal(t, "200", cancelled.TotalPrice.String())
}

func TestMemoryBookingRepository_SeatsAreBookedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository(clock.NewManual(testNow))

	first := newPendingBooking(t, repo, 1)
	second := newPendingBooking(t, repo, 2)

	_, err := repo.Transition(ctx, first.ID, domain.BookingStatusPending, confirmUpdate("hold-1", 1, 2))
	require.NoError(t, err)

	_, err = repo.Transition(ctx, second.ID, domain.BookingStatusPending, confirmUpdate("hold-2", 2, 3))
	require.ErrorIs(t, err, domain.ErrSeatUnavailable)

	occupied, err := repo.OccupiedSeats(ctx, 1)
	require.NoError(t, err)
	if diff := cmp.Diff(map[int64]string{1: "hold-1", 2: "hold-1"}, occupied); diff != "" {
		t.Errorf("OccupiedSeats() mismatch (-want +got):\n%s", diff)
	}

	_, err = repo.Transition(ctx, first.ID, domain.BookingStatusConfirmed, domain.BookingUpdate{Status: domain.BookingStatusCancelled})
	require.NoError(t, err)

	_, err = repo.Transition(ctx, second.ID, domain.BookingStatusPending, confirmUpdate("hold-2", 2, 3))
	require.NoError(t, err)

	occupied, err = repo.OccupiedSeats(ctx, 1)
	require.NoError(t, err)
	if diff := cmp.Diff(map[int64]string{2: "hold-2", 3: "hold-2"}, occupied); diff != "" {
		t.Errorf("OccupiedSeats() mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryBookingRepository_GetByUserId(t *testing.T) {
	ctx := context.Background()
	clk := clock.NewManual(testNow)
	repo := NewMemoryBookingRepository(clk)

	for range 5 {
		clk.Advance(time.Minute)
		newPendingBooking(t, repo, 1)
	}
	newPendingBooking(t, repo, 2)

	tests := []struct {
		name       string
		pagination domain.Pagination
		wantIDs    []int64
	}{
		{name: "first page", pagination: domain.Pagination{Page: 1, PageSize: 2}, wantIDs: []int64{5, 4}},
		{name: "last page", pagination: domain.Pagination{Page: 3, PageSize: 2}, wantIDs: []int64{1}},
		{name: "past the end", pagination: domain.Pagination{Page: 4, PageSize: 2}, wantIDs: []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bookings, metadata, err := repo.GetByUserId(ctx, 1, tt.pagination)
			require.NoError(t, err)

			ids := make([]int64, 0, len(bookings))
			for _, b := range bookings {
				ids = append(ids, b.ID)
			}

			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, 5, metadata.TotalRecords)
			assert.Equal(t, 3, metadata.LastPage)
		})
	}

	bookings, metadata, err := repo.GetByUserId(ctx, 99, domain.Pagination{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, bookings)
	assert.Zero(t, metadata.TotalRecords)
}

func TestMemoryBookingRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryBookingRepository(clock.NewManual(testNow))

	booking := newPendingBooking(t, repo, 1)
	_, err := repo.Transition(ctx, booking.ID, domain.BookingStatusPending, confirmUpdate("hold-1", 1, 2))
	require.NoError(t, err)

	got, err := repo.GetById(ctx, booking.ID)
	require.NoError(t, err)
	got.SeatIDs[0] = 99

	again, err := repo.GetById(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, again.SeatIDs)
}
