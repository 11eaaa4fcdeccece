package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemoryLedger(t *testing.T, seats int, opts ...Option) (*MemoryLedger, *clock.Manual) {
	t.Helper()

	clk := clock.NewManual(testNow)
	opts = append([]Option{WithHoldTTL(10 * time.Minute), WithLockTimeout(50 * time.Millisecond)}, opts...)

	return NewMemoryLedger(newTestCatalog(t, seats), clk, discardLogger(), opts...), clk
}

func requireStatus(t *testing.T, l *MemoryLedger, seatID int64, want domain.SeatStatus) {
	t.Helper()

	state, err := l.State(context.Background(), testShowID, seatID)
	require.NoError(t, err)
	require.Equal(t, want, state.Status, "seat %d", seatID)
}

func TestMemoryLedger_TryClaim(t *testing.T) {
	ctx := context.Background()

	t.Run("claims idle seats", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 5)

		require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{2, 1}))

		state, err := l.State(ctx, testShowID, 1)
		require.NoError(t, err)
		assert.Equal(t, domain.SeatStatusHeld, state.Status)
		assert.Equal(t, "a", state.Owner)
		assert.Equal(t, testNow.Add(10*time.Minute), state.ExpiresAt)
	})

	t.Run("is all or nothing", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 5)

		require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{1, 2}))

		err := l.TryClaim(ctx, testShowID, "b", []int64{2, 3})
		require.ErrorIs(t, err, domain.ErrSeatUnavailable)
		requireStatus(t, l, 3, domain.SeatStatusIdle)
	})

	t.Run("rejects seats outside the hall", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 5)

		err := l.TryClaim(ctx, testShowID, "a", []int64{1, 99})
		require.ErrorIs(t, err, domain.ErrUnknownSeat)
		requireStatus(t, l, 1, domain.SeatStatusIdle)
	})

	t.Run("unknown show", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 5)

		err := l.TryClaim(ctx, 42, "a", []int64{1})
		require.ErrorIs(t, err, domain.ErrRecordNotFound)
	})

	t.Run("expired hold can be claimed again", func(t *testing.T) {
		l, clk := newTestMemoryLedger(t, 5)

		var notified atomic.Int32
		l.Subscribe(func(ctx context.Context, showID int64) { notified.Add(1) })

		require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{1}))

		clk.Advance(9 * time.Minute)
		require.ErrorIs(t, l.TryClaim(ctx, testShowID, "b", []int64{1}), domain.ErrSeatUnavailable)

		clk.Advance(time.Minute)
		require.NoError(t, l.TryClaim(ctx, testShowID, "b", []int64{1}))

		state, err := l.State(ctx, testShowID, 1)
		require.NoError(t, err)
		assert.Equal(t, "b", state.Owner)
		assert.Zero(t, notified.Load())
	})

	t.Run("times out on a contended seat", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 5)

		table, err := l.table(ctx, testShowID)
		require.NoError(t, err)

		slot := table.seats[3]
		require.True(t, slot.lock.TryAcquire(1))
		defer slot.lock.Release(1)

		err = l.TryClaim(ctx, testShowID, "a", []int64{1, 3})
		require.ErrorIs(t, err, domain.ErrSeatUnavailable)
		requireStatus(t, l, 1, domain.SeatStatusIdle)
	})

	t.Run("one winner for the last seat", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 3, WithLockTimeout(time.Second))

		var wins atomic.Int32
		var wg sync.WaitGroup

		for i := range 50 {
			wg.Add(1)
			go func() {
				defer wg.Done()

				owner := string(rune('A' + i%26))
				if l.TryClaim(ctx, testShowID, owner, []int64{3}) == nil {
					wins.Add(1)
				}
			}()
		}

		wg.Wait()
		require.EqualValues(t, 1, wins.Load())
	})
}

func TestMemoryLedger_Confirm(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		owner   string
		advance time.Duration
		wantErr error
	}{
		{name: "own live hold", owner: "a"},
		{name: "someone else's hold", owner: "b", wantErr: domain.ErrInvalidTransition},
		{name: "expired hold", owner: "a", advance: 10 * time.Minute, wantErr: domain.ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, clk := newTestMemoryLedger(t, 5)
			require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{1, 2}))

			clk.Advance(tt.advance)

			err := l.Confirm(ctx, testShowID, tt.owner, []int64{1, 2})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			requireStatus(t, l, 1, domain.SeatStatusOccupied)
			requireStatus(t, l, 2, domain.SeatStatusOccupied)

			// occupied seats never expire
			clk.Advance(time.Hour)
			requireStatus(t, l, 1, domain.SeatStatusOccupied)
		})
	}

	t.Run("idle seat", func(t *testing.T) {
		l, _ := newTestMemoryLedger(t, 5)

		err := l.Confirm(ctx, testShowID, "a", []int64{4})
		require.ErrorIs(t, err, domain.ErrInvalidTransition)
	})
}

func TestMemoryLedger_Release(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestMemoryLedger(t, 5)

	var notified []int64
	l.Subscribe(func(ctx context.Context, showID int64) { notified = append(notified, showID) })

	require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{1, 2}))
	require.NoError(t, l.Confirm(ctx, testShowID, "a", []int64{1, 2}))
	require.NoError(t, l.TryClaim(ctx, testShowID, "b", []int64{3}))

	released, err := l.Release(ctx, testShowID, "b", []int64{1, 2})
	require.NoError(t, err)
	require.Zero(t, released)
	require.Empty(t, notified)
	requireStatus(t, l, 1, domain.SeatStatusOccupied)

	released, err = l.Release(ctx, testShowID, "a", []int64{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 2, released)
	require.Equal(t, []int64{testShowID}, notified)
	requireStatus(t, l, 1, domain.SeatStatusIdle)
	requireStatus(t, l, 3, domain.SeatStatusHeld)

	released, err = l.Release(ctx, testShowID, "a", []int64{1, 2})
	require.NoError(t, err)
	require.Zero(t, released)
	require.Len(t, notified, 1)
}

func TestMemoryLedger_AvailableSeats(t *testing.T) {
	ctx := context.Background()
	l, clk := newTestMemoryLedger(t, 6)

	require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{1}))
	require.NoError(t, l.TryClaim(ctx, testShowID, "b", []int64{2, 5}))
	require.NoError(t, l.Confirm(ctx, testShowID, "b", []int64{2, 5}))

	seats, err := l.AvailableSeats(ctx, testShowID, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4, 6}, seatIDs(seats))

	vip := domain.SeatTypeVIP
	seats, err = l.AvailableSeats(ctx, testShowID, &vip)
	require.NoError(t, err)
	require.Equal(t, []int64{6}, seatIDs(seats))

	var notified atomic.Int32
	l.Subscribe(func(ctx context.Context, showID int64) { notified.Add(1) })

	clk.Advance(10 * time.Minute)

	seats, err = l.AvailableSeats(ctx, testShowID, nil)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 3, 4, 6}, seatIDs(seats))
	require.EqualValues(t, 1, notified.Load())
}

func TestMemoryLedger_Sweep(t *testing.T) {
	ctx := context.Background()
	l, clk := newTestMemoryLedger(t, 5)

	var notified []int64
	l.Subscribe(func(ctx context.Context, showID int64) { notified = append(notified, showID) })

	require.NoError(t, l.TryClaim(ctx, testShowID, "a", []int64{1, 2}))
	require.NoError(t, l.Sweep(ctx))
	require.Empty(t, notified)

	clk.Advance(11 * time.Minute)

	require.NoError(t, l.Sweep(ctx))
	require.Equal(t, []int64{testShowID}, notified)

	table, err := l.table(ctx, testShowID)
	require.NoError(t, err)
	require.Equal(t, domain.SeatStatusIdle, table.seats[1].status)
}

func TestMemoryLedger_OccupancySource(t *testing.T) {
	ctx := context.Background()

	var loads atomic.Int32
	src := occupancyFunc(func(ctx context.Context, showID int64) (map[int64]string, error) {
		loads.Add(1)
		return map[int64]string{2: "persisted", 77: "stale"}, nil
	})

	l, _ := newTestMemoryLedger(t, 5, WithOccupancySource(src))

	state, err := l.State(ctx, testShowID, 2)
	require.NoError(t, err)
	assert.Equal(t, domain.SeatStatusOccupied, state.Status)
	assert.Equal(t, "persisted", state.Owner)

	require.ErrorIs(t, l.TryClaim(ctx, testShowID, "a", []int64{2}), domain.ErrSeatUnavailable)

	released, err := l.Release(ctx, testShowID, "persisted", []int64{2})
	require.NoError(t, err)
	assert.Equal(t, 1, released)
	assert.EqualValues(t, 1, loads.Load())
}
