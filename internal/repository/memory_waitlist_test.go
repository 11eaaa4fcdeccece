package repository

import (
	"context"
	"testing"
	"time"

	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryWaitlistRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryWaitlistRepository()

	enqueue := func(bookingID, showID int64, at time.Time) {
		t.Helper()
		require.NoError(t, repo.Enqueue(ctx, &domain.WaitlistEntry{
			BookingID:  bookingID,
			ShowID:     showID,
			SeatCount:  1,
			EnqueuedAt: at,
		}))
	}

	enqueue(10, 1, testNow.Add(2*time.Second))
	enqueue(11, 1, testNow)
	enqueue(12, 2, testNow)
	enqueue(13, 1, testNow.Add(2*time.Second))

	err := repo.Enqueue(ctx, &domain.WaitlistEntry{BookingID: 10, ShowID: 1, EnqueuedAt: testNow})
	require.ErrorIs(t, err, domain.ErrEditConflict)

	bookingIDs := func(showID int64) []int64 {
		entries, err := repo.GetByShow(ctx, showID)
		require.NoError(t, err)

		ids := make([]int64, len(entries))
		for i, entry := range entries {
			ids[i] = entry.BookingID
		}

		return ids
	}

	assert.Equal(t, []int64{11, 10, 13}, bookingIDs(1))
	assert.Equal(t, []int64{12}, bookingIDs(2))

	removed, err := repo.Remove(ctx, 10)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(ctx, 10)
	require.NoError(t, err)
	assert.False(t, removed)

	assert.Equal(t, []int64{11, 13}, bookingIDs(1))
}
