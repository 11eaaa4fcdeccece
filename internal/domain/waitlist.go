package domain

import (
	"context"
	"time"
)

type WaitlistEntry struct {
	ID         int64
	BookingID  int64
	ShowID     int64
	SeatCount  int
	SeatIDs    []int64
	SeatType   *SeatType
	EnqueuedAt time.Time
}

type WaitlistRepository interface {
	Enqueue(ctx context.Context, entry *WaitlistEntry) error
	// GetByShow returns the show's entries in FIFO order.
	GetByShow(ctx context.Context, showID int64) ([]WaitlistEntry, error)
	Remove(ctx context.Context, bookingID int64) (bool, error)
}
