package domain

import (
	"context"
	"iter"
	"time"
)

type SeatStatus string

const (
	SeatStatusIdle     SeatStatus = "idle"
	SeatStatusHeld     SeatStatus = "held"
	SeatStatusOccupied SeatStatus = "occupied"
)

// SeatState is the per show x hall seat unit owned by the seat ledger.
type SeatState struct {
	ShowID    int64
	SeatID    int64
	Status    SeatStatus
	Owner     string
	ExpiresAt time.Time
}

// CapacityListener is notified after seats of a show return to idle.
type CapacityListener func(ctx context.Context, showID int64)

type SeatLedger interface {
	TryClaim(ctx context.Context, showID int64, owner string, seatIDs []int64) error
	Confirm(ctx context.Context, showID int64, owner string, seatIDs []int64) error
	Release(ctx context.Context, showID int64, owner string, seatIDs []int64) (int, error)
	AvailableSeats(ctx context.Context, showID int64, seatType *SeatType) (iter.Seq[HallSeat], error)
	Subscribe(listener CapacityListener)
}

// OccupancySource reports persisted occupied seats of a show keyed by seat id,
// valued by the owning hold token.
type OccupancySource interface {
	OccupiedSeats(ctx context.Context, showID int64) (map[int64]string, error)
}
