// Package ledger owns the per-show seat state (idle, held, occupied) and is
// the only place where that state changes.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/seat-booking/internal/domain"
)

const (
	DefaultHoldTTL     = 10 * time.Minute
	DefaultLockTimeout = 2 * time.Second
)

var errNoSeats = errors.New("no seats given")

// Option configures the timing of a ledger.
type Option func(*options)

type options struct {
	holdTTL     time.Duration
	lockTimeout time.Duration
	occupancy   domain.OccupancySource
}

func defaultOptions() options {
	return options{
		holdTTL:     DefaultHoldTTL,
		lockTimeout: DefaultLockTimeout,
	}
}

// WithHoldTTL overrides how long a claimed seat stays held before it
// returns to idle.
func WithHoldTTL(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.holdTTL = d
		}
	}
}

// WithLockTimeout bounds how long a claim waits for contended seats.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithOccupancySource seeds occupied seats from persisted bookings the first
// time a show is loaded.
func WithOccupancySource(src domain.OccupancySource) Option {
	return func(o *options) {
		o.occupancy = src
	}
}

type listeners struct {
	mu  sync.RWMutex
	fns []domain.CapacityListener
}

func (l *listeners) Subscribe(listener domain.CapacityListener) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.fns = append(l.fns, listener)
}

// notify runs every listener synchronously. Listeners outlive the request
// that freed the seats, so they get a context that is never cancelled.
func (l *listeners) notify(ctx context.Context, showID int64) {
	l.mu.RLock()
	fns := slices.Clone(l.fns)
	l.mu.RUnlock()

	ctx = context.WithoutCancel(ctx)

	for _, fn := range fns {
		fn(ctx, showID)
	}
}

func loadLayout(ctx context.Context, catalog domain.Catalog, showID int64) ([]domain.HallSeat, error) {
	show, err := catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("load show %d: %w", showID, err)
	}

	seats, err := catalog.GetHallSeats(ctx, show.HallID)
	if err != nil {
		return nil, fmt.Errorf("load seats of hall %d: %w", show.HallID, err)
	}

	return seats, nil
}

// normalizeSeatIDs returns the ids sorted ascending without duplicates.
func normalizeSeatIDs(seatIDs []int64) ([]int64, error) {
	if len(seatIDs) == 0 {
		return nil, errNoSeats
	}

	ids := slices.Clone(seatIDs)
	slices.Sort(ids)

	return slices.Compact(ids), nil
}

func matchesType(seat domain.HallSeat, seatType *domain.SeatType) bool {
	return seatType == nil || seat.Type == *seatType
}

var (
	_ domain.SeatLedger = (*MemoryLedger)(nil)
	_ domain.SeatLedger = (*RedisLedger)(nil)
	_ Sweeper           = (*MemoryLedger)(nil)
	_ Sweeper           = (*RedisLedger)(nil)
)
