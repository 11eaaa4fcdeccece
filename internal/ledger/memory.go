package ledger

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
)

type seatSlot struct {
	seat domain.HallSeat
	// lock guards the fields below.
	lock      *semaphore.Weighted
	status    domain.SeatStatus
	owner     string
	expiresAt time.Time
}

// expireIfDue turns an expired hold back to idle and reports whether it did.
func (s *seatSlot) expireIfDue(now time.Time) bool {
	if s.status != domain.SeatStatusHeld || now.Before(s.expiresAt) {
		return false
	}

	s.setIdle()

	return true
}

func (s *seatSlot) setIdle() {
	s.status = domain.SeatStatusIdle
	s.owner = ""
	s.expiresAt = time.Time{}
}

type showTable struct {
	seats map[int64]*seatSlot
	// ordered by seat number
	order []*seatSlot
}

// lookup resolves seat ids to slots ordered by seat id, which is also the
// lock acquisition order.
func (t *showTable) lookup(seatIDs []int64) ([]*seatSlot, error) {
	ids, err := normalizeSeatIDs(seatIDs)
	if err != nil {
		return nil, err
	}

	slots := make([]*seatSlot, len(ids))
	for i, id := range ids {
		slot, ok := t.seats[id]
		if !ok {
			return nil, fmt.Errorf("seat %d: %w", id, domain.ErrUnknownSeat)
		}

		slots[i] = slot
	}

	return slots, nil
}

// MemoryLedger keeps seat state in process. Every seat has its own lock so
// claims on disjoint seats, and on different shows, never wait on each other.
type MemoryLedger struct {
	catalog domain.Catalog
	clock   clock.Clock
	logger  *slog.Logger
	opts    options

	listeners

	mu     sync.RWMutex
	shows  map[int64]*showTable
	loader singleflight.Group
}

func NewMemoryLedger(catalog domain.Catalog, clk clock.Clock, logger *slog.Logger, opts ...Option) *MemoryLedger {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	return &MemoryLedger{
		catalog: catalog,
		clock:   clk,
		logger:  logger,
		opts:    o,
		shows:   make(map[int64]*showTable),
	}
}

func (m *MemoryLedger) TryClaim(ctx context.Context, showID int64, owner string, seatIDs []int64) error {
	table, err := m.table(ctx, showID)
	if err != nil {
		return err
	}

	slots, err := table.lookup(seatIDs)
	if err != nil {
		return err
	}

	unlock, err := m.lockSeats(ctx, slots, m.opts.lockTimeout)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	freed := false

	for _, slot := range slots {
		if slot.expireIfDue(now) {
			freed = true
		}
	}

	available := true
	for _, slot := range slots {
		if slot.status != domain.SeatStatusIdle {
			available = false
			break
		}
	}

	if available {
		for _, slot := range slots {
			slot.status = domain.SeatStatusHeld
			slot.owner = owner
			slot.expiresAt = now.Add(m.opts.holdTTL)
		}
	}

	unlock()

	if !available {
		if freed {
			m.notify(ctx, showID)
		}

		return domain.ErrSeatUnavailable
	}

	return nil
}

func (m *MemoryLedger) Confirm(ctx context.Context, showID int64, owner string, seatIDs []int64) error {
	table, err := m.table(ctx, showID)
	if err != nil {
		return err
	}

	slots, err := table.lookup(seatIDs)
	if err != nil {
		return err
	}

	unlock, err := m.lockSeats(ctx, slots, 0)
	if err != nil {
		return err
	}

	now := m.clock.Now()
	freed := false
	var invalid *seatSlot

	for _, slot := range slots {
		if slot.expireIfDue(now) {
			freed = true
		}

		if invalid == nil && (slot.status != domain.SeatStatusHeld || slot.owner != owner) {
			invalid = slot
		}
	}

	if invalid == nil {
		for _, slot := range slots {
			slot.status = domain.SeatStatusOccupied
			slot.expiresAt = time.Time{}
		}
	}

	unlock()

	if freed {
		m.notify(ctx, showID)
	}

	if invalid != nil {
		return fmt.Errorf("confirm seat %d of show %d in status %s: %w",
			invalid.seat.ID, showID, invalid.status, domain.ErrInvalidTransition)
	}

	return nil
}

// Release frees the seats that owner holds or occupies. Seats owned by
// someone else are left untouched, so releasing twice is harmless.
func (m *MemoryLedger) Release(ctx context.Context, showID int64, owner string, seatIDs []int64) (int, error) {
	table, err := m.table(ctx, showID)
	if err != nil {
		return 0, err
	}

	slots, err := table.lookup(seatIDs)
	if err != nil {
		return 0, err
	}

	unlock, err := m.lockSeats(ctx, slots, 0)
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	freed := false
	released := 0

	for _, slot := range slots {
		if slot.expireIfDue(now) {
			freed = true
			continue
		}

		if slot.status != domain.SeatStatusIdle && slot.owner == owner {
			slot.setIdle()
			released++
		}
	}

	unlock()

	if released > 0 || freed {
		m.notify(ctx, showID)
	}

	return released, nil
}

// AvailableSeats snapshots the idle seats of a show. A seat that is being
// claimed at this very moment is reported as unavailable.
func (m *MemoryLedger) AvailableSeats(
	ctx context.Context,
	showID int64,
	seatType *domain.SeatType) (iter.Seq[domain.HallSeat], error) {

	table, err := m.table(ctx, showID)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	freed := false
	idle := make([]domain.HallSeat, 0, len(table.order))

	for _, slot := range table.order {
		if !matchesType(slot.seat, seatType) || !slot.lock.TryAcquire(1) {
			continue
		}

		if slot.expireIfDue(now) {
			freed = true
		}

		if slot.status == domain.SeatStatusIdle {
			idle = append(idle, slot.seat)
		}

		slot.lock.Release(1)
	}

	if freed {
		m.notify(ctx, showID)
	}

	return slices.Values(idle), nil
}

// Sweep releases every expired hold of the loaded shows.
func (m *MemoryLedger) Sweep(ctx context.Context) error {
	m.mu.RLock()
	tables := make(map[int64]*showTable, len(m.shows))
	for id, table := range m.shows {
		tables[id] = table
	}
	m.mu.RUnlock()

	for showID, table := range tables {
		now := m.clock.Now()
		expired := 0

		for _, slot := range table.order {
			if err := slot.lock.Acquire(ctx, 1); err != nil {
				return err
			}

			if slot.expireIfDue(now) {
				expired++
			}

			slot.lock.Release(1)
		}

		if expired > 0 {
			m.logger.Info("released expired seat holds", "show_id", showID, "seats", expired)
			m.notify(ctx, showID)
		}
	}

	return nil
}

// State returns the current state of one seat.
func (m *MemoryLedger) State(ctx context.Context, showID, seatID int64) (domain.SeatState, error) {
	table, err := m.table(ctx, showID)
	if err != nil {
		return domain.SeatState{}, err
	}

	slots, err := table.lookup([]int64{seatID})
	if err != nil {
		return domain.SeatState{}, err
	}

	slot := slots[0]
	if err := slot.lock.Acquire(ctx, 1); err != nil {
		return domain.SeatState{}, err
	}
	defer slot.lock.Release(1)

	slot.expireIfDue(m.clock.Now())

	return domain.SeatState{
		ShowID:    showID,
		SeatID:    seatID,
		Status:    slot.status,
		Owner:     slot.owner,
		ExpiresAt: slot.expiresAt,
	}, nil
}

// lockSeats acquires the seat locks in slot order. A positive timeout bounds
// the wait; running out of time means the seats are contended and is
// reported as ErrSeatUnavailable.
func (m *MemoryLedger) lockSeats(ctx context.Context, slots []*seatSlot, timeout time.Duration) (func(), error) {
	lockCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	acquired := make([]*seatSlot, 0, len(slots))
	unlock := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].lock.Release(1)
		}
	}

	for _, slot := range slots {
		if err := slot.lock.Acquire(lockCtx, 1); err != nil {
			unlock()

			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			return nil, domain.ErrSeatUnavailable
		}

		acquired = append(acquired, slot)
	}

	return unlock, nil
}

func (m *MemoryLedger) table(ctx context.Context, showID int64) (*showTable, error) {
	m.mu.RLock()
	table, ok := m.shows[showID]
	m.mu.RUnlock()

	if ok {
		return table, nil
	}

	v, err, _ := m.loader.Do(strconv.FormatInt(showID, 10), func() (any, error) {
		m.mu.RLock()
		table, ok := m.shows[showID]
		m.mu.RUnlock()

		if ok {
			return table, nil
		}

		table, err := m.loadTable(ctx, showID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.shows[showID] = table
		m.mu.Unlock()

		return table, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*showTable), nil
}

func (m *MemoryLedger) loadTable(ctx context.Context, showID int64) (*showTable, error) {
	layout, err := loadLayout(ctx, m.catalog, showID)
	if err != nil {
		return nil, err
	}

	table := &showTable{
		seats: make(map[int64]*seatSlot, len(layout)),
		order: make([]*seatSlot, 0, len(layout)),
	}

	for _, seat := range layout {
		slot := &seatSlot{
			seat:   seat,
			lock:   semaphore.NewWeighted(1),
			status: domain.SeatStatusIdle,
		}

		table.seats[seat.ID] = slot
		table.order = append(table.order, slot)
	}

	if m.opts.occupancy == nil {
		return table, nil
	}

	occupied, err := m.opts.occupancy.OccupiedSeats(ctx, showID)
	if err != nil {
		return nil, fmt.Errorf("load occupied seats of show %d: %w", showID, err)
	}

	for seatID, owner := range occupied {
		slot, ok := table.seats[seatID]
		if !ok {
			m.logger.Warn("occupied seat is not part of the hall layout", "show_id", showID, "seat_id", seatID)
			continue
		}

		slot.status = domain.SeatStatusOccupied
		slot.owner = owner
	}

	return table, nil
}
