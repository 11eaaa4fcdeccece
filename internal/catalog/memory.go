// Package catalog holds an in-process snapshot of halls, seat layouts and
// shows. Publication enforces the catalog invariants so that the booking
// core only ever sees valid data.
package catalog

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/metinatakli/seat-booking/internal/pricing"
)

type hall struct {
	seats    []domain.HallSeat
	premiums domain.PremiumTable
}

type Memory struct {
	mu    sync.RWMutex
	halls map[int64]hall
	shows map[int64]domain.Show
}

func NewMemory() *Memory {
	return &Memory{
		halls: make(map[int64]hall),
		shows: make(map[int64]domain.Show),
	}
}

// PublishHall registers a hall layout and its premium table. A layout is
// immutable once published.
func (m *Memory) PublishHall(hallID int64, seats []domain.HallSeat, premiums domain.PremiumTable) error {
	if err := pricing.ValidatePremiums(premiums); err != nil {
		return err
	}

	if len(seats) == 0 {
		return fmt.Errorf("%w: hall %d has no seats", domain.ErrConfiguration, hallID)
	}

	ids := make(map[int64]bool, len(seats))
	numbers := make(map[int]bool, len(seats))
	layout := make([]domain.HallSeat, len(seats))

	for i, seat := range seats {
		if !seat.Type.Valid() {
			return fmt.Errorf("%w: seat %d has unknown type %q", domain.ErrConfiguration, seat.ID, seat.Type)
		}
		if ids[seat.ID] || numbers[seat.Number] {
			return fmt.Errorf("%w: duplicate seat %d (number %d) in hall %d",
				domain.ErrConfiguration, seat.ID, seat.Number, hallID)
		}

		ids[seat.ID] = true
		numbers[seat.Number] = true

		seat.HallID = hallID
		layout[i] = seat
	}

	slices.SortFunc(layout, func(a, b domain.HallSeat) int {
		return a.Number - b.Number
	})

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.halls[hallID]; exists {
		return fmt.Errorf("%w: layout of hall %d is already published", domain.ErrConfiguration, hallID)
	}

	m.halls[hallID] = hall{seats: layout, premiums: maps.Clone(premiums)}

	return nil
}

// PublishShow schedules a show in a published hall.
func (m *Memory) PublishShow(show domain.Show) error {
	if !show.EndTime.After(show.StartTime) {
		return fmt.Errorf("%w: show %d must end after it starts", domain.ErrConfiguration, show.ID)
	}

	if show.BasePrice.IsNegative() {
		return fmt.Errorf("%w: show %d has a negative base price", domain.ErrConfiguration, show.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.halls[show.HallID]; !ok {
		return fmt.Errorf("%w: hall %d of show %d is not published", domain.ErrConfiguration, show.HallID, show.ID)
	}

	if _, exists := m.shows[show.ID]; exists {
		return fmt.Errorf("%w: show %d is already published", domain.ErrConfiguration, show.ID)
	}

	for _, other := range m.shows {
		if show.Overlaps(other) {
			return fmt.Errorf("%w: show %d overlaps show %d in hall %d",
				domain.ErrConfiguration, show.ID, other.ID, show.HallID)
		}
	}

	m.shows[show.ID] = show

	return nil
}

func (m *Memory) GetShow(ctx context.Context, showID int64) (*domain.Show, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	show, ok := m.shows[showID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return &show, nil
}

func (m *Memory) GetHallSeats(ctx context.Context, hallID int64) ([]domain.HallSeat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.halls[hallID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return slices.Clone(h.seats), nil
}

func (m *Memory) GetPremiumTable(ctx context.Context, hallID int64) (domain.PremiumTable, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.halls[hallID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return maps.Clone(h.premiums), nil
}
