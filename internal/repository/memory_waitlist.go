package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/metinatakli/seat-booking/internal/domain"
)

type MemoryWaitlistRepository struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64][]domain.WaitlistEntry
}

func NewMemoryWaitlistRepository() *MemoryWaitlistRepository {
	return &MemoryWaitlistRepository{
		entries: make(map[int64][]domain.WaitlistEntry),
	}
}

func (m *MemoryWaitlistRepository) Enqueue(ctx context.Context, entry *domain.WaitlistEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, entries := range m.entries {
		for _, existing := range entries {
			if existing.BookingID == entry.BookingID {
				return fmt.Errorf("booking %d is already waiting: %w", entry.BookingID, domain.ErrEditConflict)
			}
		}
	}

	m.nextID++
	entry.ID = m.nextID
	m.entries[entry.ShowID] = append(m.entries[entry.ShowID], *entry)

	return nil
}

func (m *MemoryWaitlistRepository) GetByShow(ctx context.Context, showID int64) ([]domain.WaitlistEntry, error) {
	m.mu.Lock()
	entries := slices.Clone(m.entries[showID])
	m.mu.Unlock()

	slices.SortStableFunc(entries, func(a, b domain.WaitlistEntry) int {
		return cmp.Or(a.EnqueuedAt.Compare(b.EnqueuedAt), cmp.Compare(a.ID, b.ID))
	})

	return entries, nil
}

func (m *MemoryWaitlistRepository) Remove(ctx context.Context, bookingID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for showID, entries := range m.entries {
		for i, entry := range entries {
			if entry.BookingID == bookingID {
				m.entries[showID] = slices.Delete(entries, i, i+1)
				return true, nil
			}
		}
	}

	return false, nil
}
