package repository

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
)

type seatKey struct {
	showID int64
	seatID int64
}

// MemoryBookingRepository stores bookings in process. Like the booking_seats
// table it refuses to confirm a seat that another confirmed booking holds.
type MemoryBookingRepository struct {
	clock clock.Clock

	mu       sync.RWMutex
	nextID   int64
	bookings map[int64]domain.Booking
	seats    map[seatKey]int64
}

func NewMemoryBookingRepository(clk clock.Clock) *MemoryBookingRepository {
	return &MemoryBookingRepository{
		clock:    clk,
		bookings: make(map[int64]domain.Booking),
		seats:    make(map[seatKey]int64),
	}
}

func (m *MemoryBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	booking.ID = m.nextID
	m.bookings[booking.ID] = cloneBooking(*booking)

	return nil
}

func (m *MemoryBookingRepository) GetById(ctx context.Context, id int64) (*domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	booking, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	booking = cloneBooking(booking)

	return &booking, nil
}

func (m *MemoryBookingRepository) Transition(
	ctx context.Context,
	id int64,
	from domain.BookingStatus,
	update domain.BookingUpdate) (*domain.Booking, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	if booking.Status != from {
		return nil, domain.ErrEditConflict
	}

	if !from.CanTransition(update.Status) {
		return nil, fmt.Errorf("booking %s -> %s: %w", from, update.Status, domain.ErrInvalidState)
	}

	if update.Status == domain.BookingStatusConfirmed {
		for _, seatID := range update.SeatIDs {
			if owner, taken := m.seats[seatKey{booking.ShowID, seatID}]; taken && owner != id {
				return nil, fmt.Errorf("seat %d already booked by booking %d: %w", seatID, owner, domain.ErrSeatUnavailable)
			}
		}

		for _, seatID := range update.SeatIDs {
			m.seats[seatKey{booking.ShowID, seatID}] = id
		}
	}

	if from == domain.BookingStatusConfirmed {
		for _, seatID := range booking.SeatIDs {
			delete(m.seats, seatKey{booking.ShowID, seatID})
		}
	}

	applyUpdate(&booking, update)
	booking.UpdatedAt = m.clock.Now()
	m.bookings[id] = booking

	booking = cloneBooking(booking)

	return &booking, nil
}

func (m *MemoryBookingRepository) GetByUserId(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	m.mu.RLock()
	var bookings []domain.Booking
	for _, booking := range m.bookings {
		if booking.UserID == userID {
			bookings = append(bookings, cloneBooking(booking))
		}
	}
	m.mu.RUnlock()

	if len(bookings) == 0 {
		return []domain.Booking{}, &domain.Metadata{}, nil
	}

	slices.SortFunc(bookings, func(a, b domain.Booking) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	total := len(bookings)
	start, end := pagination.Window(total)

	return bookings[start:end], domain.NewMetadata(total, pagination), nil
}

// OccupiedSeats reports the seats of the show's confirmed bookings, valued by
// the hold token that occupies them.
func (m *MemoryBookingRepository) OccupiedSeats(ctx context.Context, showID int64) (map[int64]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	occupied := make(map[int64]string)
	for key, bookingID := range m.seats {
		if key.showID == showID {
			occupied[key.seatID] = m.bookings[bookingID].HoldToken
		}
	}

	return occupied, nil
}

// applyUpdate writes the status and any non-zero field of the update.
func applyUpdate(booking *domain.Booking, update domain.BookingUpdate) {
	booking.Status = update.Status

	if update.SeatIDs != nil {
		booking.SeatIDs = slices.Clone(update.SeatIDs)
	}

	if !update.TotalPrice.IsZero() {
		booking.TotalPrice = update.TotalPrice
	}

	if update.HoldToken != "" {
		booking.HoldToken = update.HoldToken
	}
}

func cloneBooking(booking domain.Booking) domain.Booking {
	booking.RequestedSeatIDs = slices.Clone(booking.RequestedSeatIDs)
	booking.SeatIDs = slices.Clone(booking.SeatIDs)

	if booking.SeatType != nil {
		seatType := *booking.SeatType
		booking.SeatType = &seatType
	}

	return booking
}
