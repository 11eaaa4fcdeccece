package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusWaiting   BookingStatus = "waiting"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusWaiting, BookingStatusRejected},
	BookingStatusWaiting:   {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusRejected},
	BookingStatusConfirmed: {BookingStatusCancelled},
}

// CanTransition reports whether a booking may move from one status to another.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == to {
			return true
		}
	}

	return false
}

func (s BookingStatus) Terminal() bool {
	return s == BookingStatusCancelled || s == BookingStatusRejected
}

type Booking struct {
	ID               int64
	UserID           int64
	ShowID           int64
	SeatCount        int
	RequestedSeatIDs []int64
	SeatType         *SeatType
	SeatIDs          []int64
	Status           BookingStatus
	TotalPrice       decimal.Decimal
	HoldToken        string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BookingUpdate carries the fields written together with a status change.
type BookingUpdate struct {
	Status     BookingStatus
	SeatIDs    []int64
	TotalPrice decimal.Decimal
	HoldToken  string
}

type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	GetById(ctx context.Context, id int64) (*Booking, error)
	// Transition applies update only while the booking is still in status from,
	// returning ErrEditConflict otherwise.
	Transition(ctx context.Context, id int64, from BookingStatus, update BookingUpdate) (*Booking, error)
	GetByUserId(ctx context.Context, userID int64, pagination Pagination) ([]Booking, *Metadata, error)
}

// BookingRequest asks for either SeatCount seats picked by the engine or the
// explicit SeatIDs, never both.
type BookingRequest struct {
	UserID    int64     `validate:"gt=0"`
	ShowID    int64     `validate:"gt=0"`
	SeatCount int       `validate:"gte=0"`
	SeatIDs   []int64   `validate:"unique,dive,gt=0"`
	SeatType  *SeatType `validate:"omitempty,seat_type"`
}
