package domain

import (
	"context"
	"time"
)

type EventType string

const (
	EventBookingConfirmed    EventType = "booking.confirmed"
	EventBookingWaitlisted   EventType = "booking.waitlisted"
	EventBookingPromoted     EventType = "booking.promoted"
	EventBookingCancelled    EventType = "booking.cancelled"
	EventShowCapacityChanged EventType = "show.capacity_changed"
)

type Event struct {
	Type       EventType `json:"type"`
	ShowID     int64     `json:"showId"`
	BookingID  int64     `json:"bookingId,omitempty"`
	UserID     int64     `json:"userId,omitempty"`
	SeatIDs    []int64   `json:"seatIds,omitempty"`
	TotalPrice string    `json:"totalPrice,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
