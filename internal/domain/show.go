package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SeatType string

const (
	SeatTypeNormal   SeatType = "normal"
	SeatTypeVIP      SeatType = "vip"
	SeatTypeSuperVIP SeatType = "super_vip"
)

// SeatTypes lists the known seat types in selection preference order.
var SeatTypes = []SeatType{SeatTypeNormal, SeatTypeVIP, SeatTypeSuperVIP}

func (t SeatType) Valid() bool {
	switch t {
	case SeatTypeNormal, SeatTypeVIP, SeatTypeSuperVIP:
		return true
	}

	return false
}

type Show struct {
	ID        int64
	MovieID   int64
	HallID    int64
	StartTime time.Time
	EndTime   time.Time
	BasePrice decimal.Decimal
}

// Overlaps reports whether both shows run in the same hall during
// intersecting [start, end) intervals.
func (s Show) Overlaps(other Show) bool {
	if s.HallID != other.HallID {
		return false
	}

	return s.StartTime.Before(other.EndTime) && other.StartTime.Before(s.EndTime)
}

type HallSeat struct {
	ID     int64
	HallID int64
	Number int
	Type   SeatType
}

// PremiumTable maps a seat type to its fractional markup (0.5 = 50% more).
type PremiumTable map[SeatType]decimal.Decimal

// Catalog is the read-only source of shows, layouts and premiums.
type Catalog interface {
	GetShow(ctx context.Context, showID int64) (*Show, error)
	GetHallSeats(ctx context.Context, hallID int64) ([]HallSeat, error)
	GetPremiumTable(ctx context.Context, hallID int64) (PremiumTable, error)
}

// PricedSeat is a hall seat with its price for one show.
type PricedSeat struct {
	HallSeat
	Price decimal.Decimal
}
