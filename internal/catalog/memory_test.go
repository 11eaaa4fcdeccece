package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var showStart = time.Date(2025, 3, 15, 19, 0, 0, 0, time.UTC)

func twoSeatHall() []domain.HallSeat {
	return []domain.HallSeat{
		{ID: 2, Number: 2, Type: domain.SeatTypeVIP},
		{ID: 1, Number: 1, Type: domain.SeatTypeNormal},
	}
}

func TestPublishHall(t *testing.T) {
	tests := []struct {
		name     string
		seats    []domain.HallSeat
		premiums domain.PremiumTable
		wantErr  bool
	}{
		{
			name:     "valid layout",
			seats:    twoSeatHall(),
			premiums: domain.PremiumTable{domain.SeatTypeVIP: decimal.RequireFromString("0.5")},
		},
		{name: "empty layout", seats: nil, wantErr: true},
		{
			name:    "duplicate seat number",
			seats:   []domain.HallSeat{{ID: 1, Number: 1, Type: domain.SeatTypeNormal}, {ID: 2, Number: 1, Type: domain.SeatTypeNormal}},
			wantErr: true,
		},
		{
			name:    "unknown seat type",
			seats:   []domain.HallSeat{{ID: 1, Number: 1, Type: "couple"}},
			wantErr: true,
		},
		{
			name:     "negative premium",
			seats:    twoSeatHall(),
			premiums: domain.PremiumTable{domain.SeatTypeVIP: decimal.RequireFromString("-1")},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMemory()

			err := c.PublishHall(1, tt.seats, tt.premiums)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)

			seats, err := c.GetHallSeats(context.Background(), 1)
			require.NoError(t, err)
			require.Len(t, seats, 2)
			assert.Equal(t, 1, seats[0].Number, "seats are ordered by number")
			assert.Equal(t, int64(1), seats[0].HallID)
		})
	}
}

func TestPublishHallTwice(t *testing.T) {
	c := NewMemory()
	require.NoError(t, c.PublishHall(1, twoSeatHall(), nil))

	err := c.PublishHall(1, twoSeatHall(), nil)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestPublishShow(t *testing.T) {
	existing := domain.Show{ID: 1, HallID: 1, StartTime: showStart, EndTime: showStart.Add(2 * time.Hour), BasePrice: decimal.NewFromInt(100)}

	tests := []struct {
		name    string
		show    domain.Show
		wantErr bool
	}{
		{
			name: "back to back show in same hall",
			show: domain.Show{ID: 2, HallID: 1, StartTime: existing.EndTime, EndTime: existing.EndTime.Add(time.Hour)},
		},
		{
			name: "same time in another hall",
			show: domain.Show{ID: 2, HallID: 2, StartTime: showStart, EndTime: showStart.Add(time.Hour)},
		},
		{
			name:    "overlapping show in same hall",
			show:    domain.Show{ID: 2, HallID: 1, StartTime: showStart.Add(time.Hour), EndTime: showStart.Add(3 * time.Hour)},
			wantErr: true,
		},
		{
			name:    "ends before it starts",
			show:    domain.Show{ID: 2, HallID: 2, StartTime: showStart, EndTime: showStart.Add(-time.Hour)},
			wantErr: true,
		},
		{
			name:    "unpublished hall",
			show:    domain.Show{ID: 2, HallID: 3, StartTime: showStart, EndTime: showStart.Add(time.Hour)},
			wantErr: true,
		},
		{
			name:    "duplicate id",
			show:    domain.Show{ID: 1, HallID: 2, StartTime: showStart, EndTime: showStart.Add(time.Hour)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewMemory()
			require.NoError(t, c.PublishHall(1, twoSeatHall(), nil))
			require.NoError(t, c.PublishHall(2, twoSeatHall(), nil))
			require.NoError(t, c.PublishShow(existing))

			err := c.PublishShow(tt.show)
			if tt.wantErr {
				require.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)

			got, err := c.GetShow(context.Background(), tt.show.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.show.HallID, got.HallID)
		})
	}
}

func TestLookupsOfMissingRecords(t *testing.T) {
	c := NewMemory()
	ctx := context.Background()

	_, err := c.GetShow(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = c.GetHallSeats(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)

	_, err = c.GetPremiumTable(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrRecordNotFound)
}
