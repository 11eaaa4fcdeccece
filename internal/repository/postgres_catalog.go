package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/metinatakli/seat-booking/internal/pricing"
	"github.com/shopspring/decimal"
)

// PostgresCatalogRepository reads shows, hall layouts and premiums. The
// catalog tables are maintained outside of the booking engine.
type PostgresCatalogRepository struct {
	db *pgxpool.Pool
}

func NewPostgresCatalogRepository(db *pgxpool.Pool) *PostgresCatalogRepository {
	return &PostgresCatalogRepository{
		db: db,
	}
}

func (p *PostgresCatalogRepository) GetShow(ctx context.Context, showID int64) (*domain.Show, error) {
	query := `
		SELECT id, movie_id, hall_id, start_time, end_time, base_price::text
		FROM shows
		WHERE id = $1
	`

	var show domain.Show
	var basePrice string

	err := p.db.QueryRow(ctx, query, showID).Scan(
		&show.ID,
		&show.MovieID,
		&show.HallID,
		&show.StartTime,
		&show.EndTime,
		&basePrice,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	show.BasePrice, err = decimal.NewFromString(basePrice)
	if err != nil {
		return nil, fmt.Errorf("parse base price of show %d: %w", showID, err)
	}

	return &show, nil
}

func (p *PostgresCatalogRepository) GetHallSeats(ctx context.Context, hallID int64) ([]domain.HallSeat, error) {
	query := `
		SELECT id, hall_id, seat_number, seat_type
		FROM hall_seats
		WHERE hall_id = $1
		ORDER BY seat_number
	`

	rows, err := p.db.Query(ctx, query, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.HallSeat, 0)

	for rows.Next() {
		var seat domain.HallSeat
		var seatType string

		err = rows.Scan(&seat.ID, &seat.HallID, &seat.Number, &seatType)
		if err != nil {
			return nil, err
		}

		seat.Type = domain.SeatType(seatType)
		if !seat.Type.Valid() {
			return nil, fmt.Errorf("seat %d has unknown type %q: %w", seat.ID, seatType, domain.ErrConfiguration)
		}

		seats = append(seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(seats) == 0 {
		return nil, domain.ErrRecordNotFound
	}

	return seats, nil
}

func (p *PostgresCatalogRepository) GetPremiumTable(ctx context.Context, hallID int64) (domain.PremiumTable, error) {
	query := `
		SELECT seat_type, premium::text
		FROM seat_type_premiums
		WHERE hall_id = $1
	`

	rows, err := p.db.Query(ctx, query, hallID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	premiums := make(domain.PremiumTable)

	for rows.Next() {
		var seatType, premium string

		if err = rows.Scan(&seatType, &premium); err != nil {
			return nil, err
		}

		value, err := decimal.NewFromString(premium)
		if err != nil {
			return nil, fmt.Errorf("parse %s premium of hall %d: %w", seatType, hallID, err)
		}

		premiums[domain.SeatType(seatType)] = value
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if err := pricing.ValidatePremiums(premiums); err != nil {
		return nil, fmt.Errorf("premiums of hall %d: %w", hallID, err)
	}

	return premiums, nil
}
