package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/shopspring/decimal"
)

const bookingColumns = `
	id, user_id, show_id, seat_count, requested_seat_ids, seat_type,
	seat_ids, status, total_price::text, hold_token, created_at, updated_at
`

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	query := `
		INSERT INTO bookings (user_id, show_id, seat_count, requested_seat_ids, seat_type, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`

	requested := booking.RequestedSeatIDs
	if requested == nil {
		requested = []int64{}
	}

	return p.db.QueryRow(
		ctx,
		query,
		booking.UserID,
		booking.ShowID,
		booking.SeatCount,
		requested,
		seatTypeParam(booking.SeatType),
		string(booking.Status)).Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt)
}

func (p *PostgresBookingRepository) GetById(ctx context.Context, id int64) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return booking, nil
}

// Transition updates the booking only while it is still in status from, and
// keeps booking_seats in step: confirming inserts the seats, leaving the
// confirmed status deletes them.
func (p *PostgresBookingRepository) Transition(
	ctx context.Context,
	id int64,
	from domain.BookingStatus,
	update domain.BookingUpdate) (*domain.Booking, error) {

	if !from.CanTransition(update.Status) {
		return nil, fmt.Errorf("booking %s -> %s: %w", from, update.Status, domain.ErrInvalidState)
	}

	var booking *domain.Booking

	err := runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			UPDATE bookings
			SET status = $3,
				seat_ids = COALESCE($4::bigint[], seat_ids),
				total_price = COALESCE($5::numeric, total_price),
				hold_token = COALESCE($6::text, hold_token),
				updated_at = NOW()
			WHERE id = $1 AND status = $2
			RETURNING ` + bookingColumns

		var totalPrice, holdToken *string
		if !update.TotalPrice.IsZero() {
			price := update.TotalPrice.StringFixed(2)
			totalPrice = &price
		}
		if update.HoldToken != "" {
			holdToken = &update.HoldToken
		}

		var err error
		booking, err = scanBooking(tx.QueryRow(ctx, query, id, string(from), string(update.Status), update.SeatIDs, totalPrice, holdToken))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return p.transitionConflict(ctx, tx, id)
			}

			return err
		}

		if from == domain.BookingStatusConfirmed {
			_, err = tx.Exec(ctx, `DELETE FROM booking_seats WHERE booking_id = $1`, id)
			if err != nil {
				return err
			}
		}

		if update.Status != domain.BookingStatusConfirmed || len(booking.SeatIDs) == 0 {
			return nil
		}

		rows := make([][]any, 0, len(booking.SeatIDs))
		for _, seatID := range booking.SeatIDs {
			rows = append(rows, []any{booking.ShowID, seatID, booking.ID})
		}

		_, err = tx.CopyFrom(
			ctx,
			pgx.Identifier{"booking_seats"},
			[]string{"show_id", "seat_id", "booking_id"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("seats of booking %d are booked already: %w", id, domain.ErrSeatUnavailable)
			}

			return err
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return booking, nil
}

func (p *PostgresBookingRepository) transitionConflict(ctx context.Context, tx pgx.Tx, id int64) error {
	var exists bool

	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return err
	}

	if !exists {
		return domain.ErrRecordNotFound
	}

	return domain.ErrEditConflict
}

func (p *PostgresBookingRepository) GetByUserId(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	query := `
		SELECT COUNT(*) OVER(), ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, userID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	totalRecords := 0

	for rows.Next() {
		booking, err := scanBookingFields(rows, &totalRecords)
		if err != nil {
			return nil, nil, err
		}

		bookings = append(bookings, *booking)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination)

	return bookings, metadata, nil
}

// OccupiedSeats reports the booked seats of a show valued by the hold token
// of the booking that occupies them.
func (p *PostgresBookingRepository) OccupiedSeats(ctx context.Context, showID int64) (map[int64]string, error) {
	query := `
		SELECT bs.seat_id, b.hold_token
		FROM booking_seats bs
		JOIN bookings b ON b.id = bs.booking_id
		WHERE bs.show_id = $1
	`

	rows, err := p.db.Query(ctx, query, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	occupied := make(map[int64]string)

	for rows.Next() {
		var seatID int64
		var holdToken string

		if err := rows.Scan(&seatID, &holdToken); err != nil {
			return nil, err
		}

		occupied[seatID] = holdToken
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return occupied, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	return scanBookingFields(row)
}

func scanBookingFields(row pgx.Row, leading ...any) (*domain.Booking, error) {
	var booking domain.Booking
	var seatType *string
	var totalPrice string

	dest := append(leading,
		&booking.ID,
		&booking.UserID,
		&booking.ShowID,
		&booking.SeatCount,
		&booking.RequestedSeatIDs,
		&seatType,
		&booking.SeatIDs,
		&booking.Status,
		&totalPrice,
		&booking.HoldToken,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	price, err := decimal.NewFromString(totalPrice)
	if err != nil {
		return nil, fmt.Errorf("parse total price of booking %d: %w", booking.ID, err)
	}
	booking.TotalPrice = price

	if seatType != nil {
		t := domain.SeatType(*seatType)
		booking.SeatType = &t
	}

	return &booking, nil
}

func seatTypeParam(seatType *domain.SeatType) *string {
	if seatType == nil {
		return nil
	}

	s := string(*seatType)

	return &s
}
