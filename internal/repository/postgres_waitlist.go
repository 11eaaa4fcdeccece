package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/seat-booking/internal/domain"
)

type PostgresWaitlistRepository struct {
	db *pgxpool.Pool
}

func NewPostgresWaitlistRepository(db *pgxpool.Pool) *PostgresWaitlistRepository {
	return &PostgresWaitlistRepository{
		db: db,
	}
}

func (p *PostgresWaitlistRepository) Enqueue(ctx context.Context, entry *domain.WaitlistEntry) error {
	query := `
		INSERT INTO waitlist_entries (booking_id, show_id, seat_count, seat_ids, seat_type, enqueued_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	seatIDs := entry.SeatIDs
	if seatIDs == nil {
		seatIDs = []int64{}
	}

	err := p.db.QueryRow(
		ctx,
		query,
		entry.BookingID,
		entry.ShowID,
		entry.SeatCount,
		seatIDs,
		seatTypeParam(entry.SeatType),
		entry.EnqueuedAt).Scan(&entry.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("booking %d is already waiting: %w", entry.BookingID, domain.ErrEditConflict)
		}

		return err
	}

	return nil
}

func (p *PostgresWaitlistRepository) GetByShow(ctx context.Context, showID int64) ([]domain.WaitlistEntry, error) {
	query := `
		SELECT id, booking_id, show_id, seat_count, seat_ids, seat_type, enqueued_at
		FROM waitlist_entries
		WHERE show_id = $1
		ORDER BY enqueued_at, id
	`

	rows, err := p.db.Query(ctx, query, showID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.WaitlistEntry, 0)

	for rows.Next() {
		var entry domain.WaitlistEntry
		var seatType *string

		err = rows.Scan(
			&entry.ID,
			&entry.BookingID,
			&entry.ShowID,
			&entry.SeatCount,
			&entry.SeatIDs,
			&seatType,
			&entry.EnqueuedAt,
		)
		if err != nil {
			return nil, err
		}

		if seatType != nil {
			t := domain.SeatType(*seatType)
			entry.SeatType = &t
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (p *PostgresWaitlistRepository) Remove(ctx context.Context, bookingID int64) (bool, error) {
	tag, err := p.db.Exec(ctx, `DELETE FROM waitlist_entries WHERE booking_id = $1`, bookingID)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}
