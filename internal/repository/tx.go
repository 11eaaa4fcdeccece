package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// bookingTxOptions is the isolation of booking writes. booking_seats rows and
// the status compare-and-set carry the concurrency guarantees.
var bookingTxOptions = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// runInTx commits when fn succeeds and rolls back otherwise. Domain errors
// returned by fn are passed through unwrapped.
func runInTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	var fnErr error

	err := pgx.BeginTxFunc(ctx, db, bookingTxOptions, func(tx pgx.Tx) error {
		fnErr = fn(tx)
		return fnErr
	})
	if fnErr != nil {
		if err != nil && !errors.Is(err, fnErr) {
			return errors.Join(fnErr, fmt.Errorf("rollback: %w", err))
		}

		return fnErr
	}
	if err != nil {
		return fmt.Errorf("transaction: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
