package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/metinatakli/seat-booking/internal/domain"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// promotionState serializes promotion passes of one show. A trigger that
// arrives during a pass marks the show dirty and the running pass goes
// again, so triggers are never lost and a pass never waits on itself.
type promotionState struct {
	mu      sync.Mutex
	running bool
	dirty   bool
}

// Waitlist keeps the bookings that could not get seats and promotes them in
// FIFO order when capacity frees up. Booking status changes go through the
// orchestrator.
type Waitlist struct {
	orchestrator *Orchestrator
	entries      domain.WaitlistRepository
	logger       *slog.Logger

	mu    sync.Mutex
	shows map[int64]*promotionState
}

func newWaitlist(o *Orchestrator, entries domain.WaitlistRepository) *Waitlist {
	return &Waitlist{
		orchestrator: o,
		entries:      entries,
		logger:       o.logger.With("component", "waitlist"),
		shows:        make(map[int64]*promotionState),
	}
}

// Enqueue appends a waiting booking and runs a promotion pass, in case seats
// were freed between the failed claim and the enqueue.
func (w *Waitlist) Enqueue(ctx context.Context, booking *domain.Booking) error {
	entry := &domain.WaitlistEntry{
		BookingID:  booking.ID,
		ShowID:     booking.ShowID,
		SeatCount:  booking.SeatCount,
		SeatIDs:    booking.RequestedSeatIDs,
		SeatType:   booking.SeatType,
		EnqueuedAt: w.orchestrator.clock.Now(),
	}

	if err := w.entries.Enqueue(ctx, entry); err != nil {
		return fmt.Errorf("enqueue booking %d: %w", booking.ID, err)
	}

	w.OnCapacityChanged(ctx, booking.ShowID)

	return nil
}

// CancelWaiting drops the entry of a booking. A missing entry is not an
// error, a concurrent promotion may have removed it.
func (w *Waitlist) CancelWaiting(ctx context.Context, bookingID int64) error {
	removed, err := w.entries.Remove(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("remove waitlist entry of booking %d: %w", bookingID, err)
	}

	if !removed {
		w.logger.Debug("no waitlist entry to remove", "booking_id", bookingID)
	}

	return nil
}

// OnCapacityChanged is the ledger listener that promotes waiting bookings.
func (w *Waitlist) OnCapacityChanged(ctx context.Context, showID int64) {
	state := w.state(showID)

	state.mu.Lock()
	if state.running {
		state.dirty = true
		state.mu.Unlock()
		return
	}
	state.running = true
	state.mu.Unlock()

	for {
		w.promote(ctx, showID)

		state.mu.Lock()
		if !state.dirty {
			state.running = false
			state.mu.Unlock()
			return
		}
		state.dirty = false
		state.mu.Unlock()
	}
}

func (w *Waitlist) state(showID int64) *promotionState {
	w.mu.Lock()
	defer w.mu.Unlock()

	state, ok := w.shows[showID]
	if !ok {
		state = &promotionState{}
		w.shows[showID] = state
	}

	return state
}

// promote walks the show's entries in FIFO order and confirms every entry
// that fits into the idle seats. It stops once no seat is idle.
func (w *Waitlist) promote(ctx context.Context, showID int64) {
	ctx, span := tracer().Start(ctx, "waitlist.promote", trace.WithAttributes(attribute.Int64("show.id", showID)))
	defer span.End()

	logger := w.logger.With("show_id", showID)

	entries, err := w.entries.GetByShow(ctx, showID)
	if err != nil {
		logger.Error("failed to load waitlist", "error", err)
		return
	}

	if len(entries) == 0 {
		return
	}

	sc, err := w.orchestrator.loadShow(ctx, showID)
	if err != nil {
		logger.Error("failed to load show for promotion", "error", err)
		return
	}

	for _, entry := range entries {
		idle, err := w.hasIdleSeat(ctx, showID)
		if err != nil {
			logger.Error("failed to read available seats", "error", err)
			return
		}

		if !idle {
			return
		}

		if err := w.tryPromote(ctx, sc, entry); err != nil {
			logger.Error("failed to promote waiting booking", "booking_id", entry.BookingID, "error", err)
		}
	}
}

func (w *Waitlist) hasIdleSeat(ctx context.Context, showID int64) (bool, error) {
	available, err := w.orchestrator.ledger.AvailableSeats(ctx, showID, nil)
	if err != nil {
		return false, err
	}

	for range available {
		return true, nil
	}

	return false, nil
}

func (w *Waitlist) tryPromote(ctx context.Context, sc *showContext, entry domain.WaitlistEntry) error {
	o := w.orchestrator

	booking, err := o.bookings.GetById(ctx, entry.BookingID)
	if err != nil {
		return err
	}

	if booking.Status != domain.BookingStatusWaiting {
		// cancelled while a pass was running
		_, err := w.entries.Remove(ctx, entry.BookingID)
		return err
	}

	seats, token, err := o.claim(ctx, sc, entry.SeatIDs, entry.SeatCount, entry.SeatType)
	if errors.Is(err, domain.ErrSeatUnavailable) {
		return nil
	}
	if err != nil {
		return err
	}

	confirmed, err := o.finalize(ctx, booking, domain.BookingStatusWaiting, sc, seats, token)
	if errors.Is(err, domain.ErrEditConflict) {
		// lost against CancelWaiting; finalize gave the seats back
		_, err := w.entries.Remove(ctx, entry.BookingID)
		return err
	}
	if errors.Is(err, domain.ErrSeatUnavailable) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := w.entries.Remove(ctx, entry.BookingID); err != nil {
		return fmt.Errorf("remove promoted entry: %w", err)
	}

	w.logger.Info("promoted waiting booking", "booking_id", booking.ID, "show_id", booking.ShowID, "seats", confirmed.SeatIDs)
	o.metrics.promotions.Add(ctx, 1)
	o.publish(ctx, domain.EventBookingPromoted, confirmed)

	return nil
}
