// Package booking turns booking requests into seat claims, waitlists the
// ones that cannot be served yet and promotes them when seats free up.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/metinatakli/seat-booking/internal/clock"
	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/metinatakli/seat-booking/internal/pricing"
	appvalidator "github.com/metinatakli/seat-booking/internal/validator"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// maxClaimAttempts bounds how often a count based request re-selects seats
// after losing them to a concurrent claim.
const maxClaimAttempts = 3

type Option func(*Orchestrator)

func WithClock(clk clock.Clock) Option {
	return func(o *Orchestrator) {
		o.clock = clk
	}
}

func WithPublisher(publisher domain.EventPublisher) Option {
	return func(o *Orchestrator) {
		o.publisher = publisher
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(o *Orchestrator) {
		o.validator = v
	}
}

// WithTokenGenerator replaces the uuid hold tokens.
func WithTokenGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		o.newToken = fn
	}
}

type Orchestrator struct {
	catalog   domain.Catalog
	ledger    domain.SeatLedger
	bookings  domain.BookingRepository
	waitlist  *Waitlist
	validator *validator.Validate
	clock     clock.Clock
	publisher domain.EventPublisher
	logger    *slog.Logger
	metrics   *metrics
	newToken  func() string
}

// NewOrchestrator wires the booking flow and subscribes its waitlist to
// the ledger's capacity changes.
func NewOrchestrator(
	catalog domain.Catalog,
	ledger domain.SeatLedger,
	bookings domain.BookingRepository,
	waitlist domain.WaitlistRepository,
	logger *slog.Logger,
	opts ...Option) (*Orchestrator, error) {

	m, err := newMetrics()
	if err != nil {
		return nil, fmt.Errorf("create booking metrics: %w", err)
	}

	o := &Orchestrator{
		catalog:   catalog,
		ledger:    ledger,
		bookings:  bookings,
		validator: appvalidator.NewValidator(),
		clock:     clock.NewSystem(),
		publisher: noopPublisher{},
		logger:    logger,
		metrics:   m,
		newToken:  func() string { return uuid.NewString() },
	}

	for _, opt := range opts {
		opt(o)
	}

	o.waitlist = newWaitlist(o, waitlist)
	ledger.Subscribe(o.waitlist.OnCapacityChanged)

	return o, nil
}

// showContext is everything needed to select and price the seats of a show.
type showContext struct {
	show     *domain.Show
	layout   []domain.HallSeat
	byID     map[int64]domain.HallSeat
	premiums domain.PremiumTable
}

func (o *Orchestrator) loadShow(ctx context.Context, showID int64) (*showContext, error) {
	show, err := o.catalog.GetShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	layout, err := o.catalog.GetHallSeats(ctx, show.HallID)
	if err != nil {
		return nil, err
	}

	premiums, err := o.catalog.GetPremiumTable(ctx, show.HallID)
	if err != nil {
		return nil, err
	}

	if err := pricing.ValidatePremiums(premiums); err != nil {
		return nil, err
	}

	byID := make(map[int64]domain.HallSeat, len(layout))
	for _, seat := range layout {
		byID[seat.ID] = seat
	}

	return &showContext{show: show, layout: layout, byID: byID, premiums: premiums}, nil
}

// unsatisfiable reports why a request can never be served by the hall, or
// an empty string when it can.
func (sc *showContext) unsatisfiable(seatIDs []int64, count int, seatType *domain.SeatType) string {
	if len(seatIDs) > 0 {
		for _, id := range seatIDs {
			seat, ok := sc.byID[id]
			if !ok {
				return fmt.Sprintf("seat %d is not part of hall %d", id, sc.show.HallID)
			}

			if seatType != nil && seat.Type != *seatType {
				return fmt.Sprintf("seat %d is not of type %s", id, *seatType)
			}
		}

		return ""
	}

	compatible := len(sc.layout)
	if seatType != nil {
		compatible = len(seatsOfType(sc.layout, *seatType))
	}

	if count > compatible {
		return fmt.Sprintf("hall %d has %d compatible seats, %d requested", sc.show.HallID, compatible, count)
	}

	return ""
}

func (sc *showContext) seats(ids []int64) []domain.HallSeat {
	seats := make([]domain.HallSeat, 0, len(ids))
	for _, id := range ids {
		seats = append(seats, sc.byID[id])
	}

	return seats
}

// RequestBooking serves a booking request. Seats that are taken right now
// never fail the request: the booking is waitlisted instead.
func (o *Orchestrator) RequestBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	ctx, span := tracer().Start(ctx, "booking.RequestBooking", trace.WithAttributes(
		attribute.Int64("show.id", req.ShowID),
		attribute.Int64("user.id", req.UserID),
	))
	defer span.End()

	if err := o.validator.Struct(req); err != nil {
		return nil, err
	}

	sc, err := o.loadShow(ctx, req.ShowID)
	if err != nil {
		return nil, err
	}

	seatIDs := slices.Clone(req.SeatIDs)
	slices.Sort(seatIDs)

	count := req.SeatCount
	if len(seatIDs) > 0 {
		count = len(seatIDs)
	}

	now := o.clock.Now()
	booking := &domain.Booking{
		UserID:           req.UserID,
		ShowID:           req.ShowID,
		SeatCount:        count,
		RequestedSeatIDs: seatIDs,
		SeatType:         req.SeatType,
		Status:           domain.BookingStatusPending,
		TotalPrice:       decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := o.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	span.SetAttributes(attribute.Int64("booking.id", booking.ID))
	logger := o.logger.With("booking_id", booking.ID, "show_id", booking.ShowID)

	if reason := sc.unsatisfiable(seatIDs, count, req.SeatType); reason != "" {
		logger.Info("rejecting booking that can never be served", "reason", reason)
		o.metrics.recordRequest(ctx, string(domain.BookingStatusRejected))

		return o.bookings.Transition(ctx, booking.ID, domain.BookingStatusPending,
			domain.BookingUpdate{Status: domain.BookingStatusRejected})
	}

	seats, token, err := o.claim(ctx, sc, seatIDs, count, req.SeatType)
	if err == nil {
		var confirmed *domain.Booking
		confirmed, err = o.finalize(ctx, booking, domain.BookingStatusPending, sc, seats, token)
		if err == nil {
			o.metrics.recordRequest(ctx, string(domain.BookingStatusConfirmed))
			o.publish(ctx, domain.EventBookingConfirmed, confirmed)

			return confirmed, nil
		}
	}

	if !errors.Is(err, domain.ErrSeatUnavailable) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if errors.Is(err, domain.ErrInvalidTransition) {
			logger.Error("seat ledger rejected a transition", "error", err)
		}

		return nil, o.abandon(ctx, booking.ID, domain.BookingStatusPending, err)
	}

	waiting, err := o.bookings.Transition(ctx, booking.ID, domain.BookingStatusPending,
		domain.BookingUpdate{Status: domain.BookingStatusWaiting})
	if err != nil {
		return nil, o.abandon(ctx, booking.ID, domain.BookingStatusPending,
			fmt.Errorf("move booking to waitlist: %w", err))
	}

	logger.Info("seats unavailable, booking waitlisted", "seat_count", count)
	o.metrics.recordRequest(ctx, string(domain.BookingStatusWaiting))
	o.publish(ctx, domain.EventBookingWaitlisted, waiting)

	if err := o.waitlist.Enqueue(ctx, waiting); err != nil {
		// without an entry nothing would ever promote it
		return nil, o.abandon(ctx, booking.ID, domain.BookingStatusWaiting, err)
	}

	// the enqueue runs a promotion pass which may have confirmed it already
	return o.bookings.GetById(ctx, booking.ID)
}

// claim holds the requested seats, or count seats picked from the idle ones,
// under a fresh hold token.
func (o *Orchestrator) claim(
	ctx context.Context,
	sc *showContext,
	seatIDs []int64,
	count int,
	seatType *domain.SeatType) ([]domain.HallSeat, string, error) {

	if len(seatIDs) > 0 {
		token := o.newToken()
		if err := o.ledger.TryClaim(ctx, sc.show.ID, token, seatIDs); err != nil {
			return nil, "", err
		}

		return sc.seats(seatIDs), token, nil
	}

	for range maxClaimAttempts {
		available, err := o.ledger.AvailableSeats(ctx, sc.show.ID, seatType)
		if err != nil {
			return nil, "", err
		}

		seats := selectSeats(slices.Collect(available), count, seatType)
		if seats == nil {
			return nil, "", domain.ErrSeatUnavailable
		}

		token := o.newToken()

		err = o.ledger.TryClaim(ctx, sc.show.ID, token, seatIDsOf(seats))
		if err == nil {
			return seats, token, nil
		}

		if !errors.Is(err, domain.ErrSeatUnavailable) {
			return nil, "", err
		}
	}

	return nil, "", domain.ErrSeatUnavailable
}

// finalize occupies held seats and confirms the booking, as long as it is
// still in status from. On any failure the seats go back to idle.
func (o *Orchestrator) finalize(
	ctx context.Context,
	booking *domain.Booking,
	from domain.BookingStatus,
	sc *showContext,
	seats []domain.HallSeat,
	token string) (*domain.Booking, error) {

	seatIDs := seatIDsOf(seats)

	if err := o.ledger.Confirm(ctx, booking.ShowID, token, seatIDs); err != nil {
		return nil, o.releaseAfterFailure(ctx, booking.ShowID, token, seatIDs, err)
	}

	confirmed, err := o.bookings.Transition(ctx, booking.ID, from, domain.BookingUpdate{
		Status:     domain.BookingStatusConfirmed,
		SeatIDs:    seatIDs,
		TotalPrice: pricing.Total(sc.show.BasePrice, seats, sc.premiums),
		HoldToken:  token,
	})
	if err != nil {
		return nil, o.releaseAfterFailure(ctx, booking.ShowID, token, seatIDs, err)
	}

	return confirmed, nil
}

// abandon rejects a booking whose request failed after it was persisted, so it
// never stays in status from, and returns cause.
func (o *Orchestrator) abandon(ctx context.Context, bookingID int64, from domain.BookingStatus, cause error) error {
	_, err := o.bookings.Transition(context.WithoutCancel(ctx), bookingID, from,
		domain.BookingUpdate{Status: domain.BookingStatusRejected})
	if err != nil {
		o.logger.Error("failed to reject abandoned booking", "booking_id", bookingID, "status", from, "error", err)
		return errors.Join(cause, err)
	}

	o.logger.Warn("rejected booking after a failed request", "booking_id", bookingID, "error", cause)
	o.metrics.recordRequest(ctx, string(domain.BookingStatusRejected))

	return cause
}

func (o *Orchestrator) releaseAfterFailure(ctx context.Context, showID int64, token string, seatIDs []int64, cause error) error {
	if _, err := o.ledger.Release(context.WithoutCancel(ctx), showID, token, seatIDs); err != nil {
		o.logger.Error("failed to release seats after a failed booking", "show_id", showID, "error", err)
		return errors.Join(cause, err)
	}

	return cause
}

// CancelBooking cancels a confirmed booking and frees its seats. Cancelling
// an already cancelled booking returns it unchanged.
func (o *Orchestrator) CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	ctx, span := tracer().Start(ctx, "booking.CancelBooking", trace.WithAttributes(attribute.Int64("booking.id", bookingID)))
	defer span.End()

	booking, err := o.bookings.GetById(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingStatusCancelled:
		// an earlier cancel may have failed to free the seats; seats taken
		// over by other bookings are skipped by the ledger
		if _, err := o.releaseSeats(ctx, booking); err != nil {
			span.RecordError(err)
			return nil, err
		}

		return booking, nil
	case domain.BookingStatusConfirmed:
	default:
		return nil, fmt.Errorf("cancel booking in status %s: %w", booking.Status, domain.ErrInvalidState)
	}

	cancelled, err := o.bookings.Transition(ctx, bookingID, domain.BookingStatusConfirmed,
		domain.BookingUpdate{Status: domain.BookingStatusCancelled})
	if errors.Is(err, domain.ErrEditConflict) {
		// a concurrent cancel won, it also released the seats
		return o.currentIfCancelled(ctx, bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel booking: %w", err)
	}

	released, err := o.releaseSeats(ctx, booking)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if released != len(booking.SeatIDs) {
		o.logger.Warn("cancelled booking did not own all of its seats",
			"booking_id", bookingID, "seats", len(booking.SeatIDs), "released", released)
	}

	o.metrics.cancellations.Add(ctx, 1)
	o.publish(ctx, domain.EventBookingCancelled, cancelled)

	return cancelled, nil
}

// releaseSeats frees the seats a cancelled booking still owns. It does not
// follow the caller's cancellation: a booking is cancelled before its seats
// are released and the release has to run to completion.
func (o *Orchestrator) releaseSeats(ctx context.Context, booking *domain.Booking) (int, error) {
	if booking.HoldToken == "" || len(booking.SeatIDs) == 0 {
		return 0, nil
	}

	released, err := o.ledger.Release(context.WithoutCancel(ctx), booking.ShowID, booking.HoldToken, booking.SeatIDs)
	if err != nil {
		return 0, fmt.Errorf("release seats of cancelled booking %d: %w", booking.ID, err)
	}

	return released, nil
}

// CancelWaiting withdraws a waiting booking from the waitlist.
func (o *Orchestrator) CancelWaiting(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	booking, err := o.bookings.GetById(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	switch booking.Status {
	case domain.BookingStatusCancelled:
		return booking, nil
	case domain.BookingStatusWaiting:
	default:
		return nil, fmt.Errorf("cancel waiting booking in status %s: %w", booking.Status, domain.ErrInvalidState)
	}

	cancelled, err := o.bookings.Transition(ctx, bookingID, domain.BookingStatusWaiting,
		domain.BookingUpdate{Status: domain.BookingStatusCancelled})
	if errors.Is(err, domain.ErrEditConflict) {
		// promoted in the meantime, or cancelled by a concurrent call
		return o.currentIfCancelled(ctx, bookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel waiting booking: %w", err)
	}

	if err := o.waitlist.CancelWaiting(ctx, bookingID); err != nil {
		return nil, err
	}

	o.publish(ctx, domain.EventBookingCancelled, cancelled)

	return cancelled, nil
}

func (o *Orchestrator) currentIfCancelled(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	current, err := o.bookings.GetById(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	if current.Status != domain.BookingStatusCancelled {
		return nil, fmt.Errorf("booking moved to status %s: %w", current.Status, domain.ErrInvalidState)
	}

	return current, nil
}

func (o *Orchestrator) GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	return o.bookings.GetById(ctx, bookingID)
}

func (o *Orchestrator) ListUserBookings(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	return o.bookings.GetByUserId(ctx, userID, pagination)
}

// AvailableSeats lists the idle seats of a show with their prices.
func (o *Orchestrator) AvailableSeats(
	ctx context.Context,
	showID int64,
	seatType *domain.SeatType) ([]domain.PricedSeat, error) {

	sc, err := o.loadShow(ctx, showID)
	if err != nil {
		return nil, err
	}

	available, err := o.ledger.AvailableSeats(ctx, showID, seatType)
	if err != nil {
		return nil, err
	}

	var seats []domain.PricedSeat
	for seat := range available {
		seats = append(seats, domain.PricedSeat{
			HallSeat: seat,
			Price:    pricing.Price(sc.show.BasePrice, seat.Type, sc.premiums),
		})
	}

	return seats, nil
}

func (o *Orchestrator) publish(ctx context.Context, eventType domain.EventType, booking *domain.Booking) {
	event := domain.Event{
		Type:       eventType,
		ShowID:     booking.ShowID,
		BookingID:  booking.ID,
		UserID:     booking.UserID,
		SeatIDs:    booking.SeatIDs,
		OccurredAt: o.clock.Now(),
	}

	if booking.Status == domain.BookingStatusConfirmed {
		event.TotalPrice = booking.TotalPrice.StringFixed(2)
	}

	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("failed to publish booking event", "type", eventType, "booking_id", booking.ID, "error", err)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, domain.Event) error {
	return nil
}
