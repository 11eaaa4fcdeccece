package mocks

import (
	"context"

	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) RequestBooking(ctx context.Context, req domain.BookingRequest) (*domain.Booking, error) {
	args := m.Called(ctx, req)
	return bookingOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBookingService) CancelBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	return bookingOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBookingService) CancelWaiting(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	return bookingOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBookingService) GetBooking(ctx context.Context, bookingID int64) (*domain.Booking, error) {
	args := m.Called(ctx, bookingID)
	return bookingOrNil(args.Get(0)), args.Error(1)
}

func (m *MockBookingService) ListUserBookings(
	ctx context.Context,
	userID int64,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	args := m.Called(ctx, userID, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Booking), args.Get(1).(*domain.Metadata), args.Error(2)
}

func (m *MockBookingService) AvailableSeats(
	ctx context.Context,
	showID int64,
	seatType *domain.SeatType) ([]domain.PricedSeat, error) {

	args := m.Called(ctx, showID, seatType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PricedSeat), args.Error(1)
}

func bookingOrNil(v any) *domain.Booking {
	if v == nil {
		return nil
	}
	return v.(*domain.Booking)
}
