package app

import (
	"context"
	"net/http"

	"github.com/metinatakli/seat-booking/api"
	"github.com/metinatakli/seat-booking/internal/domain"
)

func (app *Application) CreateBookingHandler(w http.ResponseWriter, r *http.Request) {
	showID, err := readIDParam(r, "showId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.CreateBookingRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := app.bookings.RequestBooking(r.Context(), toBookingRequest(showID, input))
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	status := http.StatusCreated
	if booking.Status == domain.BookingStatusWaiting {
		status = http.StatusAccepted
	}

	err = app.writeJSON(w, status, toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBookingHandler(w http.ResponseWriter, r *http.Request) {
	app.handleBooking(w, r, app.bookings.GetBooking)
}

func (app *Application) CancelBookingHandler(w http.ResponseWriter, r *http.Request) {
	app.handleBooking(w, r, app.bookings.CancelBooking)
}

func (app *Application) CancelWaitingHandler(w http.ResponseWriter, r *http.Request) {
	app.handleBooking(w, r, app.bookings.CancelWaiting)
}

// handleBooking serves the endpoints that act on a single booking id.
func (app *Application) handleBooking(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, bookingID int64) (*domain.Booking, error)) {

	bookingID, err := readIDParam(r, "bookingId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	booking, err := fn(r.Context(), bookingID)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(booking), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetUserBookingsHandler(w http.ResponseWriter, r *http.Request) {
	userID, err := readIDParam(r, "userId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var params api.GetUserBookingsParams

	params.Page, err = readIntQuery(r, "page")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	params.PageSize, err = readIntQuery(r, "pageSize")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	bookings, metadata, err := app.bookings.ListUserBookings(r.Context(), userID, toPagination(params))
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.UserBookingsResponse{
		Bookings: make([]api.BookingResponse, len(bookings)),
		Metadata: toApiMetadata(metadata),
	}

	for i := range bookings {
		resp.Bookings[i] = toBookingResponse(&bookings[i])
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toBookingRequest(showID int64, input api.CreateBookingRequest) domain.BookingRequest {
	req := domain.BookingRequest{
		UserID:  input.UserId,
		ShowID:  showID,
		SeatIDs: input.SeatIds,
	}

	if input.SeatCount != nil {
		req.SeatCount = *input.SeatCount
	}

	if input.SeatType != nil {
		seatType := domain.SeatType(*input.SeatType)
		req.SeatType = &seatType
	}

	return req
}

func toBookingResponse(b *domain.Booking) api.BookingResponse {
	resp := api.BookingResponse{
		Id:               b.ID,
		UserId:           b.UserID,
		ShowId:           b.ShowID,
		SeatCount:        b.SeatCount,
		RequestedSeatIds: b.RequestedSeatIDs,
		SeatIds:          b.SeatIDs,
		Status:           api.BookingStatus(b.Status),
		TotalPrice:       b.TotalPrice.StringFixed(2),
		CreatedAt:        b.CreatedAt,
		UpdatedAt:        b.UpdatedAt,
	}

	if b.SeatType != nil {
		seatType := api.SeatType(*b.SeatType)
		resp.SeatType = &seatType
	}

	return resp
}

func toPagination(params api.GetUserBookingsParams) domain.Pagination {
	pagination := domain.Pagination{
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}

	if params.Page != nil {
		pagination.Page = *params.Page
	}
	if params.PageSize != nil {
		pagination.PageSize = *params.PageSize
	}

	return pagination
}

func toApiMetadata(metadata *domain.Metadata) api.Metadata {
	if metadata == nil {
		return api.Metadata{}
	}

	return api.Metadata{
		CurrentPage:  metadata.CurrentPage,
		FirstPage:    metadata.FirstPage,
		LastPage:     metadata.LastPage,
		PageSize:     metadata.PageSize,
		TotalRecords: metadata.TotalRecords,
	}
}
