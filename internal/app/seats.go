package app

import (
	"net/http"

	"github.com/metinatakli/seat-booking/api"
	"github.com/metinatakli/seat-booking/internal/domain"
)

func (app *Application) GetAvailableSeatsHandler(w http.ResponseWriter, r *http.Request) {
	showID, err := readIDParam(r, "showId")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var params api.GetAvailableSeatsParams
	if t := r.URL.Query().Get("type"); t != "" {
		params.Type = &t
	}

	err = app.validator.Struct(params)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	var seatType *domain.SeatType
	if params.Type != nil {
		t := domain.SeatType(*params.Type)
		seatType = &t
	}

	seats, err := app.bookings.AvailableSeats(r.Context(), showID, seatType)
	if err != nil {
		app.bookingErrorResponse(w, r, err)
		return
	}

	resp := api.ShowSeatsResponse{
		ShowId: showID,
		Seats:  make([]api.Seat, len(seats)),
	}

	for i, seat := range seats {
		resp.Seats[i] = api.Seat{
			Id:     seat.ID,
			Number: seat.Number,
			Type:   api.SeatType(seat.Type),
			Price:  seat.Price.StringFixed(2),
		}
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
