package api

import "time"

type SeatType string

type BookingStatus string

type CreateBookingRequest struct {
	UserId    int64     `json:"userId"`
	SeatCount *int      `json:"seatCount,omitempty"`
	SeatIds   []int64   `json:"seatIds,omitempty"`
	SeatType  *SeatType `json:"seatType,omitempty"`
}

type BookingResponse struct {
	Id               int64         `json:"id"`
	UserId           int64         `json:"userId"`
	ShowId           int64         `json:"showId"`
	SeatCount        int           `json:"seatCount"`
	RequestedSeatIds []int64       `json:"requestedSeatIds,omitempty"`
	SeatType         *SeatType     `json:"seatType,omitempty"`
	SeatIds          []int64       `json:"seatIds,omitempty"`
	Status           BookingStatus `json:"status"`
	TotalPrice       string        `json:"totalPrice"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

type Seat struct {
	Id     int64    `json:"id"`
	Number int      `json:"number"`
	Type   SeatType `json:"type"`
	Price  string   `json:"price"`
}

type ShowSeatsResponse struct {
	ShowId int64  `json:"showId"`
	Seats  []Seat `json:"seats"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type UserBookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Metadata Metadata          `json:"metadata"`
}

type SystemInfo struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	Ledger      string `json:"ledger"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type GetUserBookingsParams struct {
	Page     *int `validate:"omitempty,min=1"`
	PageSize *int `validate:"omitempty,min=1,max=100"`
}

type GetAvailableSeatsParams struct {
	Type *string `validate:"omitempty,seat_type"`
}
