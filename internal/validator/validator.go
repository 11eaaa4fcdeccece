package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/seat-booking/internal/domain"
)

const (
	ErrRequired      = "is required"
	ErrMinValue      = "must be at least %s"
	ErrMaxValue      = "must be at most %s"
	ErrGreaterThan   = "must be greater than %s"
	ErrUniqueValues  = "must not contain duplicate values"
	ErrSeatType      = "must be one of %s"
	ErrSeatSelection = "exactly one of seat count or seat ids must be given"
	ErrInvalid       = "is invalid"
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("seat_type", validateSeatType)
	validator.RegisterStructValidation(validateBookingRequest, domain.BookingRequest{})

	return validator
}

func validateSeatType(fl validator.FieldLevel) bool {
	return domain.SeatType(fl.Field().String()).Valid()
}

func validateBookingRequest(sl validator.StructLevel) {
	req := sl.Current().Interface().(domain.BookingRequest)

	if (req.SeatCount > 0) == (len(req.SeatIDs) > 0) {
		sl.ReportError(req.SeatCount, "SeatCount", "seatCount", "seat_selection", "")
	}
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return ErrRequired
	case "min", "gte":
		return fmt.Sprintf(ErrMinValue, err.Param())
	case "max", "lte":
		return fmt.Sprintf(ErrMaxValue, err.Param())
	case "gt":
		return fmt.Sprintf(ErrGreaterThan, err.Param())
	case "unique":
		return ErrUniqueValues
	case "seat_type":
		return fmt.Sprintf(ErrSeatType, seatTypeList())
	case "seat_selection":
		return ErrSeatSelection
	default:
		return ErrInvalid
	}
}

func seatTypeList() string {
	names := make([]string, len(domain.SeatTypes))
	for i, t := range domain.SeatTypes {
		names[i] = string(t)
	}

	return strings.Join(names, ", ")
}
