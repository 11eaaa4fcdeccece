// Package pricing computes seat prices from a show's base price and the
// hall's seat type premiums.
package pricing

import (
	"fmt"

	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/shopspring/decimal"
)

const pricePlaces = 2

// Price returns base * (1 + premium) for the seat type. Seat types missing
// from the table carry no premium.
func Price(base decimal.Decimal, seatType domain.SeatType, premiums domain.PremiumTable) decimal.Decimal {
	premium, ok := premiums[seatType]
	if !ok {
		premium = decimal.Zero
	}

	return base.Mul(decimal.NewFromInt(1).Add(premium)).Round(pricePlaces)
}

// Total sums the prices of the given seats.
func Total(base decimal.Decimal, seats []domain.HallSeat, premiums domain.PremiumTable) decimal.Decimal {
	total := decimal.Zero

	for _, seat := range seats {
		total = total.Add(Price(base, seat.Type, premiums))
	}

	return total
}

// ValidatePremiums is run when catalog data is loaded; a bad table blocks
// the show from being published rather than failing at booking time.
func ValidatePremiums(premiums domain.PremiumTable) error {
	for seatType, premium := range premiums {
		if !seatType.Valid() {
			return fmt.Errorf("%w: unknown seat type %q in premium table", domain.ErrConfiguration, seatType)
		}

		if premium.IsNegative() {
			return fmt.Errorf("%w: premium for %q must not be negative, got %s",
				domain.ErrConfiguration, seatType, premium.String())
		}
	}

	return nil
}
