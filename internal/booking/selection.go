package booking

import (
	"slices"

	"github.com/metinatakli/seat-booking/internal/domain"
)

// selectSeats picks count seats out of the idle seats of a show, which are
// ordered by seat number. A preferred type restricts the pick to that type,
// otherwise a contiguous block of one type wins over a contiguous block of
// mixed types, which wins over the lowest numbered seats. It returns nil
// when there are not enough idle seats.
func selectSeats(idle []domain.HallSeat, count int, seatType *domain.SeatType) []domain.HallSeat {
	if seatType != nil {
		idle = seatsOfType(idle, *seatType)
	}

	if count <= 0 || len(idle) < count {
		return nil
	}

	if seatType == nil {
		for _, t := range domain.SeatTypes {
			if block := contiguousBlock(seatsOfType(idle, t), count); block != nil {
				return block
			}
		}
	}

	if block := contiguousBlock(idle, count); block != nil {
		return block
	}

	return slices.Clone(idle[:count])
}

// contiguousBlock returns the first run of count consecutive seat numbers.
func contiguousBlock(seats []domain.HallSeat, count int) []domain.HallSeat {
	start := 0
	for i := range seats {
		if i > 0 && seats[i].Number != seats[i-1].Number+1 {
			start = i
		}

		if i-start+1 == count {
			return slices.Clone(seats[start : i+1])
		}
	}

	return nil
}

func seatsOfType(seats []domain.HallSeat, seatType domain.SeatType) []domain.HallSeat {
	var filtered []domain.HallSeat
	for _, seat := range seats {
		if seat.Type == seatType {
			filtered = append(filtered, seat)
		}
	}

	return filtered
}

func seatIDsOf(seats []domain.HallSeat) []int64 {
	ids := make([]int64, len(seats))
	for i, seat := range seats {
		ids[i] = seat.ID
	}

	return ids
}
