package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/metinatakli/seat-booking/internal/domain"
	"github.com/shopspring/decimal"
)

type fileCatalog struct {
	Halls []struct {
		ID       int64                               `json:"id"`
		Premiums map[domain.SeatType]decimal.Decimal `json:"premiums"`
		Seats    []struct {
			ID     int64           `json:"id"`
			Number int             `json:"number"`
			Type   domain.SeatType `json:"type"`
		} `json:"seats"`
	} `json:"halls"`
	Shows []struct {
		ID        int64           `json:"id"`
		MovieID   int64           `json:"movieId"`
		HallID    int64           `json:"hallId"`
		StartTime time.Time       `json:"startTime"`
		EndTime   time.Time       `json:"endTime"`
		BasePrice decimal.Decimal `json:"basePrice"`
	} `json:"shows"`
}

// Load reads a JSON catalog of halls and shows and publishes it into a new
// in-memory catalog.
func Load(r io.Reader) (*Memory, error) {
	var doc fileCatalog

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	m := NewMemory()

	for _, h := range doc.Halls {
		seats := make([]domain.HallSeat, len(h.Seats))
		for i, s := range h.Seats {
			seats[i] = domain.HallSeat{ID: s.ID, HallID: h.ID, Number: s.Number, Type: s.Type}
		}

		if err := m.PublishHall(h.ID, seats, domain.PremiumTable(h.Premiums)); err != nil {
			return nil, err
		}
	}

	for _, s := range doc.Shows {
		err := m.PublishShow(domain.Show{
			ID:        s.ID,
			MovieID:   s.MovieID,
			HallID:    s.HallID,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			BasePrice: s.BasePrice,
		})
		if err != nil {
			return nil, err
		}
	}

	return m, nil
}

func LoadFile(path string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Load(f)
}
