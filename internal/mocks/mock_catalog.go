package mocks

import (
	"context"

	"github.com/metinatakli/seat-booking/internal/domain"
)

type MockCatalog struct {
	GetShowFunc         func(ctx context.Context, showID int64) (*domain.Show, error)
	GetHallSeatsFunc    func(ctx context.Context, hallID int64) ([]domain.HallSeat, error)
	GetPremiumTableFunc func(ctx context.Context, hallID int64) (domain.PremiumTable, error)
}

func (m *MockCatalog) GetShow(ctx context.Context, showID int64) (*domain.Show, error) {
	return m.GetShowFunc(ctx, showID)
}

func (m *MockCatalog) GetHallSeats(ctx context.Context, hallID int64) ([]domain.HallSeat, error) {
	return m.GetHallSeatsFunc(ctx, hallID)
}

func (m *MockCatalog) GetPremiumTable(ctx context.Context, hallID int64) (domain.PremiumTable, error) {
	return m.GetPremiumTableFunc(ctx, hallID)
}
