package service

import (
	"context"
	"fmt"

	"github.com/rl1809/bizease/internal/core/domain"
	"github.com/rl1809/bizease/internal/port"
)

type StatsService struct {
	orders port.OrderRepository
}

func NewStatsService(orders port.OrderRepository) *StatsService {
	return &StatsService{orders: orders}
}

// GetStats summarises an owner's orders. Revenue counts every order regardless of status.
func (s *StatsService) GetStats(ctx context.Context, ownerID string) (domain.OrderStats, error) {
	stats, err := s.orders.OrderStats(ctx, ownerID)
	if err != nil {
		return domain.OrderStats{}, fmt.Errorf("order stats: %w", err)
	}
	return stats, nil
}
