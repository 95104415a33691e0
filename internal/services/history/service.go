package history

import (
	"context"
	"strings"

	"threatlens/internal/domain"
	"threatlens/internal/ports"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

type Service struct {
	results ports.ResultRepository
}

func New(results ports.ResultRepository) *Service { return &Service{results: results} }

// Recent lists results newest first. Out-of-range limits fall back to the default.
func (s *Service) Recent(ctx context.Context, limit int) ([]domain.ScanResult, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return s.results.ListResults(ctx, limit)
}

func (s *Service) Latest(ctx context.Context, target string) (domain.ScanResult, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return domain.ScanResult{}, domain.ErrInvalidInput
	}
	return s.results.LatestForTarget(ctx, target)
}
