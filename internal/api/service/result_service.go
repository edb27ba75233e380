package service

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/api/models"
	"ctchen222/tictactoe-rooms/internal/repository"
)

// DefaultResultsLimit is used when a query gives no limit.
const DefaultResultsLimit = 20

// ResultService lists finished games.
type ResultService interface {
	List(ctx context.Context, query *models.ResultsQuery) ([]repository.GameResult, error)
}

type resultService struct {
	results repository.ResultRepository
}

// NewResultService creates a new ResultService.
func NewResultService(results repository.ResultRepository) ResultService {
	return &resultService{results: results}
}

// List returns the most recent results, optionally only those a player took part in.
func (s *resultService) List(ctx context.Context, query *models.ResultsQuery) ([]repository.GameResult, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultResultsLimit
	}
	if query.Player != "" {
		return s.results.ByPlayer(ctx, query.Player, limit)
	}
	return s.results.Recent(ctx, limit)
}
