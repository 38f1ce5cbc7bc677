package services

import (
	"context"
	"time"

	"github.com/chromatech/advisor/internal/models"
	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"
	"github.com/chromatech/advisor/internal/utils"
)

const (
	defaultTopLimit = 20
	maxTopLimit     = 200
)

type CacheLister interface {
	Top(ctx context.Context, limit int) ([]models.CacheEntry, error)
}

type TraceLister interface {
	ListByConversation(ctx context.Context, conversationID string, limit int64) ([]models.ChatTrace, error)
}

// InsightsService backs the operator endpoints.
type InsightsService interface {
	TopCacheEntries(ctx context.Context, limit int) ([]models.CacheEntry, error)
	CostSummary(ctx context.Context, since time.Time) ([]models.CostSummary, error)
	Traces(ctx context.Context, conversationID string, limit int64) ([]models.ChatTrace, error)
}

type insightsService struct {
	cache  CacheLister
	costs  pgrepo.CostRepo
	traces TraceLister // nil without Mongo
}

func NewInsightsService(cache CacheLister, costs pgrepo.CostRepo, traces TraceLister) InsightsService {
	return &insightsService{cache: cache, costs: costs, traces: traces}
}

func (s *insightsService) TopCacheEntries(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		limit = defaultTopLimit
	}
	if limit > maxTopLimit {
		limit = maxTopLimit
	}
	return s.cache.Top(ctx, limit)
}

func (s *insightsService) CostSummary(ctx context.Context, since time.Time) ([]models.CostSummary, error) {
	const op = "InsightsService.CostSummary"

	if !since.IsZero() && since.After(time.Now()) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "since must be in the past", nil)
	}
	rows, err := s.costs.SummarySince(ctx, since)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to summarize costs", err)
	}
	return rows, nil
}

func (s *insightsService) Traces(ctx context.Context, conversationID string, limit int64) ([]models.ChatTrace, error) {
	const op = "InsightsService.Traces"

	if s.traces == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "trace store is not configured", nil)
	}
	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation_id is required", nil)
	}
	rows, err := s.traces.ListByConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to list traces", err)
	}
	return rows, nil
}
