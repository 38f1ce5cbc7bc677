package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	limit int
}

func (s *stubLister) Top(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	s.limit = limit
	return nil, nil
}

type stubTraces struct {
	err error
}

func (s *stubTraces) ListByConversation(ctx context.Context, id string, limit int64) ([]models.ChatTrace, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []models.ChatTrace{{ConversationID: id}}, nil
}

func TestInsights_TopCacheEntriesClampsLimit(t *testing.T) {
	lister := &stubLister{}
	svc := NewInsightsService(lister, &fakeCosts{}, nil)

	_, err := svc.TopCacheEntries(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, defaultTopLimit, lister.limit)

	_, err = svc.TopCacheEntries(context.Background(), 10_000)
	require.NoError(t, err)
	assert.Equal(t, maxTopLimit, lister.limit)
}

func TestInsights_CostSummaryRejectsFuture(t *testing.T) {
	svc := NewInsightsService(&stubLister{}, &fakeCosts{}, nil)

	_, err := svc.CostSummary(context.Background(), time.Now().Add(time.Hour))
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = svc.CostSummary(context.Background(), time.Now().Add(-time.Hour))
	assert.NoError(t, err)
}

func TestInsights_Traces(t *testing.T) {
	ctx := context.Background()

	_, err := NewInsightsService(&stubLister{}, &fakeCosts{}, nil).Traces(ctx, "c1", 10)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))

	svc := NewInsightsService(&stubLister{}, &fakeCosts{}, &stubTraces{})
	rows, err := svc.Traces(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].ConversationID)

	_, err = svc.Traces(ctx, "", 10)
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	svc = NewInsightsService(&stubLister{}, &fakeCosts{}, &stubTraces{err: errors.New("mongo down")})
	_, err = svc.Traces(ctx, "c1", 10)
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}
