package postgres

import (
	"context"
	"time"

	"github.com/chromatech/advisor/internal/models"
	"gorm.io/gorm"
)

type CostRepo interface {
	Insert(ctx context.Context, rec *models.CostRecord) error
	SummarySince(ctx context.Context, since time.Time) ([]models.CostSummary, error)
}

type costRepo struct {
	db *gorm.DB
}

func NewCostRepo(db *gorm.DB) CostRepo {
	return &costRepo{db: db}
}

func (r *costRepo) Insert(ctx context.Context, rec *models.CostRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *costRepo) SummarySince(ctx context.Context, since time.Time) ([]models.CostSummary, error) {
	var out []models.CostSummary
	err := r.db.WithContext(ctx).
		Model(&models.CostRecord{}).
		Select("model, COUNT(*) AS calls, COALESCE(SUM(token_count), 0) AS token_count, COALESCE(SUM(cost), 0) AS cost").
		Where("created_at >= ?", since).
		Group("model").
		Order("cost DESC").
		Scan(&out).Error
	return out, err
}
