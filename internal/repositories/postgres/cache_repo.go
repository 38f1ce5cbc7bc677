package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CacheRepo interface {
	// FindActive returns the entry for hash if it has not expired at now.
	FindActive(ctx context.Context, hash string, now time.Time) (*models.CacheEntry, error)
	IncrementHit(ctx context.Context, hash string) error
	// Upsert inserts e or overwrites the answer, keywords, sample and expiry of
	// the row with the same hash. Counters are left untouched.
	Upsert(ctx context.Context, e *models.CacheEntry) error
	RecordFeedback(ctx context.Context, hash string, like bool) error
	TopByHits(ctx context.Context, limit int) ([]models.CacheEntry, error)
}

type cacheRepo struct {
	db *gorm.DB
}

func NewCacheRepo(db *gorm.DB) CacheRepo {
	return &cacheRepo{db: db}
}

func (r *cacheRepo) FindActive(ctx context.Context, hash string, now time.Time) (*models.CacheEntry, error) {
	var row models.CacheEntry
	err := r.db.WithContext(ctx).
		Where("question_hash = ? AND expires_at > ?", hash, now).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *cacheRepo) IncrementHit(ctx context.Context, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("question_hash = ?", hash).
		UpdateColumn("hit_count", gorm.Expr("hit_count + 1")).Error
}

func (r *cacheRepo) Upsert(ctx context.Context, e *models.CacheEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "question_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"keywords", "question_sample", "answer", "expires_at"}),
		}).
		Create(e).Error
}

func (r *cacheRepo) RecordFeedback(ctx context.Context, hash string, like bool) error {
	likes, dislikes := gorm.Expr("like_count"), gorm.Expr("dislike_count + 1")
	if like {
		likes, dislikes = gorm.Expr("like_count + 1"), gorm.Expr("dislike_count")
	}
	// Postgres evaluates SET expressions against the old row, so the rate is
	// computed from the incremented values explicitly.
	rate := gorm.Expr("(?)::float / NULLIF((?) + (?), 0)", likes, likes, dislikes)

	res := r.db.WithContext(ctx).
		Model(&models.CacheEntry{}).
		Where("question_hash = ?", hash).
		UpdateColumns(map[string]any{
			"like_count":        likes,
			"dislike_count":     dislikes,
			"satisfaction_rate": gorm.Expr("COALESCE(?, 0)", rate),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *cacheRepo) TopByHits(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.CacheEntry
	err := r.db.WithContext(ctx).
		Order("hit_count DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
