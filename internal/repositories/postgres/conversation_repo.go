package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/utils"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	Create(ctx context.Context, c *models.Conversation) error
	GetBySessionToken(ctx context.Context, token string) (*models.Conversation, error)
	SoftDelete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *conversationRepo) GetBySessionToken(ctx context.Context, token string) (*models.Conversation, error) {
	var row models.Conversation
	err := r.db.WithContext(ctx).Where("session_token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *conversationRepo) SoftDelete(ctx context.Context, token string) error {
	res := r.db.WithContext(ctx).
		Where("session_token = ?", token).
		Delete(&models.Conversation{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *conversationRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", now).
		Delete(&models.Conversation{})
	return res.RowsAffected, res.Error
}
