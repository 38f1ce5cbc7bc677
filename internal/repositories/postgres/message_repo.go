package postgres

import (
	"context"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/utils"
	"gorm.io/gorm"
)

type MessageRepo interface {
	Insert(ctx context.Context, m *models.ChatMessage) error
	// RecentByConversation returns the latest n messages, oldest first.
	RecentByConversation(ctx context.Context, conversationID string, n int) ([]models.ChatMessage, error)
	// SetFeedback updates message id only when it belongs to conversationID.
	SetFeedback(ctx context.Context, id, conversationID string, fb models.Feedback) error
}

type messageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) MessageRepo {
	return &messageRepo{db: db}
}

func (r *messageRepo) Insert(ctx context.Context, m *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *messageRepo) RecentByConversation(ctx context.Context, conversationID string, n int) ([]models.ChatMessage, error) {
	if n <= 0 {
		n = 5
	}

	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}

func (r *messageRepo) SetFeedback(ctx context.Context, id, conversationID string, fb models.Feedback) error {
	res := r.db.WithContext(ctx).
		Model(&models.ChatMessage{}).
		Where("id = ? AND conversation_id = ?", id, conversationID).
		Update("feedback", fb)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}
