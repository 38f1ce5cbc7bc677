package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chromatech/advisor/internal/models"
	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"
	"github.com/chromatech/advisor/internal/utils"

	"github.com/sirupsen/logrus"
)

const historyPageSize = 100

type HistoryMessage struct {
	ID        string          `json:"id"`
	Role      models.Role     `json:"role"`
	Content   string          `json:"content,omitempty"`
	Redacted  bool            `json:"redacted,omitempty"`
	Feedback  models.Feedback `json:"feedback"`
	CreatedAt time.Time       `json:"created_at"`
}

type SessionService interface {
	History(ctx context.Context, userID, sessionToken string) ([]HistoryMessage, error)
	End(ctx context.Context, userID, sessionToken string) error
}

type sessionService struct {
	conversations pgrepo.ConversationRepo
	messages      pgrepo.MessageRepo
	codec         Encrypter
	log           *logrus.Logger
}

func NewSessionService(conversations pgrepo.ConversationRepo, messages pgrepo.MessageRepo, codec Encrypter, log *logrus.Logger) SessionService {
	if log == nil {
		log = logrus.New()
	}
	return &sessionService{conversations: conversations, messages: messages, codec: codec, log: log}
}

func (s *sessionService) History(ctx context.Context, userID, sessionToken string) ([]HistoryMessage, error) {
	const op = "SessionService.History"

	conv, err := s.owned(ctx, op, userID, sessionToken)
	if err != nil {
		return nil, err
	}

	rows, err := s.messages.RecentByConversation(ctx, conv.ID, historyPageSize)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to load history", err)
	}

	out := make([]HistoryMessage, 0, len(rows))
	for i := range rows {
		h := HistoryMessage{
			ID:        rows[i].ID,
			Role:      rows[i].Role,
			Feedback:  rows[i].Feedback,
			CreatedAt: rows[i].CreatedAt,
		}
		h.Content = readContent(s.codec, s.log, &rows[i])
		h.Redacted = h.Content == ""
		out = append(out, h)
	}
	return out, nil
}

// End soft-deletes the conversation behind sessionToken.
func (s *sessionService) End(ctx context.Context, userID, sessionToken string) error {
	const op = "SessionService.End"

	if _, err := s.owned(ctx, op, userID, sessionToken); err != nil {
		return err
	}
	if err := s.conversations.SoftDelete(ctx, sessionToken); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return utils.E(utils.CodeUnavailable, op, "failed to end session", err)
	}
	return nil
}

func (s *sessionService) owned(ctx context.Context, op, userID, token string) (*models.Conversation, error) {
	if strings.TrimSpace(token) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_token is required", nil)
	}

	conv, err := s.conversations.GetBySessionToken(ctx, token)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeUnavailable, op, "failed to get session", err)
	}
	if !conv.OwnedBy(userID) {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return conv, nil
}
