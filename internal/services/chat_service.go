package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/chromatech/advisor/internal/background"
	"github.com/chromatech/advisor/internal/keywords"
	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/providers/llm"
	"github.com/chromatech/advisor/internal/queue"
	pgrepo "github.com/chromatech/advisor/internal/repositories/postgres"
	"github.com/chromatech/advisor/internal/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	MaxMessageLength = 2000

	SourceCache = "cache"
	SourceLLM   = "llm"

	ErrorMessage = "Sorry, I couldn't answer that right now. Please try again in a moment, " +
		"or send us an inquiry and our application specialists will get back to you."

	PricingMessage = "Pricing depends on quantity, configuration and region, so our sales team " +
		"prepares every quote individually. Add the products to your inquiry cart or contact " +
		"sales and we will reply with current prices and lead times."

	DefaultSystemPrompt = "You are the product advisor of an HPLC and chromatography consumables " +
		"distributor. Answer questions about columns, guard cartridges, vials, filters and method " +
		"development concisely and accurately. Recommend product types and stationary phases, not " +
		"prices. If a question is outside chromatography, politely say you can only help with " +
		"chromatography products. Never invent part numbers."
)

type Encrypter interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(token string) (string, error)
}

type ResponseCache interface {
	Check(ctx context.Context, question string) (string, bool)
	Save(ctx context.Context, question, answer string) error
	RecordFeedback(ctx context.Context, question string, like bool) error
}

type TraceRecorder interface {
	Insert(ctx context.Context, t *models.ChatTrace) error
}

type ChatResult struct {
	Answer         string `json:"answer"`
	SessionToken   string `json:"session_token"`
	Source         string `json:"source"` // cache|llm
	ConversationID string `json:"conversation_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

type ChatService interface {
	HandleChat(ctx context.Context, userID, message, sessionToken string) (*ChatResult, error)
	RecordFeedback(ctx context.Context, in FeedbackInput) error
	QueueStatus() queue.Status
}

// FeedbackInput rates one assistant message of the caller's own session.
type FeedbackInput struct {
	UserID       string
	SessionToken string
	MessageID    string
	Feedback     models.Feedback
	// Question, when set, also adjusts the shared cache entry for it.
	Question string
}

type ChatDeps struct {
	Conversations pgrepo.ConversationRepo
	Messages      pgrepo.MessageRepo
	Costs         pgrepo.CostRepo
	Users         pgrepo.UserRepository
	Cache         ResponseCache
	Queue         *queue.Queue
	LLM           llm.Provider
	Codec         Encrypter
	Traces        TraceRecorder // optional
	Background    *background.Group
	Logger        *logrus.Logger
	Now           func() time.Time
}

type ChatOptions struct {
	SystemPrompt string
	MaxTokens    int
	Temperature  float32
	HistoryLimit int
	// CostPerToken is the rate of the configured model.
	CostPerToken float64
}

type chatService struct {
	ChatDeps
	opts ChatOptions
	log  *logrus.Logger
}

func NewChatService(d ChatDeps, opts ChatOptions) ChatService {
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	if d.Background == nil {
		d.Background = background.NewGroup(d.Logger, 0)
	}
	if d.Queue == nil {
		d.Queue = queue.New(queue.DefaultMaxConcurrent, queue.DefaultTimeout)
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 5
	}
	return &chatService{ChatDeps: d, opts: opts, log: d.Logger}
}

func (s *chatService) QueueStatus() queue.Status { return s.Queue.Status() }

// HandleChat answers one advisor message. Only validation errors are returned;
// every other failure is logged and turned into ErrorMessage.
func (s *chatService) HandleChat(ctx context.Context, userID, message, sessionToken string) (*ChatResult, error) {
	const op = "ChatService.HandleChat"
	start := time.Now()

	msg := strings.TrimSpace(message)
	if msg == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message is required", nil)
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return nil, utils.E(utils.CodeInvalidArgument, op, "message must be at most 2000 characters", nil)
	}

	token := strings.TrimSpace(sessionToken)
	if token == "" {
		token = uuid.NewString()
	}

	if keywords.IsPricingQuery(msg) {
		s.finish(ctx, start, &models.ChatTrace{Source: SourceCache, Outcome: "pricing"})
		return &ChatResult{Answer: PricingMessage, SessionToken: token, Source: SourceCache}, nil
	}

	if answer, ok := s.Cache.Check(ctx, msg); ok {
		s.finish(ctx, start, &models.ChatTrace{Source: SourceCache, Outcome: "cached"})
		return &ChatResult{Answer: answer, SessionToken: token, Source: SourceCache}, nil
	}

	res, err := s.answer(ctx, userID, msg, token, start)
	if err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"op":         op,
			"request_id": utils.RequestID(ctx),
			"code":       utils.CodeOf(err),
		}).Error("chat request degraded")
		s.finish(ctx, start, &models.ChatTrace{Source: SourceLLM, Outcome: "degraded"})
		return &ChatResult{Answer: ErrorMessage, SessionToken: token, Source: SourceLLM}, nil
	}
	return res, nil
}

func (s *chatService) answer(ctx context.Context, userID, msg, token string, start time.Time) (*ChatResult, error) {
	const op = "ChatService.answer"

	conv := s.resolveConversation(ctx, userID, token)
	if conv != nil {
		token = conv.SessionToken
	}

	history := s.recentHistory(ctx, conv)

	// the user turn is stored before the completion call starts
	if conv != nil {
		m := s.newMessage(conv, models.RoleUser, msg)
		if err := s.Messages.Insert(ctx, m); err != nil {
			s.log.WithError(err).WithField("conversation_id", conv.ID).Warn("failed to persist user message")
		}
	}

	prompt := make([]llm.Message, 0, len(history)+2)
	prompt = append(prompt, llm.Message{Role: string(models.RoleSystem), Content: s.opts.SystemPrompt})
	prompt = append(prompt, history...)
	prompt = append(prompt, llm.Message{Role: string(models.RoleUser), Content: msg})

	completion, err := queue.Submit(ctx, s.Queue, func(ctx context.Context) (*llm.Completion, error) {
		return s.LLM.Complete(ctx, llm.Request{
			Messages:    prompt,
			MaxTokens:   s.opts.MaxTokens,
			Temperature: s.opts.Temperature,
		})
	})
	if err != nil {
		if utils.IsCode(err, utils.CodeTimeout) {
			return nil, err
		}
		return nil, utils.E(utils.CodeUnavailable, op, "completion service failed", err)
	}
	answer := strings.TrimSpace(completion.Content)
	if answer == "" {
		return nil, utils.E(utils.CodeUnavailable, op, "completion service returned an empty answer", nil)
	}

	res := &ChatResult{Answer: answer, SessionToken: token, Source: SourceLLM}
	trace := &models.ChatTrace{Source: SourceLLM, Outcome: "answered", Tokens: completion.TotalTokens}

	if conv != nil {
		res.ConversationID = conv.ID
		trace.ConversationID = conv.ID
		trace.ConsentMode = conv.ConsentMode

		m := s.newMessage(conv, models.RoleAssistant, answer)
		res.MessageID = m.ID
		s.Background.Go(ctx, "ChatService.persistAssistant", func(ctx context.Context) error {
			return s.Messages.Insert(ctx, m)
		})
	}

	s.recordCost(ctx, conv, completion)

	if !keywords.IsPersonalized(msg) {
		s.Background.Go(ctx, "ChatService.cacheSave", func(ctx context.Context) error {
			return s.Cache.Save(ctx, msg, answer)
		})
	}

	s.finish(ctx, start, trace)
	return res, nil
}

// resolveConversation finds or creates the conversation for token. It returns
// nil when the store cannot be used; the turn is then answered unpersisted.
func (s *chatService) resolveConversation(ctx context.Context, userID, token string) *models.Conversation {
	conv, err := s.Conversations.GetBySessionToken(ctx, token)
	switch {
	case err == nil:
		if conv.OwnedBy(userID) {
			return conv
		}
		s.log.WithField("conversation_id", conv.ID).Warn("session token belongs to another user, starting a new conversation")
		token = uuid.NewString()
	case !errors.Is(err, utils.ErrNotFound):
		s.log.WithError(err).Warn("conversation lookup failed")
		return nil
	}

	mode := s.consentFor(ctx, userID)
	now := s.Now().UTC()
	conv = &models.Conversation{
		ID:           uuid.NewString(),
		SessionToken: token,
		ConsentMode:  mode,
		CreatedAt:    now,
		ExpiresAt:    mode.ExpiresAt(now),
	}
	if userID != "" {
		uid := userID
		conv.UserID = &uid
	}

	err = s.Conversations.Create(ctx, conv)
	if err == nil {
		return conv
	}

	// a concurrent request may have created it first
	existing, gerr := s.Conversations.GetBySessionToken(ctx, token)
	switch {
	case gerr == nil && existing.OwnedBy(userID):
		return existing
	case errors.Is(gerr, utils.ErrNotFound):
		// the token belongs to an ended or purged conversation and stays
		// reserved by its row, so the caller gets a new one
		conv.SessionToken = uuid.NewString()
		if err = s.Conversations.Create(ctx, conv); err == nil {
			s.log.WithField("conversation_id", conv.ID).Info("session token retired, started a new conversation")
			return conv
		}
	}
	s.log.WithError(err).Warn("failed to create conversation")
	return nil
}

func (s *chatService) consentFor(ctx context.Context, userID string) models.ConsentMode {
	if userID == "" {
		return models.ConsentAnonymous
	}
	p, err := s.Users.GetPreference(ctx, userID)
	if err != nil {
		if !errors.Is(err, utils.ErrNotFound) {
			s.log.WithError(err).WithField("user_id", userID).Warn("consent preference lookup failed")
		}
		return models.ConsentStandard
	}
	if !p.ConsentMode.Valid() {
		return models.ConsentStandard
	}
	return p.ConsentMode
}

// recentHistory returns prior turns for standard-mode conversations only.
func (s *chatService) recentHistory(ctx context.Context, conv *models.Conversation) []llm.Message {
	if conv == nil || !conv.ConsentMode.RetainsContent() {
		return nil
	}

	rows, err := s.Messages.RecentByConversation(ctx, conv.ID, s.opts.HistoryLimit)
	if err != nil {
		s.log.WithError(err).WithField("conversation_id", conv.ID).Warn("history fetch failed")
		return nil
	}

	out := make([]llm.Message, 0, len(rows))
	for i := range rows {
		if rows[i].Role != models.RoleUser && rows[i].Role != models.RoleAssistant {
			continue
		}
		text := readContent(s.Codec, s.log, &rows[i])
		if text == "" {
			continue
		}
		out = append(out, llm.Message{Role: string(rows[i].Role), Content: text})
	}
	return out
}

// readContent returns the plaintext of m, or "" when it is redacted or
// cannot be decrypted.
func readContent(codec Encrypter, log *logrus.Logger, m *models.ChatMessage) string {
	switch c := m.StoredContent().(type) {
	case models.Plain:
		return c.Text
	case models.Encrypted:
		text, err := codec.Decrypt(c.Token)
		if err != nil {
			log.WithError(err).WithField("message_id", m.ID).Warn("message content could not be decrypted")
			return ""
		}
		return text
	default:
		return ""
	}
}

func (s *chatService) newMessage(conv *models.Conversation, role models.Role, text string) *models.ChatMessage {
	m := &models.ChatMessage{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           role,
		Feedback:       models.FeedbackNone,
		CreatedAt:      s.Now().UTC(),
	}

	var content models.Content = models.Redacted{}
	if conv.ConsentMode.RetainsContent() {
		token, err := s.Codec.Encrypt(text)
		if err != nil {
			s.log.WithError(err).WithField("conversation_id", conv.ID).Error("message encryption failed, storing redacted turn")
		} else {
			content = models.Encrypted{Token: token}
		}
	}
	m.SetContent(content)
	return m
}

func (s *chatService) recordCost(ctx context.Context, conv *models.Conversation, c *llm.Completion) {
	model := c.Model
	if model == "" {
		model = s.LLM.Model()
	}
	usage, _ := json.Marshal(map[string]int{
		"prompt_tokens":     c.PromptTokens,
		"completion_tokens": c.CompletionTokens,
		"total_tokens":      c.TotalTokens,
	})
	rec := &models.CostRecord{
		ID:         uuid.NewString(),
		TokenCount: c.TotalTokens,
		Cost:       float64(c.TotalTokens) * s.opts.CostPerToken,
		Model:      model,
		Usage:      datatypes.JSON(usage),
		CreatedAt:  s.Now().UTC(),
	}
	if conv != nil {
		id := conv.ID
		rec.ConversationID = &id
	}

	tokensTotal.WithLabelValues(model).Add(float64(c.TotalTokens))
	s.Background.Go(ctx, "ChatService.recordCost", func(ctx context.Context) error {
		return s.Costs.Insert(ctx, rec)
	})
}

func (s *chatService) finish(ctx context.Context, start time.Time, t *models.ChatTrace) {
	latency := time.Since(start)
	requestsTotal.WithLabelValues(t.Source, t.Outcome).Inc()
	requestSeconds.WithLabelValues(t.Source).Observe(latency.Seconds())

	if s.Traces == nil {
		return
	}
	t.RequestID = utils.RequestID(ctx)
	t.LatencyMS = latency.Milliseconds()
	t.Timestamp = s.Now().UTC()
	s.Background.Go(ctx, "ChatService.trace", func(ctx context.Context) error {
		return s.Traces.Insert(ctx, t)
	})
}

func (s *chatService) RecordFeedback(ctx context.Context, in FeedbackInput) error {
	const op = "ChatService.RecordFeedback"

	if in.MessageID == "" || strings.TrimSpace(in.SessionToken) == "" || !in.Feedback.Valid() {
		return utils.E(utils.CodeInvalidArgument, op, "session_token, message_id and a feedback of like, dislike or none are required", nil)
	}

	conv, err := s.Conversations.GetBySessionToken(ctx, in.SessionToken)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "message not found", err)
		}
		return utils.E(utils.CodeUnavailable, op, "failed to record feedback", err)
	}
	// foreign sessions look the same as missing ones
	if !conv.OwnedBy(in.UserID) {
		return utils.E(utils.CodeNotFound, op, "message not found", utils.ErrNotFound)
	}

	if err := s.Messages.SetFeedback(ctx, in.MessageID, conv.ID, in.Feedback); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "message not found", err)
		}
		return utils.E(utils.CodeUnavailable, op, "failed to record feedback", err)
	}

	if q := strings.TrimSpace(in.Question); q != "" && in.Feedback != models.FeedbackNone {
		if err := s.Cache.RecordFeedback(ctx, q, in.Feedback == models.FeedbackLike); err != nil && !utils.IsCode(err, utils.CodeNotFound) {
			s.log.WithError(err).WithField("message_id", in.MessageID).Warn("cache feedback not recorded")
		}
	}
	return nil
}
