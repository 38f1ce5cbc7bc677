package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/queue"
	"github.com/chromatech/advisor/internal/services"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChat struct {
	gotUser  string
	gotToken string
	feedback services.FeedbackInput
}

func (s *stubChat) HandleChat(ctx context.Context, userID, message, token string) (*services.ChatResult, error) {
	s.gotUser, s.gotToken = userID, token
	if strings.TrimSpace(message) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, "ChatService.HandleChat", "message is required", nil)
	}
	if token == "" {
		token = "fresh-token"
	}
	return &services.ChatResult{Answer: "echo: " + message, SessionToken: token, Source: services.SourceLLM}, nil
}

func (s *stubChat) RecordFeedback(ctx context.Context, in services.FeedbackInput) error {
	if !in.Feedback.Valid() {
		return utils.E(utils.CodeInvalidArgument, "ChatService.RecordFeedback", "bad feedback", nil)
	}
	s.feedback = in
	return nil
}

func (s *stubChat) QueueStatus() queue.Status {
	return queue.Status{Running: 2, Queued: 1, MaxConcurrent: 5}
}

type stubSessions struct {
	ended []string
}

func (s *stubSessions) History(ctx context.Context, userID, token string) ([]services.HistoryMessage, error) {
	if token != "tok" {
		return nil, utils.E(utils.CodeNotFound, "SessionService.History", "session not found", utils.ErrNotFound)
	}
	return []services.HistoryMessage{{ID: "m1", Role: models.RoleUser, Content: "hi"}}, nil
}

func (s *stubSessions) End(ctx context.Context, userID, token string) error {
	s.ended = append(s.ended, token)
	return nil
}

type stubInsights struct {
	since time.Time
	limit int
}

func (s *stubInsights) TopCacheEntries(ctx context.Context, limit int) ([]models.CacheEntry, error) {
	s.limit = limit
	return []models.CacheEntry{{QuestionSample: "which c18 column", HitCount: 7}}, nil
}

func (s *stubInsights) CostSummary(ctx context.Context, since time.Time) ([]models.CostSummary, error) {
	s.since = since
	return []models.CostSummary{{Model: "gpt-4o-mini", Calls: 3, TokenCount: 900, Cost: 0.0018}}, nil
}

func (s *stubInsights) Traces(ctx context.Context, conversationID string, limit int64) ([]models.ChatTrace, error) {
	return []models.ChatTrace{{ConversationID: conversationID, Source: services.SourceLLM, Outcome: "answered"}}, nil
}

func newTestRouter(user string) (*gin.Engine, *stubChat, *stubSessions, *stubInsights) {
	gin.SetMode(gin.TestMode)
	chat, sessions, insights := &stubChat{}, &stubSessions{}, &stubInsights{}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != "" {
			c.Set("user_id", user)
		}
		c.Next()
	})

	ch := NewChatHandler(chat)
	sh := NewSessionHandler(sessions, nil)
	ah := NewAdminHandler(insights)
	ws := NewWSHandler(chat, sessions, nil, nil)

	r.POST("/chat", ch.Chat)
	r.POST("/chat/feedback", ch.Feedback)
	r.GET("/chat/queue", ch.QueueStatus)
	r.GET("/chat/history", sh.History)
	r.DELETE("/chat/session/:session_token", sh.End)
	r.GET("/chat/ws", ws.Chat)
	r.GET("/admin/cache/top", ah.TopCache)
	r.GET("/admin/costs", ah.Costs)
	r.GET("/admin/traces/:conversation_id", ah.Traces)
	return r, chat, sessions, insights
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatHandler_Chat(t *testing.T) {
	r, chat, _, _ := newTestRouter("")

	w := do(r, http.MethodPost, "/chat", `{"message":"Which C18 column?"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var res services.ChatResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "echo: Which C18 column?", res.Answer)
	assert.Equal(t, "fresh-token", res.SessionToken)
	assert.Equal(t, services.SourceLLM, res.Source)
	assert.Empty(t, chat.gotUser)
}

func TestChatHandler_ChatPassesUserAndToken(t *testing.T) {
	r, chat, _, _ := newTestRouter("user-1")

	w := do(r, http.MethodPost, "/chat", `{"message":"hello column","session_token":"abc"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", chat.gotUser)
	assert.Equal(t, "abc", chat.gotToken)
}

func TestChatHandler_ValidationError(t *testing.T) {
	r, _, _, _ := newTestRouter("")

	w := do(r, http.MethodPost, "/chat", `{"message":"   "}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":"INVALID_ARGUMENT","message":"message is required"}`, w.Body.String())

	w = do(r, http.MethodPost, "/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_Feedback(t *testing.T) {
	r, chat, _, _ := newTestRouter("user-1")

	w := do(r, http.MethodPost, "/chat/feedback", `{"session_token":"tok","message_id":"m1","feedback":"like"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, services.FeedbackInput{
		UserID:       "user-1",
		SessionToken: "tok",
		MessageID:    "m1",
		Feedback:     models.FeedbackLike,
	}, chat.feedback)

	w = do(r, http.MethodPost, "/chat/feedback", `{"session_token":"tok","message_id":"m1","feedback":"meh"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/chat/feedback", `{"session_token":"tok","feedback":"like"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPost, "/chat/feedback", `{"message_id":"m1","feedback":"like"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatHandler_QueueStatus(t *testing.T) {
	r, _, _, _ := newTestRouter("")

	w := do(r, http.MethodGet, "/chat/queue", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":2,"queued":1,"max_concurrent":5}`, w.Body.String())
}

func TestSessionHandler_History(t *testing.T) {
	r, _, _, _ := newTestRouter("")
	w := do(r, http.MethodGet, "/chat/history?session_token=tok", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r, _, _, _ = newTestRouter("user-1")
	w = do(r, http.MethodGet, "/chat/history?session_token=tok", "")
	require.Equal(t, http.StatusOK, w.Code)

	var res HistoryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "hi", res.Messages[0].Content)

	w = do(r, http.MethodGet, "/chat/history?session_token=other", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSessionHandler_End(t *testing.T) {
	r, _, sessions, _ := newTestRouter("")

	w := do(r, http.MethodDelete, "/chat/session/tok-9", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"tok-9"}, sessions.ended)
}

func TestAdminHandler(t *testing.T) {
	r, _, _, insights := newTestRouter("admin-1")

	w := do(r, http.MethodGet, "/admin/cache/top?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, insights.limit)
	assert.Contains(t, w.Body.String(), "which c18 column")

	w = do(r, http.MethodGet, "/admin/cache/top?limit=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/admin/costs?since=2026-01-01T00:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), insights.since.UTC())
	assert.Contains(t, w.Body.String(), "gpt-4o-mini")

	w = do(r, http.MethodGet, "/admin/costs?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/admin/traces/conv-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"conversation_id":"conv-1"`)
}

func TestWSHandler_Chat(t *testing.T) {
	r, _, sessions, _ := newTestRouter("")
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "Which vial for LC-MS?"}))
	var answer map[string]any
	require.NoError(t, conn.ReadJSON(&answer))
	assert.Equal(t, "answer", answer["type"])
	assert.Equal(t, "echo: Which vial for LC-MS?", answer["answer"])
	assert.Equal(t, "fresh-token", answer["session_token"])

	require.NoError(t, conn.WriteJSON(map[string]string{"message": ""}))
	var failure map[string]any
	require.NoError(t, conn.ReadJSON(&failure))
	assert.Equal(t, "error", failure["type"])
	assert.Equal(t, "INVALID_ARGUMENT", failure["code"])

	require.NoError(t, conn.WriteJSON(map[string]string{"type": "end_session"}))
	var ended map[string]any
	require.NoError(t, conn.ReadJSON(&ended))
	assert.Equal(t, "ended", ended["type"])
	assert.Equal(t, []string{"fresh-token"}, sessions.ended)
}

// blockingChat holds a turn open until its context is cancelled.
type blockingChat struct {
	stubChat
	started  chan struct{}
	returned chan struct{}
}

func (b *blockingChat) HandleChat(ctx context.Context, userID, message, token string) (*services.ChatResult, error) {
	close(b.started)
	<-ctx.Done()
	close(b.returned)
	return nil, utils.E(utils.CodeUnavailable, "ChatService.HandleChat", "cancelled", ctx.Err())
}

func TestWSHandler_ShutdownDrainsOpenSockets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	chat := &blockingChat{started: make(chan struct{}), returned: make(chan struct{})}
	ws := NewWSHandler(chat, &stubSessions{}, nil, nil)

	r := gin.New()
	r.GET("/chat/ws", ws.Chat)
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "Which vial for LC-MS?"}))
	<-chat.started

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, ws.Shutdown(ctx))

	select {
	case <-chat.returned:
	default:
		t.Fatal("shutdown returned before the in-flight turn")
	}

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
