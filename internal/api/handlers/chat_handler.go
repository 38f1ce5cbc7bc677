package handlers

import (
	"net/http"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/services"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
)

type ChatHandler struct {
	svc services.ChatService
}

func NewChatHandler(svc services.ChatService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	Message      string `json:"message"`
	SessionToken string `json:"session_token"`
}

func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Chat", "invalid request body", err))
		return
	}

	res, err := h.svc.HandleChat(c.Request.Context(), optionalUserID(c), req.Message, req.SessionToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type FeedbackRequest struct {
	SessionToken string          `json:"session_token" binding:"required"`
	MessageID    string          `json:"message_id" binding:"required"`
	Feedback     models.Feedback `json:"feedback" binding:"required"`
	// Question lets the cache learn from feedback on shared answers.
	Question string `json:"question"`
}

func (h *ChatHandler) Feedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "ChatHandler.Feedback", "invalid request body", err))
		return
	}

	err := h.svc.RecordFeedback(c.Request.Context(), services.FeedbackInput{
		UserID:       optionalUserID(c),
		SessionToken: req.SessionToken,
		MessageID:    req.MessageID,
		Feedback:     req.Feedback,
		Question:     req.Question,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_id": req.MessageID, "feedback": req.Feedback})
}

func (h *ChatHandler) QueueStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.QueueStatus())
}
