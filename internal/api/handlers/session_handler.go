package handlers

import (
	"net/http"

	"github.com/chromatech/advisor/internal/models"
	"github.com/chromatech/advisor/internal/services"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions services.SessionService
	users    services.UserService
}

func NewSessionHandler(sessions services.SessionService, users services.UserService) *SessionHandler {
	return &SessionHandler{sessions: sessions, users: users}
}

type HistoryResponse struct {
	SessionToken string                    `json:"session_token"`
	Messages     []services.HistoryMessage `json:"messages"`
}

func (h *SessionHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	token := c.Query("session_token")
	rows, err := h.sessions.History(c.Request.Context(), userID, token)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, HistoryResponse{SessionToken: token, Messages: rows})
}

func (h *SessionHandler) End(c *gin.Context) {
	token := c.Param("session_token")
	if err := h.sessions.End(c.Request.Context(), optionalUserID(c), token); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type PreferencesRequest struct {
	ConsentMode models.ConsentMode `json:"consent_mode" binding:"required"`
}

func (h *SessionHandler) GetPreferences(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	mode, err := h.users.ConsentMode(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, PreferencesRequest{ConsentMode: mode})
}

func (h *SessionHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "SessionHandler.UpdatePreferences", "invalid request body", err))
		return
	}

	if err := h.users.SetConsentMode(c.Request.Context(), userID, req.ConsentMode); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
