package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/chromatech/advisor/internal/services"
	"github.com/chromatech/advisor/internal/utils"
	"github.com/gin-gonic/gin"
)

const defaultCostWindow = 30 * 24 * time.Hour

type AdminHandler struct {
	svc services.InsightsService
}

func NewAdminHandler(svc services.InsightsService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

func (h *AdminHandler) TopCache(c *gin.Context) {
	limit := 0
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "AdminHandler.TopCache", "limit must be a positive integer", err))
			return
		}
		limit = n
	}

	rows, err := h.svc.TopCacheEntries(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": rows})
}

// Costs summarizes completion cost per model since ?since= (RFC 3339),
// defaulting to the last 30 days.
func (h *AdminHandler) Costs(c *gin.Context) {
	since := time.Now().UTC().Add(-defaultCostWindow)
	if s := c.Query("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(c, utils.E(utils.CodeInvalidArgument, "AdminHandler.Costs", "since must be an RFC 3339 timestamp", err))
			return
		}
		since = t
	}

	rows, err := h.svc.CostSummary(c.Request.Context(), since)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "models": rows})
}

func (h *AdminHandler) Traces(c *gin.Context) {
	var limit int64 = 100
	if s := c.Query("limit"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			writeError(c, utils.E(utils.CodeInvalidArgument, "AdminHandler.Traces", "limit must be a positive integer", err))
			return
		}
		limit = n
	}

	rows, err := h.svc.Traces(c.Request.Context(), c.Param("conversation_id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"traces": rows})
}
