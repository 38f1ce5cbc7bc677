package routes

import (
	"net/http"

	"github.com/chromatech/advisor/internal/api/handlers"
	"github.com/chromatech/advisor/internal/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Deps struct {
	Chat    *handlers.ChatHandler
	Session *handlers.SessionHandler
	Admin   *handlers.AdminHandler
	WS      *handlers.WSHandler
	JWT     middleware.JWTConfig
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Anonymous allowed, user identified when a token is sent
	chat := r.Group("/chat")
	chat.Use(middleware.OptionalJWT(d.JWT))

	chat.POST("", d.Chat.Chat)
	chat.POST("/feedback", d.Chat.Feedback)
	chat.GET("/queue", d.Chat.QueueStatus)
	chat.DELETE("/session/:session_token", d.Session.End)
	chat.GET("/ws", d.WS.Chat)

	// Protected routes (JWT)
	auth := r.Group("/chat")
	auth.Use(middleware.JWTAuth(d.JWT))

	auth.GET("/history", d.Session.History)
	auth.GET("/preferences", d.Session.GetPreferences)
	auth.PUT("/preferences", d.Session.UpdatePreferences)

	admin := r.Group("/admin")
	admin.Use(middleware.JWTAuth(d.JWT), middleware.RequireAdmin())

	admin.GET("/cache/top", d.Admin.TopCache)
	admin.GET("/costs", d.Admin.Costs)
	admin.GET("/traces/:conversation_id", d.Admin.Traces)
}
