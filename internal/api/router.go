package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"meal-alert-service/internal/config"
	"meal-alert-service/internal/logging"
	"meal-alert-service/internal/ws"
)

func NewRouter(h *Handler, wsHandler *ws.Handler, logger *logging.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	// Realtime handshake carries its own bearer credential.
	r.GET("/ws", wsHandler.Serve)

	api := r.Group(cfg.API.BasePath)
	{
		api.POST("/alerts", h.CreateAlert)
		api.GET("/alerts/:id", h.GetAlert)
		api.POST("/alerts/:id/ack", h.AckAlert)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
