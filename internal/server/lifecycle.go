package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmelo/groupwarden/internal/bot"
)

type startBotRequest struct {
	Token string `json:"token" binding:"required"`
}

func (s *Server) botStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.manager.Status())
}

// startBot validates the supplied token against Telegram and brings up a
// session. A running session is replaced.
func (s *Server) startBot(c *gin.Context) {
	var req startBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token must not be blank"})
		return
	}

	status, err := s.manager.Start(c.Request.Context(), token)
	if err != nil {
		s.logger.Error("Failed to start bot session", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (s *Server) stopBot(c *gin.Context) {
	err := s.manager.Stop(c.Request.Context())
	if errors.Is(err, bot.ErrNoSession) {
		c.JSON(http.StatusConflict, gin.H{"error": "no live bot session"})
		return
	}
	if err != nil {
		s.logger.Error("Failed to stop bot session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop bot"})
		return
	}

	c.JSON(http.StatusOK, s.manager.Status())
}
