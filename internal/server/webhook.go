package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/bot"
)

// receiveWebhook is the Telegram ingress. It acknowledges as soon as the
// update is handed to the engine; a 503 while no session is live makes
// Telegram retry later.
func (s *Server) receiveWebhook(c *gin.Context) {
	var update models.Update
	if err := json.NewDecoder(c.Request.Body).Decode(&update); err != nil {
		s.logger.Warn("Rejected malformed webhook payload", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed update"})
		return
	}

	err := s.manager.Dispatch(&update)
	if errors.Is(err, bot.ErrNoSession) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no live bot session"})
		return
	}
	if err != nil {
		s.logger.Error("Failed to dispatch update", "update_id", update.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dispatch failed"})
		return
	}

	c.Status(http.StatusOK)
}
