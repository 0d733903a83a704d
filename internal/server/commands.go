package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmelo/groupwarden/internal/database"
)

type commandResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	TriggerType string    `json:"trigger_type"`
	ActionType  string    `json:"action_type"`
	Description string    `json:"description,omitempty"`
	IsEnabled   bool      `json:"is_enabled"`
	UsageCount  int64     `json:"usage_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toCommandResponse(cmd *database.Command) commandResponse {
	return commandResponse{
		ID:          cmd.ID,
		Name:        cmd.Name,
		TriggerType: string(cmd.TriggerType),
		ActionType:  string(cmd.ActionType),
		Description: cmd.Description,
		IsEnabled:   cmd.IsEnabled,
		UsageCount:  cmd.UsageCount,
		CreatedAt:   cmd.CreatedAt,
		UpdatedAt:   cmd.UpdatedAt,
	}
}

type createCommandRequest struct {
	Name        string `json:"name" binding:"required"`
	TriggerType string `json:"trigger_type" binding:"required"`
	ActionType  string `json:"action_type" binding:"required"`
	Description string `json:"description"`
	IsEnabled   *bool  `json:"is_enabled"`
}

type updateCommandRequest struct {
	Name        *string `json:"name"`
	TriggerType *string `json:"trigger_type"`
	ActionType  *string `json:"action_type"`
	Description *string `json:"description"`
	IsEnabled   *bool   `json:"is_enabled"`
}

func (s *Server) listCommands(c *gin.Context) {
	commands, err := s.store.ListCommands(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list commands", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list commands"})
		return
	}

	resp := make([]commandResponse, 0, len(commands))
	for i := range commands {
		resp = append(resp, toCommandResponse(&commands[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createCommand(c *gin.Context) {
	var req createCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be blank"})
		return
	}

	trigger := database.TriggerType(req.TriggerType)
	if !trigger.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trigger_type"})
		return
	}
	action := database.ActionType(req.ActionType)
	if !action.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action_type"})
		return
	}

	ctx := c.Request.Context()
	existing, err := s.store.ListCommands(ctx)
	if err != nil {
		s.logger.Error("Failed to list commands", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create command"})
		return
	}
	if hasTriggerActionPair(existing, trigger, action, 0) {
		c.JSON(http.StatusConflict, gin.H{"error": "a command with this trigger_type and action_type already exists"})
		return
	}

	cmd := &database.Command{
		Name:        name,
		TriggerType: trigger,
		ActionType:  action,
		Description: req.Description,
		IsEnabled:   true,
	}
	if req.IsEnabled != nil {
		cmd.IsEnabled = *req.IsEnabled
	}

	if err := s.store.CreateCommand(ctx, cmd); err != nil {
		s.logger.Error("Failed to create command", "name", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create command"})
		return
	}

	s.cache.InvalidateCommands()
	c.JSON(http.StatusCreated, toCommandResponse(cmd))
}

func (s *Server) updateCommand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateCommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	current, err := s.store.GetCommand(ctx, id)
	if err != nil {
		commandNotFoundOr500(c, s, err)
		return
	}

	patch := database.CommandPatch{Description: req.Description, IsEnabled: req.IsEnabled}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name must not be blank"})
			return
		}
		patch.Name = &name
	}

	trigger := current.TriggerType
	if req.TriggerType != nil {
		trigger = database.TriggerType(*req.TriggerType)
		if !trigger.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid trigger_type"})
			return
		}
		patch.TriggerType = &trigger
	}

	action := current.ActionType
	if req.ActionType != nil {
		action = database.ActionType(*req.ActionType)
		if !action.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action_type"})
			return
		}
		patch.ActionType = &action
	}

	if req.TriggerType != nil || req.ActionType != nil {
		existing, err := s.store.ListCommands(ctx)
		if err != nil {
			s.logger.Error("Failed to list commands", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update command"})
			return
		}
		if hasTriggerActionPair(existing, trigger, action, id) {
			c.JSON(http.StatusConflict, gin.H{"error": "a command with this trigger_type and action_type already exists"})
			return
		}
	}

	if err := s.store.UpdateCommand(ctx, id, patch); err != nil {
		s.logger.Error("Failed to update command", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update command"})
		return
	}

	s.cache.InvalidateCommands()

	updated, err := s.store.GetCommand(ctx, id)
	if err != nil {
		commandNotFoundOr500(c, s, err)
		return
	}
	c.JSON(http.StatusOK, toCommandResponse(updated))
}

func (s *Server) deleteCommand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := s.store.GetCommand(ctx, id); err != nil {
		commandNotFoundOr500(c, s, err)
		return
	}

	if err := s.store.DeleteCommand(ctx, id); err != nil {
		s.logger.Error("Failed to delete command", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete command"})
		return
	}

	s.cache.InvalidateCommands()
	c.Status(http.StatusNoContent)
}

// hasTriggerActionPair reports whether another command already binds the
// same trigger type to the same action. exclude skips the command being
// edited.
func hasTriggerActionPair(commands []database.Command, trigger database.TriggerType, action database.ActionType, exclude int64) bool {
	for i := range commands {
		if commands[i].ID == exclude {
			continue
		}
		if commands[i].TriggerType == trigger && commands[i].ActionType == action {
			return true
		}
	}
	return false
}

func commandNotFoundOr500(c *gin.Context, s *Server, err error) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "command not found"})
		return
	}
	s.logger.Error("Command lookup failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "command lookup failed"})
}
