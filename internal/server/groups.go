package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmelo/groupwarden/internal/bot"
	"github.com/dmelo/groupwarden/internal/database"
)

type groupResponse struct {
	ID          int64     `json:"id"`
	GroupID     int64     `json:"group_id"`
	Title       string    `json:"title,omitempty"`
	MemberCount *int64    `json:"member_count,omitempty"`
	IsActive    bool      `json:"is_active"`
	AddedAt     time.Time `json:"added_at"`
}

func toGroupResponse(g *database.Group) groupResponse {
	resp := groupResponse{
		ID:       g.ID,
		GroupID:  g.GroupID,
		IsActive: g.IsActive,
		AddedAt:  g.AddedAt,
	}
	if g.Title.Valid {
		resp.Title = g.Title.String
	}
	if g.MemberCount.Valid {
		count := g.MemberCount.Int64
		resp.MemberCount = &count
	}
	return resp
}

type createGroupRequest struct {
	GroupID  int64  `json:"group_id" binding:"required"`
	Title    string `json:"title"`
	IsActive *bool  `json:"is_active"`
}

type updateGroupRequest struct {
	Title    *string `json:"title"`
	IsActive *bool   `json:"is_active"`
}

func (s *Server) listGroups(c *gin.Context) {
	groups, err := s.store.ListGroups(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to list groups", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list groups"})
		return
	}

	resp := make([]groupResponse, 0, len(groups))
	for i := range groups {
		resp = append(resp, toGroupResponse(&groups[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) createGroup(c *gin.Context) {
	var req createGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if existing, err := s.store.GetGroupByGroupID(ctx, req.GroupID); err == nil && existing != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "group already whitelisted"})
		return
	} else if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Error("Failed to check group", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	group := &database.Group{
		GroupID:  req.GroupID,
		IsActive: true,
	}
	if req.Title != "" {
		group.Title.String = req.Title
		group.Title.Valid = true
	}
	if req.IsActive != nil {
		group.IsActive = *req.IsActive
	}

	if err := s.store.CreateGroup(ctx, group); err != nil {
		s.logger.Error("Failed to create group", "group_id", req.GroupID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create group"})
		return
	}

	s.cache.InvalidateGroup(req.GroupID)
	c.JSON(http.StatusCreated, toGroupResponse(group))
}

func (s *Server) updateGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req updateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		groupNotFoundOr500(c, s, err, "update")
		return
	}

	patch := database.GroupPatch{Title: req.Title, IsActive: req.IsActive}
	if err := s.store.UpdateGroup(ctx, id, patch); err != nil {
		s.logger.Error("Failed to update group", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}

	s.cache.InvalidateGroup(group.GroupID)

	updated, err := s.store.GetGroup(ctx, id)
	if err != nil {
		groupNotFoundOr500(c, s, err, "reload")
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(updated))
}

func (s *Server) deleteGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		groupNotFoundOr500(c, s, err, "delete")
		return
	}

	if err := s.store.DeleteGroup(ctx, id); err != nil {
		s.logger.Error("Failed to delete group", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete group"})
		return
	}

	s.cache.InvalidateGroup(group.GroupID)
	c.Status(http.StatusNoContent)
}

// clearGroups empties the whitelist and purges every group-scoped log
// entry with it. System-scoped entries survive.
func (s *Server) clearGroups(c *gin.Context) {
	ctx := c.Request.Context()

	removed, err := s.store.DeleteAllGroups(ctx)
	if err != nil {
		s.logger.Error("Failed to clear whitelist", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear whitelist"})
		return
	}

	purged, err := s.store.DeleteGroupLogs(ctx)
	if err != nil {
		s.logger.Error("Failed to purge group logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "whitelist cleared but log purge failed"})
		return
	}

	s.cache.Reset()
	c.JSON(http.StatusOK, gin.H{"groups_removed": removed, "logs_purged": purged})
}

// refreshGroup pulls the chat's current title and member count from
// Telegram. It needs a live bot session.
func (s *Server) refreshGroup(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	group, err := s.store.GetGroup(ctx, id)
	if err != nil {
		groupNotFoundOr500(c, s, err, "refresh")
		return
	}

	client, err := s.manager.Client()
	if errors.Is(err, bot.ErrNoSession) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no live bot session"})
		return
	}

	chat, err := client.GetChat(ctx, group.GroupID)
	if err != nil {
		s.logger.Error("Failed to fetch chat info", "group_id", group.GroupID, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch chat info"})
		return
	}

	count, err := client.GetChatMemberCount(ctx, group.GroupID)
	if err != nil {
		s.logger.Warn("Failed to fetch member count", "group_id", group.GroupID, "error", err)
	}

	patch := database.GroupPatch{Title: &chat.Title}
	if err == nil {
		count64 := int64(count)
		patch.MemberCount = &count64
	}
	if err := s.store.UpdateGroup(ctx, id, patch); err != nil {
		s.logger.Error("Failed to store refreshed group", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update group"})
		return
	}

	s.cache.InvalidateGroup(group.GroupID)

	updated, err := s.store.GetGroup(ctx, id)
	if err != nil {
		groupNotFoundOr500(c, s, err, "reload")
		return
	}
	c.JSON(http.StatusOK, toGroupResponse(updated))
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func groupNotFoundOr500(c *gin.Context, s *Server, err error, op string) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "group not found"})
		return
	}
	s.logger.Error("Group lookup failed", "op", op, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "group lookup failed"})
}
