package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmelo/groupwarden/internal/database"
)

type logResponse struct {
	ID             int64     `json:"id"`
	Action         string    `json:"action"`
	Details        string    `json:"details,omitempty"`
	UserName       string    `json:"user_name"`
	GroupID        *int64    `json:"group_id,omitempty"`
	GroupTitle     string    `json:"group_title,omitempty"`
	TargetUserName string    `json:"target_user_name,omitempty"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func toLogResponse(entry *database.ActivityLog) logResponse {
	resp := logResponse{
		ID:         entry.ID,
		Action:     entry.Action,
		Details:    entry.Details,
		UserName:   entry.UserName,
		GroupTitle: entry.GroupTitle,
		Status:     entry.Status,
		CreatedAt:  entry.CreatedAt,
	}
	if entry.GroupID.Valid {
		id := entry.GroupID.Int64
		resp.GroupID = &id
	}
	if entry.TargetUserName.Valid {
		resp.TargetUserName = entry.TargetUserName.String
	}
	return resp
}

func (s *Server) listLogs(c *gin.Context) {
	limit := queryInt(c, "limit", 0)

	var groupID *int64
	if raw := c.Query("group_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid group_id"})
			return
		}
		groupID = &id
	}

	entries, err := s.store.ListLogs(c.Request.Context(), groupID, limit)
	if err != nil {
		s.logger.Error("Failed to list activity logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}

	c.JSON(http.StatusOK, logResponses(entries))
}

func (s *Server) listSystemLogs(c *gin.Context) {
	limit := queryInt(c, "limit", 0)

	entries, err := s.store.ListSystemLogs(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list system logs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list logs"})
		return
	}

	c.JSON(http.StatusOK, logResponses(entries))
}

func logResponses(entries []database.ActivityLog) []logResponse {
	resp := make([]logResponse, 0, len(entries))
	for i := range entries {
		resp = append(resp, toLogResponse(&entries[i]))
	}
	return resp
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
