package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/database"
	"github.com/dmelo/groupwarden/internal/platform"
)

// Membership event names recorded in the activity log.
const (
	eventMemberJoin    = "member_join"
	eventMemberLeave   = "member_leave"
	eventMemberRemoved = "member_removed"
)

// MembershipHandler turns chat_member updates into activity log entries and
// greets members who join a whitelisted group.
type MembershipHandler struct {
	cache  *ConfigCache
	client platform.Client
	audit  *AuditWriter
	logger *slog.Logger
}

// NewMembershipHandler wires a membership handler to the shared caches and
// audit writer.
func NewMembershipHandler(cache *ConfigCache, client platform.Client, audit *AuditWriter, logger *slog.Logger) *MembershipHandler {
	return &MembershipHandler{
		cache:  cache,
		client: client,
		audit:  audit,
		logger: logger.With("component", "membership"),
	}
}

// Handle classifies a chat_member transition and records it. Events from
// groups outside the whitelist are dropped silently.
func (h *MembershipHandler) Handle(ctx context.Context, upd *models.ChatMemberUpdated) {
	if upd == nil {
		return
	}

	group, err := h.cache.Group(ctx, upd.Chat.ID)
	if err != nil {
		h.logger.WarnContext(ctx, "Group lookup failed for membership event", "chat_id", upd.Chat.ID, "error", err)
		return
	}
	if group == nil || !group.IsActive {
		return
	}

	wasIn := isMemberStatus(&upd.OldChatMember)
	isIn := isMemberStatus(&upd.NewChatMember)

	subject := chatMemberUser(&upd.NewChatMember)
	if subject == nil {
		subject = chatMemberUser(&upd.OldChatMember)
	}
	if subject == nil {
		return
	}

	switch {
	case !wasIn && isIn:
		h.memberJoined(ctx, upd, group, subject)
	case wasIn && !isIn:
		h.memberLeft(upd, group, subject)
	}
}

func (h *MembershipHandler) memberJoined(ctx context.Context, upd *models.ChatMemberUpdated, group *database.Group, subject *models.User) {
	inviter := inviterName(upd.InviteLink)

	entry := database.ActivityLog{
		Action:         eventMemberJoin,
		Details:        fmt.Sprintf("%s joined", displayName(subject)),
		GroupID:        sql.NullInt64{Int64: group.GroupID, Valid: true},
		GroupTitle:     groupTitleOf(group, &upd.Chat),
		TargetUserName: sql.NullString{String: displayName(subject), Valid: true},
		Status:         database.StatusSuccess,
	}

	// Joins without invite metadata are logged but not greeted.
	if inviter == "" {
		h.audit.Enqueue(entry)
		return
	}

	entry.Details = fmt.Sprintf("%s joined via invite from %s", displayName(subject), inviter)
	entry.UserName = inviter
	h.audit.Enqueue(entry)

	welcome := fmt.Sprintf("Welcome, %s! You were invited by %s.", displayName(subject), inviter)
	if err := h.client.SendMessage(ctx, upd.Chat.ID, welcome); err != nil {
		h.logger.WarnContext(ctx, "Failed to send welcome message", "chat_id", upd.Chat.ID, "error", err)
	}
}

func (h *MembershipHandler) memberLeft(upd *models.ChatMemberUpdated, group *database.Group, subject *models.User) {
	entry := database.ActivityLog{
		Action:         eventMemberLeave,
		Details:        fmt.Sprintf("%s left", displayName(subject)),
		GroupID:        sql.NullInt64{Int64: group.GroupID, Valid: true},
		GroupTitle:     groupTitleOf(group, &upd.Chat),
		TargetUserName: sql.NullString{String: displayName(subject), Valid: true},
		Status:         database.StatusSuccess,
	}

	// A transition into kicked status means an admin removed the member;
	// the update's From is the acting admin. A plain leave has no actor.
	if upd.NewChatMember.Type == models.ChatMemberTypeBanned {
		entry.Action = eventMemberRemoved
		entry.Details = fmt.Sprintf("%s was removed", displayName(subject))
		entry.UserName = displayName(&upd.From)
	}

	h.audit.Enqueue(entry)
}

// inviterName extracts who to credit for a join that arrived through an
// invite link. Links created by the bot carry the creating admin's name in
// the link name; for other links the link creator is credited.
func inviterName(link *models.ChatInviteLink) string {
	if link == nil {
		return ""
	}
	if rest, ok := strings.CutPrefix(link.Name, inviteNameMarker); ok && rest != "" {
		return rest
	}
	if link.Creator.ID != 0 {
		return displayName(&link.Creator)
	}
	return ""
}

func groupTitleOf(group *database.Group, chat *models.Chat) string {
	if group != nil && group.Title.Valid && group.Title.String != "" {
		return group.Title.String
	}
	return chat.Title
}

func isMemberStatus(m *models.ChatMember) bool {
	switch m.Type {
	case models.ChatMemberTypeMember, models.ChatMemberTypeAdministrator, models.ChatMemberTypeOwner:
		return true
	case models.ChatMemberTypeRestricted:
		return m.Restricted != nil && m.Restricted.IsMember
	default:
		return false
	}
}

func chatMemberUser(m *models.ChatMember) *models.User {
	switch m.Type {
	case models.ChatMemberTypeOwner:
		if m.Owner != nil {
			return m.Owner.User
		}
	case models.ChatMemberTypeAdministrator:
		if m.Administrator != nil {
			return &m.Administrator.User
		}
	case models.ChatMemberTypeMember:
		if m.Member != nil {
			return m.Member.User
		}
	case models.ChatMemberTypeRestricted:
		if m.Restricted != nil {
			return m.Restricted.User
		}
	case models.ChatMemberTypeLeft:
		if m.Left != nil {
			return m.Left.User
		}
	case models.ChatMemberTypeBanned:
		if m.Banned != nil {
			return m.Banned.User
		}
	}
	return nil
}
