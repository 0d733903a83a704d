package bot

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/database"
	"github.com/dmelo/groupwarden/internal/platform"
)

const (
	defaultMuteDuration = 60 * time.Minute
	unmuteWindow        = time.Minute
	inviteNameMarker    = "via "
)

// User-facing notices. Plain language, never raw errors or stack traces.
const (
	msgActionFailed     = "Couldn't complete that action: %s"
	msgInviteUsage      = "Usage: send the command followed by a member limit and an expiry in minutes, e.g. \"10 60\"."
	msgGroupNameUsage   = "Usage: send the command followed by the new group name."
	msgDescriptionUsage = "Usage: send the command followed by the new description."
	msgUnmuteNeedsReply = "I can't resolve that mention to a user. Reply to one of their messages instead."
)

var mutedPermissions = &models.ChatPermissions{}

var unrestrictedPermissions = &models.ChatPermissions{
	CanSendMessages:       true,
	CanSendAudios:         true,
	CanSendDocuments:      true,
	CanSendPhotos:         true,
	CanSendVideos:         true,
	CanSendVideoNotes:     true,
	CanSendVoiceNotes:     true,
	CanSendPolls:          true,
	CanSendOtherMessages:  true,
	CanAddWebPagePreviews: true,
	CanChangeInfo:         true,
	CanInviteUsers:        true,
	CanPinMessages:        true,
	CanManageTopics:       true,
}

// Executor maps each matched command to its platform operation sequence:
// parse parameters from the message text, perform the RPC, acknowledge in
// chat, record exactly one activity log entry, and bump the usage counter
// on success. Failures are isolated per update and never propagate.
type Executor struct {
	client platform.Client
	store  database.Store
	audit  *AuditWriter
	logger *slog.Logger
}

// NewExecutor creates an action executor bound to a live platform client.
func NewExecutor(client platform.Client, store database.Store, audit *AuditWriter, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		client: client,
		store:  store,
		audit:  audit,
		logger: logger.With("component", "action_executor"),
	}
}

// actionContext carries the per-update state every handler needs.
type actionContext struct {
	cmd        *database.Command
	msg        *models.Message
	chatID     int64
	groupTitle string
	actor      string
	text       string
	reply      *models.Message
}

// Execute dispatches a matched command. The action set is a closed enum;
// every variant has a branch here.
func (e *Executor) Execute(ctx context.Context, group *database.Group, cmd *database.Command, msg *models.Message) {
	ac := actionContext{
		cmd:        cmd,
		msg:        msg,
		chatID:     msg.Chat.ID,
		groupTitle: groupTitle(group, msg),
		actor:      displayName(msg.From),
		text:       msg.Text,
		reply:      msg.ReplyToMessage,
	}

	if needsReplyTarget(cmd.ActionType) && (ac.reply == nil || ac.reply.From == nil) {
		// Misconfigured definitions (a reply action on a direct trigger)
		// reach here; the matcher never routes reply triggers without one.
		e.usage(ctx, ac, "Reply to a message to use this command.")
		return
	}

	switch cmd.ActionType {
	case database.ActionPinMessage:
		e.pinMessage(ctx, ac)
	case database.ActionUnpinMessage:
		e.unpinMessage(ctx, ac)
	case database.ActionSetTitle:
		e.setTitle(ctx, ac)
	case database.ActionRemoveTitle:
		e.removeTitle(ctx, ac)
	case database.ActionMute:
		e.mute(ctx, ac)
	case database.ActionUnmute:
		e.unmute(ctx, ac)
	case database.ActionKick:
		e.kick(ctx, ac)
	case database.ActionBan:
		e.ban(ctx, ac)
	case database.ActionDeleteMessage:
		e.deleteMessage(ctx, ac)
	case database.ActionUnpinAllMessages:
		e.unpinAll(ctx, ac)
	case database.ActionCreateInviteLink:
		e.createInviteLink(ctx, ac)
	case database.ActionSetGroupName:
		e.setGroupName(ctx, ac)
	case database.ActionSetGroupDescription:
		e.setGroupDescription(ctx, ac)
	case database.ActionDeleteGroupDescription:
		e.deleteGroupDescription(ctx, ac)
	case database.ActionShowAdmins:
		e.showAdmins(ctx, ac)
	case database.ActionShowGroupInfo:
		e.showGroupInfo(ctx, ac)
	default:
		e.logger.ErrorContext(ctx, "Command has unknown action type",
			"command_id", cmd.ID, "action_type", cmd.ActionType)
	}
}

func (e *Executor) pinMessage(ctx context.Context, ac actionContext) {
	target := displayName(ac.reply.From)
	if err := e.client.PinMessage(ctx, ac.chatID, ac.reply.ID); err != nil {
		e.fail(ctx, ac, target, err)
		return
	}
	e.ok(ctx, ac, "Message pinned.", "pinned message "+strconv.Itoa(ac.reply.ID), target)
}

func (e *Executor) unpinMessage(ctx context.Context, ac actionContext) {
	target := displayName(ac.reply.From)
	if err := e.client.UnpinMessage(ctx, ac.chatID, ac.reply.ID); err != nil {
		e.fail(ctx, ac, target, err)
		return
	}
	e.ok(ctx, ac, "Message unpinned.", "unpinned message "+strconv.Itoa(ac.reply.ID), target)
}

func (e *Executor) setTitle(ctx context.Context, ac actionContext) {
	target := ac.reply.From
	title := parseCustomTitle(ac.text, ac.cmd.Name)
	if err := e.client.SetAdminTitle(ctx, ac.chatID, target.ID, title); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("Title of %s set to %q.", displayName(target), title),
		fmt.Sprintf("set custom title %q", title),
		displayName(target))
}

func (e *Executor) removeTitle(ctx context.Context, ac actionContext) {
	target := ac.reply.From
	if err := e.client.SetAdminTitle(ctx, ac.chatID, target.ID, ""); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("Title of %s removed.", displayName(target)),
		"removed custom title",
		displayName(target))
}

func (e *Executor) mute(ctx context.Context, ac actionContext) {
	target := ac.reply.From
	duration := defaultMuteDuration
	if minutes, ok := parseMuteMinutes(ac.text, ac.cmd.Name); ok {
		duration = time.Duration(minutes) * time.Minute
	}
	until := time.Now().Add(duration)

	if err := e.client.RestrictMember(ctx, ac.chatID, target.ID, mutedPermissions, until); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("%s muted for %d minutes.", displayName(target), int(duration.Minutes())),
		fmt.Sprintf("muted for %d minutes", int(duration.Minutes())),
		displayName(target))
}

func (e *Executor) unmute(ctx context.Context, ac actionContext) {
	var target *models.User
	if ac.reply != nil && ac.reply.From != nil {
		target = ac.reply.From
	} else {
		mentioned, handle := parseMentionedUser(ac.msg)
		if mentioned == nil {
			notice := msgUnmuteNeedsReply
			if handle != "" {
				notice = fmt.Sprintf("I can't resolve %s to a user. Reply to one of their messages instead.", handle)
			}
			e.usage(ctx, ac, notice)
			return
		}
		target = mentioned
	}

	until := time.Now().Add(unmuteWindow)
	if err := e.client.RestrictMember(ctx, ac.chatID, target.ID, unrestrictedPermissions, until); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("%s unmuted.", displayName(target)),
		"restored send permissions",
		displayName(target))
}

func (e *Executor) kick(ctx context.Context, ac actionContext) {
	target := ac.reply.From
	if err := e.client.BanMember(ctx, ac.chatID, target.ID); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	// Immediate unban turns the ban into a removal that permits rejoining.
	if err := e.client.UnbanMember(ctx, ac.chatID, target.ID); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("%s removed from the group.", displayName(target)),
		"kicked (ban and immediate unban)",
		displayName(target))
}

func (e *Executor) ban(ctx context.Context, ac actionContext) {
	target := ac.reply.From
	if err := e.client.BanMember(ctx, ac.chatID, target.ID); err != nil {
		e.fail(ctx, ac, displayName(target), err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("%s banned.", displayName(target)),
		"banned permanently",
		displayName(target))
}

func (e *Executor) deleteMessage(ctx context.Context, ac actionContext) {
	target := displayName(ac.reply.From)
	if err := e.client.DeleteMessage(ctx, ac.chatID, ac.reply.ID); err != nil {
		e.fail(ctx, ac, target, err)
		return
	}
	e.ok(ctx, ac, "Message deleted.", "deleted message "+strconv.Itoa(ac.reply.ID), target)
}

func (e *Executor) unpinAll(ctx context.Context, ac actionContext) {
	if err := e.client.UnpinAllMessages(ctx, ac.chatID); err != nil {
		e.fail(ctx, ac, "", err)
		return
	}
	e.ok(ctx, ac, "All pinned messages cleared.", "unpinned all messages", "")
}

func (e *Executor) createInviteLink(ctx context.Context, ac actionContext) {
	memberLimit, expireMinutes, ok := parseInviteArgs(ac.text, ac.cmd.Name)
	if !ok {
		e.usage(ctx, ac, msgInviteUsage)
		return
	}

	expireAt := time.Now().Add(time.Duration(expireMinutes) * time.Minute)
	// The link name carries the creator's handle so the membership handler
	// can attribute joins to the inviting admin.
	link, err := e.client.CreateInviteLink(ctx, ac.chatID, inviteNameMarker+ac.actor, memberLimit, expireAt)
	if err != nil {
		e.fail(ctx, ac, "", err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("Invite link (max %d members, expires in %d minutes):\n%s", memberLimit, expireMinutes, link.InviteLink),
		fmt.Sprintf("created invite link (limit %d, expires %d min)", memberLimit, expireMinutes),
		"")
}

func (e *Executor) setGroupName(ctx context.Context, ac actionContext) {
	name := parseTrailing(ac.text, ac.cmd.Name)
	if name == "" {
		e.usage(ctx, ac, msgGroupNameUsage)
		return
	}
	if err := e.client.SetChatTitle(ctx, ac.chatID, name); err != nil {
		e.fail(ctx, ac, "", err)
		return
	}
	e.ok(ctx, ac,
		fmt.Sprintf("Group renamed to %q.", name),
		fmt.Sprintf("renamed group to %q", name),
		"")
}

func (e *Executor) setGroupDescription(ctx context.Context, ac actionContext) {
	description := parseTrailing(ac.text, ac.cmd.Name)
	if description == "" {
		e.usage(ctx, ac, msgDescriptionUsage)
		return
	}
	if err := e.client.SetChatDescription(ctx, ac.chatID, description); err != nil {
		e.fail(ctx, ac, "", err)
		return
	}
	e.ok(ctx, ac, "Group description updated.", "set group description", "")
}

func (e *Executor) deleteGroupDescription(ctx context.Context, ac actionContext) {
	// The platform rejects an empty description; a single space clears it.
	if err := e.client.SetChatDescription(ctx, ac.chatID, " "); err != nil {
		e.fail(ctx, ac, "", err)
		return
	}
	e.ok(ctx, ac, "Group description cleared.", "cleared group description", "")
}

func (e *Executor) showAdmins(ctx context.Context, ac actionContext) {
	admins, err := e.client.GetChatAdministrators(ctx, ac.chatID)
	if err != nil {
		e.fail(ctx, ac, "", err)
		return
	}
	e.ok(ctx, ac, formatAdminList(admins), "listed chat administrators", "")
}

func (e *Executor) showGroupInfo(ctx context.Context, ac actionContext) {
	chat, err := e.client.GetChat(ctx, ac.chatID)
	if err != nil {
		e.fail(ctx, ac, "", err)
		return
	}

	info := fmt.Sprintf("Group: %s", chat.Title)
	if chat.Description != "" {
		info += "\nDescription: " + chat.Description
	}
	e.ok(ctx, ac, info, "reported group info", "")
}

// ok sends the acknowledgement, records one success entry, and bumps the
// command's usage counter.
func (e *Executor) ok(ctx context.Context, ac actionContext, ackText, details, targetName string) {
	e.send(ctx, ac.chatID, ackText)

	// Log write is fire-and-forget via the audit queue; ordering relative
	// to other entries is irrelevant here.
	e.audit.Enqueue(database.ActivityLog{
		Action:         ac.cmd.Name,
		Details:        details,
		UserName:       ac.actor,
		GroupID:        sql.NullInt64{Int64: ac.chatID, Valid: true},
		GroupTitle:     ac.groupTitle,
		TargetUserName: nullString(targetName),
		Status:         database.StatusSuccess,
	})

	if err := e.store.IncrementCommandUsage(ctx, ac.cmd.ID); err != nil {
		e.logger.ErrorContext(ctx, "Failed to increment command usage",
			"command_id", ac.cmd.ID, "error", err)
	}
}

// fail sends a failure notice, records one error entry carrying the raw
// platform error, and leaves the usage counter untouched.
func (e *Executor) fail(ctx context.Context, ac actionContext, targetName string, err error) {
	e.logger.WarnContext(ctx, "Action failed",
		"command", ac.cmd.Name, "action_type", ac.cmd.ActionType,
		"chat_id", ac.chatID, "error", err)

	e.send(ctx, ac.chatID, fmt.Sprintf(msgActionFailed, err.Error()))

	e.audit.Enqueue(database.ActivityLog{
		Action:         ac.cmd.Name,
		Details:        err.Error(),
		UserName:       ac.actor,
		GroupID:        sql.NullInt64{Int64: ac.chatID, Valid: true},
		GroupTitle:     ac.groupTitle,
		TargetUserName: nullString(targetName),
		Status:         database.StatusError,
	})
}

// usage answers a malformed invocation. Pure usage errors are not recorded
// as activity entries so the audit trail stays actionable.
func (e *Executor) usage(ctx context.Context, ac actionContext, notice string) {
	e.logger.DebugContext(ctx, "Rejected malformed command invocation",
		"command", ac.cmd.Name, "chat_id", ac.chatID)
	e.send(ctx, ac.chatID, notice)
}

func (e *Executor) send(ctx context.Context, chatID int64, text string) {
	if err := e.client.SendMessage(ctx, chatID, text); err != nil {
		e.logger.WarnContext(ctx, "Failed to send chat message", "chat_id", chatID, "error", err)
	}
}

func formatAdminList(members []models.ChatMember) string {
	var b strings.Builder
	b.WriteString("Administrators:")
	for _, member := range members {
		user, title, isOwner := adminDetails(member)
		if user == nil || user.IsBot {
			continue
		}
		b.WriteString("\n- " + displayName(user))
		switch {
		case isOwner:
			b.WriteString(" (creator)")
		case title != "":
			b.WriteString(" (" + title + ")")
		}
	}
	return b.String()
}

func adminDetails(member models.ChatMember) (user *models.User, customTitle string, isOwner bool) {
	switch member.Type {
	case models.ChatMemberTypeOwner:
		if member.Owner != nil {
			return member.Owner.User, member.Owner.CustomTitle, true
		}
	case models.ChatMemberTypeAdministrator:
		if member.Administrator != nil {
			return &member.Administrator.User, member.Administrator.CustomTitle, false
		}
	}
	return nil, "", false
}

func groupTitle(group *database.Group, msg *models.Message) string {
	if group != nil && group.Title.Valid && group.Title.String != "" {
		return group.Title.String
	}
	return msg.Chat.Title
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func needsReplyTarget(action database.ActionType) bool {
	switch action {
	case database.ActionPinMessage, database.ActionUnpinMessage,
		database.ActionSetTitle, database.ActionRemoveTitle,
		database.ActionMute, database.ActionKick, database.ActionBan,
		database.ActionDeleteMessage:
		return true
	}
	return false
}
