package database

import (
	"database/sql"
	"time"
)

// TriggerType is the structural context a command requires: sent directly,
// or sent as a reply to another message.
type TriggerType string

const (
	TriggerDirect TriggerType = "direct"
	TriggerReply  TriggerType = "reply"
)

// Valid reports whether the trigger type is one of the known values.
func (t TriggerType) Valid() bool {
	return t == TriggerDirect || t == TriggerReply
}

// ActionType identifies the moderation operation a command performs.
// The dispatch engine switches over this closed set; a new value needs a
// matching executor branch.
type ActionType string

const (
	ActionPinMessage             ActionType = "pin_message"
	ActionUnpinMessage           ActionType = "unpin_message"
	ActionSetTitle               ActionType = "set_title"
	ActionRemoveTitle            ActionType = "remove_title"
	ActionMute                   ActionType = "mute"
	ActionUnmute                 ActionType = "unmute"
	ActionKick                   ActionType = "kick"
	ActionBan                    ActionType = "ban"
	ActionDeleteMessage          ActionType = "delete_message"
	ActionUnpinAllMessages       ActionType = "unpin_all_messages"
	ActionCreateInviteLink       ActionType = "create_invite_link"
	ActionSetGroupName           ActionType = "set_group_name"
	ActionSetGroupDescription    ActionType = "set_group_description"
	ActionDeleteGroupDescription ActionType = "delete_group_description"
	ActionShowAdmins             ActionType = "show_admins"
	ActionShowGroupInfo          ActionType = "show_group_info"
)

// ActionTypes lists every known action type in a stable order.
var ActionTypes = []ActionType{
	ActionPinMessage,
	ActionUnpinMessage,
	ActionSetTitle,
	ActionRemoveTitle,
	ActionMute,
	ActionUnmute,
	ActionKick,
	ActionBan,
	ActionDeleteMessage,
	ActionUnpinAllMessages,
	ActionCreateInviteLink,
	ActionSetGroupName,
	ActionSetGroupDescription,
	ActionDeleteGroupDescription,
	ActionShowAdmins,
	ActionShowGroupInfo,
}

// Valid reports whether the action type is one of the known values.
func (a ActionType) Valid() bool {
	for _, known := range ActionTypes {
		if a == known {
			return true
		}
	}
	return false
}

// Log entry statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// BotConfig is the singleton record holding the configured bot token and
// the identity reported by the platform when the session last started.
type BotConfig struct {
	ID          int       `db:"id"`
	Token       string    `db:"token"`
	BotID       int64     `db:"bot_id"`
	BotUsername string    `db:"bot_username"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Group is a whitelisted chat the bot is permitted to act in.
// GroupID is the platform-assigned chat identifier and is unique.
type Group struct {
	ID          int64          `db:"id"`
	GroupID     int64          `db:"group_id"`
	Title       sql.NullString `db:"title"`
	MemberCount sql.NullInt64  `db:"member_count"`
	IsActive    bool           `db:"is_active"`
	AddedAt     time.Time      `db:"added_at"`
}

// Command is an admin-defined text trigger bound to a moderation action.
// Name is the literal token the matcher looks for; UsageCount is a
// monotonic counter incremented after each successful dispatch.
type Command struct {
	ID          int64       `db:"id"`
	Name        string      `db:"name"`
	TriggerType TriggerType `db:"trigger_type"`
	ActionType  ActionType  `db:"action_type"`
	Description string      `db:"description"`
	IsEnabled   bool        `db:"is_enabled"`
	UsageCount  int64       `db:"usage_count"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// ActivityLog is an append-only record of a dispatched action or system
// event. A null GroupID marks a system-scoped entry, which is exempt from
// retention and whitelist-clear purges.
type ActivityLog struct {
	ID             int64          `db:"id"`
	Action         string         `db:"action"`
	Details        string         `db:"details"`
	UserName       string         `db:"user_name"`
	GroupID        sql.NullInt64  `db:"group_id"`
	GroupTitle     string         `db:"group_title"`
	TargetUserName sql.NullString `db:"target_user_name"`
	Status         string         `db:"status"`
	CreatedAt      time.Time      `db:"created_at"`
}
