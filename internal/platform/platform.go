// Package platform defines the contract the dispatch engine expects from
// the messaging platform and provides the Telegram implementation.
package platform

import (
	"context"
	"time"

	"github.com/go-telegram/bot/models"
)

// Client is the subset of platform operations the engine relies on.
// Implementations wrap a live bot connection; fakes stand in for tests.
type Client interface {
	GetMe(ctx context.Context) (*models.User, error)

	SendMessage(ctx context.Context, chatID int64, text string) error
	PinMessage(ctx context.Context, chatID int64, messageID int) error
	UnpinMessage(ctx context.Context, chatID int64, messageID int) error
	UnpinAllMessages(ctx context.Context, chatID int64) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	RestrictMember(ctx context.Context, chatID, userID int64, permissions *models.ChatPermissions, until time.Time) error
	BanMember(ctx context.Context, chatID, userID int64) error
	UnbanMember(ctx context.Context, chatID, userID int64) error
	SetAdminTitle(ctx context.Context, chatID, userID int64, title string) error

	SetChatTitle(ctx context.Context, chatID int64, title string) error
	SetChatDescription(ctx context.Context, chatID int64, description string) error
	CreateInviteLink(ctx context.Context, chatID int64, name string, memberLimit int, expireAt time.Time) (*models.ChatInviteLink, error)

	GetChat(ctx context.Context, chatID int64) (*models.ChatFullInfo, error)
	GetChatMemberCount(ctx context.Context, chatID int64) (int, error)
	GetChatAdministrators(ctx context.Context, chatID int64) ([]models.ChatMember, error)
	GetChatMember(ctx context.Context, chatID, userID int64) (*models.ChatMember, error)

	SetWebhook(ctx context.Context, url string, allowedUpdates []string) error
	DeleteWebhook(ctx context.Context) error
}

// Factory constructs a Client bound to a bot token. The lifecycle
// controller calls it on every session start so a rotated token always
// yields a fresh connection.
type Factory func(token string) (Client, error)
