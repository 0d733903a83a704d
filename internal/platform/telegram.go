package platform

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// telegramClient adapts the go-telegram/bot API to the Client contract.
type telegramClient struct {
	bot    *tgbot.Bot
	logger *slog.Logger
}

// NewTelegramFactory returns a Factory that builds Telegram clients with
// the given logger.
func NewTelegramFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "telegram_client")

	return func(token string) (Client, error) {
		if token == "" {
			return nil, fmt.Errorf("telegram bot token cannot be empty")
		}

		// The engine drives updates through the webhook ingress, so the
		// library's own update handling stays unused.
		b, err := tgbot.New(token, tgbot.WithSkipGetMe())
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram bot: %w", err)
		}

		return &telegramClient{bot: b, logger: log}, nil
	}
}

func (c *telegramClient) GetMe(ctx context.Context) (*models.User, error) {
	me, err := c.bot.GetMe(ctx)
	if err != nil {
		return nil, fmt.Errorf("getMe failed: %w", err)
	}
	return me, nil
}

func (c *telegramClient) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.SendMessage(ctx, &tgbot.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

func (c *telegramClient) PinMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := c.bot.PinChatMessage(ctx, &tgbot.PinChatMessageParams{ChatID: chatID, MessageID: messageID})
	return err
}

func (c *telegramClient) UnpinMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := c.bot.UnpinChatMessage(ctx, &tgbot.UnpinChatMessageParams{ChatID: chatID, MessageID: messageID})
	return err
}

func (c *telegramClient) UnpinAllMessages(ctx context.Context, chatID int64) error {
	_, err := c.bot.UnpinAllChatMessages(ctx, &tgbot.UnpinAllChatMessagesParams{ChatID: chatID})
	return err
}

func (c *telegramClient) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	_, err := c.bot.DeleteMessage(ctx, &tgbot.DeleteMessageParams{ChatID: chatID, MessageID: messageID})
	return err
}

func (c *telegramClient) RestrictMember(ctx context.Context, chatID, userID int64, permissions *models.ChatPermissions, until time.Time) error {
	_, err := c.bot.RestrictChatMember(ctx, &tgbot.RestrictChatMemberParams{
		ChatID:      chatID,
		UserID:      userID,
		Permissions: permissions,
		UntilDate:   int(until.Unix()),
	})
	return err
}

func (c *telegramClient) BanMember(ctx context.Context, chatID, userID int64) error {
	_, err := c.bot.BanChatMember(ctx, &tgbot.BanChatMemberParams{ChatID: chatID, UserID: userID})
	return err
}

func (c *telegramClient) UnbanMember(ctx context.Context, chatID, userID int64) error {
	_, err := c.bot.UnbanChatMember(ctx, &tgbot.UnbanChatMemberParams{ChatID: chatID, UserID: userID, OnlyIfBanned: true})
	return err
}

func (c *telegramClient) SetAdminTitle(ctx context.Context, chatID, userID int64, title string) error {
	_, err := c.bot.SetChatAdministratorCustomTitle(ctx, &tgbot.SetChatAdministratorCustomTitleParams{
		ChatID:      chatID,
		UserID:      userID,
		CustomTitle: title,
	})
	return err
}

func (c *telegramClient) SetChatTitle(ctx context.Context, chatID int64, title string) error {
	_, err := c.bot.SetChatTitle(ctx, &tgbot.SetChatTitleParams{ChatID: chatID, Title: title})
	return err
}

func (c *telegramClient) SetChatDescription(ctx context.Context, chatID int64, description string) error {
	_, err := c.bot.SetChatDescription(ctx, &tgbot.SetChatDescriptionParams{ChatID: chatID, Description: description})
	return err
}

func (c *telegramClient) CreateInviteLink(ctx context.Context, chatID int64, name string, memberLimit int, expireAt time.Time) (*models.ChatInviteLink, error) {
	link, err := c.bot.CreateChatInviteLink(ctx, &tgbot.CreateChatInviteLinkParams{
		ChatID:      chatID,
		Name:        name,
		MemberLimit: memberLimit,
		ExpireDate:  int(expireAt.Unix()),
	})
	if err != nil {
		return nil, err
	}
	return link, nil
}

func (c *telegramClient) GetChat(ctx context.Context, chatID int64) (*models.ChatFullInfo, error) {
	return c.bot.GetChat(ctx, &tgbot.GetChatParams{ChatID: chatID})
}

func (c *telegramClient) GetChatMemberCount(ctx context.Context, chatID int64) (int, error) {
	return c.bot.GetChatMemberCount(ctx, &tgbot.GetChatMemberCountParams{ChatID: chatID})
}

func (c *telegramClient) GetChatAdministrators(ctx context.Context, chatID int64) ([]models.ChatMember, error) {
	return c.bot.GetChatAdministrators(ctx, &tgbot.GetChatAdministratorsParams{ChatID: chatID})
}

func (c *telegramClient) GetChatMember(ctx context.Context, chatID, userID int64) (*models.ChatMember, error) {
	return c.bot.GetChatMember(ctx, &tgbot.GetChatMemberParams{ChatID: chatID, UserID: userID})
}

func (c *telegramClient) SetWebhook(ctx context.Context, url string, allowedUpdates []string) error {
	ok, err := c.bot.SetWebhook(ctx, &tgbot.SetWebhookParams{URL: url, AllowedUpdates: allowedUpdates})
	if err != nil {
		return fmt.Errorf("setWebhook failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("setWebhook was not confirmed by the platform")
	}
	c.logger.Info("Webhook registered", "url", url, "allowed_updates", allowedUpdates)
	return nil
}

func (c *telegramClient) DeleteWebhook(ctx context.Context) error {
	ok, err := c.bot.DeleteWebhook(ctx, &tgbot.DeleteWebhookParams{DropPendingUpdates: false})
	if err != nil {
		return fmt.Errorf("deleteWebhook failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("deleteWebhook was not confirmed by the platform")
	}
	return nil
}
