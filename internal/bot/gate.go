package bot

import (
	"context"
	"log/slog"

	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/database"
	"github.com/dmelo/groupwarden/internal/platform"
)

// Deny reasons reported by the gate. Denials are silent drops: they are
// never logged as activity entries or answered in chat.
const (
	denyNotWhitelisted = "chat not whitelisted"
	denyInactive       = "chat whitelisted but inactive"
	denyNotAdmin       = "sender is not an administrator"
	denyLookupFailed   = "member status lookup failed"
)

// Decision is the outcome of an authorization check. Group is set only
// when the check passed.
type Decision struct {
	Allowed bool
	Reason  string
	Group   *database.Group
}

// Gate decides whether an inbound update may reach the command matcher:
// the chat must be whitelisted and active, and the sender must hold
// creator or administrator status in it.
type Gate struct {
	cache  *ConfigCache
	client platform.Client
	logger *slog.Logger
}

// NewGate creates an authorization gate bound to a live platform client.
func NewGate(cache *ConfigCache, client platform.Client, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		cache:  cache,
		client: client,
		logger: logger.With("component", "auth_gate"),
	}
}

// Authorize runs the ordered checks, short-circuiting on the first failure.
func (g *Gate) Authorize(ctx context.Context, chatID, senderID int64) (Decision, error) {
	group, err := g.cache.Group(ctx, chatID)
	if err != nil {
		return Decision{}, err
	}
	if group == nil {
		return Decision{Reason: denyNotWhitelisted}, nil
	}
	if !group.IsActive {
		return Decision{Reason: denyInactive}, nil
	}

	member, err := g.client.GetChatMember(ctx, chatID, senderID)
	if err != nil {
		// A failed status lookup is a deny, not a pipeline error; the
		// diagnostic goes to process logs only.
		g.logger.WarnContext(ctx, "Chat member lookup failed",
			"chat_id", chatID, "user_id", senderID, "error", err)
		return Decision{Reason: denyLookupFailed}, nil
	}

	if !isChatAdmin(member) {
		return Decision{Reason: denyNotAdmin}, nil
	}
	return Decision{Allowed: true, Group: group}, nil
}

func isChatAdmin(member *models.ChatMember) bool {
	if member == nil {
		return false
	}
	return member.Type == models.ChatMemberTypeOwner ||
		member.Type == models.ChatMemberTypeAdministrator
}
