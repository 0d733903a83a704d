package bot

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dmelo/groupwarden/internal/cache"
	"github.com/dmelo/groupwarden/internal/database"
)

const commandsKey = "commands"

// ConfigCache is a read-through cache over whitelist entries (keyed by
// platform chat id) and the full command list (a single cached value).
// Negative group lookups are never cached: an admin adding a group must
// see effect on the very next message.
type ConfigCache struct {
	store    database.Store
	logger   *slog.Logger
	groups   *cache.Cache[int64, database.Group]
	commands *cache.Cache[string, []database.Command]
}

// NewConfigCache creates a cache with the given TTL applied uniformly to
// both lookup kinds.
func NewConfigCache(store database.Store, ttl time.Duration, logger *slog.Logger) *ConfigCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfigCache{
		store:    store,
		logger:   logger.With("component", "config_cache"),
		groups:   cache.New[int64, database.Group](ttl),
		commands: cache.New[string, []database.Command](ttl),
	}
}

// Group returns the whitelist entry for a chat, or nil when the chat is
// not whitelisted. Misses fall through to the store every time.
func (c *ConfigCache) Group(ctx context.Context, groupID int64) (*database.Group, error) {
	if cached, ok := c.groups.Get(groupID); ok {
		return &cached, nil
	}

	group, err := c.store.GetGroupByGroupID(ctx, groupID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	c.groups.Set(groupID, *group)
	return group, nil
}

// Commands returns all command definitions in creation order.
func (c *ConfigCache) Commands(ctx context.Context) ([]database.Command, error) {
	if cached, ok := c.commands.Get(commandsKey); ok {
		return cached, nil
	}

	commands, err := c.store.ListCommands(ctx)
	if err != nil {
		return nil, err
	}

	c.commands.Set(commandsKey, commands)
	return commands, nil
}

// InvalidateGroup drops a single whitelist entry. Called synchronously by
// the console API on group writes to tighten the read-after-write bound.
func (c *ConfigCache) InvalidateGroup(groupID int64) {
	c.groups.Delete(groupID)
}

// InvalidateCommands drops the cached command list.
func (c *ConfigCache) InvalidateCommands() {
	c.commands.Delete(commandsKey)
}

// Reset clears both maps wholesale. Called on session start, stop, and
// token rotation so no session trusts state cached under a prior one.
func (c *ConfigCache) Reset() {
	c.groups.Clear()
	c.commands.Clear()
	c.logger.Debug("Configuration cache cleared")
}
