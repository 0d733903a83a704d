package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/database"
)

// Engine is the dispatch pipeline for a live session. Each webhook update
// runs through it exactly once: membership transitions go to the
// membership handler, messages go through the authorization gate, the
// command matcher, and finally the action executor.
type Engine struct {
	cache      *ConfigCache
	gate       *Gate
	executor   *Executor
	membership *MembershipHandler
	audit      *AuditWriter
	logger     *slog.Logger
}

// NewEngine assembles a dispatch engine from its stages.
func NewEngine(cache *ConfigCache, gate *Gate, executor *Executor, membership *MembershipHandler, audit *AuditWriter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		cache:      cache,
		gate:       gate,
		executor:   executor,
		membership: membership,
		audit:      audit,
		logger:     logger.With("component", "engine"),
	}
}

// Process dispatches a single update. It never returns an error to the
// webhook layer: every failure past ingress is either handled in place or
// recorded, so one bad update cannot take down the receiver.
func (e *Engine) Process(ctx context.Context, update *models.Update) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "Panic while processing update",
				"update_id", update.ID, "panic", r, "stack", string(debug.Stack()))
			e.audit.Enqueue(database.ActivityLog{
				Action:  "dispatch_panic",
				Details: fmt.Sprintf("update %d: %v", update.ID, r),
				Status:  database.StatusError,
			})
		}
	}()

	switch {
	case update.Message != nil:
		e.handleMessage(ctx, update.Message)
	case update.ChatMember != nil:
		e.membership.Handle(ctx, update.ChatMember)
	default:
		e.logger.DebugContext(ctx, "Ignoring update without message or chat_member", "update_id", update.ID)
	}
}

func (e *Engine) handleMessage(ctx context.Context, msg *models.Message) {
	if msg.From == nil || msg.Text == "" {
		return
	}
	if msg.Chat.Type != models.ChatTypeGroup && msg.Chat.Type != models.ChatTypeSupergroup {
		return
	}

	decision, err := e.gate.Authorize(ctx, msg.Chat.ID, msg.From.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "Authorization check failed",
			"chat_id", msg.Chat.ID, "user_id", msg.From.ID, "error", err)
		return
	}
	if !decision.Allowed {
		e.logger.DebugContext(ctx, "Update denied",
			"chat_id", msg.Chat.ID, "user_id", msg.From.ID, "reason", decision.Reason)
		return
	}

	commands, err := e.cache.Commands(ctx)
	if err != nil {
		e.logger.ErrorContext(ctx, "Command list load failed", "error", err)
		return
	}

	cmd := MatchCommand(commands, msg.Text, msg.ReplyToMessage != nil)
	if cmd == nil {
		return
	}

	e.logger.InfoContext(ctx, "Dispatching command",
		"command", cmd.Name, "action", cmd.ActionType, "chat_id", msg.Chat.ID, "user", displayName(msg.From))
	e.executor.Execute(ctx, decision.Group, cmd, msg)
}
