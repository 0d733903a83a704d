package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/dmelo/groupwarden/internal/database"
	"github.com/dmelo/groupwarden/internal/platform"
)

// ErrNoSession is returned when an operation needs a live bot session and
// none is running.
var ErrNoSession = errors.New("no live bot session")

// Updates the webhook subscribes to. Everything else is noise for a
// moderation bot and never leaves Telegram's side.
var webhookUpdates = []string{"message", "chat_member"}

const dispatchTimeout = 30 * time.Second

// session bundles everything that only exists while a bot is live. It is
// rebuilt from scratch on every start so a token change swaps the whole
// pipeline atomically.
type session struct {
	client    platform.Client
	engine    *Engine
	botID     int64
	username  string
	startedAt time.Time
}

// Status describes the lifecycle state reported to the console.
type Status struct {
	Running   bool      `json:"running"`
	BotID     int64     `json:"bot_id,omitempty"`
	Username  string    `json:"username,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`
}

// Manager owns the single live session. Start replaces any running
// session, Stop tears it down, Dispatch hands webhook updates to the
// current engine. All transitions are serialized by one mutex.
type Manager struct {
	store   database.Store
	cache   *ConfigCache
	audit   *AuditWriter
	factory platform.Factory
	domain  string
	logger  *slog.Logger

	mu   sync.Mutex
	live *session
}

// NewManager creates a session manager. domain is the public hostname
// Telegram delivers webhooks to.
func NewManager(store database.Store, cache *ConfigCache, audit *AuditWriter, factory platform.Factory, domain string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:   store,
		cache:   cache,
		audit:   audit,
		factory: factory,
		domain:  domain,
		logger:  logger.With("component", "session_manager"),
	}
}

// Start validates the token, persists it, registers the webhook and
// brings up a fresh dispatch pipeline. A running session is stopped
// first, so at most one session is ever live.
func (m *Manager) Start(ctx context.Context, token string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live != nil {
		m.stopLocked(ctx)
	}

	client, err := m.factory(token)
	if err != nil {
		return Status{}, fmt.Errorf("failed to create platform client: %w", err)
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		return Status{}, fmt.Errorf("token validation failed: %w", err)
	}

	if err := m.store.UpsertBotConfig(ctx, token, me.ID, me.Username); err != nil {
		return Status{}, fmt.Errorf("failed to persist bot config: %w", err)
	}

	if err := client.SetWebhook(ctx, m.webhookURL(), webhookUpdates); err != nil {
		return Status{}, fmt.Errorf("failed to register webhook: %w", err)
	}

	m.cache.Reset()

	gate := NewGate(m.cache, client, m.logger)
	executor := NewExecutor(client, m.store, m.audit, m.logger)
	membership := NewMembershipHandler(m.cache, client, m.audit, m.logger)
	engine := NewEngine(m.cache, gate, executor, membership, m.audit, m.logger)

	m.live = &session{
		client:    client,
		engine:    engine,
		botID:     me.ID,
		username:  me.Username,
		startedAt: time.Now(),
	}

	// Lifecycle transitions are written synchronously so a start is
	// never lost to a crash right after it.
	if err := m.store.CreateLog(ctx, &database.ActivityLog{
		Action:   "bot_start",
		Details:  fmt.Sprintf("session started as @%s", me.Username),
		UserName: "system",
		Status:   database.StatusSuccess,
	}); err != nil {
		m.logger.ErrorContext(ctx, "Failed to record session start", "error", err)
	}

	m.logger.InfoContext(ctx, "Bot session started", "bot_id", me.ID, "username", me.Username)
	return m.statusLocked(), nil
}

// Resume restarts the session from the stored token, if one exists. It is
// called once at boot so a process restart does not require a console
// visit.
func (m *Manager) Resume(ctx context.Context) error {
	cfg, err := m.store.GetBotConfig(ctx)
	if errors.Is(err, database.ErrNotFound) {
		m.logger.InfoContext(ctx, "No stored bot config, waiting for console start")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load bot config: %w", err)
	}
	if _, err := m.Start(ctx, cfg.Token); err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}
	return nil
}

// Stop tears down the live session and deregisters the webhook. Stopping
// with no session running returns ErrNoSession.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.live == nil {
		return ErrNoSession
	}
	m.stopLocked(ctx)
	return nil
}

func (m *Manager) stopLocked(ctx context.Context) {
	username := m.live.username

	// Webhook removal is best effort: Telegram drops deliveries on 503
	// anyway once the session is gone.
	if err := m.live.client.DeleteWebhook(ctx); err != nil {
		m.logger.WarnContext(ctx, "Failed to deregister webhook", "error", err)
	}
	m.live = nil

	if err := m.store.CreateLog(ctx, &database.ActivityLog{
		Action:   "bot_stop",
		Details:  fmt.Sprintf("session stopped for @%s", username),
		UserName: "system",
		Status:   database.StatusSuccess,
	}); err != nil {
		m.logger.ErrorContext(ctx, "Failed to record session stop", "error", err)
	}

	m.logger.InfoContext(ctx, "Bot session stopped", "username", username)
}

// Status reports the current lifecycle state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Manager) statusLocked() Status {
	if m.live == nil {
		return Status{}
	}
	return Status{
		Running:   true,
		BotID:     m.live.botID,
		Username:  m.live.username,
		StartedAt: m.live.startedAt,
	}
}

// Dispatch hands an update to the live engine. The update is processed on
// its own goroutine with a detached context, so the webhook response does
// not wait on Telegram API calls.
func (m *Manager) Dispatch(update *models.Update) error {
	m.mu.Lock()
	live := m.live
	m.mu.Unlock()

	if live == nil {
		return ErrNoSession
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()
		live.engine.Process(ctx, update)
	}()
	return nil
}

// Client returns the live session's platform client, for console
// operations that call out to Telegram directly.
func (m *Manager) Client() (platform.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live == nil {
		return nil, ErrNoSession
	}
	return m.live.client, nil
}

func (m *Manager) webhookURL() string {
	return "https://" + m.domain + "/webhook"
}
