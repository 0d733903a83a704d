package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Store defines the persistence operations the rest of the application
// depends on. Methods accept context.Context for cancellation and timeouts.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetBotConfig returns the singleton bot configuration record, or
	// ErrNotFound if the bot has never been started.
	GetBotConfig(ctx context.Context) (*BotConfig, error)

	// UpsertBotConfig creates or replaces the singleton bot configuration.
	UpsertBotConfig(ctx context.Context, token string, botID int64, botUsername string) error

	// GetGroup returns a whitelist entry by internal id.
	GetGroup(ctx context.Context, id int64) (*Group, error)

	// GetGroupByGroupID returns a whitelist entry by platform chat id.
	GetGroupByGroupID(ctx context.Context, groupID int64) (*Group, error)

	// ListGroups returns all whitelist entries, newest first.
	ListGroups(ctx context.Context) ([]Group, error)

	// CreateGroup adds a chat to the whitelist.
	CreateGroup(ctx context.Context, group *Group) error

	// UpdateGroup applies the non-nil fields of patch to the entry.
	UpdateGroup(ctx context.Context, id int64, patch GroupPatch) error

	// DeleteGroup removes a single whitelist entry.
	DeleteGroup(ctx context.Context, id int64) error

	// DeleteAllGroups clears the whitelist and returns the number of
	// entries removed.
	DeleteAllGroups(ctx context.Context) (int64, error)

	// GetCommand returns a command definition by id.
	GetCommand(ctx context.Context, id int64) (*Command, error)

	// ListCommands returns all command definitions in creation order. The
	// matcher's tie-break depends on this ordering.
	ListCommands(ctx context.Context) ([]Command, error)

	// CreateCommand adds a command definition.
	CreateCommand(ctx context.Context, cmd *Command) error

	// UpdateCommand applies the non-nil fields of patch to the definition.
	UpdateCommand(ctx context.Context, id int64, patch CommandPatch) error

	// DeleteCommand removes a command definition.
	DeleteCommand(ctx context.Context, id int64) error

	// IncrementCommandUsage adds one to a command's usage counter as a
	// single atomic update.
	IncrementCommandUsage(ctx context.Context, id int64) error

	// CreateLog appends an activity log entry.
	CreateLog(ctx context.Context, entry *ActivityLog) error

	// ListLogs returns recent entries, newest first. A non-nil groupID
	// restricts the result to that chat.
	ListLogs(ctx context.Context, groupID *int64, limit int) ([]ActivityLog, error)

	// ListSystemLogs returns recent system-scoped entries (null group id).
	ListSystemLogs(ctx context.Context, limit int) ([]ActivityLog, error)

	// DeleteLogsOlderThan removes group-scoped entries created before
	// cutoff. System-scoped entries are never touched.
	DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteGroupLogs removes every group-scoped entry, used when the
	// whitelist is cleared.
	DeleteGroupLogs(ctx context.Context) (int64, error)
}

// GroupPatch describes a partial update of a whitelist entry.
type GroupPatch struct {
	Title       *string
	MemberCount *int64
	IsActive    *bool
}

// CommandPatch describes a partial update of a command definition.
type CommandPatch struct {
	Name        *string
	TriggerType *TriggerType
	ActionType  *ActionType
	Description *string
	IsEnabled   *bool
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetBotConfig(ctx context.Context) (*BotConfig, error) {
	var cfg BotConfig
	err := s.db.GetContext(ctx, &cfg, `SELECT * FROM bot_config WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load bot config: %w", err)
	}
	return &cfg, nil
}

func (s *sqlxStore) UpsertBotConfig(ctx context.Context, token string, botID int64, botUsername string) error {
	query := `
        INSERT INTO bot_config (id, token, bot_id, bot_username, updated_at)
        VALUES (1, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            token = excluded.token,
            bot_id = excluded.bot_id,
            bot_username = excluded.bot_username,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.ExecContext(ctx, query, token, botID, botUsername, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to upsert bot config: %w", err)
	}
	return nil
}

func (s *sqlxStore) GetGroup(ctx context.Context, id int64) (*Group, error) {
	var group Group
	err := s.db.GetContext(ctx, &group, `SELECT * FROM groups WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group %d: %w", id, err)
	}
	return &group, nil
}

func (s *sqlxStore) GetGroupByGroupID(ctx context.Context, groupID int64) (*Group, error) {
	var group Group
	err := s.db.GetContext(ctx, &group, `SELECT * FROM groups WHERE group_id = ?`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load group by chat id %d: %w", groupID, err)
	}
	return &group, nil
}

func (s *sqlxStore) ListGroups(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	err := s.db.SelectContext(ctx, &groups, `SELECT * FROM groups ORDER BY added_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	return groups, nil
}

func (s *sqlxStore) CreateGroup(ctx context.Context, group *Group) error {
	if group == nil {
		return errors.New("cannot create nil group")
	}
	if group.GroupID == 0 {
		return errors.New("group must have a non-zero group_id")
	}
	if group.AddedAt.IsZero() {
		group.AddedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO groups (group_id, title, member_count, is_active, added_at)
        VALUES (:group_id, :title, :member_count, :is_active, :added_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, group)
	if err != nil {
		return fmt.Errorf("failed to create group %d: %w", group.GroupID, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		group.ID = id
	}
	return nil
}

func (s *sqlxStore) UpdateGroup(ctx context.Context, id int64, patch GroupPatch) error {
	existing, err := s.GetGroup(ctx, id)
	if err != nil {
		return err
	}

	if patch.Title != nil {
		existing.Title = sql.NullString{String: *patch.Title, Valid: true}
	}
	if patch.MemberCount != nil {
		existing.MemberCount = sql.NullInt64{Int64: *patch.MemberCount, Valid: true}
	}
	if patch.IsActive != nil {
		existing.IsActive = *patch.IsActive
	}

	query := `
        UPDATE groups
        SET title = :title, member_count = :member_count, is_active = :is_active
        WHERE id = :id;
    `
	if _, err := s.db.NamedExecContext(ctx, query, existing); err != nil {
		return fmt.Errorf("failed to update group %d: %w", id, err)
	}
	return nil
}

func (s *sqlxStore) DeleteGroup(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlxStore) DeleteAllGroups(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM groups`)
	if err != nil {
		return 0, fmt.Errorf("failed to clear whitelist: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return affected, nil
}

func (s *sqlxStore) GetCommand(ctx context.Context, id int64) (*Command, error) {
	var cmd Command
	err := s.db.GetContext(ctx, &cmd, `SELECT * FROM commands WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load command %d: %w", id, err)
	}
	return &cmd, nil
}

func (s *sqlxStore) ListCommands(ctx context.Context) ([]Command, error) {
	commands := []Command{}
	err := s.db.SelectContext(ctx, &commands, `SELECT * FROM commands ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list commands: %w", err)
	}
	return commands, nil
}

func (s *sqlxStore) CreateCommand(ctx context.Context, cmd *Command) error {
	if cmd == nil {
		return errors.New("cannot create nil command")
	}
	if cmd.Name == "" {
		return errors.New("command must have a non-empty name")
	}
	if !cmd.TriggerType.Valid() {
		return fmt.Errorf("invalid trigger type %q", cmd.TriggerType)
	}
	if !cmd.ActionType.Valid() {
		return fmt.Errorf("invalid action type %q", cmd.ActionType)
	}

	now := time.Now().UTC()
	if cmd.CreatedAt.IsZero() {
		cmd.CreatedAt = now
	}
	cmd.UpdatedAt = now

	query := `
        INSERT INTO commands (name, trigger_type, action_type, description, is_enabled, usage_count, created_at, updated_at)
        VALUES (:name, :trigger_type, :action_type, :description, :is_enabled, :usage_count, :created_at, :updated_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, cmd)
	if err != nil {
		return fmt.Errorf("failed to create command %q: %w", cmd.Name, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		cmd.ID = id
	}
	return nil
}

func (s *sqlxStore) UpdateCommand(ctx context.Context, id int64, patch CommandPatch) error {
	existing, err := s.GetCommand(ctx, id)
	if err != nil {
		return err
	}

	if patch.Name != nil {
		existing.Name = *patch.Name
	}
	if patch.TriggerType != nil {
		if !patch.TriggerType.Valid() {
			return fmt.Errorf("invalid trigger type %q", *patch.TriggerType)
		}
		existing.TriggerType = *patch.TriggerType
	}
	if patch.ActionType != nil {
		if !patch.ActionType.Valid() {
			return fmt.Errorf("invalid action type %q", *patch.ActionType)
		}
		existing.ActionType = *patch.ActionType
	}
	if patch.Description != nil {
		existing.Description = *patch.Description
	}
	if patch.IsEnabled != nil {
		existing.IsEnabled = *patch.IsEnabled
	}
	existing.UpdatedAt = time.Now().UTC()

	query := `
        UPDATE commands
        SET name = :name, trigger_type = :trigger_type, action_type = :action_type,
            description = :description, is_enabled = :is_enabled, updated_at = :updated_at
        WHERE id = :id;
    `
	if _, err := s.db.NamedExecContext(ctx, query, existing); err != nil {
		return fmt.Errorf("failed to update command %d: %w", id, err)
	}
	return nil
}

func (s *sqlxStore) DeleteCommand(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM commands WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete command %d: %w", id, err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlxStore) IncrementCommandUsage(ctx context.Context, id int64) error {
	// Single atomic increment; never read-modify-write from the application.
	_, err := s.db.ExecContext(ctx, `UPDATE commands SET usage_count = usage_count + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to increment usage for command %d: %w", id, err)
	}
	return nil
}

func (s *sqlxStore) CreateLog(ctx context.Context, entry *ActivityLog) error {
	if entry == nil {
		return errors.New("cannot create nil log entry")
	}
	if entry.Status != StatusSuccess && entry.Status != StatusError {
		return fmt.Errorf("invalid log status %q", entry.Status)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
        INSERT INTO activity_logs (action, details, user_name, group_id, group_title, target_user_name, status, created_at)
        VALUES (:action, :details, :user_name, :group_id, :group_title, :target_user_name, :status, :created_at);
    `
	result, err := s.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return fmt.Errorf("failed to create log entry %q: %w", entry.Action, err)
	}
	if id, err := result.LastInsertId(); err == nil {
		entry.ID = id
	}
	return nil
}

func (s *sqlxStore) ListLogs(ctx context.Context, groupID *int64, limit int) ([]ActivityLog, error) {
	limit = clampLimit(limit)

	entries := []ActivityLog{}
	var err error
	if groupID != nil {
		err = s.db.SelectContext(ctx, &entries,
			`SELECT * FROM activity_logs WHERE group_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
			*groupID, limit)
	} else {
		err = s.db.SelectContext(ctx, &entries,
			`SELECT * FROM activity_logs ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return entries, nil
}

func (s *sqlxStore) ListSystemLogs(ctx context.Context, limit int) ([]ActivityLog, error) {
	limit = clampLimit(limit)

	entries := []ActivityLog{}
	err := s.db.SelectContext(ctx, &entries,
		`SELECT * FROM activity_logs WHERE group_id IS NULL ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list system logs: %w", err)
	}
	return entries, nil
}

func (s *sqlxStore) DeleteLogsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM activity_logs WHERE group_id IS NOT NULL AND created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete logs older than %s: %w", cutoff, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	s.logger.DebugContext(ctx, "Deleted expired group-scoped logs", "cutoff", cutoff, "deleted", affected)
	return affected, nil
}

func (s *sqlxStore) DeleteGroupLogs(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE group_id IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete group-scoped logs: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	s.logger.InfoContext(ctx, "Purged group-scoped logs", "deleted", affected)
	return affected, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return 50
	case limit > 500:
		return 500
	default:
		return limit
	}
}
