package tasks

import (
	"context"
	"time"

	"github.com/dmelo/groupwarden/internal/database"
)

// stubStore satisfies database.Store so task tests only override what they
// exercise.
type stubStore struct{}

func (stubStore) Ping(context.Context) error { return nil }

func (stubStore) GetBotConfig(context.Context) (*database.BotConfig, error) {
	return nil, database.ErrNotFound
}

func (stubStore) UpsertBotConfig(context.Context, string, int64, string) error { return nil }

func (stubStore) GetGroup(context.Context, int64) (*database.Group, error) {
	return nil, database.ErrNotFound
}

func (stubStore) GetGroupByGroupID(context.Context, int64) (*database.Group, error) {
	return nil, database.ErrNotFound
}

func (stubStore) ListGroups(context.Context) ([]database.Group, error) { return nil, nil }

func (stubStore) CreateGroup(context.Context, *database.Group) error { return nil }

func (stubStore) UpdateGroup(context.Context, int64, database.GroupPatch) error { return nil }

func (stubStore) DeleteGroup(context.Context, int64) error { return nil }

func (stubStore) DeleteAllGroups(context.Context) (int64, error) { return 0, nil }

func (stubStore) GetCommand(context.Context, int64) (*database.Command, error) {
	return nil, database.ErrNotFound
}

func (stubStore) ListCommands(context.Context) ([]database.Command, error) { return nil, nil }

func (stubStore) CreateCommand(context.Context, *database.Command) error { return nil }

func (stubStore) UpdateCommand(context.Context, int64, database.CommandPatch) error { return nil }

func (stubStore) DeleteCommand(context.Context, int64) error { return nil }

func (stubStore) IncrementCommandUsage(context.Context, int64) error { return nil }

func (stubStore) CreateLog(context.Context, *database.ActivityLog) error { return nil }

func (stubStore) ListLogs(context.Context, *int64, int) ([]database.ActivityLog, error) {
	return nil, nil
}

func (stubStore) ListSystemLogs(context.Context, int) ([]database.ActivityLog, error) {
	return nil, nil
}

func (stubStore) DeleteLogsOlderThan(context.Context, time.Time) (int64, error) { return 0, nil }

func (stubStore) DeleteGroupLogs(context.Context) (int64, error) { return 0, nil }
