package tasks

import (
	"context"
	"fmt"
	"time"
)

// newLogRetentionTask creates the daily sweep that deletes group-scoped
// activity log entries older than the configured retention window.
// System-scoped entries are kept forever.
func newLogRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", "log_retention")

	return func(ctx context.Context) error {
		cutoff := time.Now().AddDate(0, 0, -deps.RetentionDays)
		log.InfoContext(ctx, "Starting log retention sweep",
			"retention_days", deps.RetentionDays, "cutoff", cutoff)

		deleted, err := deps.Store.DeleteLogsOlderThan(ctx, cutoff)
		if err != nil {
			log.ErrorContext(ctx, "Log retention sweep failed", "error", err)
			return fmt.Errorf("log retention sweep failed: %w", err)
		}

		log.InfoContext(ctx, "Log retention sweep completed", "deleted", deleted)
		return nil
	}
}
