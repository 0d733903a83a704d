// Package tasks implements the background jobs run by the scheduler,
// such as the daily activity log retention sweep.
package tasks

import (
	"log/slog"

	"github.com/dmelo/groupwarden/internal/database"
)

// TaskDeps carries the shared dependencies handed to task factories.
type TaskDeps struct {
	Logger        *slog.Logger
	Store         database.Store
	RetentionDays int
}
