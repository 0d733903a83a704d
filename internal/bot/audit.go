package bot

import (
	"context"
	"log/slog"
	"time"

	"github.com/dmelo/groupwarden/internal/database"
)

const auditWriteTimeout = 10 * time.Second

// AuditWriter persists activity log entries from a background goroutine so
// action handlers never block on the store. Ordering between entries is not
// guaranteed; callers that need a durable write (session lifecycle events)
// use the store directly.
type AuditWriter struct {
	store   database.Store
	logger  *slog.Logger
	entries chan database.ActivityLog
}

// NewAuditWriter creates a writer with the given queue capacity.
func NewAuditWriter(store database.Store, capacity int, logger *slog.Logger) *AuditWriter {
	if capacity <= 0 {
		capacity = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditWriter{
		store:   store,
		logger:  logger.With("component", "audit_writer"),
		entries: make(chan database.ActivityLog, capacity),
	}
}

// Enqueue hands an entry to the background writer. If the queue is full the
// entry is written synchronously rather than dropped.
func (w *AuditWriter) Enqueue(entry database.ActivityLog) {
	select {
	case w.entries <- entry:
	default:
		w.logger.Warn("Audit queue full, writing entry synchronously", "action", entry.Action)
		w.write(entry)
	}
}

// Run drains the queue until ctx is cancelled, then flushes whatever is
// still buffered.
func (w *AuditWriter) Run(ctx context.Context) error {
	for {
		select {
		case entry := <-w.entries:
			w.write(entry)
		case <-ctx.Done():
			w.flush()
			return ctx.Err()
		}
	}
}

func (w *AuditWriter) flush() {
	for {
		select {
		case entry := <-w.entries:
			w.write(entry)
		default:
			return
		}
	}
}

func (w *AuditWriter) write(entry database.ActivityLog) {
	ctx, cancel := context.WithTimeout(context.Background(), auditWriteTimeout)
	defer cancel()

	if err := w.store.CreateLog(ctx, &entry); err != nil {
		w.logger.Error("Failed to persist activity log entry", "action", entry.Action, "error", err)
	}
}
