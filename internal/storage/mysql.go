package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"flag-events/internal/event"
	"flag-events/internal/notification"
	"flag-events/internal/processor"
	"flag-events/pkg/logger"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
)

const recordTimeout = 5 * time.Second

// BatchArchive records dispatched batches in MySQL for offline auditing.
// Only batches that were handed to the dispatcher successfully land here;
// unsent events are never persisted.
type BatchArchive struct {
	db *sql.DB
}

func NewBatchArchive(dsn string) (*BatchArchive, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql connection: %w", err)
	}
	// tune pool
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)

	logger.Get().Infow("batch archive initialized", "dsn", dsn)
	return &BatchArchive{db: db}, nil
}

func (a *BatchArchive) DB() *sql.DB {
	return a.db
}

func (a *BatchArchive) Close() error {
	return a.db.Close()
}

// Record inserts one row per dispatched batch.
func (a *BatchArchive) Record(ctx context.Context, le event.LogEvent) error {
	log := logger.Get().With("component", "batch_archive")

	id := uuid.New().String()
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO dispatched_batches
		(id, url, event_count, payload, dispatched_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		id,
		le.URL,
		le.Count,
		le.Body,
		time.Now().UTC(),
	)
	if err != nil {
		log.Errorw("insert failed", "batch_id", id, "error", err)
		return fmt.Errorf("insert batch record: %w", err)
	}

	log.Debugw("batch archived", "batch_id", id, "count", le.Count)
	return nil
}

// Handler adapts the archive to a notification handler. Archive failures
// are logged and absorbed; they never reach the worker.
func (a *BatchArchive) Handler() notification.Handler {
	return func(kind processor.NotificationKind, le event.LogEvent) {
		if kind != processor.LogEventDispatched {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := a.Record(ctx, le); err != nil {
			logger.Get().Warnw("batch archive write failed", "error", err)
		}
	}
}
