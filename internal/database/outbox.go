package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gardenplots/internal/models"
)

const outboxColumns = `id, event_type, aggregate_id, payload, status, retry_count, last_error,
        created_at, processed_at, next_retry_at`

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func (db *DB) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	return insertOutboxTask(ctx, db, task)
}

func insertOutboxTask(ctx context.Context, ex execer, task *models.OutboxTask) error {
	if task.Status == "" {
		task.Status = models.OutboxStatusPending
	}
	now := utcNow()
	result, err := ex.ExecContext(ctx,
		`INSERT INTO outbox (event_type, aggregate_id, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.EventType,
		task.AggregateID,
		task.Payload,
		task.Status,
		task.RetryCount,
		task.LastError,
		now,
		task.NextRetryAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	task.CreatedAt = now
	return nil
}

// recordOutbox writes the events inside tx; any failure aborts the caller's
// transaction so a change is never committed without its events.
func recordOutbox(ctx context.Context, tx *sql.Tx, events []models.OutboxEvent) error {
	for _, ev := range events {
		task, err := ev.Task()
		if err != nil {
			return err
		}
		if err := insertOutboxTask(ctx, tx, task); err != nil {
			return err
		}
	}
	return nil
}

// GetPendingOutboxTasks returns tasks that are due for a delivery attempt, oldest first.
func (db *DB) GetPendingOutboxTasks(ctx context.Context, limit int) ([]*models.OutboxTask, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+outboxColumns+` FROM outbox
        WHERE status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)
        ORDER BY id ASC LIMIT ?`,
		models.OutboxStatusPending, models.OutboxStatusRetry, utcNow(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending outbox tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.OutboxTask
	for rows.Next() {
		var t models.OutboxTask
		err := rows.Scan(
			&t.ID, &t.EventType, &t.AggregateID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError,
			&t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbox tasks: %w", err)
	}
	return tasks, nil
}

func (db *DB) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := utcNow()

	var lastErr *string
	if errMsg != "" {
		lastErr = &errMsg
	}

	switch status {
	case models.OutboxStatusRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, id}
	case models.OutboxStatusCompleted, models.OutboxStatusFailed:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, now, id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, lastErr, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}
