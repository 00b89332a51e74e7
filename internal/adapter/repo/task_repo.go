package repo

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"brandmerch/internal/domain"
	"brandmerch/internal/infra"
	"brandmerch/internal/sqlinline"
)

// DefaultTaskMaxAttempts bounds how often an abandoned task is taken over.
const DefaultTaskMaxAttempts = 3

// TaskQueuePG implements domain.TaskQueue on the pipeline_tasks table.
type TaskQueuePG struct {
	sql         infra.SQLExecutor
	maxAttempts int
}

// NewTaskQueue creates a queue; maxAttempts <= 0 uses DefaultTaskMaxAttempts.
func NewTaskQueue(sql infra.SQLExecutor, maxAttempts int) *TaskQueuePG {
	if maxAttempts <= 0 {
		maxAttempts = DefaultTaskMaxAttempts
	}
	return &TaskQueuePG{sql: sql, maxAttempts: maxAttempts}
}

// Enqueue adds a QUEUED task.
func (q *TaskQueuePG) Enqueue(ctx context.Context, sessionID string, stage domain.Stage, regenerate bool) (*domain.Task, error) {
	if !stage.Valid() {
		return nil, domain.ErrValidation
	}
	return scanTask(q.sql.QueryRow(ctx, sqlinline.QEnqueueTask, sessionID, string(stage), regenerate))
}

// Claim locks the next runnable task and marks it RUNNING. It returns
// (nil, nil) when the queue is empty.
func (q *TaskQueuePG) Claim(ctx context.Context, lease time.Duration) (*domain.Task, error) {
	secs := int(lease / time.Second)
	if secs <= 0 {
		secs = 1
	}
	if _, err := q.sql.Exec(ctx, sqlinline.QExpireAbandonedTasks, secs, q.maxAttempts); err != nil {
		return nil, err
	}
	task, err := scanTask(q.sql.QueryRow(ctx, sqlinline.QClaimTask, secs, q.maxAttempts))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, nil
		}
		return nil, err
	}
	return task, nil
}

// Complete marks a task SUCCEEDED.
func (q *TaskQueuePG) Complete(ctx context.Context, id string) error {
	_, err := q.sql.Exec(ctx, sqlinline.QCompleteTask, id)
	return err
}

// Fail marks a task FAILED with reason.
func (q *TaskQueuePG) Fail(ctx context.Context, id string, reason string) error {
	if len(reason) > 1000 {
		reason = reason[:1000]
	}
	_, err := q.sql.Exec(ctx, sqlinline.QFailTask, id, reason)
	return err
}

// Release puts a RUNNING task back to QUEUED, refunding the attempt Claim took.
func (q *TaskQueuePG) Release(ctx context.Context, id string) error {
	_, err := q.sql.Exec(ctx, sqlinline.QReleaseTask, id)
	return err
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var (
		t      domain.Task
		stage  string
		status string
	)
	if err := row.Scan(
		&t.ID,
		&t.SessionID,
		&stage,
		&t.Regenerate,
		&status,
		&t.Attempts,
		&t.LastError,
		&t.RunAfter,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	t.Stage = domain.Stage(stage)
	t.Status = domain.TaskStatus(status)
	return &t, nil
}

var _ domain.TaskQueue = (*TaskQueuePG)(nil)
