package repository

import (
	"context"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/shopspring/decimal"
)

const taskColumns = `id, title, channel_label, media_reference, required_seconds, reward_amount, active, created_at`

func scanTask(row interface{ Scan(...any) error }) (domain.Task, error) {
	var t domain.Task
	var required int32
	err := row.Scan(
		&t.ID,
		&t.Title,
		&t.ChannelLabel,
		&t.MediaReference,
		&required,
		&t.RewardAmount,
		&t.Active,
		&t.CreatedAt,
	)
	t.RequiredSeconds = int(required)
	return t, err
}

func (q *Queries) ListActiveTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := q.db.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (q *Queries) GetTaskByID(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(q.db.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

type UpsertTaskParams struct {
	Title           string
	ChannelLabel    string
	MediaReference  string
	RequiredSeconds int
	RewardAmount    decimal.Decimal
}

// UpsertTask inserts a task or refreshes the one with the same media reference.
func (q *Queries) UpsertTask(ctx context.Context, arg UpsertTaskParams) (domain.Task, error) {
	return scanTask(q.db.QueryRow(ctx, `
		INSERT INTO tasks (title, channel_label, media_reference, required_seconds, reward_amount)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (media_reference) DO UPDATE SET
			title = EXCLUDED.title,
			channel_label = EXCLUDED.channel_label,
			required_seconds = EXCLUDED.required_seconds,
			reward_amount = EXCLUDED.reward_amount,
			active = TRUE
		RETURNING `+taskColumns,
		arg.Title, arg.ChannelLabel, arg.MediaReference, int32(arg.RequiredSeconds), arg.RewardAmount,
	))
}

func (q *Queries) DeactivateTask(ctx context.Context, id int64) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE tasks SET active = FALSE WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type CreateTaskCompletionParams struct {
	TaskID    int64
	UserID    int64
	SessionID string
	Reward    decimal.Decimal
}

func (q *Queries) CreateTaskCompletion(ctx context.Context, arg CreateTaskCompletionParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO task_completions (task_id, user_id, session_id, reward)
		VALUES ($1, $2, $3::uuid, $4)`,
		arg.TaskID, arg.UserID, arg.SessionID, arg.Reward,
	)
	return err
}

func (q *Queries) CompletedTaskIDs(ctx context.Context, userID int64) (map[int64]bool, error) {
	rows, err := q.db.Query(ctx, `SELECT task_id FROM task_completions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	done := make(map[int64]bool)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		done[id] = true
	}
	return done, rows.Err()
}

func (q *Queries) CountTaskCompletions(ctx context.Context) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM task_completions`).Scan(&n)
	return n, err
}

func (q *Queries) GetTaskCompletion(ctx context.Context, taskID, userID int64) (domain.TaskCompletion, error) {
	var c domain.TaskCompletion
	err := q.db.QueryRow(ctx, `
		SELECT id, task_id, user_id, session_id::text, reward, completed_at
		FROM task_completions
		WHERE task_id = $1 AND user_id = $2`, taskID, userID,
	).Scan(&c.ID, &c.TaskID, &c.UserID, &c.SessionID, &c.Reward, &c.CompletedAt)
	return c, err
}
