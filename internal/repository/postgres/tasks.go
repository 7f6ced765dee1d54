package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/splax/tasktrack/internal/domain"
	"github.com/splax/tasktrack/internal/repository"
)

const taskColumns = `id::text, title, description, due_date, completed, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (domain.Task, error) {
	var (
		task domain.Task
		due  pgtype.Date
	)
	if err := row.Scan(&task.ID, &task.Title, &task.Description, &due, &task.Completed, &task.CreatedAt, &task.UpdatedAt); err != nil {
		return domain.Task{}, err
	}
	task.DueDate = dateFromPG(due)
	return task, nil
}

func dateToPG(d *domain.Date) pgtype.Date {
	if d == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: d.Time(), Valid: true}
}

func dateFromPG(d pgtype.Date) *domain.Date {
	if !d.Valid || d.InfinityModifier != pgtype.Finite {
		return nil
	}
	date := domain.DateOf(d.Time)
	return &date
}

// ListTasks returns every task, newest first.
func (r *Repository) ListTasks(ctx context.Context) ([]domain.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM todos ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]domain.Task, 0)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a task.
func (r *Repository) CreateTask(ctx context.Context, task *domain.Task) error {
	const query = `INSERT INTO todos (id, title, description, due_date, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query, task.ID, task.Title, task.Description, dateToPG(task.DueDate), task.Completed, task.CreatedAt, task.UpdatedAt)
	return err
}

// UpdateTask overwrites mutable task fields and stamps updated_at.
func (r *Repository) UpdateTask(ctx context.Context, task *domain.Task) error {
	const query = `UPDATE todos
		SET title = $2,
			description = $3,
			due_date = $4,
			completed = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + taskColumns
	row := r.pool.QueryRow(ctx, query, task.ID, task.Title, task.Description, dateToPG(task.DueDate), task.Completed)
	updated, err := scanTask(row)
	if err != nil {
		return notFound(err)
	}
	*task = updated
	return nil
}

// DeleteTask removes a task by identifier.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	const query = `DELETE FROM todos WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}
