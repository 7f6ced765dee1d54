package repository

import (
	"context"

	"github.com/splax/tasktrack/internal/domain"
)

// UserRepository persists users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	ListTasks(ctx context.Context) ([]domain.Task, error)
	CreateTask(ctx context.Context, task *domain.Task) error
	// UpdateTask overwrites the mutable fields of task and refreshes
	// task.UpdatedAt from the store. Returns ErrNotFound for unknown ids.
	UpdateTask(ctx context.Context, task *domain.Task) error
	DeleteTask(ctx context.Context, id string) error
}
