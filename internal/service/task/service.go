package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/splax/tasktrack/internal/domain"
	"github.com/splax/tasktrack/internal/repository"
	"github.com/splax/tasktrack/internal/telemetry"
)

var (
	// ErrTitleRequired reports a missing or blank title.
	ErrTitleRequired = errors.New("title is required")
	// ErrInvalidDueDate reports a due date that is neither YYYY-MM-DD nor RFC 3339.
	ErrInvalidDueDate = errors.New("dueDate must be a YYYY-MM-DD date")
	// ErrCompletedRequired reports an update without the completed flag.
	ErrCompletedRequired = errors.New("completed is required")
)

// Service implements the task CRUD operations.
type Service struct {
	tasks  repository.TaskRepository
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(tasks repository.TaskRepository, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{tasks: tasks, logger: logger, now: time.Now}
}

// CreateInput is the validated payload for a new task.
type CreateInput struct {
	Title       string
	Description *string
	DueDate     *string
}

// UpdateInput replaces every mutable field of a task.
type UpdateInput struct {
	Title       string
	Description *string
	DueDate     *string
	Completed   *bool
}

// List returns all tasks, newest first.
func (s Service) List(ctx context.Context) (tasks []domain.Task, err error) {
	ctx, span := telemetry.Start(ctx, "task.List")
	defer func() { telemetry.End(span, err) }()

	tasks, err = s.tasks.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	span.SetAttributes(attribute.Int("task.count", len(tasks)))
	return tasks, nil
}

// Create stores a new, incomplete task.
func (s Service) Create(ctx context.Context, input CreateInput) (task *domain.Task, err error) {
	ctx, span := telemetry.Start(ctx, "task.Create")
	defer func() { telemetry.End(span, err) }()

	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}
	due, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	task = &domain.Task{
		ID:          uuid.NewString(),
		Title:       title,
		Description: normalizeDescription(input.Description),
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	span.SetAttributes(attribute.String("task.id", task.ID))
	s.logger.Info("task created", "task_id", task.ID)
	return task, nil
}

// Update overwrites title, description, due date and completion of task id.
func (s Service) Update(ctx context.Context, id string, input UpdateInput) (task *domain.Task, err error) {
	ctx, span := telemetry.Start(ctx, "task.Update", attribute.String("task.id", id))
	defer func() { telemetry.End(span, err) }()

	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}
	due, err := parseDueDate(input.DueDate)
	if err != nil {
		return nil, err
	}
	if input.Completed == nil {
		return nil, ErrCompletedRequired
	}
	if !validID(id) {
		return nil, fmt.Errorf("task %s: %w", id, repository.ErrNotFound)
	}
	task = &domain.Task{
		ID:          id,
		Title:       title,
		Description: normalizeDescription(input.Description),
		DueDate:     due,
		Completed:   *input.Completed,
	}
	if err := s.tasks.UpdateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	s.logger.Info("task updated", "task_id", id, "completed", task.Completed)
	return task, nil
}

// Delete removes task id and returns the removed id.
func (s Service) Delete(ctx context.Context, id string) (deleted string, err error) {
	ctx, span := telemetry.Start(ctx, "task.Delete", attribute.String("task.id", id))
	defer func() { telemetry.End(span, err) }()

	if !validID(id) {
		return "", fmt.Errorf("task %s: %w", id, repository.ErrNotFound)
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return "", fmt.Errorf("delete task %s: %w", id, err)
	}
	s.logger.Info("task deleted", "task_id", id)
	return id, nil
}

func normalizeTitle(title string) (string, error) {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return "", ErrTitleRequired
	}
	return trimmed, nil
}

func normalizeDescription(desc *string) *string {
	if desc == nil || strings.TrimSpace(*desc) == "" {
		return nil
	}
	value := *desc
	return &value
}

// parseDueDate treats nil and blank strings as "no due date".
func parseDueDate(value *string) (*domain.Date, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	due, err := domain.ParseDate(*value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDueDate, err)
	}
	return &due, nil
}

func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}
