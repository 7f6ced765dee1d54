package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/splax/tasktrack/internal/domain"
	"github.com/splax/tasktrack/internal/repository"
)

type memoryTasks struct {
	mu      sync.Mutex
	rows    map[string]domain.Task
	failAll error
}

func newMemoryTasks() *memoryTasks {
	return &memoryTasks{rows: map[string]domain.Task{}}
}

func (m *memoryTasks) ListTasks(context.Context) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	out := make([]domain.Task, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryTasks) CreateTask(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[task.ID] = *task
	return nil
}

func (m *memoryTasks) UpdateTask(_ context.Context, task *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[task.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Title = task.Title
	row.Description = task.Description
	row.DueDate = task.DueDate
	row.Completed = task.Completed
	row.UpdatedAt = row.UpdatedAt.Add(time.Second)
	m.rows[task.ID] = row
	*task = row
	return nil
}

func (m *memoryTasks) DeleteTask(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func newTestService(repo repository.TaskRepository) Service {
	svc := New(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return svc
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestCreateTitleOnly(t *testing.T) {
	svc := newTestService(newMemoryTasks())

	created, err := svc.Create(context.Background(), CreateInput{Title: "Buy milk"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.DueDate != nil {
		t.Fatalf("expected no due date, got %v", created.DueDate)
	}
	if created.Description != nil {
		t.Fatalf("expected no description, got %q", *created.Description)
	}
	if created.Completed {
		t.Fatalf("new task must not be completed")
	}
	if _, err := uuid.Parse(created.ID); err != nil {
		t.Fatalf("id %q is not a uuid: %v", created.ID, err)
	}
	if !created.CreatedAt.Equal(created.UpdatedAt) {
		t.Fatalf("created and updated timestamps differ: %v vs %v", created.CreatedAt, created.UpdatedAt)
	}
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryTasks())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Title: "   "}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Title: "x", DueDate: strPtr("tomorrow")}); !errors.Is(err, ErrInvalidDueDate) {
		t.Fatalf("expected ErrInvalidDueDate, got %v", err)
	}
}

func TestCreateKeepsDueDateWithoutShift(t *testing.T) {
	svc := newTestService(newMemoryTasks())

	created, err := svc.Create(context.Background(), CreateInput{
		Title:       "  File taxes ",
		Description: strPtr("federal"),
		DueDate:     strPtr("2025-04-15T23:30:00-07:00"),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "File taxes" {
		t.Fatalf("title not trimmed: %q", created.Title)
	}
	if created.DueDate == nil || created.DueDate.String() != "2025-04-15" {
		t.Fatalf("unexpected due date %v", created.DueDate)
	}
	if created.Description == nil || *created.Description != "federal" {
		t.Fatalf("unexpected description %v", created.Description)
	}
}

func TestListNewestFirst(t *testing.T) {
	svc := newTestService(newMemoryTasks())
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		created, err := svc.Create(ctx, CreateInput{Title: title})
		if err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
		ids = append(ids, created.ID)
	}

	tasks, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}
	for i, want := range []string{ids[2], ids[1], ids[0]} {
		if tasks[i].ID != want {
			t.Fatalf("position %d: expected %s, got %s", i, want, tasks[i].ID)
		}
	}
}

func TestListPropagatesStoreError(t *testing.T) {
	repo := newMemoryTasks()
	repo.failAll = errors.New("connection refused")
	svc := newTestService(repo)

	if _, err := svc.List(context.Background()); err == nil || !errors.Is(err, repo.failAll) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
}

func TestUpdateOverwritesFields(t *testing.T) {
	svc := newTestService(newMemoryTasks())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "draft", Description: strPtr("old"), DueDate: strPtr("2025-01-01")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	updated, err := svc.Update(ctx, created.ID, UpdateInput{Title: "final", Completed: boolPtr(true)})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "final" || !updated.Completed {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if updated.Description != nil || updated.DueDate != nil {
		t.Fatalf("omitted fields must be cleared, got description=%v due=%v", updated.Description, updated.DueDate)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Fatalf("updated_at not refreshed")
	}
}

func TestUpdateMissingLeavesTableUnchanged(t *testing.T) {
	repo := newMemoryTasks()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "keep"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, _ := svc.List(ctx)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		_, err := svc.Update(ctx, id, UpdateInput{Title: "changed", Completed: boolPtr(true)})
		if !errors.Is(err, repository.ErrNotFound) {
			t.Fatalf("update %q: expected ErrNotFound, got %v", id, err)
		}
	}

	after, _ := svc.List(ctx)
	if len(after) != len(before) || after[0].ID != created.ID || after[0].Title != "keep" || after[0].Completed {
		t.Fatalf("table changed: before=%+v after=%+v", before, after)
	}
}

func TestUpdateValidation(t *testing.T) {
	svc := newTestService(newMemoryTasks())
	ctx := context.Background()
	id := uuid.NewString()

	if _, err := svc.Update(ctx, id, UpdateInput{Title: "", Completed: boolPtr(false)}); !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if _, err := svc.Update(ctx, id, UpdateInput{Title: "x"}); !errors.Is(err, ErrCompletedRequired) {
		t.Fatalf("expected ErrCompletedRequired, got %v", err)
	}
	if _, err := svc.Update(ctx, id, UpdateInput{Title: "x", DueDate: strPtr("13/01/2025"), Completed: boolPtr(false)}); !errors.Is(err, ErrInvalidDueDate) {
		t.Fatalf("expected ErrInvalidDueDate, got %v", err)
	}
}

func TestDeleteTwice(t *testing.T) {
	svc := newTestService(newMemoryTasks())
	ctx := context.Background()

	created, err := svc.Create(ctx, CreateInput{Title: "temp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := svc.Delete(ctx, created.ID)
	if err != nil {
		t.Fatalf("first delete: %v", err)
	}
	if deleted != created.ID {
		t.Fatalf("expected deleted id %s, got %s", created.ID, deleted)
	}
	if _, err := svc.Delete(ctx, created.ID); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}
}
