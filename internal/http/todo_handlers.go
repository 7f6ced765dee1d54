package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/splax/tasktrack/internal/domain"
	"github.com/splax/tasktrack/internal/service/task"
)

type createTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
}

type updateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Completed   *bool   `json:"completed"`
}

type todoResponse struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description *string      `json:"description"`
	DueDate     *domain.Date `json:"dueDate"`
	Completed   bool         `json:"completed"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

func toTodoResponse(t domain.Task) todoResponse {
	return todoResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
}

func (r *Router) handleTodos(w http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		r.listTodos(w, req)
	case http.MethodPost:
		r.createTodo(w, req)
	default:
		r.methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

func (r *Router) handleTodoItem(w http.ResponseWriter, req *http.Request) {
	id := strings.TrimPrefix(req.URL.Path, "/api/todos/")
	if id == "" || strings.Contains(id, "/") {
		r.notFound(w)
		return
	}
	switch req.Method {
	case http.MethodPut:
		r.updateTodo(w, req, id)
	case http.MethodDelete:
		r.deleteTodo(w, req, id)
	default:
		r.methodNotAllowed(w, http.MethodPut, http.MethodDelete)
	}
}

func (r *Router) listTodos(w http.ResponseWriter, req *http.Request) {
	tasks, err := r.tasks.List(req.Context())
	if err != nil {
		r.writeServiceError(w, req, err, "Todo", "Failed to fetch todos")
		return
	}
	todos := make([]todoResponse, 0, len(tasks))
	for _, t := range tasks {
		todos = append(todos, toTodoResponse(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"todos": todos})
}

func (r *Router) createTodo(w http.ResponseWriter, req *http.Request) {
	var payload createTodoRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := r.tasks.Create(req.Context(), task.CreateInput{
		Title:       deref(payload.Title),
		Description: payload.Description,
		DueDate:     payload.DueDate,
	})
	if err != nil {
		r.writeServiceError(w, req, err, "Todo", "Failed to create todo")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Todo created successfully",
		"todo":    toTodoResponse(*created),
	})
}

func (r *Router) updateTodo(w http.ResponseWriter, req *http.Request, id string) {
	var payload updateTodoRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	updated, err := r.tasks.Update(req.Context(), id, task.UpdateInput{
		Title:       deref(payload.Title),
		Description: payload.Description,
		DueDate:     payload.DueDate,
		Completed:   payload.Completed,
	})
	if err != nil {
		r.writeServiceError(w, req, err, "Todo", "Failed to update todo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Todo updated successfully",
		"todo":    toTodoResponse(*updated),
	})
}

func (r *Router) deleteTodo(w http.ResponseWriter, req *http.Request, id string) {
	deleted, err := r.tasks.Delete(req.Context(), id)
	if err != nil {
		r.writeServiceError(w, req, err, "Todo", "Failed to delete todo")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Todo deleted successfully",
		"id":      deleted,
	})
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
