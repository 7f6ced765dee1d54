package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewDefaultsAndNormalises(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", c.BaseURL())
	}

	c, err = New("localhost:9000/api/")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.BaseURL() != "http://localhost:9000/api" {
		t.Fatalf("unexpected base url %q", c.BaseURL())
	}
}

func TestRegisterSendsCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/register" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ada@example.com" || body["password"] != "pw" {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"User registered successfully","user":{"id":"u1","email":"ada@example.com"},"token":"tok"}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL + "/api")
	resp, err := c.Register(context.Background(), "ada@example.com", "pw")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if resp.Token != "tok" || resp.User.ID != "u1" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestValidateSendsBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected authorization header %q", got)
		}
		_, _ = io.WriteString(w, `{"message":"Token is valid","user":{"id":"u1","email":"ada@example.com"}}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	user, err := c.Validate(context.Background(), " tok ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if user.Email != "ada@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestErrorResponsesBecomeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"message":"Todo not found"}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	_, err := c.DeleteTodo(context.Background(), "missing")
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Message != "Todo not found" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
	if !IsStatus(err, http.StatusNotFound) || IsStatus(err, http.StatusConflict) {
		t.Fatalf("IsStatus mismatch for %v", err)
	}
}

func TestExtractErrorFallsBackToRawBody(t *testing.T) {
	if got := extractError(strings.NewReader("upstream exploded\n")); got != "upstream exploded" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := extractError(strings.NewReader("")); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}

func TestUpdateTodoSendsFullReplacement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/todos/abc" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["description"]; !ok {
			t.Errorf("description must be sent explicitly, got %v", body)
		}
		if body["dueDate"] != "2025-05-01" || body["completed"] != true || body["title"] != "Ship" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"message":"Todo updated successfully","todo":{"id":"abc","title":"Ship","description":null,"dueDate":"2025-05-01","completed":true}}`)
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	due := "2025-05-01"
	input := UpdateFrom(Todo{ID: "abc", Title: "Ship", DueDate: &due})
	input.Completed = true
	todo, err := c.UpdateTodo(context.Background(), "abc", input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !todo.Completed || todo.DueDate == nil || *todo.DueDate != "2025-05-01" || todo.Description != nil {
		t.Fatalf("unexpected todo %+v", todo)
	}
}

func TestListAndCreateTodos(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"todos":[{"id":"2","title":"b"},{"id":"1","title":"a"}]}`)
		case http.MethodPost:
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if _, ok := body["dueDate"]; ok {
				t.Errorf("unset due date must be omitted, got %v", body)
			}
			w.WriteHeader(http.StatusCreated)
			_, _ = io.WriteString(w, `{"message":"Todo created successfully","todo":{"id":"3","title":"c","dueDate":null}}`)
		}
	}))
	defer srv.Close()

	c, _ := New(srv.URL)
	todos, err := c.ListTodos(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 2 || todos[0].ID != "2" {
		t.Fatalf("unexpected todos %+v", todos)
	}
	created, err := c.CreateTodo(context.Background(), CreateTodoInput{Title: "c"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "3" || created.DueDate != nil {
		t.Fatalf("unexpected created todo %+v", created)
	}
}
