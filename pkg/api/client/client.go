package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://localhost:5001/api"

// Client provides typed access to the todo API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return errors.New("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	endpoint := c.baseURL + path
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg := extractError(resp.Body)
		return APIError{Status: resp.StatusCode, Message: msg}
	}

	if v == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(body io.Reader) string {
	if body == nil {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return ""
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return strings.TrimSpace(string(data))
	}
	return strings.TrimSpace(payload.Message)
}

// BaseURL returns the normalised API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// User reflects API user payloads.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Message string `json:"message"`
	User    User   `json:"user"`
	Token   string `json:"token"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and returns its first token.
func (c *Client) Register(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", credentials{Email: email, Password: password}, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, "", &resp); err != nil {
		return AuthResponse{}, err
	}
	return resp, nil
}

// Validate resolves token to the account it belongs to.
func (c *Client) Validate(ctx context.Context, token string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	if err := c.do(ctx, http.MethodGet, "/auth/validate", nil, token, &resp); err != nil {
		return User{}, err
	}
	return resp.User, nil
}

// Todo mirrors the API task payload. DueDate is YYYY-MM-DD.
type Todo struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	DueDate     *string   `json:"dueDate"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateTodoInput is the payload for a new task.
type CreateTodoInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
}

// UpdateTodoInput replaces every mutable field; nil clears description or due date.
type UpdateTodoInput struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	DueDate     *string `json:"dueDate"`
	Completed   bool    `json:"completed"`
}

// UpdateFrom seeds an update with the current state of t.
func UpdateFrom(t Todo) UpdateTodoInput {
	return UpdateTodoInput{
		Title:       t.Title,
		Description: t.Description,
		DueDate:     t.DueDate,
		Completed:   t.Completed,
	}
}

// ListTodos returns all tasks, newest first.
func (c *Client) ListTodos(ctx context.Context) ([]Todo, error) {
	var resp struct {
		Todos []Todo `json:"todos"`
	}
	if err := c.do(ctx, http.MethodGet, "/todos", nil, "", &resp); err != nil {
		return nil, err
	}
	return resp.Todos, nil
}

// CreateTodo stores a new task.
func (c *Client) CreateTodo(ctx context.Context, input CreateTodoInput) (Todo, error) {
	var resp struct {
		Todo Todo `json:"todo"`
	}
	if err := c.do(ctx, http.MethodPost, "/todos", input, "", &resp); err != nil {
		return Todo{}, err
	}
	return resp.Todo, nil
}

// UpdateTodo overwrites the task identified by id.
func (c *Client) UpdateTodo(ctx context.Context, id string, input UpdateTodoInput) (Todo, error) {
	path := fmt.Sprintf("/todos/%s", url.PathEscape(id))
	var resp struct {
		Todo Todo `json:"todo"`
	}
	if err := c.do(ctx, http.MethodPut, path, input, "", &resp); err != nil {
		return Todo{}, err
	}
	return resp.Todo, nil
}

// DeleteTodo removes the task identified by id and returns the removed id.
func (c *Client) DeleteTodo(ctx context.Context, id string) (string, error) {
	path := fmt.Sprintf("/todos/%s", url.PathEscape(id))
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodDelete, path, nil, "", &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}
