package httpx

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/splax/tasktrack/internal/repository"
	"github.com/splax/tasktrack/internal/service/auth"
	"github.com/splax/tasktrack/internal/service/task"
)

// Router wires HTTP endpoints to services.
type Router struct {
	mux      *http.ServeMux
	logger   *slog.Logger
	auth     auth.Service
	tasks    task.Service
	limiter  RateLimiter
	dbHealth func(context.Context) error
	metrics  *httpMetrics
}

const (
	rateWindowDefault      = time.Minute
	rateWindowAccount      = 5 * time.Minute
	rateLimitRegister      = 5
	rateLimitRegisterEmail = 3
	rateLimitLogin         = 12
	rateLimitLoginEmail    = 5
	rateLimitValidateIP    = 120
	rateLimitValidateUser  = 120
	healthCheckTimeout     = 2 * time.Second
)

// NewRouter assembles routes with dependencies.
func NewRouter(logger *slog.Logger, authSvc auth.Service, taskSvc task.Service, limiter RateLimiter, dbHealth func(context.Context) error) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		mux:      http.NewServeMux(),
		logger:   logger,
		auth:     authSvc,
		tasks:    taskSvc,
		limiter:  limiter,
		dbHealth: dbHealth,
		metrics:  newHTTPMetrics(prometheus.DefaultRegisterer),
	}
	if r.limiter == nil {
		r.limiter = NewMemoryRateLimiter()
	}
	r.register()
	return r
}

// ServeHTTP delegates to the underlying mux. A handler panic becomes a 500
// unless the handler had already started its response.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	tracked := &statusRecorder{ResponseWriter: w}
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		if rec == http.ErrAbortHandler {
			panic(rec)
		}
		r.logger.Error("handler panic", "panic", rec, "method", req.Method, "path", req.URL.Path, "response_started", tracked.status != 0)
		if tracked.status == 0 {
			writeError(tracked, http.StatusInternalServerError, "Internal server error")
		}
	}()
	r.mux.ServeHTTP(tracked, req)
}

// Close releases background resources.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

func (r *Router) register() {
	r.mux.HandleFunc("/", r.audit("/", r.handleRoot))
	r.mux.HandleFunc("/api", r.audit("/api", r.handleWelcome))
	r.mux.HandleFunc("/healthz", r.audit("/healthz", r.handleHealthz))
	r.mux.Handle("/metrics", promhttp.Handler())

	r.mux.HandleFunc("/api/auth/register", r.audit("/api/auth/register", r.withRateLimit("/api/auth/register", []rateRule{
		perIP(rateLimitRegister, rateWindowDefault),
		perEmail(rateLimitRegisterEmail, rateWindowAccount),
	}, r.handleRegister)))
	r.mux.HandleFunc("/api/auth/login", r.audit("/api/auth/login", r.withRateLimit("/api/auth/login", []rateRule{
		perIP(rateLimitLogin, rateWindowDefault),
		perEmail(rateLimitLoginEmail, rateWindowAccount),
	}, r.handleLogin)))
	r.mux.HandleFunc("/api/auth/validate", r.audit("/api/auth/validate", r.handlerAuthRate("/api/auth/validate", rateLimitValidateIP, rateLimitValidateUser, rateWindowDefault, r.handleValidate)))

	r.mux.HandleFunc("/api/todos", r.audit("/api/todos", r.handleTodos))
	r.mux.HandleFunc("/api/todos/", r.audit("/api/todos/:id", r.handleTodoItem))
}

func (r *Router) handleRoot(w http.ResponseWriter, req *http.Request) {
	if req.URL.Path != "/" {
		r.notFound(w)
		return
	}
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		r.methodNotAllowed(w, http.MethodGet, http.MethodHead)
		return
	}
	http.Redirect(w, req, "/api", http.StatusFound)
}

func (r *Router) handleWelcome(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Welcome to Todo API"})
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, http.MethodGet)
		return
	}
	components := make(map[string]any)
	status := "ok"
	if r.dbHealth != nil {
		ctx, cancel := context.WithTimeout(req.Context(), healthCheckTimeout)
		defer cancel()
		if err := r.dbHealth(ctx); err != nil {
			status = "degraded"
			components["database"] = map[string]any{
				"status": "down",
				"error":  err.Error(),
			}
		} else {
			components["database"] = map[string]any{"status": "up"}
		}
	}
	payload := map[string]any{
		"status":     status,
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
	}
	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

// writeServiceError maps service and repository errors onto status codes.
// resource names the entity in 404/409 messages; fallback is the 500 message.
// writeServiceError maps service errors onto statuses and tags the request
// metrics with the matching outcome.
func (r *Router) writeServiceError(w http.ResponseWriter, req *http.Request, err error, resource, fallback string) {
	status, outcome, msg := http.StatusInternalServerError, outcomeInternal, fallback
	switch {
	case errors.Is(err, auth.ErrInvalidInput),
		errors.Is(err, auth.ErrPasswordTooLong),
		errors.Is(err, task.ErrTitleRequired),
		errors.Is(err, task.ErrInvalidDueDate),
		errors.Is(err, task.ErrCompletedRequired):
		status, outcome, msg = http.StatusBadRequest, outcomeBadRequest, badRequestMessage(err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		status, outcome, msg = http.StatusUnauthorized, outcomeUnauthorized, "Invalid credentials"
	case errors.Is(err, auth.ErrInvalidToken):
		status, outcome, msg = http.StatusUnauthorized, outcomeUnauthorized, "Invalid token"
	case errors.Is(err, repository.ErrNotFound):
		status, outcome, msg = http.StatusNotFound, outcomeNotFound, resource+" not found"
	case errors.Is(err, repository.ErrConflict):
		status, outcome, msg = http.StatusConflict, outcomeConflict, resource+" already exists"
	default:
		r.logger.Error("request failed", "error", err, "method", req.Method, "path", req.URL.Path)
	}
	setOutcome(w, outcome)
	writeError(w, status, msg)
}

// badRequestMessage returns the sentinel's own text, without wrapped detail.
func badRequestMessage(err error) string {
	for _, sentinel := range []error{
		auth.ErrInvalidInput,
		auth.ErrPasswordTooLong,
		task.ErrTitleRequired,
		task.ErrInvalidDueDate,
		task.ErrCompletedRequired,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return err.Error()
}

func (r *Router) audit(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next(recorder, req)

		status := recorder.status
		if status == 0 {
			status = http.StatusOK
		}
		ctx := recorder.ctx
		if ctx == nil {
			ctx = req.Context()
		}
		duration := time.Since(start)
		outcome := recorder.outcome
		if outcome == "" {
			outcome = outcomeForStatus(status)
		}
		r.metrics.observe(req.Method, route, status, outcome, duration)

		actor := "anonymous"
		fields := []any{
			"method", req.Method,
			"path", req.URL.Path,
			"status", status,
			"outcome", outcome,
			"bytes", recorder.bytes,
			"duration_ms", duration.Milliseconds(),
		}
		if ip := clientIP(req); ip != "" {
			fields = append(fields, "ip", ip)
		}
		if reqID := strings.TrimSpace(req.Header.Get("X-Request-ID")); reqID != "" {
			fields = append(fields, "request_id", reqID)
		}
		if info, ok := authInfoFromContext(ctx); ok {
			actor = "user"
			fields = append(fields, "user_id", info.UserID)
		}
		fields = append(fields, "actor", actor)

		switch {
		case status >= http.StatusInternalServerError:
			r.logger.Error("http_request", fields...)
		case status >= http.StatusBadRequest:
			r.logger.Warn("http_request", fields...)
		default:
			r.logger.Info("http_request", fields...)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	bytes   int
	ctx     context.Context
	outcome string
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

func (sr *statusRecorder) SetContext(ctx context.Context) {
	sr.ctx = ctx
}

// SetOutcome records the error class; nested recorders pass it outward.
func (sr *statusRecorder) SetOutcome(outcome string) {
	sr.outcome = outcome
	setOutcome(sr.ResponseWriter, outcome)
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func (r *Router) applyRateHeaders(w http.ResponseWriter, limit int, decision rateDecision) {
	if limit <= 0 {
		return
	}
	remaining := limit - decision.count
	if remaining < 0 {
		remaining = 0
	}
	headers := w.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	if !decision.resetAt.IsZero() {
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(decision.resetAt.Unix(), 10))
	}
}

func (r *Router) methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
}

func (r *Router) notFound(w http.ResponseWriter) {
	writeError(w, http.StatusNotFound, "Route not found")
}
