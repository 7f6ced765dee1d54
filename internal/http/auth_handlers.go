package httpx

import (
	"errors"
	"net/http"

	"github.com/splax/tasktrack/internal/domain"
	"github.com/splax/tasktrack/internal/repository"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func toUserResponse(user *domain.User) userResponse {
	return userResponse{ID: user.ID, Email: user.Email}
}

func (r *Router) handleRegister(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w, http.MethodPost)
		return
	}
	var payload credentialsRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, session, err := r.auth.Register(req.Context(), payload.Email, payload.Password)
	if errors.Is(err, repository.ErrConflict) {
		// A taken email is reported as a bad request, still counted as a conflict.
		setOutcome(w, outcomeConflict)
		writeError(w, http.StatusBadRequest, "User already exists")
		return
	}
	if err != nil {
		r.writeServiceError(w, req, err, "User", "Registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    toUserResponse(user),
		"token":   session.Token,
	})
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		r.methodNotAllowed(w, http.MethodPost)
		return
	}
	var payload credentialsRequest
	if err := decodeJSON(req, &payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, session, err := r.auth.Login(req.Context(), payload.Email, payload.Password)
	if err != nil {
		r.writeServiceError(w, req, err, "User", "Login failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    toUserResponse(user),
		"token":   session.Token,
	})
}

func (r *Router) handleValidate(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		r.methodNotAllowed(w, http.MethodGet)
		return
	}
	info, ok := authInfoFromContext(req.Context())
	if !ok {
		r.logger.Error("auth context missing for token validation", "path", req.URL.Path)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Token is valid",
		"user":    toUserResponse(info.user()),
	})
}
