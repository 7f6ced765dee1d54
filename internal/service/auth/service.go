package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/splax/tasktrack/internal/domain"
	"github.com/splax/tasktrack/internal/repository"
	"github.com/splax/tasktrack/internal/telemetry"
	"github.com/splax/tasktrack/pkg/crypto"
	jwtpkg "github.com/splax/tasktrack/pkg/jwt"
)

var (
	// ErrInvalidInput reports a missing email or password.
	ErrInvalidInput = errors.New("email and password are required")
	// ErrPasswordTooLong reports a password bcrypt cannot hash.
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrInvalidCredentials is returned for an unknown email or a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken covers missing, malformed, expired and foreign-signed tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Service handles registration, login and token validation.
type Service struct {
	users  repository.UserRepository
	signer jwtpkg.Signer
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Service.
func New(users repository.UserRepository, signer jwtpkg.Signer, logger *slog.Logger) Service {
	if logger == nil {
		logger = slog.Default()
	}
	return Service{users: users, signer: signer, logger: logger, now: time.Now}
}

// Session is a freshly issued bearer token.
type Session struct {
	Token     string
	ExpiresAt time.Time
}

// Register creates an account and signs the caller in.
func (s Service) Register(ctx context.Context, email, password string) (user *domain.User, session Session, err error) {
	ctx, span := telemetry.Start(ctx, "auth.Register")
	defer func() { telemetry.End(span, err) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, Session{}, ErrInvalidInput
	}
	existing, err := s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, Session{}, fmt.Errorf("user already exists: %w", repository.ErrConflict)
	case err != nil && !errors.Is(err, repository.ErrNotFound):
		return nil, Session{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := crypto.HashPassword(password)
	if errors.Is(err, crypto.ErrPasswordTooLong) {
		return nil, Session{}, ErrPasswordTooLong
	}
	if err != nil {
		return nil, Session{}, fmt.Errorf("hash password: %w", err)
	}
	user = &domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, Session{}, fmt.Errorf("user already exists: %w", err)
		}
		return nil, Session{}, fmt.Errorf("create user: %w", err)
	}
	session, err = s.issue(user.ID)
	if err != nil {
		return nil, Session{}, err
	}
	span.SetAttributes(attribute.String("user.id", user.ID))
	s.logger.Info("user registered", "user_id", user.ID)
	return user, session, nil
}

// Login authenticates a user and returns a new token.
func (s Service) Login(ctx context.Context, email, password string) (user *domain.User, session Session, err error) {
	ctx, span := telemetry.Start(ctx, "auth.Login")
	defer func() { telemetry.End(span, err) }()

	if strings.TrimSpace(email) == "" || password == "" {
		return nil, Session{}, ErrInvalidInput
	}
	user, err = s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, fmt.Errorf("lookup user: %w", err)
	}
	if err := crypto.ComparePassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, crypto.ErrPasswordMismatch) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, fmt.Errorf("compare password: %w", err)
	}
	session, err = s.issue(user.ID)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return user, session, nil
}

// Validate resolves a bearer token to the account it was issued for.
// An unknown account id yields repository.ErrNotFound.
func (s Service) Validate(ctx context.Context, token string) (user *domain.User, err error) {
	ctx, span := telemetry.Start(ctx, "auth.Validate")
	defer func() { telemetry.End(span, err) }()

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: token required", ErrInvalidToken)
	}
	claims, err := s.signer.Parse(trimmed, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.UserID); err != nil {
		return nil, fmt.Errorf("user %s: %w", claims.UserID, repository.ErrNotFound)
	}
	user, err = s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s Service) issue(userID string) (Session, error) {
	token, expires, err := s.signer.Generate(userID, s.now())
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: expires}, nil
}
