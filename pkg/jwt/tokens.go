package jwt

import (
	"errors"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// ErrMissingSubject is returned when a token carries no user id.
var ErrMissingSubject = errors.New("token has no user id")

// Claims defines JWT payload.
type Claims struct {
	UserID string `json:"user_id"`
	jwtlib.RegisteredClaims
}

// Signer issues and verifies HS256 tokens for a single secret.
type Signer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewSigner returns a Signer. An empty secret is rejected.
func NewSigner(secret, issuer string, ttl time.Duration) (Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return Signer{}, errors.New("jwt secret is empty")
	}
	if ttl <= 0 {
		return Signer{}, errors.New("jwt ttl must be positive")
	}
	return Signer{secret: []byte(secret), issuer: issuer, ttl: ttl}, nil
}

// TTL reports how long issued tokens stay valid.
func (s Signer) TTL() time.Duration {
	return s.ttl
}

// Generate issues a signed token for userID, valid from now until now+ttl.
func (s Signer) Generate(userID string, now time.Time) (string, time.Time, error) {
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expires),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse validates token against the signer's secret as of now and extracts claims.
func (s Signer) Parse(token string, now time.Time) (*Claims, error) {
	opts := []jwtlib.ParserOption{
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Name}),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return now }),
	}
	if s.issuer != "" {
		opts = append(opts, jwtlib.WithIssuer(s.issuer))
	}
	parsed, err := jwtlib.ParseWithClaims(token, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, jwtlib.ErrTokenInvalidClaims
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
