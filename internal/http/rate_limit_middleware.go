package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// RateLimiter counts hits per key in fixed windows.
type RateLimiter interface {
	Allow(key string, limit int, window time.Duration) rateDecision
	Close()
}

type rateDecision struct {
	allowed bool
	count   int
	resetAt time.Time
}

// rateRule is one budget a request is charged against. key returns "" when
// the rule does not apply to the request.
type rateRule struct {
	kind   string
	limit  int
	window time.Duration
	key    func(*http.Request) string
}

func perIP(limit int, window time.Duration) rateRule {
	return rateRule{kind: "ip", limit: limit, window: window, key: rateKeyIP}
}

func perEmail(limit int, window time.Duration) rateRule {
	return rateRule{kind: "email", limit: limit, window: window, key: rateKeyEmail}
}

func perUser(limit int, window time.Duration) rateRule {
	return rateRule{kind: "user", limit: limit, window: window, key: rateKeyUser}
}

// withRateLimit charges the request against each rule in order and rejects
// it with 429 at the first exhausted budget. The headers describe the
// tightest budget seen.
func (r *Router) withRateLimit(route string, rules []rateRule, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if r.limiter == nil {
			next(w, req)
			return
		}
		var (
			tightest     rateRule
			tightestSeen rateDecision
			charged      bool
		)
		for _, rule := range rules {
			if rule.limit <= 0 {
				continue
			}
			key := rule.key(req)
			if key == "" {
				continue
			}
			decision := r.limiter.Allow(key, rule.limit, rule.window)
			if !decision.allowed {
				r.applyRateHeaders(w, rule.limit, decision)
				r.metrics.rateLimited(route, rule.kind)
				setOutcome(w, outcomeRateLimited)
				writeError(w, http.StatusTooManyRequests, "Too many requests")
				return
			}
			if !charged || rule.limit-decision.count < tightest.limit-tightestSeen.count {
				tightest, tightestSeen, charged = rule, decision, true
			}
		}
		if charged {
			r.applyRateHeaders(w, tightest.limit, tightestSeen)
		}
		next(w, req)
	}
}

// handlerAuthRate throttles by client IP before the token is checked, then
// by account once it is.
func (r *Router) handlerAuthRate(route string, ipLimit, userLimit int, window time.Duration, next http.HandlerFunc) http.HandlerFunc {
	return r.withRateLimit(route, []rateRule{perIP(ipLimit, window)},
		r.requireAuth(r.withRateLimit(route, []rateRule{perUser(userLimit, window)}, next)))
}

func rateKeyIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		host = req.RemoteAddr
	}
	if host == "" {
		host = "unknown"
	}
	return "ip:" + host
}

func rateKeyUser(req *http.Request) string {
	if info, ok := authInfoFromContext(req.Context()); ok && info.UserID != "" {
		return "user:" + info.UserID
	}
	return ""
}

// rateKeyEmail reads the email from a credentials body and puts the body
// back for the handler. Emails are case-folded.
func rateKeyEmail(req *http.Request) string {
	if req.Body == nil {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(req.Body, maxBodyBytes))
	_ = req.Body.Close()
	req.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return ""
	}
	var payload struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &payload) != nil {
		return ""
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))
	if email == "" {
		return ""
	}
	return "email:" + email
}
