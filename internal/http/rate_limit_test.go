package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
)

func TestMemoryRateLimiterWindow(t *testing.T) {
	clock := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	rl := newMemoryRateLimiter(func() time.Time { return clock })

	for i := 1; i <= 3; i++ {
		decision := rl.Allow("ip:10.0.0.1", 3, time.Minute)
		if !decision.allowed || decision.count != i {
			t.Fatalf("hit %d: unexpected decision %+v", i, decision)
		}
	}
	if decision := rl.Allow("ip:10.0.0.1", 3, time.Minute); decision.allowed {
		t.Fatalf("fourth hit should be rejected")
	}
	if decision := rl.Allow("ip:10.0.0.2", 3, time.Minute); !decision.allowed {
		t.Fatalf("other keys must not share the window")
	}

	clock = clock.Add(61 * time.Second)
	if decision := rl.Allow("ip:10.0.0.1", 3, time.Minute); !decision.allowed || decision.count != 1 {
		t.Fatalf("expected fresh window, got %+v", decision)
	}

	rl.evictExpired(clock.Add(2 * time.Minute))
	if len(rl.windows) != 0 {
		t.Fatalf("expected expired windows swept, got %d", len(rl.windows))
	}
}

func TestMemoryRateLimiterDisabledLimit(t *testing.T) {
	rl := NewMemoryRateLimiter()
	defer rl.Close()
	if decision := rl.Allow("ip:10.0.0.1", 0, time.Minute); !decision.allowed {
		t.Fatalf("zero limit must always allow")
	}
}

func TestRedisRateLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	rl := newRedisRateLimiter(client, nil)
	defer rl.Close()

	for i := 1; i <= 2; i++ {
		decision := rl.Allow("ip:10.0.0.1", 2, time.Minute)
		if !decision.allowed || decision.count != i {
			t.Fatalf("hit %d: unexpected decision %+v", i, decision)
		}
	}
	decision := rl.Allow("ip:10.0.0.1", 2, time.Minute)
	if decision.allowed {
		t.Fatalf("third hit should be rejected")
	}
	if decision.resetAt.IsZero() {
		t.Fatalf("expected reset time")
	}
	if ttl := mr.TTL(redisRateLimitPrefix + "ip:10.0.0.1"); ttl != time.Minute {
		t.Fatalf("expected key ttl of one minute, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if decision := rl.Allow("ip:10.0.0.1", 2, time.Minute); !decision.allowed || decision.count != 1 {
		t.Fatalf("expected fresh window after expiry, got %+v", decision)
	}
}

func TestRedisRateLimiterFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	rl := newRedisRateLimiter(client, nil)
	defer rl.Close()

	mr.Close()
	if decision := rl.Allow("ip:10.0.0.1", 1, time.Minute); !decision.allowed {
		t.Fatalf("expected fail-open decision when redis is down")
	}
}

func TestNewRedisRateLimiterPingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	if _, err := NewRedisRateLimiter(addr, "", 0, nil); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestRateKeyEmailRestoresBody(t *testing.T) {
	body := `{"email":"  Ada@Example.com ","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))

	if got := rateKeyEmail(req); got != "email:ada@example.com" {
		t.Fatalf("unexpected key %q", got)
	}
	rest, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(rest) != body {
		t.Fatalf("body not restored, got %q", rest)
	}
}

func TestRateKeyEmailSkipsMissingEmail(t *testing.T) {
	for _, body := range []string{`{"password":"x"}`, `not json`, ``} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		if got := rateKeyEmail(req); got != "" {
			t.Fatalf("body %q: expected no key, got %q", body, got)
		}
	}
}
