package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	handler := limiter.Middleware("accounts")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/0x01", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	now = now.Add(time.Second)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected bucket to refill, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesRoutesAndClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	accounts := limiter.Middleware("accounts")(okHandler())
	token := limiter.Middleware("token")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/0x01", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	for name, handler := range map[string]http.Handler{"accounts": accounts, "token": token} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected first %s request to succeed, got %d", name, res.Code)
		}
	}

	other := httptest.NewRequest(http.MethodGet, "/v1/accounts/0x01", nil)
	other.Header.Set("X-Real-IP", "198.51.100.2")
	res := httptest.NewRecorder()
	accounts.ServeHTTP(res, other)
	if res.Code != http.StatusOK {
		t.Fatalf("expected distinct client to have its own bucket, got %d", res.Code)
	}
}

func TestRateLimiterEvictsIdleVisitors(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	now := time.Unix(1_700_000_000, 0)
	limiter.clockNow = func() time.Time { return now }
	limiter.allow("accounts|a")
	now = now.Add(10 * time.Minute)
	limiter.allow("accounts|b")
	if _, ok := limiter.visitors["accounts|a"]; ok {
		t.Fatalf("expected idle visitor to be evicted")
	}
}
