package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func adviceGroup(c *gin.Context) string {
	if strings.HasPrefix(c.FullPath(), "/api/v1/homes/:id/advice") {
		return "ADVICE"
	}
	return ""
}

func TestRateLimitOnlyAppliesToAdvice(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: adviceGroup,
		Limiter:  limiter,
		Rules: map[string]RateLimitRule{
			"ADVICE": {Rate: 0.5, Burst: 2},
		},
	}))
	r.POST("/api/v1/homes/:id/advice", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/api/v1/homes/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/homes/home-1", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("home request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/homes/home-1/advice", nil)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("advice request %d expected 200, got %d", i+1, resp.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/homes/home-1/advice", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("advice request 3 expected 429, got %d", resp.Code)
	}

	// Another client has its own bucket.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/homes/home-1/advice", nil)
	req.RemoteAddr = "10.0.0.9:4242"
	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("second client expected 200, got %d", resp.Code)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })

	r := gin.New()
	r.Use(RateLimit(RateLimitConfig{
		DefaultGroup: "DEFAULT",
		Limiter:      limiter,
		Rules: map[string]RateLimitRule{
			"DEFAULT": {Rate: 0.5, Burst: 1},
		},
	}))
	r.GET("/api/v1/limited", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	req1 := httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil)
	resp1 := httptest.NewRecorder()
	r.ServeHTTP(resp1, req1)
	if resp1.Code != http.StatusOK {
		t.Fatalf("expected first request 200, got %d", resp1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/api/v1/limited", nil)
	resp2 := httptest.NewRecorder()
	r.ServeHTTP(resp2, req2)
	if resp2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp2.Code)
	}
	if got := resp2.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp2.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	if payload.Error.Details["retryAfterMs"] != float64(2000) {
		t.Fatalf("expected retryAfterMs 2000, got %v", payload.Error.Details["retryAfterMs"])
	}
}

func TestRateLimiterRefillsAndPrunes(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	if ok, _ := limiter.Allow("a", rule); !ok {
		t.Fatalf("expected first call allowed")
	}
	if ok, wait := limiter.Allow("a", rule); ok || wait != time.Second {
		t.Fatalf("expected denial with 1s wait, got %v %v", ok, wait)
	}
	now = now.Add(time.Second)
	if ok, _ := limiter.Allow("a", rule); !ok {
		t.Fatalf("expected refill after 1s")
	}

	now = now.Add(bucketIdleTTL + time.Second)
	for i := 0; i < pruneEveryCalls; i++ {
		limiter.Allow(fmt.Sprintf("client-%d", i%3), rule)
	}
	if limiter.Len() > 4 {
		t.Fatalf("expected idle buckets pruned, have %d", limiter.Len())
	}
	if ok, _ := limiter.Allow("x", RateLimitRule{}); !ok {
		t.Fatalf("zero rule must not limit")
	}
}

func TestRateLimiterDenialsDoNotBorrowTokens(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 2, Burst: 1}

	if ok, _ := limiter.Allow("c", rule); !ok {
		t.Fatalf("expected first call allowed")
	}
	for i := 0; i < 3; i++ {
		ok, wait := limiter.Allow("c", rule)
		if ok {
			t.Fatalf("denial %d: expected limit", i+1)
		}
		if wait != 500*time.Millisecond {
			t.Fatalf("denial %d: expected 500ms wait, got %v", i+1, wait)
		}
	}
	now = now.Add(500 * time.Millisecond)
	if ok, _ := limiter.Allow("c", rule); !ok {
		t.Fatalf("expected token after one refill interval")
	}
}
