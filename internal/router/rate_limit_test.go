package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func TestKeyByContextUser(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/orders/1/unlock", nil)
	c.Request.RemoteAddr = "1.2.3.4:5678"

	if key := KeyByContextUser(c); key != "1.2.3.4" {
		t.Fatalf("key without user want 1.2.3.4 got %s", key)
	}
	c.Set(handlershared.ContextKeyUserID, uint(9))
	if key := KeyByContextUser(c); key != "user:9" {
		t.Fatalf("key want user:9 got %s", key)
	}
}

func newRateLimitedEngine(client *redis.Client, rule RateLimitRule) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(handlershared.ContextKeyUserID, uint(9))
		c.Next()
	})
	r.Use(RateLimitMiddleware(client, rule, KeyByContextUser))
	r.POST("/unlock", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status_code": 0})
	})
	return r
}

func TestRateLimitMiddlewareBlocksOverLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	r := newRateLimitedEngine(client, RateLimitRule{Prefix: "cl:rate:user_write", WindowSeconds: 60, MaxRequests: 2})

	codes := make([]float64, 0, 3)
	var last map[string]interface{}
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unlock", nil))
		last = map[string]interface{}{}
		if err := json.Unmarshal(w.Body.Bytes(), &last); err != nil {
			t.Fatalf("unmarshal response failed: %v", err)
		}
		codes = append(codes, last["status_code"].(float64))
	}
	if codes[0] != 0 || codes[1] != 0 || codes[2] != 429 {
		t.Fatalf("unexpected status codes: %v", codes)
	}
	data, ok := last["data"].(map[string]interface{})
	if !ok || data["retry_after_seconds"] == nil {
		t.Fatalf("expected retry_after_seconds in data, got %v", last)
	}
	if !mr.Exists("cl:rate:user_write:user:9") {
		t.Fatalf("expected counter key per user")
	}

	mr.FastForward(61 * time.Second)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unlock", nil))
	if !strings.Contains(w.Body.String(), `"status_code":0`) {
		t.Fatalf("window expiry should reset limit, got %s", w.Body.String())
	}
}

func TestRateLimitMiddlewareFailsOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger.L = zap.NewNop()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	r := newRateLimitedEngine(client, RateLimitRule{WindowSeconds: 60, MaxRequests: 1})
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/unlock", nil))
		if !strings.Contains(w.Body.String(), `"status_code":0`) {
			t.Fatalf("redis outage should not block requests, got %s", w.Body.String())
		}
	}
}

func TestRateLimitMiddlewareWithoutClient(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimitMiddleware(nil, RateLimitRule{WindowSeconds: 60, MaxRequests: 1}, KeyByIP))
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"ok":true`) {
		t.Fatalf("expected handler response body, got %s", w.Body.String())
	}
}

func TestRateLimiterAllow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	limiter := NewRateLimiter(client, RateLimitRule{Prefix: "cl:rate:test", WindowSeconds: 30, MaxRequests: 1})
	allowed, _, err := limiter.Allow(context.Background(), "user:1")
	if err != nil || !allowed {
		t.Fatalf("first call should pass, allowed=%v err=%v", allowed, err)
	}
	allowed, wait, err := limiter.Allow(context.Background(), "user:1")
	if err != nil || allowed {
		t.Fatalf("second call should be limited, allowed=%v err=%v", allowed, err)
	}
	if wait < 1 || wait > 30 {
		t.Fatalf("retry after want within window, got %d", wait)
	}
	allowed, _, err = limiter.Allow(context.Background(), "user:2")
	if err != nil || !allowed {
		t.Fatalf("other key should pass, allowed=%v err=%v", allowed, err)
	}

	disabled := NewRateLimiter(nil, RateLimitRule{WindowSeconds: 30, MaxRequests: 1})
	for i := 0; i < 3; i++ {
		if allowed, _, _ := disabled.Allow(context.Background(), "user:1"); !allowed {
			t.Fatalf("limiter without client should always allow")
		}
	}
}
