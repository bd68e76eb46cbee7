package router

import (
	"context"
	"fmt"
	"strings"

	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitKeyFunc 生成限流 key 的函数
type RateLimitKeyFunc func(*gin.Context) string

// RateLimitRule 固定窗口限流规则
type RateLimitRule struct {
	Prefix        string
	WindowSeconds int
	MaxRequests   int
}

// 返回 {当前窗口计数, 剩余秒数}
var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
	redis.call("EXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("TTL", KEYS[1])}
`)

// RateLimiter 基于 Redis 的固定窗口计数器
type RateLimiter struct {
	client *redis.Client
	rule   RateLimitRule
}

// NewRateLimiter 创建限流器；client 为 nil 或规则无效时 Allow 恒放行
func NewRateLimiter(client *redis.Client, rule RateLimitRule) *RateLimiter {
	return &RateLimiter{client: client, rule: rule}
}

func (l *RateLimiter) active() bool {
	return l != nil && l.client != nil && l.rule.WindowSeconds > 0 && l.rule.MaxRequests > 0
}

// Allow 计数一次并判断是否超限，超限时返回需等待的秒数
func (l *RateLimiter) Allow(ctx context.Context, key string) (bool, int, error) {
	if !l.active() {
		return true, 0, nil
	}
	if l.rule.Prefix != "" {
		key = l.rule.Prefix + ":" + key
	}
	values, err := fixedWindowScript.Run(ctx, l.client, []string{key}, l.rule.WindowSeconds).Int64Slice()
	if err != nil {
		return true, 0, err
	}
	if len(values) < 2 {
		return true, 0, fmt.Errorf("unexpected rate limit result: %v", values)
	}
	if values[0] <= int64(l.rule.MaxRequests) {
		return true, 0, nil
	}
	wait := int(values[1])
	if wait < 1 {
		wait = l.rule.WindowSeconds
	}
	return false, wait, nil
}

// RateLimitMiddleware 写接口限流；Redis 不可用时放行（账本写入自身仍由锁与事务保护）
func RateLimitMiddleware(client *redis.Client, rule RateLimitRule, keyFunc RateLimitKeyFunc) gin.HandlerFunc {
	limiter := NewRateLimiter(client, rule)
	return func(c *gin.Context) {
		if !limiter.active() {
			c.Next()
			return
		}
		key := ""
		if keyFunc != nil {
			key = strings.TrimSpace(keyFunc(c))
		}
		if key == "" {
			key = c.ClientIP()
		}

		allowed, wait, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warnw("rate_limit_unavailable", "key", key, "error", err)
		}
		if !allowed {
			response.ErrorWithData(c, response.CodeTooManyRequests, "too many requests", gin.H{
				"retry_after_seconds": wait,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// KeyByIP 使用 IP 作为限流 key
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// KeyByContextUser 使用上下文中的用户 ID 作为限流 key，缺失时回退到 IP
func KeyByContextUser(c *gin.Context) string {
	if value, ok := c.Get(handlershared.ContextKeyUserID); ok {
		if userID, ok := value.(uint); ok && userID > 0 {
			return fmt.Sprintf("user:%d", userID)
		}
	}
	return c.ClientIP()
}
