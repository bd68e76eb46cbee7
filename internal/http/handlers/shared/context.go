package shared

import (
	"github.com/dujiao-next/commerce-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

const (
	// ContextKeyUserID 用户 ID 上下文键（由身份中间件写入）
	ContextKeyUserID = "user_id"
	// ContextKeyAdminID 管理员 ID 上下文键
	ContextKeyAdminID = "admin_id"
)

// GetContextUint 从上下文读取 uint 值并统一处理错误响应。
func GetContextUint(c *gin.Context, key string) (uint, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondErrorWithMsg(c, response.CodeUnauthorized, "unauthorized", nil)
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		if v == 0 {
			RespondErrorWithMsg(c, response.CodeUnauthorized, "unauthorized", nil)
			return 0, false
		}
		return v, true
	case int:
		if v <= 0 {
			RespondErrorWithMsg(c, response.CodeBadRequest, key+" is invalid", nil)
			return 0, false
		}
		return uint(v), true
	default:
		RespondErrorWithMsg(c, response.CodeInternal, key+" has invalid type", nil)
		return 0, false
	}
}
