package shared

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dujiao-next/commerce-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// BindJSON 绑定请求体，失败时返回 400 并携带首个字段错误
func BindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		field, reason := describeBindError(err)
		response.ErrorWithData(c, response.CodeBadRequest, "invalid request body", gin.H{
			"field":  field,
			"reason": reason,
		})
		return false
	}
	return true
}

func describeBindError(err error) (string, string) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
		first := validationErrs[0]
		field := toSnakeCase(first.Field())
		switch first.Tag() {
		case "required":
			return field, "is required"
		case "gt":
			return field, fmt.Sprintf("must be greater than %s", first.Param())
		case "gte", "min":
			return field, fmt.Sprintf("must be at least %s", first.Param())
		case "lte", "max":
			return field, fmt.Sprintf("must be at most %s", first.Param())
		case "oneof":
			return field, fmt.Sprintf("must be one of %s", first.Param())
		default:
			return field, fmt.Sprintf("failed %s check", first.Tag())
		}
	}
	return "", strings.TrimSpace(err.Error())
}

func toSnakeCase(name string) string {
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
