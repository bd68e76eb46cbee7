package shared

import (
	"errors"

	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondErrorWithMsg 返回错误响应，并在有原始错误时记录日志。
func RespondErrorWithMsg(c *gin.Context, code int, msg string, err error) {
	respondAppError(c, response.WrapError(code, msg, err))
}

func respondAppError(c *gin.Context, appErr *response.AppError) {
	if appErr.Err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"message", appErr.Message,
			"error", appErr.Err,
		)
	}
	if appErr.Data != nil {
		response.ErrorWithData(c, appErr.Code, appErr.Message, appErr.Data)
		return
	}
	response.Error(c, appErr.Code, appErr.Message)
}

// mappedServiceError 业务错误到响应码的映射
type mappedServiceError struct {
	target error
	code   int
}

var serviceErrorRules = []mappedServiceError{
	{target: service.ErrValidation, code: response.CodeBadRequest},
	{target: service.ErrPriceUnavailable, code: response.CodeBadRequest},
	{target: service.ErrProductNotFound, code: response.CodeNotFound},
	{target: service.ErrPurchaseRequestNotFound, code: response.CodeNotFound},
	{target: service.ErrStockNotTracked, code: response.CodeNotFound},
	{target: service.ErrInsufficientStock, code: response.CodeConflict},
	{target: service.ErrInsufficientTokens, code: response.CodeConflict},
	{target: service.ErrPendingRequestExists, code: response.CodeConflict},
	{target: service.ErrAlreadyReviewed, code: response.CodeConflict},
	{target: service.ErrValuationMethodLocked, code: response.CodeConflict},
}

// MapServiceError 将服务层错误转换为接口错误，未知错误与存储错误统一为 500
func MapServiceError(err error) *response.AppError {
	if err == nil {
		return nil
	}
	for _, rule := range serviceErrorRules {
		if !errors.Is(err, rule.target) {
			continue
		}
		appErr := response.WrapError(rule.code, err.Error(), nil)
		var validationErr *service.ValidationError
		var stockErr *service.InsufficientStockError
		var tokensErr *service.InsufficientTokensError
		switch {
		case errors.As(err, &validationErr):
			appErr.WithData(gin.H{"field": validationErr.Field, "reason": validationErr.Reason})
		case errors.As(err, &stockErr):
			appErr.WithData(gin.H{"available": stockErr.Available, "requested": stockErr.Requested})
		case errors.As(err, &tokensErr):
			appErr.WithData(gin.H{"balance": tokensErr.Balance, "required": tokensErr.Required})
		}
		return appErr
	}
	if errors.Is(err, service.ErrStorageUnavailable) {
		return response.WrapError(response.CodeInternal, service.ErrStorageUnavailable.Error(), err)
	}
	return response.WrapError(response.CodeInternal, "internal error", err)
}

// RespondServiceError 按业务错误类型返回响应
func RespondServiceError(c *gin.Context, err error) {
	respondAppError(c, MapServiceError(err))
}
