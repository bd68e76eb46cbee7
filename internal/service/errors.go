package service

import (
	"errors"
	"fmt"

	"github.com/dujiao-next/commerce-ledger/internal/pricing"
	"github.com/dujiao-next/commerce-ledger/internal/valuation"
)

var (
	ErrValidation              = errors.New("validation failed")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrInsufficientTokens      = errors.New("insufficient tokens")
	ErrPendingRequestExists    = errors.New("pending purchase request exists")
	ErrAlreadyReviewed         = errors.New("purchase request already reviewed")
	ErrStorageUnavailable      = errors.New("storage unavailable")
	ErrProductNotFound         = errors.New("product not found")
	ErrPurchaseRequestNotFound = errors.New("purchase request not found")
	ErrPriceUnavailable        = errors.New("price unavailable")
	ErrValuationMethodLocked   = errors.New("valuation method locked by existing movements")
	ErrStockNotTracked         = errors.New("stock not tracked for product")
)

// ValidationError 入参校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// Is 兼容 errors.Is(err, ErrValidation)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InsufficientStockError 库存不足，携带可用数量
type InsufficientStockError struct {
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: available %d, requested %d", e.Available, e.Requested)
}

// Is 兼容 errors.Is(err, ErrInsufficientStock)
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// InsufficientTokensError 代币不足，携带当前余额与所需数量
type InsufficientTokensError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientTokensError) Error() string {
	return fmt.Sprintf("insufficient tokens: balance %d, required %d", e.Balance, e.Required)
}

// Is 兼容 errors.Is(err, ErrInsufficientTokens)
func (e *InsufficientTokensError) Is(target error) bool {
	return target == ErrInsufficientTokens
}

func newValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// storageError 包装存储层错误，业务错误原样返回
func storageError(err error) error {
	if err == nil {
		return nil
	}
	if isDomainError(err) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

func isDomainError(err error) bool {
	for _, target := range []error{
		ErrValidation,
		ErrInsufficientStock,
		ErrInsufficientTokens,
		ErrPendingRequestExists,
		ErrAlreadyReviewed,
		ErrStorageUnavailable,
		ErrProductNotFound,
		ErrPurchaseRequestNotFound,
		ErrPriceUnavailable,
		ErrValuationMethodLocked,
		ErrStockNotTracked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// translatePricingError 计价包错误转为服务错误
func translatePricingError(err error) error {
	if err == nil {
		return nil
	}
	var selErr *pricing.SelectionError
	switch {
	case errors.As(err, &selErr):
		return newValidationError("selections."+selErr.Variation, fmt.Sprintf("has no option %q", selErr.Value))
	case errors.Is(err, pricing.ErrPriceUnavailable):
		return ErrPriceUnavailable
	case errors.Is(err, pricing.ErrInvalidQuantity):
		return newValidationError("quantity", "must be positive")
	default:
		return newValidationError("", err.Error())
	}
}

// translateValuationError 计价账本错误转为服务错误
func translateValuationError(err error) error {
	if err == nil {
		return nil
	}
	var stockErr *valuation.InsufficientStockError
	if errors.As(err, &stockErr) {
		return &InsufficientStockError{Available: stockErr.Available, Requested: stockErr.Requested}
	}
	var moveErr *valuation.MovementError
	if errors.As(err, &moveErr) {
		return newValidationError(moveErr.Field, moveErr.Reason)
	}
	if errors.Is(err, valuation.ErrUnknownMethod) {
		return newValidationError("valuation_method", "is unknown")
	}
	return err
}
