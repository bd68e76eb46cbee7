package valuation

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientStock 出库数量超过当前库存
	ErrInsufficientStock = errors.New("valuation: insufficient stock")
	// ErrInvalidMovement 流水字段不合法
	ErrInvalidMovement = errors.New("valuation: invalid movement")
	// ErrUnknownMethod 未知计价方式
	ErrUnknownMethod = errors.New("valuation: unknown method")
)

// InsufficientStockError 携带可用数量的库存不足错误
type InsufficientStockError struct {
	Available int64
	Requested int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("valuation: insufficient stock (available %d, requested %d)", e.Available, e.Requested)
}

// Is 兼容 errors.Is(err, ErrInsufficientStock)
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// MovementError 流水字段错误
type MovementError struct {
	Field  string
	Reason string
}

func (e *MovementError) Error() string {
	return fmt.Sprintf("valuation: %s %s", e.Field, e.Reason)
}

// Is 兼容 errors.Is(err, ErrInvalidMovement)
func (e *MovementError) Is(target error) bool {
	return target == ErrInvalidMovement
}
