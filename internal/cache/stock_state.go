package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/valuation"

	"github.com/shopspring/decimal"
)

// StockState 商品库存快照缓存（由库存服务在写入后刷新）
type StockState struct {
	ProductID         uint            `json:"product_id"`
	ValuationMethod   string          `json:"valuation_method"`
	Quantity          int64           `json:"quantity"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
	TotalValue        decimal.Decimal `json:"total_value"`
	Lots              []valuation.Lot `json:"lots,omitempty"`
	Status            string          `json:"status"`
	LowStockThreshold int             `json:"low_stock_threshold"`
	MovementCount     int64           `json:"movement_count"`
	UpdatedAt         int64           `json:"updated_at"`
}

// StockStateKey 库存快照缓存键
func StockStateKey(productID uint) string {
	return fmt.Sprintf("stock:state:%d", productID)
}

// StockLockKey 库存写入锁键
func StockLockKey(productID uint) string {
	return fmt.Sprintf("stock:lock:%d", productID)
}

// GetStockState 读取库存快照
func GetStockState(ctx context.Context, productID uint) (*StockState, error) {
	var state StockState
	hit, err := GetJSON(ctx, StockStateKey(productID), &state)
	if err != nil || !hit {
		return nil, err
	}
	return &state, nil
}

// SetStockState 写入库存快照
func SetStockState(ctx context.Context, state *StockState, ttl time.Duration) error {
	if state == nil {
		return nil
	}
	return SetJSON(ctx, StockStateKey(state.ProductID), state, ttl)
}

// SetStockStateIfAbsent 缓存未命中后的回填，不覆盖写入方刚刷新的快照
func SetStockStateIfAbsent(ctx context.Context, state *StockState, ttl time.Duration) error {
	if state == nil {
		return nil
	}
	_, err := SetJSONIfAbsent(ctx, StockStateKey(state.ProductID), state, ttl)
	return err
}

// DelStockState 删除库存快照
func DelStockState(ctx context.Context, productID uint) error {
	return Del(ctx, StockStateKey(productID))
}
