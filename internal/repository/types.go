package repository

import "time"

// ProductListFilter 查询商品列表的过滤条件
type ProductListFilter struct {
	Page       int
	PageSize   int
	Search     string
	OnlyActive bool
	TrackStock *bool
}

// StockMovementListFilter 查询库存流水列表的过滤条件
type StockMovementListFilter struct {
	Page        int
	PageSize    int
	ProductID   uint
	Type        string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// TokenTransactionListFilter 查询代币流水列表的过滤条件
type TokenTransactionListFilter struct {
	Page     int
	PageSize int
	UserID   uint
	Type     string
}

// TokenPurchaseRequestListFilter 查询代币购买申请列表的过滤条件
type TokenPurchaseRequestListFilter struct {
	Page        int
	PageSize    int
	UserID      uint
	Status      string
	RequestNo   string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}
