package constants

// 库存流水类型常量
const (
	StockMovementPurchase   = "purchase"
	StockMovementSale       = "sale"
	StockMovementReturn     = "return"
	StockMovementAdjustment = "adjustment"
)

// 库存计价方式常量
const (
	ValuationWeightedAverage = "weighted_average"
	ValuationFIFO            = "fifo"
	ValuationLIFO            = "lifo"
)

// 库存状态常量
const (
	StockStatusOutOfStock = "out_of_stock"
	StockStatusLowStock   = "low_stock"
	StockStatusInStock    = "in_stock"
)

// 代币流水类型常量
const (
	TokenTxnTypePurchasePack = "purchase_pack"
	TokenTxnTypeOrderUnlock  = "order_unlock"
	TokenTxnTypeAdminAdjust  = "admin_adjust"
)

// 代币购买申请状态常量
const (
	TokenRequestStatusPending  = "pending"
	TokenRequestStatusApproved = "approved"
	TokenRequestStatusRejected = "rejected"
)

// 代币购买申请审核动作常量
const (
	TokenRequestActionApprove = "approve"
	TokenRequestActionReject  = "reject"
)

// 账户套餐常量
const (
	PlanTierFree = "free"
	PlanTierPro  = "pro"
)

// 默认值常量
const (
	DefaultUnlockCost    = 10
	DefaultPageSize      = 20
	MaxPageSize          = 100
	ReferenceOrderUnlock = "unlock"
)

// 队列名称常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskStockLevelAlert      = "stock:level_alert"
	TaskTokenRequestReviewed = "token_request:reviewed"
)
