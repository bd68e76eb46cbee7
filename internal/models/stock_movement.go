package models

import "time"

// StockMovement 库存流水表（只追加，不修改不删除）
type StockMovement struct {
	ID            uint      `gorm:"primarykey" json:"id"`                                                            // 主键
	ProductID     uint      `gorm:"not null;index:idx_stock_movements_product_created,priority:1" json:"product_id"` // 商品ID
	Type          string    `gorm:"type:varchar(20);not null" json:"type"`                                           // 类型（purchase/sale/return/adjustment）
	Quantity      int64     `gorm:"not null" json:"quantity"`                                                        // 数量（adjustment 为带符号增减量）
	UnitCost      *Money    `gorm:"type:decimal(20,2)" json:"unit_cost"`                                             // 单位成本
	Reference     *string   `gorm:"type:varchar(191);uniqueIndex" json:"reference,omitempty"`                        // 幂等参考号
	Note          string    `gorm:"type:varchar(500)" json:"note"`                                                   // 备注
	OperatorID    *uint     `gorm:"index" json:"operator_id,omitempty"`                                              // 操作管理员
	QuantityAfter int64     `gorm:"not null;default:0" json:"quantity_after"`                                        // 写入后数量（仅审计）
	UnitCostAfter Money     `gorm:"type:decimal(20,2);not null;default:0" json:"unit_cost_after"`                    // 写入后单位成本（仅审计）
	CreatedAt     time.Time `gorm:"index:idx_stock_movements_product_created,priority:2" json:"created_at"`          // 创建时间
}

// TableName 指定表名
func (StockMovement) TableName() string {
	return "stock_movements"
}
