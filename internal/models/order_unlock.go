package models

import "time"

// OrderUnlock 订单解锁记录（每个订单最多一条）
type OrderUnlock struct {
	ID                 uint      `gorm:"primarykey" json:"id"`                 // 主键
	OrderID            uint      `gorm:"not null;uniqueIndex" json:"order_id"` // 订单ID
	UserID             uint      `gorm:"not null;index" json:"user_id"`        // 解锁用户
	TokenTransactionID uint      `gorm:"not null" json:"token_transaction_id"` // 扣费流水
	Cost               int64     `gorm:"not null" json:"cost"`                 // 消耗代币
	GrantedAt          time.Time `gorm:"not null" json:"granted_at"`           // 解锁时间
}

// TableName 指定表名
func (OrderUnlock) TableName() string {
	return "order_unlocks"
}
