package models

import "time"

// TokenTransaction 代币流水表（只追加，余额为金额之和）
type TokenTransaction struct {
	ID          uint      `gorm:"primarykey" json:"id"`                                     // 主键
	UserID      uint      `gorm:"not null;index" json:"user_id"`                            // 用户ID
	Amount      int64     `gorm:"not null" json:"amount"`                                   // 变动数量（正为入账，负为扣减）
	Type        string    `gorm:"type:varchar(32);not null;index" json:"type"`              // 类型
	Reference   *string   `gorm:"type:varchar(191);uniqueIndex" json:"reference,omitempty"` // 幂等参考号
	Description string    `gorm:"type:varchar(500)" json:"description"`                     // 描述
	OperatorID  *uint     `gorm:"index" json:"operator_id,omitempty"`                       // 操作管理员
	CreatedAt   time.Time `gorm:"index" json:"created_at"`                                  // 创建时间
}

// TableName 指定表名
func (TokenTransaction) TableName() string {
	return "token_transactions"
}
