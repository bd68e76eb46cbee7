package models

import "time"

// TokenWallet 代币钱包行，仅作为用户维度的行锁锚点，不存余额
type TokenWallet struct {
	ID        uint      `gorm:"primarykey" json:"id"`                // 主键
	UserID    uint      `gorm:"not null;uniqueIndex" json:"user_id"` // 用户ID
	CreatedAt time.Time `json:"created_at"`                          // 创建时间
	UpdatedAt time.Time `json:"updated_at"`                          // 更新时间
}

// TableName 指定表名
func (TokenWallet) TableName() string {
	return "token_wallets"
}
