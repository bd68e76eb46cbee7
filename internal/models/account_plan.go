package models

import (
	"strings"
	"time"
)

// AccountPlan 用户订阅套餐（由订阅模块写入，本服务只读）
type AccountPlan struct {
	ID        uint       `gorm:"primarykey" json:"id"`                                 // 主键
	UserID    uint       `gorm:"not null;uniqueIndex" json:"user_id"`                  // 用户ID
	Tier      string     `gorm:"type:varchar(20);not null;default:'free'" json:"tier"` // 套餐等级
	ExpiresAt *time.Time `json:"expires_at"`                                           // 到期时间（为空表示长期）
	CreatedAt time.Time  `json:"created_at"`                                           // 创建时间
	UpdatedAt time.Time  `json:"updated_at"`                                           // 更新时间
}

// TableName 指定表名
func (AccountPlan) TableName() string {
	return "account_plans"
}

// ActiveTier 返回指定时刻生效的套餐等级，过期视为空
func (p *AccountPlan) ActiveTier(now time.Time) string {
	if p == nil {
		return ""
	}
	if p.ExpiresAt != nil && !p.ExpiresAt.After(now) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(p.Tier))
}
