package models

import "time"

// TokenPurchaseRequest 代币购买申请表（线下付款后人工审核）
type TokenPurchaseRequest struct {
	ID               uint       `gorm:"primarykey" json:"id"`                                    // 主键
	RequestNo        string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"request_no"` // 申请单号
	UserID           uint       `gorm:"not null;index" json:"user_id"`                           // 用户ID
	PackID           string     `gorm:"type:varchar(64);not null" json:"pack_id"`                // 代币包ID
	Tokens           int64      `gorm:"not null" json:"tokens"`                                  // 代币包基础数量
	PriceDA          Money      `gorm:"type:decimal(20,2);not null;default:0" json:"price_da"`   // 代币包价格
	PaymentProofRef  string     `gorm:"type:varchar(500);not null" json:"payment_proof_ref"`     // 付款凭证引用
	Status           string     `gorm:"type:varchar(20);not null;index" json:"status"`           // 状态
	CreditedTokens   int64      `gorm:"not null;default:0" json:"credited_tokens"`               // 实际入账数量
	PlanTierAtReview string     `gorm:"type:varchar(20)" json:"plan_tier_at_review"`             // 审核时套餐
	RejectionReason  string     `gorm:"type:varchar(500)" json:"rejection_reason"`               // 驳回原因
	ReviewedBy       *uint      `gorm:"index" json:"reviewed_by,omitempty"`                      // 审核管理员
	PendingSlot      *uint      `gorm:"uniqueIndex" json:"-"`                                    // 待审核占位（每个用户最多一条待审核）
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`                                 // 创建时间
	ReviewedAt       *time.Time `json:"reviewed_at"`                                             // 审核时间
}

// TableName 指定表名
func (TokenPurchaseRequest) TableName() string {
	return "token_purchase_requests"
}
