package models

import (
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/pricing"
)

// Product 商品表（库存与成本不落列，由库存流水折叠得出）
type Product struct {
	ID                uint          `gorm:"primarykey" json:"id"`                                                         // 主键
	Name              string        `gorm:"type:varchar(255);not null" json:"name"`                                       // 名称
	BasePrice         *Money        `gorm:"type:decimal(20,2)" json:"base_price"`                                         // 基础价（为空表示询价）
	ShippingFee       Money         `gorm:"type:decimal(20,2);not null;default:0" json:"shipping_fee"`                    // 运费
	Variations        VariationList `gorm:"type:json" json:"variations"`                                                  // 规格定义
	Promotions        PromotionList `gorm:"type:json" json:"promotions"`                                                  // 促销规则（按顺序匹配）
	TrackStock        bool          `gorm:"not null" json:"track_stock"`                                                  // 是否追踪库存
	ValuationMethod   string        `gorm:"type:varchar(20);not null;default:'weighted_average'" json:"valuation_method"` // 计价方式
	LowStockThreshold int           `gorm:"not null;default:0" json:"low_stock_threshold"`                                // 低库存阈值
	IsActive          bool          `gorm:"not null;index" json:"is_active"`                                              // 是否上架
	CreatedAt         time.Time     `gorm:"index" json:"created_at"`                                                      // 创建时间
	UpdatedAt         time.Time     `json:"updated_at"`                                                                   // 更新时间
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// PricingInput 转为计价快照
func (p *Product) PricingInput() pricing.Product {
	return pricing.Product{
		BasePrice:   p.BasePrice.DecimalPtr(),
		ShippingFee: p.ShippingFee.Decimal,
		Variations:  []pricing.Variation(p.Variations),
		Promotions:  []pricing.Promotion(p.Promotions),
	}
}
