package pricing

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrPriceUnavailable 商品未标价（询价商品）
	ErrPriceUnavailable = errors.New("price unavailable")
	// ErrInvalidQuantity 数量必须大于 0
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// Product 计价所需的商品快照
type Product struct {
	BasePrice   *decimal.Decimal
	ShippingFee decimal.Decimal
	Variations  []Variation
	Promotions  []Promotion
}

// Quote 订单行报价
type Quote struct {
	UnitPrice    decimal.Decimal  `json:"unit_price"`
	Quantity     int              `json:"quantity"`
	Subtotal     decimal.Decimal  `json:"subtotal"`
	Savings      decimal.Decimal  `json:"savings"`
	ShippingFee  decimal.Decimal  `json:"shipping_fee"`
	Total        decimal.Decimal  `json:"total"`
	Selections   []SelectedOption `json:"selections"`
	Promotion    *Promotion       `json:"promotion,omitempty"`
	PromotionIdx int              `json:"promotion_index"`
	Hint         *Hint            `json:"hint,omitempty"`
}

// ComputePricing 组合规格加价、促销与运费，得到订单行报价。
// 单价 = 基础价 + 规格加价（不低于 0）；总价 = 小计 - 优惠 + 运费，保留两位小数且不为负。
func ComputePricing(product Product, selections map[string]string, quantity int) (*Quote, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if product.BasePrice == nil {
		return nil, ErrPriceUnavailable
	}
	chosen, err := ResolveSelections(product.Variations, selections)
	if err != nil {
		return nil, err
	}

	unitPrice := *product.BasePrice
	for _, option := range chosen {
		unitPrice = unitPrice.Add(option.PriceAdjustment)
	}
	if unitPrice.IsNegative() {
		unitPrice = decimal.Zero
	}

	shipping := product.ShippingFee
	if shipping.IsNegative() {
		shipping = decimal.Zero
	}

	eval := EvaluatePromotion(product.Promotions, quantity, unitPrice)
	total := eval.RawTotal.Sub(eval.Savings).Add(shipping).Round(2)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return &Quote{
		UnitPrice:    unitPrice.Round(2),
		Quantity:     quantity,
		Subtotal:     eval.RawTotal.Round(2),
		Savings:      eval.Savings,
		ShippingFee:  shipping.Round(2),
		Total:        total,
		Selections:   chosen,
		Promotion:    eval.Applied,
		PromotionIdx: eval.AppliedIndex,
		Hint:         eval.Hint,
	}, nil
}
