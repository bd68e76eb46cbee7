package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PromotionType 促销类型
type PromotionType string

const (
	PromotionBuyXGetY           PromotionType = "buy_x_get_y"
	PromotionBuyXDiscount       PromotionType = "buy_x_discount"
	PromotionPercentageDiscount PromotionType = "percentage_discount"
	PromotionFixedDiscount      PromotionType = "fixed_discount"
)

var hundred = decimal.NewFromInt(100)

// Promotion 商品促销规则（按 Type 区分的变体，字段随类型不同而生效）
type Promotion struct {
	Type            PromotionType   `json:"type" validate:"required,oneof=buy_x_get_y buy_x_discount percentage_discount fixed_discount"`
	Label           string          `json:"label,omitempty"`
	BuyQuantity     int             `json:"buy_quantity,omitempty"`
	GetQuantity     int             `json:"get_quantity,omitempty"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	FixedAmount     decimal.Decimal `json:"fixed_amount"`
}

// NewBuyXGetY 买 X 送 Y
func NewBuyXGetY(buyQty, getQty int) (Promotion, error) {
	p := Promotion{Type: PromotionBuyXGetY, BuyQuantity: buyQty, GetQuantity: getQty}
	return p, ValidatePromotion(p)
}

// NewBuyXDiscount 满 X 件打折
func NewBuyXDiscount(buyQty int, percent decimal.Decimal) (Promotion, error) {
	p := Promotion{Type: PromotionBuyXDiscount, BuyQuantity: buyQty, DiscountPercent: percent}
	return p, ValidatePromotion(p)
}

// NewPercentageDiscount 百分比折扣
func NewPercentageDiscount(percent decimal.Decimal) (Promotion, error) {
	p := Promotion{Type: PromotionPercentageDiscount, DiscountPercent: percent}
	return p, ValidatePromotion(p)
}

// NewFixedDiscount 固定金额立减
func NewFixedDiscount(amount decimal.Decimal) (Promotion, error) {
	p := Promotion{Type: PromotionFixedDiscount, FixedAmount: amount}
	return p, ValidatePromotion(p)
}

// Hint 未命中促销时，距离下一档门槛的提示
type Hint struct {
	PromotionIndex  int       `json:"promotion_index"`
	Promotion       Promotion `json:"promotion"`
	MissingQuantity int       `json:"missing_quantity"`
	Message         string    `json:"message"`
}

// Evaluation 促销计算结果
type Evaluation struct {
	Applied      *Promotion      `json:"applied,omitempty"`
	AppliedIndex int             `json:"applied_index"`
	RawTotal     decimal.Decimal `json:"raw_total"`
	Savings      decimal.Decimal `json:"savings"`
	Hint         *Hint           `json:"hint,omitempty"`
}

// EvaluatePromotion 按声明顺序匹配第一条可用促销（不叠加），返回优惠金额。
// 纯函数，可并发调用。
func EvaluatePromotion(promotions []Promotion, quantity int, unitPrice decimal.Decimal) Evaluation {
	result := Evaluation{AppliedIndex: -1, RawTotal: decimal.Zero, Savings: decimal.Zero}
	if quantity <= 0 || unitPrice.IsNegative() {
		return result
	}
	raw := unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
	result.RawTotal = raw

	for i := range promotions {
		promotion := promotions[i]
		if checkPromotionShape(promotion) != nil {
			continue
		}
		savings, ok := promotionSavings(promotion, quantity, unitPrice, raw)
		if !ok {
			continue
		}
		result.Applied = &promotion
		result.AppliedIndex = i
		result.Savings = clampSavings(savings, raw)
		return result
	}

	result.Hint = nearestHint(promotions, quantity)
	return result
}

func promotionSavings(p Promotion, quantity int, unitPrice, raw decimal.Decimal) (decimal.Decimal, bool) {
	switch p.Type {
	case PromotionBuyXGetY:
		group := p.BuyQuantity + p.GetQuantity
		if quantity < group {
			return decimal.Zero, false
		}
		free := (quantity / group) * p.GetQuantity
		return unitPrice.Mul(decimal.NewFromInt(int64(free))), true
	case PromotionBuyXDiscount:
		if quantity < p.BuyQuantity {
			return decimal.Zero, false
		}
		return raw.Mul(p.DiscountPercent).Div(hundred), true
	case PromotionPercentageDiscount:
		return raw.Mul(p.DiscountPercent).Div(hundred), true
	case PromotionFixedDiscount:
		return decimal.Min(p.FixedAmount, raw), true
	default:
		return decimal.Zero, false
	}
}

func clampSavings(savings, raw decimal.Decimal) decimal.Decimal {
	savings = savings.Round(2)
	if savings.IsNegative() {
		return decimal.Zero
	}
	if savings.GreaterThan(raw) {
		return raw
	}
	return savings
}

func nearestHint(promotions []Promotion, quantity int) *Hint {
	for i, p := range promotions {
		if checkPromotionShape(p) != nil {
			continue
		}
		var threshold int
		switch p.Type {
		case PromotionBuyXGetY:
			threshold = p.BuyQuantity + p.GetQuantity
		case PromotionBuyXDiscount:
			threshold = p.BuyQuantity
		default:
			continue
		}
		missing := threshold - quantity
		if missing != 1 {
			continue
		}
		return &Hint{
			PromotionIndex:  i,
			Promotion:       p,
			MissingQuantity: missing,
			Message:         hintMessage(p, missing),
		}
	}
	return nil
}

func hintMessage(p Promotion, missing int) string {
	switch p.Type {
	case PromotionBuyXGetY:
		return fmt.Sprintf("buy %d more to get %d free", missing, p.GetQuantity)
	case PromotionBuyXDiscount:
		return fmt.Sprintf("buy %d more to unlock %s%% off", missing, p.DiscountPercent.String())
	default:
		return ""
	}
}
