package pricing

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func sizeVariation() Variation {
	return Variation{
		Name: "Size",
		Type: VariationTypeText,
		Options: []VariationOption{
			{Value: "M", PriceAdjustment: dec("0")},
			{Value: "L", PriceAdjustment: dec("150")},
			{Value: "XL", PriceAdjustment: dec("300")},
		},
	}
}

func colorVariation() Variation {
	return Variation{
		Name: "Color",
		Type: VariationTypeColor,
		Options: []VariationOption{
			{Value: "Red", PriceAdjustment: dec("50"), Color: "#ff0000"},
			{Value: "Black", PriceAdjustment: dec("0"), Color: "#000000"},
		},
	}
}

func TestResolveVariantPrice(t *testing.T) {
	variations := []Variation{sizeVariation(), colorVariation()}

	require.True(t, dec("350").Equal(ResolveVariantPrice(variations, map[string]string{"Size": "XL", "Color": "Red"})))
	// 未选择时取第一个选项
	require.True(t, dec("50").Equal(ResolveVariantPrice(variations, nil)))
	// 选择值不存在时该规格按 0，未知规格忽略
	require.True(t, dec("50").Equal(ResolveVariantPrice(variations, map[string]string{"Size": "XXL", "Material": "silk"})))
	// 无选项的规格贡献 0
	empty := Variation{Name: "Engraving", Type: VariationTypeText}
	require.True(t, decimal.Zero.Equal(ResolveVariantPrice([]Variation{empty}, map[string]string{"Engraving": "yes"})))
}

func TestResolveSelectionsRejectsUnknownValue(t *testing.T) {
	variations := []Variation{sizeVariation()}

	chosen, err := ResolveSelections(variations, map[string]string{"Size": " L "})
	require.NoError(t, err)
	require.Len(t, chosen, 1)
	require.Equal(t, "L", chosen[0].Value)
	require.False(t, chosen[0].Defaulted)

	_, err = ResolveSelections(variations, map[string]string{"Size": "XXL"})
	var selErr *SelectionError
	require.ErrorAs(t, err, &selErr)
	require.Equal(t, "Size", selErr.Variation)
}

func TestEvaluateBuyXGetY(t *testing.T) {
	promo, err := NewBuyXGetY(2, 1)
	require.NoError(t, err)

	eval := EvaluatePromotion([]Promotion{promo}, 3, dec("1000"))
	require.NotNil(t, eval.Applied)
	require.Equal(t, 0, eval.AppliedIndex)
	require.True(t, dec("1000").Equal(eval.Savings))
	require.True(t, dec("3000").Equal(eval.RawTotal))

	eval = EvaluatePromotion([]Promotion{promo}, 7, dec("1000"))
	require.True(t, dec("2000").Equal(eval.Savings))
}

func TestEvaluateFirstMatchWins(t *testing.T) {
	bulk, err := NewBuyXDiscount(5, dec("50"))
	require.NoError(t, err)
	pct, err := NewPercentageDiscount(dec("10"))
	require.NoError(t, err)
	fixed, err := NewFixedDiscount(dec("100000"))
	require.NoError(t, err)

	eval := EvaluatePromotion([]Promotion{bulk, pct, fixed}, 2, dec("100"))
	require.Equal(t, 1, eval.AppliedIndex)
	require.True(t, dec("20").Equal(eval.Savings))

	eval = EvaluatePromotion([]Promotion{bulk, pct, fixed}, 5, dec("100"))
	require.Equal(t, 0, eval.AppliedIndex)
	require.True(t, dec("250").Equal(eval.Savings))

	// 固定立减不超过原价
	eval = EvaluatePromotion([]Promotion{fixed}, 2, dec("100"))
	require.True(t, dec("200").Equal(eval.Savings))
}

func TestEvaluateSkipsInvalidPromotion(t *testing.T) {
	invalid := Promotion{Type: PromotionPercentageDiscount, DiscountPercent: dec("150")}
	fixed := Promotion{Type: PromotionFixedDiscount, FixedAmount: dec("30")}

	eval := EvaluatePromotion([]Promotion{invalid, fixed}, 1, dec("100"))
	require.Equal(t, 1, eval.AppliedIndex)
	require.True(t, dec("30").Equal(eval.Savings))
}

func TestEvaluateSavingsBounds(t *testing.T) {
	promos := [][]Promotion{
		{{Type: PromotionBuyXGetY, BuyQuantity: 1, GetQuantity: 1}},
		{{Type: PromotionBuyXDiscount, BuyQuantity: 2, DiscountPercent: dec("100")}},
		{{Type: PromotionPercentageDiscount, DiscountPercent: dec("33.33")}},
		{{Type: PromotionFixedDiscount, FixedAmount: dec("99999")}},
		nil,
	}
	prices := []string{"0", "0.01", "19.99", "1000"}
	for _, list := range promos {
		for _, price := range prices {
			for q := 1; q <= 12; q++ {
				eval := EvaluatePromotion(list, q, dec(price))
				require.False(t, eval.Savings.IsNegative())
				require.True(t, eval.Savings.LessThanOrEqual(eval.RawTotal), "savings %s > raw %s", eval.Savings, eval.RawTotal)
			}
		}
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	promo, err := NewBuyXDiscount(3, dec("12.5"))
	require.NoError(t, err)
	list := []Promotion{promo}

	first := EvaluatePromotion(list, 4, dec("333.33"))
	for i := 0; i < 20; i++ {
		again := EvaluatePromotion(list, 4, dec("333.33"))
		require.True(t, first.Savings.Equal(again.Savings))
		require.Equal(t, first.AppliedIndex, again.AppliedIndex)
	}
}

func TestEvaluateHint(t *testing.T) {
	promo, err := NewBuyXGetY(2, 1)
	require.NoError(t, err)

	eval := EvaluatePromotion([]Promotion{promo}, 2, dec("1000"))
	require.Nil(t, eval.Applied)
	require.NotNil(t, eval.Hint)
	require.Equal(t, 1, eval.Hint.MissingQuantity)
	require.Equal(t, "buy 1 more to get 1 free", eval.Hint.Message)

	// 差两件时不提示
	eval = EvaluatePromotion([]Promotion{promo}, 1, dec("1000"))
	require.Nil(t, eval.Hint)

	bulk, err := NewBuyXDiscount(5, dec("20"))
	require.NoError(t, err)
	eval = EvaluatePromotion([]Promotion{bulk}, 4, dec("10"))
	require.NotNil(t, eval.Hint)
	require.Equal(t, "buy 1 more to unlock 20% off", eval.Hint.Message)
}

func TestValidatePromotion(t *testing.T) {
	_, err := NewBuyXGetY(0, 1)
	require.Error(t, err)
	_, err = NewPercentageDiscount(dec("0"))
	require.Error(t, err)
	_, err = NewPercentageDiscount(dec("100"))
	require.NoError(t, err)
	_, err = NewFixedDiscount(dec("-5"))
	require.Error(t, err)
	require.Error(t, ValidatePromotion(Promotion{Type: "bogus"}))
	_, err = NewBuyXGetY(math.MaxInt, math.MaxInt)
	require.Error(t, err)
	_, err = NewBuyXGetY(2, maxPromotionQuantity+1)
	require.Error(t, err)
	_, err = NewBuyXGetY(maxPromotionQuantity, maxPromotionQuantity)
	require.NoError(t, err)

	// 超限规则在计算时被跳过，不会以零优惠被选中
	oversized := Promotion{Type: PromotionBuyXGetY, BuyQuantity: math.MaxInt, GetQuantity: math.MaxInt}
	eval := EvaluatePromotion([]Promotion{oversized}, 3, dec("10"))
	require.Nil(t, eval.Applied)
	require.True(t, eval.Savings.IsZero())

	err = ValidatePromotions([]Promotion{
		{Type: PromotionFixedDiscount, FixedAmount: dec("5")},
		{Type: PromotionBuyXDiscount, BuyQuantity: 2, DiscountPercent: dec("101")},
	})
	require.ErrorContains(t, err, "promotions[1]")
}

func TestValidateVariations(t *testing.T) {
	require.NoError(t, ValidateVariations([]Variation{sizeVariation(), colorVariation()}))
	require.Error(t, ValidateVariations([]Variation{sizeVariation(), sizeVariation()}))
	require.Error(t, ValidateVariations([]Variation{{Name: "Size", Type: VariationTypeText}}))
}

func TestComputePricingScenarios(t *testing.T) {
	buy2get1, err := NewBuyXGetY(2, 1)
	require.NoError(t, err)
	quote, err := ComputePricing(Product{BasePrice: decPtr("1000"), Promotions: []Promotion{buy2get1}}, nil, 3)
	require.NoError(t, err)
	require.True(t, dec("1000").Equal(quote.Savings))
	require.True(t, dec("2000").Equal(quote.Total))

	tenPct, err := NewPercentageDiscount(dec("10"))
	require.NoError(t, err)
	quote, err = ComputePricing(Product{
		BasePrice:   decPtr("2500"),
		ShippingFee: dec("300"),
		Promotions:  []Promotion{tenPct},
	}, nil, 2)
	require.NoError(t, err)
	require.True(t, dec("5000").Equal(quote.Subtotal))
	require.True(t, dec("500").Equal(quote.Savings))
	require.True(t, dec("4800").Equal(quote.Total))
}

func TestComputePricingWithVariations(t *testing.T) {
	product := Product{
		BasePrice:  decPtr("1200"),
		Variations: []Variation{sizeVariation(), colorVariation()},
	}
	quote, err := ComputePricing(product, map[string]string{"Size": "L", "Color": "Black"}, 2)
	require.NoError(t, err)
	require.True(t, dec("1350").Equal(quote.UnitPrice))
	require.True(t, dec("2700").Equal(quote.Total))
	require.Len(t, quote.Selections, 2)
	require.Nil(t, quote.Promotion)
	require.Equal(t, -1, quote.PromotionIdx)
}

func TestComputePricingErrors(t *testing.T) {
	_, err := ComputePricing(Product{}, nil, 1)
	require.ErrorIs(t, err, ErrPriceUnavailable)

	_, err = ComputePricing(Product{BasePrice: decPtr("10")}, nil, 0)
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = ComputePricing(Product{BasePrice: decPtr("10"), Variations: []Variation{sizeVariation()}}, map[string]string{"Size": "S"}, 1)
	var selErr *SelectionError
	require.ErrorAs(t, err, &selErr)
}

func TestComputePricingClampsNegativeUnitPrice(t *testing.T) {
	discounted := Variation{
		Name:    "Bundle",
		Type:    VariationTypeText,
		Options: []VariationOption{{Value: "clearance", PriceAdjustment: dec("-500")}},
	}
	quote, err := ComputePricing(Product{BasePrice: decPtr("100"), ShippingFee: dec("20"), Variations: []Variation{discounted}}, nil, 3)
	require.NoError(t, err)
	require.True(t, decimal.Zero.Equal(quote.UnitPrice))
	require.True(t, dec("20").Equal(quote.Total))
}
