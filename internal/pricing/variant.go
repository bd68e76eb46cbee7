package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// VariationType 规格展示类型
type VariationType string

const (
	VariationTypeText  VariationType = "text"
	VariationTypeColor VariationType = "color"
)

// VariationOption 规格可选值
type VariationOption struct {
	Value           string          `json:"value" validate:"required"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	Color           string          `json:"color,omitempty"`
}

// Variation 商品规格（如尺码、颜色）
type Variation struct {
	Name    string            `json:"name" validate:"required"`
	Type    VariationType     `json:"type" validate:"required,oneof=text color"`
	Options []VariationOption `json:"options" validate:"required,min=1,dive"`
}

// SelectedOption 订单行上某个规格最终选中的值
type SelectedOption struct {
	Variation       string          `json:"variation"`
	Value           string          `json:"value"`
	PriceAdjustment decimal.Decimal `json:"price_adjustment"`
	Defaulted       bool            `json:"defaulted"`
}

// ResolveVariantPrice 计算规格加价总额。
// 未选择的规格默认取第一个选项；选择值不存在时该规格按 0 处理；未知规格名忽略。
func ResolveVariantPrice(variations []Variation, selections map[string]string) decimal.Decimal {
	delta := decimal.Zero
	for i := range variations {
		option, ok := pickOption(&variations[i], selections)
		if !ok {
			continue
		}
		delta = delta.Add(option.PriceAdjustment)
	}
	return delta
}

// ResolveSelections 严格解析每个规格的选中值，选择值不存在时返回校验错误。
func ResolveSelections(variations []Variation, selections map[string]string) ([]SelectedOption, error) {
	result := make([]SelectedOption, 0, len(variations))
	for i := range variations {
		variation := &variations[i]
		if len(variation.Options) == 0 {
			continue
		}
		raw, present := lookupSelection(variation.Name, selections)
		if present {
			option, ok := findOption(variation, raw)
			if !ok {
				return nil, &SelectionError{Variation: variation.Name, Value: raw}
			}
			result = append(result, SelectedOption{
				Variation:       variation.Name,
				Value:           option.Value,
				PriceAdjustment: option.PriceAdjustment,
			})
			continue
		}
		first := variation.Options[0]
		result = append(result, SelectedOption{
			Variation:       variation.Name,
			Value:           first.Value,
			PriceAdjustment: first.PriceAdjustment,
			Defaulted:       true,
		})
	}
	return result, nil
}

// SelectionError 规格选择值无效
type SelectionError struct {
	Variation string
	Value     string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("invalid option %q for variation %q", e.Value, e.Variation)
}

func pickOption(variation *Variation, selections map[string]string) (VariationOption, bool) {
	if variation == nil || len(variation.Options) == 0 {
		return VariationOption{}, false
	}
	raw, present := lookupSelection(variation.Name, selections)
	if !present {
		return variation.Options[0], true
	}
	return findOption(variation, raw)
}

func lookupSelection(name string, selections map[string]string) (string, bool) {
	if len(selections) == 0 {
		return "", false
	}
	if value, ok := selections[name]; ok {
		return strings.TrimSpace(value), true
	}
	trimmed := strings.TrimSpace(name)
	if trimmed != name {
		if value, ok := selections[trimmed]; ok {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}

func findOption(variation *Variation, value string) (VariationOption, bool) {
	for _, option := range variation.Options {
		if strings.TrimSpace(option.Value) == value {
			return option, true
		}
	}
	return VariationOption{}, false
}
