package pricing

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterStructValidation(promotionStructLevel, Promotion{})
	})
	return validate
}

// ValidatePromotion 按促销类型校验必填字段
func ValidatePromotion(p Promotion) error {
	return humanize(validatorInstance().Struct(p))
}

// ValidatePromotions 校验促销列表，错误信息带下标
func ValidatePromotions(promotions []Promotion) error {
	for i, p := range promotions {
		if err := ValidatePromotion(p); err != nil {
			return fmt.Errorf("promotions[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateVariations 校验规格定义（名称唯一、至少一个选项）
func ValidateVariations(variations []Variation) error {
	seen := make(map[string]struct{}, len(variations))
	for i, v := range variations {
		if err := humanize(validatorInstance().Struct(v)); err != nil {
			return fmt.Errorf("variations[%d]: %w", i, err)
		}
		name := strings.TrimSpace(v.Name)
		if _, dup := seen[name]; dup {
			return fmt.Errorf("variations[%d]: duplicate variation name %q", i, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

func promotionStructLevel(sl validator.StructLevel) {
	p, ok := sl.Current().Interface().(Promotion)
	if !ok {
		return
	}
	if err := checkPromotionShape(p); err != nil {
		var fe *fieldErr
		if errors.As(err, &fe) {
			sl.ReportError(fe.value, fe.field, fe.field, fe.tag, "")
		}
	}
}

type fieldErr struct {
	field string
	tag   string
	value interface{}
}

func (e *fieldErr) Error() string {
	return fmt.Sprintf("%s failed %s", e.field, e.tag)
}

// checkPromotionShape 各促销变体的字段约束；Evaluate 也用它跳过非法规则
func checkPromotionShape(p Promotion) error {
	switch p.Type {
	case PromotionBuyXGetY:
		if err := checkPromotionQuantity("BuyQuantity", p.BuyQuantity); err != nil {
			return err
		}
		if err := checkPromotionQuantity("GetQuantity", p.GetQuantity); err != nil {
			return err
		}
	case PromotionBuyXDiscount:
		if err := checkPromotionQuantity("BuyQuantity", p.BuyQuantity); err != nil {
			return err
		}
		if !validPercent(p.DiscountPercent) {
			return &fieldErr{field: "DiscountPercent", tag: "percent_range", value: p.DiscountPercent.String()}
		}
	case PromotionPercentageDiscount:
		if !validPercent(p.DiscountPercent) {
			return &fieldErr{field: "DiscountPercent", tag: "percent_range", value: p.DiscountPercent.String()}
		}
	case PromotionFixedDiscount:
		if !p.FixedAmount.IsPositive() {
			return &fieldErr{field: "FixedAmount", tag: "positive", value: p.FixedAmount.String()}
		}
	default:
		return &fieldErr{field: "Type", tag: "oneof", value: string(p.Type)}
	}
	return nil
}

// maxPromotionQuantity 买赠数量上限，buy+get 不会溢出 int
const maxPromotionQuantity = 1_000_000

func checkPromotionQuantity(field string, value int) error {
	if value < 1 {
		return &fieldErr{field: field, tag: "min_1", value: value}
	}
	if value > maxPromotionQuantity {
		return &fieldErr{field: field, tag: "max", value: value}
	}
	return nil
}

func validPercent(percent decimal.Decimal) bool {
	return percent.IsPositive() && percent.LessThanOrEqual(hundred)
}

func humanize(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
	}
	return errors.New(strings.Join(parts, "; "))
}
