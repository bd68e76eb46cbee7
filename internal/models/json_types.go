package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/dujiao-next/commerce-ledger/internal/pricing"
)

// VariationList 商品规格列表（JSON 列，保持声明顺序）
type VariationList []pricing.Variation

// Value 实现 driver.Valuer 接口
func (v VariationList) Value() (driver.Value, error) {
	if v == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]pricing.Variation(v))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (v *VariationList) Scan(value interface{}) error {
	var list []pricing.Variation
	if err := scanJSONColumn(value, &list); err != nil {
		return err
	}
	*v = list
	return nil
}

// PromotionList 商品促销列表（JSON 列，保持声明顺序，先匹配先生效）
type PromotionList []pricing.Promotion

// Value 实现 driver.Valuer 接口
func (p PromotionList) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	raw, err := json.Marshal([]pricing.Promotion(p))
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan 实现 sql.Scanner 接口
func (p *PromotionList) Scan(value interface{}) error {
	var list []pricing.Promotion
	if err := scanJSONColumn(value, &list); err != nil {
		return err
	}
	*p = list
	return nil
}

// scanJSONColumn sqlite 返回 string，postgres 返回 []byte
func scanJSONColumn(value interface{}, dest interface{}) error {
	var raw []byte
	switch typed := value.(type) {
	case nil:
		return nil
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("unsupported json column type %T", value)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}
