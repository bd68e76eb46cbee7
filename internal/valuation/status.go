package valuation

// StockStatus 库存状态
type StockStatus string

const (
	StatusOutOfStock StockStatus = "out_of_stock"
	StatusLowStock   StockStatus = "low_stock"
	StatusInStock    StockStatus = "in_stock"
)

// Classify 按低库存阈值分类
func Classify(quantity, threshold int64) StockStatus {
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= threshold:
		return StatusLowStock
	default:
		return StatusInStock
	}
}

// NeedsAlert 是否需要库存预警
func (s StockStatus) NeedsAlert() bool {
	return s == StatusOutOfStock || s == StatusLowStock
}
