package service

import (
	"github.com/dujiao-next/commerce-ledger/internal/metrics"
	"github.com/dujiao-next/commerce-ledger/internal/pricing"
	"github.com/dujiao-next/commerce-ledger/internal/repository"

	"github.com/shopspring/decimal"
)

// PricingService 订单行计价服务
type PricingService struct {
	productRepo repository.ProductRepository
}

// EvaluatePromotionsInput 促销试算输入
type EvaluatePromotionsInput struct {
	Promotions []pricing.Promotion
	Quantity   int
	UnitPrice  decimal.Decimal
}

// NewPricingService 创建计价服务
func NewPricingService(productRepo repository.ProductRepository) *PricingService {
	return &PricingService{productRepo: productRepo}
}

// ComputePricing 按商品当前规格、促销与运费计算订单行报价
func (s *PricingService) ComputePricing(productID uint, selections map[string]string, quantity int) (*pricing.Quote, error) {
	if productID == 0 {
		return nil, newValidationError("product_id", "is required")
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, storageError(err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	quote, err := pricing.ComputePricing(product.PricingInput(), selections, quantity)
	if err != nil {
		return nil, translatePricingError(err)
	}
	metrics.PricingQuotesTotal.WithLabelValues(quoteOutcome(quote.Promotion != nil, quote.Hint != nil)).Inc()
	return quote, nil
}

// EvaluatePromotions 对给定促销列表试算（后台编辑促销时预览）
func (s *PricingService) EvaluatePromotions(input EvaluatePromotionsInput) (*pricing.Evaluation, error) {
	if input.Quantity <= 0 {
		return nil, newValidationError("quantity", "must be positive")
	}
	if input.UnitPrice.IsNegative() {
		return nil, newValidationError("unit_price", "must not be negative")
	}
	if err := pricing.ValidatePromotions(input.Promotions); err != nil {
		return nil, newValidationError("promotions", err.Error())
	}
	eval := pricing.EvaluatePromotion(input.Promotions, input.Quantity, input.UnitPrice)
	return &eval, nil
}

func quoteOutcome(applied, hinted bool) string {
	switch {
	case applied:
		return "applied"
	case hinted:
		return "hint"
	default:
		return "none"
	}
}
