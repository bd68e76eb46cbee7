package public

import (
	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/pricing"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PricingQuoteRequest 订单行报价请求
type PricingQuoteRequest struct {
	ProductID  uint              `json:"product_id" binding:"required"`
	Selections map[string]string `json:"selections"`
	Quantity   int               `json:"quantity" binding:"required,gt=0"`
}

// EvaluatePromotionsRequest 促销试算请求
type EvaluatePromotionsRequest struct {
	Promotions []pricing.Promotion `json:"promotions"`
	Quantity   int                 `json:"quantity" binding:"required,gt=0"`
	UnitPrice  decimal.Decimal     `json:"unit_price"`
}

// QuotePricing 计算订单行报价（规格加价 + 促销 + 运费）
func (h *Handler) QuotePricing(c *gin.Context) {
	var req PricingQuoteRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	quote, err := h.PricingService.ComputePricing(req.ProductID, req.Selections, req.Quantity)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, quote)
}

// EvaluatePromotions 按给定促销列表试算优惠
func (h *Handler) EvaluatePromotions(c *gin.Context) {
	var req EvaluatePromotionsRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	evaluation, err := h.PricingService.EvaluatePromotions(service.EvaluatePromotionsInput{
		Promotions: req.Promotions,
		Quantity:   req.Quantity,
		UnitPrice:  req.UnitPrice,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, evaluation)
}
