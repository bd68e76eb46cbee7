package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/pricing"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ProductRequest 创建/更新商品请求
type ProductRequest struct {
	Name              string              `json:"name" binding:"required"`
	BasePrice         *decimal.Decimal    `json:"base_price"`
	ShippingFee       decimal.Decimal     `json:"shipping_fee"`
	Variations        []pricing.Variation `json:"variations"`
	Promotions        []pricing.Promotion `json:"promotions"`
	TrackStock        bool                `json:"track_stock"`
	ValuationMethod   string              `json:"valuation_method"`
	LowStockThreshold int                 `json:"low_stock_threshold"`
	IsActive          *bool               `json:"is_active"`
}

func (r ProductRequest) toInput() service.CreateProductInput {
	return service.CreateProductInput{
		Name:              r.Name,
		BasePrice:         r.BasePrice,
		ShippingFee:       r.ShippingFee,
		Variations:        r.Variations,
		Promotions:        r.Promotions,
		TrackStock:        r.TrackStock,
		ValuationMethod:   r.ValuationMethod,
		LowStockThreshold: r.LowStockThreshold,
		IsActive:          r.IsActive,
	}
}

// GetAdminProducts 商品列表
func (h *Handler) GetAdminProducts(c *gin.Context) {
	page, pageSize := handlershared.QueryPagination(c)
	filter := repository.ProductListFilter{
		Page:     page,
		PageSize: pageSize,
		Search:   strings.TrimSpace(c.Query("search")),
	}
	if raw := strings.TrimSpace(c.Query("track_stock")); raw != "" {
		track := raw == "true" || raw == "1"
		filter.TrackStock = &track
	}
	products, total, err := h.ProductService.List(filter)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, products, response.NewPagination(page, pageSize, total))
}

// GetAdminProduct 商品详情
func (h *Handler) GetAdminProduct(c *gin.Context) {
	productID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "product id is invalid")
		return
	}
	product, err := h.ProductService.Get(productID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, product)
}

// CreateProduct 创建商品
func (h *Handler) CreateProduct(c *gin.Context) {
	var req ProductRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	product, err := h.ProductService.Create(req.toInput())
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, product)
}

// UpdateProduct 更新商品（已有流水时不可切换计价方式）
func (h *Handler) UpdateProduct(c *gin.Context) {
	productID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "product id is invalid")
		return
	}
	var req ProductRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	product, err := h.ProductService.Update(c.Request.Context(), productID, req.toInput())
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, product)
}
