package public

import (
	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetProductStock 查询商品当前库存状态
func (h *Handler) GetProductStock(c *gin.Context) {
	productID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "product id is invalid")
		return
	}
	state, err := h.StockService.GetStockState(c.Request.Context(), productID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"product_id":          state.ProductID,
		"quantity":            state.Quantity,
		"status":              state.Status,
		"low_stock_threshold": state.LowStockThreshold,
	})
}
