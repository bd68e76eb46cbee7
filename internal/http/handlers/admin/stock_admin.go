package admin

import (
	"strings"

	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AppendMovementRequest 追加库存流水请求
type AppendMovementRequest struct {
	Type      string           `json:"type" binding:"required"`
	Quantity  int64            `json:"quantity" binding:"required"`
	UnitCost  *decimal.Decimal `json:"unit_cost"`
	Note      string           `json:"note"`
	Reference string           `json:"reference"`
}

// AppendStockMovement 追加库存流水并返回最新库存状态
func (h *Handler) AppendStockMovement(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	productID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "product id is invalid")
		return
	}
	var req AppendMovementRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	snapshot, err := h.StockService.AppendMovement(c.Request.Context(), service.AppendMovementInput{
		ProductID:  productID,
		Type:       req.Type,
		Quantity:   req.Quantity,
		UnitCost:   req.UnitCost,
		Note:       req.Note,
		Reference:  req.Reference,
		OperatorID: &adminID,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, snapshot)
}

// GetStockMovements 分页查询商品库存流水
func (h *Handler) GetStockMovements(c *gin.Context) {
	productID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "product id is invalid")
		return
	}
	createdFrom, ok := handlershared.ParseQueryTime(c, "created_from")
	if !ok {
		response.BadRequest(c, "created_from is invalid")
		return
	}
	createdTo, ok := handlershared.ParseQueryTime(c, "created_to")
	if !ok {
		response.BadRequest(c, "created_to is invalid")
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	movements, total, err := h.StockService.ListMovements(repository.StockMovementListFilter{
		Page:        page,
		PageSize:    pageSize,
		ProductID:   productID,
		Type:        strings.TrimSpace(c.Query("type")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, movements, response.NewPagination(page, pageSize, total))
}

// GetStockState 管理端查询库存状态（含成本与批次）
func (h *Handler) GetStockState(c *gin.Context) {
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
	response.Success(c, state)
}

// VerifyStockLedger 重放商品库存账本并比对流水快照
func (h *Handler) VerifyStockLedger(c *gin.Context) {
	productID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "product id is invalid")
		return
	}
	report, err := h.StockService.VerifyLedger(productID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, report)
}
