package public

import (
	"strings"

	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// SubmitPurchaseRequestRequest 提交代币购买申请请求
type SubmitPurchaseRequestRequest struct {
	PackID          string `json:"pack_id" binding:"required"`
	PaymentProofRef string `json:"payment_proof_ref" binding:"required"`
}

// GetTokenBalance 查询当前用户代币余额
func (h *Handler) GetTokenBalance(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	balance, err := h.TokenService.GetBalance(userID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// ListTokenTransactions 分页查询当前用户代币流水
func (h *Handler) ListTokenTransactions(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := handlershared.QueryPagination(c)
	transactions, total, err := h.TokenService.ListTransactions(repository.TokenTransactionListFilter{
		Page:     page,
		PageSize: pageSize,
		UserID:   userID,
		Type:     strings.TrimSpace(c.Query("type")),
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, transactions, response.NewPagination(page, pageSize, total))
}

// UnlockOrder 使用代币解锁订单（已解锁或套餐包含权限时不扣费）
func (h *Handler) UnlockOrder(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	orderID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "order id is invalid")
		return
	}
	fullAccess, err := h.TokenService.PlanGrantsFullAccess(userID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	result, err := h.TokenService.UnlockOrder(service.UnlockOrderInput{
		UserID:               userID,
		OrderID:              orderID,
		PlanGrantsFullAccess: fullAccess,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// SubmitPurchaseRequest 提交代币购买申请
func (h *Handler) SubmitPurchaseRequest(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req SubmitPurchaseRequestRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	created, err := h.TokenService.SubmitPurchaseRequest(service.SubmitPurchaseRequestInput{
		UserID:          userID,
		PackID:          req.PackID,
		PaymentProofRef: req.PaymentProofRef,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, created)
}

// GetOrderUnlockStatus 查询订单是否已解锁
func (h *Handler) GetOrderUnlockStatus(c *gin.Context) {
	orderID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "order id is invalid")
		return
	}
	unlocked, err := h.TokenService.IsOrderUnlocked(orderID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"order_id": orderID,
		"unlocked": unlocked,
	})
}
