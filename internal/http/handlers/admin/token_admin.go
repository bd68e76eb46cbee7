package admin

import (
	"sort"
	"strconv"
	"strings"

	"github.com/dujiao-next/commerce-ledger/internal/constants"
	handlershared "github.com/dujiao-next/commerce-ledger/internal/http/handlers/shared"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"github.com/gin-gonic/gin"
)

// ReviewTokenRequestRequest 审核代币购买申请请求
type ReviewTokenRequestRequest struct {
	Action string `json:"action" binding:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

// AdjustUserTokensRequest 管理员调整代币请求（amount 可为负）
type AdjustUserTokensRequest struct {
	Amount      int64  `json:"amount" binding:"required"`
	Description string `json:"description" binding:"required"`
	Reference   string `json:"reference"`
}

// GetTokenRequests 代币购买申请列表
func (h *Handler) GetTokenRequests(c *gin.Context) {
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
	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	switch status {
	case "", constants.TokenRequestStatusPending, constants.TokenRequestStatusApproved, constants.TokenRequestStatusRejected:
	default:
		response.BadRequest(c, "status is invalid")
		return
	}
	var userID uint
	if raw := strings.TrimSpace(c.Query("user_id")); raw != "" {
		parsed, ok := parseUintQuery(raw)
		if !ok {
			response.BadRequest(c, "user_id is invalid")
			return
		}
		userID = parsed
	}
	page, pageSize := handlershared.QueryPagination(c)
	requests, total, err := h.TokenService.ListPurchaseRequests(repository.TokenPurchaseRequestListFilter{
		Page:        page,
		PageSize:    pageSize,
		UserID:      userID,
		Status:      status,
		RequestNo:   strings.TrimSpace(c.Query("request_no")),
		CreatedFrom: createdFrom,
		CreatedTo:   createdTo,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, requests, response.NewPagination(page, pageSize, total))
}

// GetTokenRequest 代币购买申请详情
func (h *Handler) GetTokenRequest(c *gin.Context) {
	requestID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "request id is invalid")
		return
	}
	req, err := h.TokenService.GetPurchaseRequest(requestID)
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, req)
}

// ReviewTokenRequest 审核代币购买申请
func (h *Handler) ReviewTokenRequest(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	requestID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "request id is invalid")
		return
	}
	var req ReviewTokenRequestRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	reviewed, err := h.TokenService.ReviewPurchaseRequest(service.ReviewPurchaseRequestInput{
		RequestID: requestID,
		Action:    req.Action,
		Reason:    req.Reason,
		AdminID:   adminID,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, reviewed)
}

// AdjustUserTokens 管理员手动调整用户代币
func (h *Handler) AdjustUserTokens(c *gin.Context) {
	adminID, ok := getAdminID(c)
	if !ok {
		return
	}
	userID, ok := handlershared.ParsePathUint(c, "id")
	if !ok {
		response.BadRequest(c, "user id is invalid")
		return
	}
	var req AdjustUserTokensRequest
	if !handlershared.BindJSON(c, &req) {
		return
	}
	balance, err := h.TokenService.AdminAdjustTokens(service.AdminAdjustTokensInput{
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		AdminID:     adminID,
		Reference:   req.Reference,
	})
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user_id": userID,
		"balance": balance,
	})
}

// GetNegativeBalances 余额为负的用户（管理员扣减导致）
func (h *Handler) GetNegativeBalances(c *gin.Context) {
	balances, err := h.TokenService.ListNegativeBalances()
	if err != nil {
		handlershared.RespondServiceError(c, err)
		return
	}
	userIDs := make([]uint, 0, len(balances))
	for userID := range balances {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })
	items := make([]gin.H, 0, len(userIDs))
	for _, userID := range userIDs {
		items = append(items, gin.H{"user_id": userID, "balance": balances[userID]})
	}
	response.Success(c, items)
}

func parseUintQuery(raw string) (uint, bool) {
	parsed, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || parsed == 0 {
		return 0, false
	}
	return uint(parsed), true
}
