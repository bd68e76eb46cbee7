package queue

import (
	"encoding/json"

	"github.com/dujiao-next/commerce-ledger/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskStockLevelAlert 库存预警任务
	TaskStockLevelAlert = constants.TaskStockLevelAlert
	// TaskTokenRequestReviewed 代币申请审核完成任务
	TaskTokenRequestReviewed = constants.TaskTokenRequestReviewed
)

// StockLevelAlertPayload 库存预警任务载荷
type StockLevelAlertPayload struct {
	ProductID  uint   `json:"product_id"`
	MovementID uint   `json:"movement_id"`
	Quantity   int64  `json:"quantity"`
	Threshold  int    `json:"threshold"`
	Status     string `json:"status"`
}

// TokenRequestReviewedPayload 代币申请审核完成任务载荷
type TokenRequestReviewedPayload struct {
	RequestID      uint   `json:"request_id"`
	UserID         uint   `json:"user_id"`
	Status         string `json:"status"`
	CreditedTokens int64  `json:"credited_tokens"`
}

// NewStockLevelAlertTask 创建库存预警任务
func NewStockLevelAlertTask(payload StockLevelAlertPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockLevelAlert, body), nil
}

// NewTokenRequestReviewedTask 创建代币申请审核完成任务
func NewTokenRequestReviewedTask(payload TokenRequestReviewedPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTokenRequestReviewed, body), nil
}
