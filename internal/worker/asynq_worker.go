package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/provider"
	"github.com/dujiao-next/commerce-ledger/internal/queue"
	"github.com/dujiao-next/commerce-ledger/internal/service"
	"github.com/dujiao-next/commerce-ledger/internal/valuation"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskStockLevelAlert, c.handleStockLevelAlert)
	mux.HandleFunc(queue.TaskTokenRequestReviewed, c.handleTokenRequestReviewed)
}

// handleStockLevelAlert 处理库存预警：以当前库存为准，已补货的预警直接跳过
func (c *Consumer) handleStockLevelAlert(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_stock_alert_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.StockLevelAlertPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_stock_alert_unmarshal_failed", "error", err)
		return err
	}
	if payload.ProductID == 0 {
		logger.Debugw("worker_stock_alert_skip_invalid_payload", "product_id", payload.ProductID)
		return nil
	}
	if c.StockService == nil {
		logger.Warnw("worker_stock_alert_skip_stock_service_nil", "product_id", payload.ProductID)
		return nil
	}
	state, err := c.StockService.GetStockState(ctx, payload.ProductID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			logger.Debugw("worker_stock_alert_skip_product_not_found", "product_id", payload.ProductID)
			return nil
		case errors.Is(err, service.ErrStockNotTracked):
			logger.Debugw("worker_stock_alert_skip_not_tracked", "product_id", payload.ProductID)
			return nil
		default:
			logger.Warnw("worker_stock_alert_fetch_state_failed", "product_id", payload.ProductID, "error", err)
			return err
		}
	}
	if !valuation.StockStatus(state.Status).NeedsAlert() {
		logger.Debugw("worker_stock_alert_skip_recovered",
			"product_id", payload.ProductID,
			"movement_id", payload.MovementID,
			"status", state.Status,
		)
		return nil
	}
	logger.Warnw("stock_level_alert",
		"product_id", state.ProductID,
		"movement_id", payload.MovementID,
		"status", state.Status,
		"quantity", state.Quantity,
		"threshold", state.LowStockThreshold,
	)
	return nil
}

// handleTokenRequestReviewed 处理代币申请审核结果通知
func (c *Consumer) handleTokenRequestReviewed(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_token_request_reviewed_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.TokenRequestReviewedPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_token_request_reviewed_unmarshal_failed", "error", err)
		return err
	}
	if payload.RequestID == 0 {
		logger.Debugw("worker_token_request_reviewed_skip_invalid_payload", "request_id", payload.RequestID)
		return nil
	}
	if c.TokenService == nil {
		logger.Warnw("worker_token_request_reviewed_skip_token_service_nil", "request_id", payload.RequestID)
		return nil
	}
	req, err := c.TokenService.GetPurchaseRequest(payload.RequestID)
	if err != nil {
		if errors.Is(err, service.ErrPurchaseRequestNotFound) {
			logger.Debugw("worker_token_request_reviewed_skip_not_found", "request_id", payload.RequestID)
			return nil
		}
		logger.Warnw("worker_token_request_reviewed_fetch_failed", "request_id", payload.RequestID, "error", err)
		return err
	}
	if req.Status == constants.TokenRequestStatusPending {
		logger.Debugw("worker_token_request_reviewed_skip_pending", "request_id", req.ID)
		return nil
	}
	balance, err := c.TokenService.GetBalance(req.UserID)
	if err != nil {
		logger.Warnw("worker_token_request_reviewed_balance_failed", "request_id", req.ID, "user_id", req.UserID, "error", err)
		return err
	}
	logger.Infow("token_request_review_notified",
		"request_id", req.ID,
		"request_no", req.RequestNo,
		"user_id", req.UserID,
		"status", req.Status,
		"credited_tokens", payload.CreditedTokens,
		"balance", balance,
	)
	return nil
}

// VerifyLedgers 校验全部库存账本并记录漂移，返回漂移的商品数
func (c *Consumer) VerifyLedgers(ctx context.Context) (int, error) {
	if c == nil || c.StockService == nil {
		return 0, nil
	}
	// 单个商品的漂移已在 VerifyLedger 中记录
	drifted, err := c.StockService.VerifyAll(ctx)
	if err != nil {
		return len(drifted), err
	}
	logger.Infow("stock_ledger_verified", "drifted_products", len(drifted))
	return len(drifted), nil
}
