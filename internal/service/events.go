package service

import "github.com/dujiao-next/commerce-ledger/internal/queue"

// LedgerEventPublisher 账本事件异步投递（*queue.Client 实现）
type LedgerEventPublisher interface {
	EnqueueStockLevelAlert(payload queue.StockLevelAlertPayload) error
	EnqueueTokenRequestReviewed(payload queue.TokenRequestReviewedPayload) error
}
