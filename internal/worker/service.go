package worker

import (
	"context"
	"errors"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/queue"

	"github.com/hibiken/asynq"
)

// Service 异步队列服务
type Service struct {
	name           string
	server         *asynq.Server
	mux            *asynq.ServeMux
	consumer       *Consumer
	verifyInterval time.Duration
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, workerCfg config.WorkerConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:           "worker",
		server:         server,
		mux:            mux,
		consumer:       consumer,
		verifyInterval: time.Duration(workerCfg.LedgerVerifyIntervalSeconds) * time.Second,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	// Server.Run 会自行等待系统信号，这里用 Start 并随 ctx 退出
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	if s.consumer != nil && s.consumer.StockService != nil && s.verifyInterval > 0 {
		go s.runLedgerVerifyLoop(ctx)
	}
	<-ctx.Done()
	return nil
}

// Stop 等待处理中的任务结束后关闭 worker
func (s *Service) Stop(_ context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	s.server.Shutdown()
	return nil
}

// runLedgerVerifyLoop 定期重放全部库存账本，发现快照漂移时告警
func (s *Service) runLedgerVerifyLoop(ctx context.Context) {
	if s == nil || s.consumer == nil || s.consumer.StockService == nil {
		return
	}
	runOnce := func() {
		if _, err := s.consumer.VerifyLedgers(ctx); err != nil {
			logger.Warnw("worker_ledger_verify_failed", "error", err)
		}
	}
	runOnce()

	ticker := time.NewTicker(s.verifyInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			runOnce()
		}
	}
}
