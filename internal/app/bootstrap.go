package app

import (
	"errors"

	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/provider"
	"github.com/dujiao-next/commerce-ledger/internal/router"
	"github.com/dujiao-next/commerce-ledger/internal/worker"
)

// BuildRunner 构建服务运行器，返回的容器需在退出时 Close
func BuildRunner(cfg *config.Config, mode string) (*Runner, *provider.Container, error) {
	if cfg == nil {
		return nil, nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		addr := cfg.Server.Host + ":" + cfg.Server.Port
		httpService := NewHTTPService(addr, engine, cfg.Server)
		services = append(services, httpService)
	}

	// 初始化 Worker 服务
	// all 模式下队列关闭时仅启动 HTTP，事件投递随之静默跳过
	if mode == ModeWorker || (mode == ModeAll && cfg.Queue.Enabled) {
		consumer := worker.NewConsumer(container)
		workerService, err := worker.NewService(&cfg.Queue, cfg.Worker, consumer)
		if err != nil {
			_ = container.Close()
			return nil, nil, err
		}
		services = append(services, workerService)
	} else if mode == ModeAll {
		logger.Warnw("app_worker_skipped_queue_disabled", "mode", mode)
	}

	if len(services) == 0 {
		_ = container.Close()
		return nil, nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), container, nil
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, container, err := BuildRunner(opts.Config, opts.Mode)
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			opts.Logger.Warnw("app_close_resources_failed", "error", err)
		}
	}()

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
