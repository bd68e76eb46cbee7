package provider

import (
	"errors"

	"github.com/dujiao-next/commerce-ledger/internal/authz"
	"github.com/dujiao-next/commerce-ledger/internal/cache"
	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/queue"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	ProductRepo       repository.ProductRepository
	StockMovementRepo repository.StockMovementRepository
	TokenRepo         repository.TokenRepository
	AccountPlanRepo   repository.AccountPlanRepository

	// Services
	AuthzService   *authz.Service
	StockService   *service.StockService
	TokenService   *service.TokenService
	ProductService *service.ProductService
	PricingService *service.PricingService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	return Build(cfg, models.DB, queueClient)
}

// Build 基于给定数据库与队列客户端装配仓储和服务（queueClient 可为 nil）
func Build(cfg *config.Config, db *gorm.DB, queueClient *queue.Client) *Container {
	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories(db)

	// 2. 初始化 Services
	c.initServices(db)

	return c
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.ProductRepo = repository.NewProductRepository(db)
	c.StockMovementRepo = repository.NewStockMovementRepository(db)
	c.TokenRepo = repository.NewTokenRepository(db)
	c.AccountPlanRepo = repository.NewAccountPlanRepository(db)
}

func (c *Container) initServices(db *gorm.DB) {
	authzService, err := authz.NewService(db)
	if err != nil {
		logger.Errorw("provider_init_authz_failed", "error", err)
		panic(err)
	}
	c.AuthzService = authzService
	if err := c.AuthzService.BootstrapBuiltinRoles(); err != nil {
		logger.Errorw("provider_bootstrap_builtin_roles_failed", "error", err)
		panic(err)
	}
	if err := c.AuthzService.BootstrapAdmins(c.Config.Authz.BootstrapAdminIDs); err != nil {
		logger.Errorw("provider_bootstrap_admins_failed", "error", err)
		panic(err)
	}

	// nil *queue.Client 不能直接放进接口，否则接口判空失效
	var publisher service.LedgerEventPublisher
	if c.QueueClient != nil {
		publisher = c.QueueClient
	}

	c.StockService = service.NewStockService(c.ProductRepo, c.StockMovementRepo, publisher, c.Config.Stock)
	c.TokenService = service.NewTokenService(c.TokenRepo, c.AccountPlanRepo, publisher, c.Config.Tokens)
	c.ProductService = service.NewProductService(c.ProductRepo, c.StockMovementRepo, c.StockService)
	c.PricingService = service.NewPricingService(c.ProductRepo)
}

// Close 释放队列与缓存连接
func (c *Container) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.QueueClient != nil {
		errs = append(errs, c.QueueClient.Close())
	}
	errs = append(errs, cache.Close())
	return errors.Join(errs...)
}
