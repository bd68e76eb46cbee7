package router

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/dujiao-next/commerce-ledger/internal/authz"
	"github.com/dujiao-next/commerce-ledger/internal/cache"
	"github.com/dujiao-next/commerce-ledger/internal/config"
	adminhandlers "github.com/dujiao-next/commerce-ledger/internal/http/handlers/admin"
	publichandlers "github.com/dujiao-next/commerce-ledger/internal/http/handlers/public"
	"github.com/dujiao-next/commerce-ledger/internal/http/response"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按前台/后台分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "cl"
	}
	writeRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:user_write", redisPrefix),
		WindowSeconds: cfg.Security.WriteRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.WriteRateLimit.MaxRequests,
	}
	userWriteLimit := RateLimitMiddleware(cache.Client(), writeRule, KeyByContextUser)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(cfg.CORS))

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", healthHandler)

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		apiV1.POST("/pricing/quote", publicHandler.QuotePricing)
		apiV1.POST("/pricing/evaluate", publicHandler.EvaluatePromotions)
		apiV1.GET("/products/:id/stock", publicHandler.GetProductStock)

		// 用户接口（X-User-ID）
		user := apiV1.Group("")
		user.Use(UserIdentityMiddleware())
		{
			user.GET("/tokens/balance", publicHandler.GetTokenBalance)
			user.GET("/tokens/transactions", publicHandler.ListTokenTransactions)
			user.POST("/tokens/purchase-requests", userWriteLimit, publicHandler.SubmitPurchaseRequest)
			user.GET("/orders/:id/unlock", publicHandler.GetOrderUnlockStatus)
			user.POST("/orders/:id/unlock", userWriteLimit, publicHandler.UnlockOrder)
		}

		// 管理员接口（X-Admin-ID + RBAC）
		admin := apiV1.Group("/admin")
		authorized := admin.Use(AdminIdentityMiddleware(), AdminRBACMiddleware(c.AuthzService))
		{
			// 商品与库存账本
			authorized.GET("/products", adminHandler.GetAdminProducts)
			authorized.GET("/products/:id", adminHandler.GetAdminProduct)
			authorized.POST("/products", adminHandler.CreateProduct)
			authorized.PUT("/products/:id", adminHandler.UpdateProduct)
			authorized.GET("/products/:id/stock", adminHandler.GetStockState)
			authorized.POST("/products/:id/movements", adminHandler.AppendStockMovement)
			authorized.GET("/products/:id/movements", adminHandler.GetStockMovements)
			authorized.GET("/products/:id/ledger/verify", adminHandler.VerifyStockLedger)

			// 代币账本
			authorized.GET("/token-requests", adminHandler.GetTokenRequests)
			authorized.GET("/token-requests/:id", adminHandler.GetTokenRequest)
			authorized.POST("/token-requests/:id/review", adminHandler.ReviewTokenRequest)
			authorized.POST("/users/:id/tokens/adjust", adminHandler.AdjustUserTokens)
			authorized.GET("/tokens/negative-balances", adminHandler.GetNegativeBalances)

			// 权限目录
			authorized.GET("/authz/me", adminHandler.GetMyPermissions)
			authorized.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
		}
	}

	return r
}

// healthHandler 健康检查：数据库必需，Redis 可选
func healthHandler(c *gin.Context) {
	status := gin.H{"status": "ok", "database": "ok", "redis": "disabled"}
	code := http.StatusOK
	if models.DB != nil {
		if sqlDB, err := models.DB.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			status["status"] = "degraded"
			status["database"] = "unavailable"
			code = http.StatusServiceUnavailable
		}
	}
	if cache.Enabled() {
		status["redis"] = "ok"
		if err := cache.Ping(c.Request.Context()); err != nil {
			status["redis"] = "unavailable"
		}
	}
	c.JSON(code, status)
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

// deriveAdminPermissionModule 以 /admin 后的首段作为模块名
func deriveAdminPermissionModule(object string) string {
	segments := strings.Split(strings.TrimPrefix(strings.TrimSpace(object), "/"), "/")
	if len(segments) >= 2 && segments[0] == "admin" {
		return segments[1]
	}
	if segments[0] == "" {
		return "system"
	}
	return segments[0]
}
