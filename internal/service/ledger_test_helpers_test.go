package service

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/queue"
	"github.com/dujiao-next/commerce-ledger/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openLedgerTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := models.MigrateAll(db); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	return db
}

type recordingPublisher struct {
	mu       sync.Mutex
	alerts   []queue.StockLevelAlertPayload
	reviewed []queue.TokenRequestReviewedPayload
	err      error
}

func (p *recordingPublisher) EnqueueStockLevelAlert(payload queue.StockLevelAlertPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.alerts = append(p.alerts, payload)
	return p.err
}

func (p *recordingPublisher) EnqueueTokenRequestReviewed(payload queue.TokenRequestReviewedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reviewed = append(p.reviewed, payload)
	return p.err
}

func (p *recordingPublisher) alertCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.alerts)
}

func setupStockServiceTest(t *testing.T) (*StockService, *ProductService, *recordingPublisher, *gorm.DB) {
	t.Helper()
	db := openLedgerTestDB(t, "stock_service_test")
	publisher := &recordingPublisher{}
	productRepo := repository.NewProductRepository(db)
	movementRepo := repository.NewStockMovementRepository(db)
	stockSvc := NewStockService(productRepo, movementRepo, publisher, config.StockConfig{
		LockTTLSeconds:  5,
		CacheTTLSeconds: 60,
		AlertEnabled:    true,
	})
	productSvc := NewProductService(productRepo, movementRepo, stockSvc)
	return stockSvc, productSvc, publisher, db
}

func setupTokenServiceTest(t *testing.T) (*TokenService, *recordingPublisher, *gorm.DB) {
	t.Helper()
	db := openLedgerTestDB(t, "token_service_test")
	publisher := &recordingPublisher{}
	svc := NewTokenService(
		repository.NewTokenRepository(db),
		repository.NewAccountPlanRepository(db),
		publisher,
		testTokensConfig(),
	)
	return svc, publisher, db
}

func testTokensConfig() config.TokensConfig {
	return config.TokensConfig{
		UnlockCost:      10,
		ProMultiplier:   1.5,
		ProTiers:        []string{"pro"},
		FullAccessTiers: []string{"enterprise"},
		Packs: []config.TokenPackConfig{
			{ID: "starter", Tokens: 50, PriceDA: "500"},
			{ID: "standard", Tokens: 120, PriceDA: "1000"},
			{ID: "bulk", Tokens: 300, PriceDA: "2200"},
		},
	}
}

func seedLedgerProduct(t *testing.T, db *gorm.DB, method string, trackStock bool, threshold int) *models.Product {
	t.Helper()
	price := models.NewMoneyFromDecimal(decimal.NewFromInt(1000))
	product := &models.Product{
		Name:              fmt.Sprintf("product-%s-%d", method, time.Now().UnixNano()),
		BasePrice:         &price,
		TrackStock:        trackStock,
		ValuationMethod:   method,
		LowStockThreshold: threshold,
		IsActive:          true,
	}
	if err := db.Create(product).Error; err != nil {
		t.Fatalf("create product failed: %v", err)
	}
	return product
}

func decPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}
