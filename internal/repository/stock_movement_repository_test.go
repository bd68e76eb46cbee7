package repository

import (
	"testing"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/pricing"

	"github.com/shopspring/decimal"
)

func TestStockMovementRepositoryOrdering(t *testing.T) {
	db := openRepositoryTestDB(t, "stock_repo_order")
	products := NewProductRepository(db)
	repo := NewStockMovementRepository(db)

	product := &models.Product{Name: "Keyboard", ValuationMethod: constants.ValuationFIFO, TrackStock: true}
	if err := products.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Second)
	cost := models.NewMoneyFromDecimal(decimal.NewFromInt(100))
	rows := []models.StockMovement{
		{ProductID: product.ID, Type: constants.StockMovementPurchase, Quantity: 5, UnitCost: &cost, CreatedAt: base},
		{ProductID: product.ID, Type: constants.StockMovementSale, Quantity: 1, CreatedAt: base},
		{ProductID: product.ID, Type: constants.StockMovementSale, Quantity: 2, CreatedAt: base.Add(-time.Minute)},
	}
	for i := range rows {
		if err := repo.Create(&rows[i]); err != nil {
			t.Fatalf("create movement failed: %v", err)
		}
	}

	history, err := repo.ListByProduct(product.ID)
	if err != nil {
		t.Fatalf("list by product failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history len want 3 got %d", len(history))
	}
	// 重放按写入顺序，回拨的 created_at 不影响
	if history[0].ID != rows[0].ID || history[1].ID != rows[1].ID || history[2].ID != rows[2].ID {
		t.Fatalf("unexpected replay order: %d %d %d", history[0].ID, history[1].ID, history[2].ID)
	}
	if history[0].UnitCost == nil || !history[0].UnitCost.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unit cost not persisted: %+v", history[0].UnitCost)
	}
	if history[2].UnitCost != nil {
		t.Fatalf("sale unit cost should stay null")
	}

	page, total, err := repo.List(StockMovementListFilter{ProductID: product.ID, Type: constants.StockMovementSale, Page: 1, PageSize: 1})
	if err != nil {
		t.Fatalf("list page failed: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].ID != rows[2].ID {
		t.Fatalf("unexpected page total=%d page=%+v", total, page)
	}

	count, err := repo.CountByProduct(product.ID)
	if err != nil || count != 3 {
		t.Fatalf("count want 3 got %d err=%v", count, err)
	}
	ids, err := repo.ListProductIDs()
	if err != nil || len(ids) != 1 || ids[0] != product.ID {
		t.Fatalf("unexpected product ids %v err=%v", ids, err)
	}
}

func TestProductRepositoryJSONColumns(t *testing.T) {
	db := openRepositoryTestDB(t, "product_repo_json")
	repo := NewProductRepository(db)

	price := models.NewMoneyFromDecimal(decimal.RequireFromString("1999.5"))
	product := &models.Product{
		Name:      "Hoodie",
		BasePrice: &price,
		Variations: models.VariationList{
			{Name: "Size", Type: "text", Options: []pricing.VariationOption{{Value: "M"}, {Value: "L", PriceAdjustment: decimal.NewFromInt(200)}}},
		},
		Promotions: models.PromotionList{
			{Type: "percentage_discount", DiscountPercent: decimal.NewFromInt(10)},
		},
		TrackStock:      true,
		ValuationMethod: constants.ValuationWeightedAverage,
	}
	if err := repo.Create(product); err != nil {
		t.Fatalf("create product failed: %v", err)
	}

	loaded, err := repo.GetByID(product.ID)
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if loaded == nil || loaded.BasePrice == nil || loaded.BasePrice.String() != "1999.50" {
		t.Fatalf("unexpected base price: %+v", loaded)
	}
	if len(loaded.Variations) != 1 || len(loaded.Variations[0].Options) != 2 {
		t.Fatalf("variations not persisted: %+v", loaded.Variations)
	}
	if !loaded.Variations[0].Options[1].PriceAdjustment.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("variation adjustment mismatch: %s", loaded.Variations[0].Options[1].PriceAdjustment)
	}
	if len(loaded.Promotions) != 1 || !loaded.Promotions[0].DiscountPercent.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("promotions not persisted: %+v", loaded.Promotions)
	}

	unpriced := &models.Product{Name: "Custom print", ValuationMethod: constants.ValuationWeightedAverage}
	if err := repo.Create(unpriced); err != nil {
		t.Fatalf("create unpriced product failed: %v", err)
	}
	loaded, err = repo.GetByID(unpriced.ID)
	if err != nil {
		t.Fatalf("get unpriced product failed: %v", err)
	}
	if loaded.BasePrice != nil {
		t.Fatalf("base price should be nil, got %s", loaded.BasePrice)
	}

	list, total, err := repo.List(ProductListFilter{Search: "hood", Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list products failed: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != product.ID {
		t.Fatalf("unexpected search result total=%d list=%+v", total, list)
	}

	missing, err := repo.GetByID(9999)
	if err != nil || missing != nil {
		t.Fatalf("missing product should return nil,nil got %+v %v", missing, err)
	}
}
