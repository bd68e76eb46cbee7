package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type routerTestEnv struct {
	engine    *gin.Engine
	container *provider.Container
	db        *gorm.DB
}

func setupRouterTest(t *testing.T) *routerTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger.L = zap.NewNop()

	dsn := fmt.Sprintf("file:router_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	cfg := &config.Config{
		Stock: config.StockConfig{LockTTLSeconds: 5, CacheTTLSeconds: 60},
		Tokens: config.TokensConfig{
			UnlockCost: 10,
			Packs:      []config.TokenPackConfig{{ID: "starter", Tokens: 50, PriceDA: "500"}},
		},
		Authz: config.AuthzConfig{BootstrapAdminIDs: []uint{1}},
	}
	container := provider.Build(cfg, db, nil)
	if err := container.AuthzService.SetAdminRoles(2, []string{"readonly_auditor"}); err != nil {
		t.Fatalf("set auditor role failed: %v", err)
	}
	return &routerTestEnv{engine: SetupRouter(cfg, container), container: container, db: db}
}

func (e *routerTestEnv) do(t *testing.T, method, path string, body interface{}, headers map[string]string) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("%s %s http status want 200 got %d", method, path, w.Code)
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func adminHeaders(id uint) map[string]string {
	return map[string]string{adminIDHeader: fmt.Sprintf("%d", id)}
}

func userHeaders(id uint) map[string]string {
	return map[string]string{userIDHeader: fmt.Sprintf("%d", id)}
}

func TestRouterStockLedgerFlow(t *testing.T) {
	env := setupRouterTest(t)

	resp := env.do(t, http.MethodPost, "/api/v1/admin/products", gin.H{
		"name":                "Notebook",
		"base_price":          "120",
		"track_stock":         true,
		"valuation_method":    constants.ValuationWeightedAverage,
		"low_stock_threshold": 2,
	}, adminHeaders(1))
	if resp.StatusCode != 0 {
		t.Fatalf("create product failed: %+v", resp)
	}
	var product models.Product
	if err := json.Unmarshal(resp.Data, &product); err != nil {
		t.Fatalf("decode product failed: %v", err)
	}

	movementsPath := fmt.Sprintf("/api/v1/admin/products/%d/movements", product.ID)
	resp = env.do(t, http.MethodPost, movementsPath, gin.H{"type": "purchase", "quantity": 6, "unit_cost": "100"}, adminHeaders(1))
	if resp.StatusCode != 0 {
		t.Fatalf("append purchase failed: %+v", resp)
	}

	resp = env.do(t, http.MethodPost, movementsPath, gin.H{"type": "sale", "quantity": 9}, adminHeaders(1))
	if resp.StatusCode != 409 {
		t.Fatalf("oversell want 409 got %+v", resp)
	}
	var conflict struct {
		Available int64 `json:"available"`
		Requested int64 `json:"requested"`
	}
	if err := json.Unmarshal(resp.Data, &conflict); err != nil {
		t.Fatalf("decode conflict failed: %v", err)
	}
	if conflict.Available != 6 || conflict.Requested != 9 {
		t.Fatalf("unexpected conflict data: %+v", conflict)
	}

	resp = env.do(t, http.MethodPost, movementsPath, gin.H{"type": "teleport", "quantity": 1}, adminHeaders(1))
	if resp.StatusCode != 400 {
		t.Fatalf("unknown type want 400 got %+v", resp)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/products/%d/stock", product.ID), nil, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("get stock failed: %+v", resp)
	}
	var stock struct {
		Quantity int64  `json:"quantity"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(resp.Data, &stock); err != nil {
		t.Fatalf("decode stock failed: %v", err)
	}
	if stock.Quantity != 6 || stock.Status != constants.StockStatusInStock {
		t.Fatalf("unexpected stock: %+v", stock)
	}

	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/admin/products/%d/ledger/verify", product.ID), nil, adminHeaders(2))
	if resp.StatusCode != 0 {
		t.Fatalf("auditor verify failed: %+v", resp)
	}
	resp = env.do(t, http.MethodPost, movementsPath, gin.H{"type": "purchase", "quantity": 1, "unit_cost": "1"}, adminHeaders(2))
	if resp.StatusCode != 403 {
		t.Fatalf("auditor write want 403 got %+v", resp)
	}
	resp = env.do(t, http.MethodGet, movementsPath, nil, nil)
	if resp.StatusCode != 401 {
		t.Fatalf("missing admin header want 401 got %+v", resp)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/products/999/stock", nil, nil)
	if resp.StatusCode != 404 {
		t.Fatalf("unknown product want 404 got %+v", resp)
	}
}

func TestRouterTokenFlow(t *testing.T) {
	env := setupRouterTest(t)

	resp := env.do(t, http.MethodPost, "/api/v1/orders/42/unlock", nil, userHeaders(7))
	if resp.StatusCode != 409 {
		t.Fatalf("unlock without tokens want 409 got %+v", resp)
	}
	var shortage struct {
		Balance  int64 `json:"balance"`
		Required int64 `json:"required"`
	}
	if err := json.Unmarshal(resp.Data, &shortage); err != nil {
		t.Fatalf("decode shortage failed: %v", err)
	}
	if shortage.Balance != 0 || shortage.Required != 10 {
		t.Fatalf("unexpected shortage: %+v", shortage)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/tokens/purchase-requests", gin.H{"pack_id": "starter", "payment_proof_ref": "receipt-1"}, userHeaders(7))
	if resp.StatusCode != 0 {
		t.Fatalf("submit request failed: %+v", resp)
	}
	var submitted models.TokenPurchaseRequest
	if err := json.Unmarshal(resp.Data, &submitted); err != nil {
		t.Fatalf("decode request failed: %v", err)
	}
	resp = env.do(t, http.MethodPost, "/api/v1/tokens/purchase-requests", gin.H{"pack_id": "starter", "payment_proof_ref": "receipt-2"}, userHeaders(7))
	if resp.StatusCode != 409 {
		t.Fatalf("second pending request want 409 got %+v", resp)
	}
	resp = env.do(t, http.MethodPost, "/api/v1/tokens/purchase-requests", gin.H{"pack_id": "starter"}, userHeaders(8))
	if resp.StatusCode != 400 {
		t.Fatalf("missing proof want 400 got %+v", resp)
	}

	reviewPath := fmt.Sprintf("/api/v1/admin/token-requests/%d/review", submitted.ID)
	resp = env.do(t, http.MethodPost, reviewPath, gin.H{"action": "approve"}, adminHeaders(2))
	if resp.StatusCode != 403 {
		t.Fatalf("auditor review want 403 got %+v", resp)
	}
	resp = env.do(t, http.MethodPost, reviewPath, gin.H{"action": "approve"}, adminHeaders(1))
	if resp.StatusCode != 0 {
		t.Fatalf("approve failed: %+v", resp)
	}
	resp = env.do(t, http.MethodPost, reviewPath, gin.H{"action": "reject"}, adminHeaders(1))
	if resp.StatusCode != 409 {
		t.Fatalf("second review want 409 got %+v", resp)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/orders/42/unlock", nil, userHeaders(7))
	if resp.StatusCode != 0 {
		t.Fatalf("unlock failed: %+v", resp)
	}
	var unlock struct {
		Charged bool  `json:"charged"`
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(resp.Data, &unlock); err != nil {
		t.Fatalf("decode unlock failed: %v", err)
	}
	if !unlock.Charged || unlock.Balance != 40 {
		t.Fatalf("unexpected unlock: %+v", unlock)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/orders/42/unlock", nil, userHeaders(8))
	var status struct {
		Unlocked bool `json:"unlocked"`
	}
	if err := json.Unmarshal(resp.Data, &status); err != nil {
		t.Fatalf("decode unlock status failed: %v", err)
	}
	if !status.Unlocked {
		t.Fatalf("order 42 should report unlocked")
	}

	resp = env.do(t, http.MethodPost, "/api/v1/admin/users/7/tokens/adjust", gin.H{"amount": -100, "description": "chargeback"}, adminHeaders(1))
	if resp.StatusCode != 0 {
		t.Fatalf("adjust failed: %+v", resp)
	}
	resp = env.do(t, http.MethodGet, "/api/v1/tokens/balance", nil, userHeaders(7))
	var balance struct {
		Balance int64 `json:"balance"`
	}
	if err := json.Unmarshal(resp.Data, &balance); err != nil {
		t.Fatalf("decode balance failed: %v", err)
	}
	if balance.Balance != -60 {
		t.Fatalf("balance want -60 got %d", balance.Balance)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/tokens/transactions?page=1&page_size=10", nil, userHeaders(7))
	if resp.StatusCode != 0 {
		t.Fatalf("list transactions failed: %+v", resp)
	}
	var txns []models.TokenTransaction
	if err := json.Unmarshal(resp.Data, &txns); err != nil {
		t.Fatalf("decode transactions failed: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("transactions want 3 got %d", len(txns))
	}

	resp = env.do(t, http.MethodGet, "/api/v1/admin/token-requests?status=approved", nil, adminHeaders(2))
	if resp.StatusCode != 0 {
		t.Fatalf("list requests failed: %+v", resp)
	}
}

func TestRouterPricingQuote(t *testing.T) {
	env := setupRouterTest(t)

	resp := env.do(t, http.MethodPost, "/api/v1/admin/products", gin.H{
		"name":         "Poster",
		"base_price":   "1000",
		"shipping_fee": "200",
		"promotions":   []gin.H{{"type": "buy_x_get_y", "buy_quantity": 2, "get_quantity": 1}},
	}, adminHeaders(1))
	if resp.StatusCode != 0 {
		t.Fatalf("create product failed: %+v", resp)
	}
	var product models.Product
	if err := json.Unmarshal(resp.Data, &product); err != nil {
		t.Fatalf("decode product failed: %v", err)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/pricing/quote", gin.H{"product_id": product.ID, "quantity": 3}, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("quote failed: %+v", resp)
	}
	var quote struct {
		Savings string `json:"savings"`
		Total   string `json:"total"`
	}
	if err := json.Unmarshal(resp.Data, &quote); err != nil {
		t.Fatalf("decode quote failed: %v", err)
	}
	if quote.Savings != "1000" || quote.Total != "2200" {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/pricing/quote", gin.H{"product_id": product.ID, "quantity": 0}, nil)
	if resp.StatusCode != 400 {
		t.Fatalf("zero quantity want 400 got %+v", resp)
	}

	resp = env.do(t, http.MethodPost, "/api/v1/pricing/evaluate", gin.H{
		"promotions": []gin.H{{"type": "buy_x_get_y", "buy_quantity": 2, "get_quantity": 1}},
		"quantity":   2,
		"unit_price": "1000",
	}, nil)
	if resp.StatusCode != 0 {
		t.Fatalf("evaluate failed: %+v", resp)
	}
	var eval struct {
		Hint *struct {
			MissingQuantity int `json:"missing_quantity"`
		} `json:"hint"`
	}
	if err := json.Unmarshal(resp.Data, &eval); err != nil {
		t.Fatalf("decode evaluation failed: %v", err)
	}
	if eval.Hint == nil || eval.Hint.MissingQuantity != 1 {
		t.Fatalf("expected hint one unit short, got %+v", eval)
	}
}

func TestRouterHealthAndCatalog(t *testing.T) {
	env := setupRouterTest(t)

	w := httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("healthz want 200 got %d", w.Code)
	}

	w = httptest.NewRecorder()
	env.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("http_requests_total")) {
		t.Fatalf("metrics endpoint should expose http metrics, code=%d", w.Code)
	}

	resp := env.do(t, http.MethodGet, "/api/v1/admin/authz/permissions/catalog", nil, adminHeaders(1))
	if resp.StatusCode != 0 {
		t.Fatalf("catalog failed: %+v", resp)
	}
	var items []adminPermissionCatalogItem
	if err := json.Unmarshal(resp.Data, &items); err != nil {
		t.Fatalf("decode catalog failed: %v", err)
	}
	found := false
	for _, item := range items {
		if item.Permission == "POST:/admin/token-requests/:id/review" && item.Module == "token-requests" {
			found = true
		}
	}
	if !found {
		t.Fatalf("catalog should list review permission: %+v", items)
	}

	resp = env.do(t, http.MethodGet, "/api/v1/admin/authz/me", nil, adminHeaders(2))
	if resp.StatusCode != 0 {
		t.Fatalf("authz me failed: %+v", resp)
	}
	var me struct {
		Roles       []string `json:"roles"`
		Permissions []struct {
			Object string `json:"object"`
			Action string `json:"action"`
		} `json:"permissions"`
	}
	if err := json.Unmarshal(resp.Data, &me); err != nil {
		t.Fatalf("decode authz me failed: %v", err)
	}
	if len(me.Roles) != 1 || me.Roles[0] != "role:readonly_auditor" {
		t.Fatalf("unexpected roles: %v", me.Roles)
	}
	if len(me.Permissions) != 1 || me.Permissions[0].Object != "/admin/*" || me.Permissions[0].Action != "GET" {
		t.Fatalf("unexpected permissions: %+v", me.Permissions)
	}
}
