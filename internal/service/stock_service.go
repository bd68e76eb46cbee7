package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/cache"
	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/metrics"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/queue"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/valuation"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	stockDefaultLockTTL  = 10 * time.Second
	stockDefaultCacheTTL = 5 * time.Minute
	stockReferenceMaxLen = 191
	stockNoteMaxLen      = 500
)

// StockService 库存账本服务
type StockService struct {
	productRepo  repository.ProductRepository
	movementRepo repository.StockMovementRepository
	publisher    LedgerEventPublisher
	cfg          config.StockConfig
}

// AppendMovementInput 追加库存流水输入
type AppendMovementInput struct {
	ProductID  uint
	Type       string
	Quantity   int64
	UnitCost   *decimal.Decimal
	Note       string
	Reference  string
	OperatorID *uint
}

// StockSnapshot 库存状态（由流水重放得出）
type StockSnapshot struct {
	ProductID         uint                  `json:"product_id"`
	ValuationMethod   string                `json:"valuation_method"`
	Quantity          int64                 `json:"quantity"`
	UnitCost          decimal.Decimal       `json:"unit_cost"`
	TotalValue        decimal.Decimal       `json:"total_value"`
	Lots              []valuation.Lot       `json:"lots,omitempty"`
	Status            string                `json:"status"`
	LowStockThreshold int                   `json:"low_stock_threshold"`
	MovementCount     int64                 `json:"movement_count"`
	Movement          *models.StockMovement `json:"movement,omitempty"`
	Duplicate         bool                  `json:"duplicate,omitempty"`
}

// LedgerDrift 流水快照列与重放结果不一致的记录
type LedgerDrift struct {
	MovementID       uint            `json:"movement_id"`
	RecordedQuantity int64           `json:"recorded_quantity"`
	ReplayedQuantity int64           `json:"replayed_quantity"`
	RecordedUnitCost decimal.Decimal `json:"recorded_unit_cost"`
	ReplayedUnitCost decimal.Decimal `json:"replayed_unit_cost"`
}

// LedgerVerification 账本校验结果
type LedgerVerification struct {
	ProductID     uint            `json:"product_id"`
	MovementCount int64           `json:"movement_count"`
	Quantity      int64           `json:"quantity"`
	UnitCost      decimal.Decimal `json:"unit_cost"`
	Consistent    bool            `json:"consistent"`
	Drifts        []LedgerDrift   `json:"drifts"`
}

// NewStockService 创建库存账本服务
func NewStockService(
	productRepo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	publisher LedgerEventPublisher,
	cfg config.StockConfig,
) *StockService {
	return &StockService{
		productRepo:  productRepo,
		movementRepo: movementRepo,
		publisher:    publisher,
		cfg:          cfg,
	}
}

// AppendMovement 追加一条库存流水。
// 同一商品的写入在商品行锁（以及 Redis 锁）下串行：重放历史、应用新流水、写入，再返回新状态。
// 带参考号的重复请求返回已有流水与当前状态，不重复记账。
func (s *StockService) AppendMovement(ctx context.Context, input AppendMovementInput) (*StockSnapshot, error) {
	start := time.Now()
	defer func() {
		metrics.StockAppendLatency.Observe(time.Since(start).Seconds())
	}()

	movementType, err := normalizeAppendInput(&input)
	if err != nil {
		metrics.StockMovementsRejected.WithLabelValues(stockRejectReason(err)).Inc()
		return nil, err
	}

	lock, err := cache.AcquireLock(ctx, cache.StockLockKey(input.ProductID), s.lockTTL(), s.lockTTL())
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) || ctx.Err() != nil {
			metrics.StockMovementsRejected.WithLabelValues("lock_timeout").Inc()
			return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		// Redis 不可用时仍由数据库行锁保证串行
		logger.Warnw("stock_lock_unavailable", "product_id", input.ProductID, "error", err)
	}
	defer func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil {
			logger.Warnw("stock_lock_release_failed", "product_id", input.ProductID, "error", releaseErr)
		}
	}()

	var snapshot *StockSnapshot
	err = s.productRepo.Transaction(func(tx *gorm.DB) error {
		productRepo := s.productRepo.WithTx(tx)
		movementRepo := s.movementRepo.WithTx(tx)

		product, err := productRepo.GetByIDForUpdate(input.ProductID)
		if err != nil {
			return err
		}
		if product == nil {
			return ErrProductNotFound
		}
		if !product.TrackStock {
			return ErrStockNotTracked
		}

		if input.Reference != "" {
			existing, err := movementRepo.GetByReference(input.Reference)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.ProductID != product.ID {
					return newValidationError("reference", "is already used by another product")
				}
				ledger, history, err := replayProductLedger(movementRepo, product)
				if err != nil {
					return err
				}
				snapshot = buildStockSnapshot(product, ledger, int64(len(history)))
				snapshot.Movement = existing
				snapshot.Duplicate = true
				return nil
			}
		}

		ledger, history, err := replayProductLedger(movementRepo, product)
		if err != nil {
			return err
		}
		if err := ledger.Apply(valuation.Movement{
			Type:     valuation.MovementType(movementType),
			Quantity: input.Quantity,
			UnitCost: input.UnitCost,
		}); err != nil {
			return translateValuationError(err)
		}

		state := ledger.State()
		movement := &models.StockMovement{
			ProductID:     product.ID,
			Type:          movementType,
			Quantity:      input.Quantity,
			UnitCost:      models.NewMoneyPtr(input.UnitCost),
			Note:          input.Note,
			OperatorID:    input.OperatorID,
			QuantityAfter: state.Quantity,
			UnitCostAfter: models.NewMoneyFromDecimal(state.UnitCost),
			CreatedAt:     monotonicCreatedAt(tx, history),
		}
		if input.Reference != "" {
			reference := input.Reference
			movement.Reference = &reference
		}
		if err := movementRepo.Create(movement); err != nil {
			if repository.IsUniqueViolation(err) {
				return newValidationError("reference", "is already used by another product")
			}
			return err
		}
		snapshot = buildStockSnapshot(product, ledger, int64(len(history))+1)
		snapshot.Movement = movement
		return nil
	})
	if err != nil {
		metrics.StockMovementsRejected.WithLabelValues(stockRejectReason(err)).Inc()
		return nil, storageError(err)
	}

	s.storeSnapshot(ctx, snapshot)
	if snapshot.Duplicate {
		logger.Infow("stock_movement_duplicate",
			"product_id", snapshot.ProductID,
			"movement_id", snapshot.Movement.ID,
			"reference", input.Reference,
		)
		return snapshot, nil
	}

	metrics.StockMovementsTotal.WithLabelValues(movementType).Inc()
	logger.Infow("stock_movement_appended",
		"product_id", snapshot.ProductID,
		"movement_id", snapshot.Movement.ID,
		"type", movementType,
		"quantity", input.Quantity,
		"quantity_after", snapshot.Quantity,
		"unit_cost_after", snapshot.UnitCost.StringFixed(2),
	)
	s.publishStockAlert(snapshot)
	return snapshot, nil
}

// GetStockState 查询商品当前库存状态，优先读缓存，未命中时重放流水并回填
func (s *StockService) GetStockState(ctx context.Context, productID uint) (*StockSnapshot, error) {
	if productID == 0 {
		return nil, newValidationError("product_id", "is required")
	}
	cached, err := cache.GetStockState(ctx, productID)
	switch {
	case err != nil:
		metrics.StockStateCacheTotal.WithLabelValues("error").Inc()
		logger.Warnw("stock_state_cache_read_failed", "product_id", productID, "error", err)
	case cached != nil:
		metrics.StockStateCacheTotal.WithLabelValues("hit").Inc()
		return snapshotFromCache(cached), nil
	default:
		metrics.StockStateCacheTotal.WithLabelValues("miss").Inc()
	}

	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, storageError(err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.TrackStock {
		return nil, ErrStockNotTracked
	}
	ledger, history, err := replayProductLedger(s.movementRepo, product)
	if err != nil {
		return nil, storageError(err)
	}
	snapshot := buildStockSnapshot(product, ledger, int64(len(history)))
	if err := cache.SetStockStateIfAbsent(ctx, snapshotToCache(snapshot), s.cacheTTL()); err != nil {
		logger.Warnw("stock_state_cache_fill_failed", "product_id", productID, "error", err)
	}
	return snapshot, nil
}

// ListMovements 分页查询库存流水
func (s *StockService) ListMovements(filter repository.StockMovementListFilter) ([]models.StockMovement, int64, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	movements, total, err := s.movementRepo.List(filter)
	if err != nil {
		return nil, 0, storageError(err)
	}
	return movements, total, nil
}

// RecordOrderSale 订单出库，按订单与商品生成参考号，重复调用不重复扣减；未追踪库存的商品直接跳过
func (s *StockService) RecordOrderSale(ctx context.Context, productID, orderID uint, quantity int64) (*StockSnapshot, error) {
	return s.recordOrderMovement(ctx, productID, orderID, quantity, constants.StockMovementSale)
}

// RecordOrderReturn 订单退货入库
func (s *StockService) RecordOrderReturn(ctx context.Context, productID, orderID uint, quantity int64) (*StockSnapshot, error) {
	return s.recordOrderMovement(ctx, productID, orderID, quantity, constants.StockMovementReturn)
}

func (s *StockService) recordOrderMovement(ctx context.Context, productID, orderID uint, quantity int64, movementType string) (*StockSnapshot, error) {
	if orderID == 0 {
		return nil, newValidationError("order_id", "is required")
	}
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, storageError(err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	if !product.TrackStock {
		logger.Debugw("stock_order_movement_skipped", "product_id", productID, "order_id", orderID, "type", movementType)
		return nil, nil
	}
	return s.AppendMovement(ctx, AppendMovementInput{
		ProductID: productID,
		Type:      movementType,
		Quantity:  quantity,
		Reference: orderStockReference(orderID, productID, movementType),
		Note:      fmt.Sprintf("order #%d", orderID),
	})
}

// VerifyLedger 重放商品流水并逐条比对快照列
func (s *StockService) VerifyLedger(productID uint) (*LedgerVerification, error) {
	product, err := s.productRepo.GetByID(productID)
	if err != nil {
		return nil, storageError(err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	method, err := valuation.ParseMethod(product.ValuationMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: product %d valuation method %q", ErrStorageUnavailable, product.ID, product.ValuationMethod)
	}
	rows, err := s.movementRepo.ListByProduct(product.ID)
	if err != nil {
		return nil, storageError(err)
	}
	ledger, err := valuation.NewLedger(method)
	if err != nil {
		return nil, storageError(err)
	}

	report := &LedgerVerification{
		ProductID:     product.ID,
		MovementCount: int64(len(rows)),
		Drifts:        []LedgerDrift{},
	}
	for _, row := range rows {
		if err := ledger.Apply(toValuationMovement(row)); err != nil {
			return nil, fmt.Errorf("%w: replay movement %d: %v", ErrStorageUnavailable, row.ID, err)
		}
		replayedCost := ledger.UnitCost().Round(2)
		if ledger.Quantity() != row.QuantityAfter || !replayedCost.Equal(row.UnitCostAfter.Decimal.Round(2)) {
			report.Drifts = append(report.Drifts, LedgerDrift{
				MovementID:       row.ID,
				RecordedQuantity: row.QuantityAfter,
				ReplayedQuantity: ledger.Quantity(),
				RecordedUnitCost: row.UnitCostAfter.Decimal.Round(2),
				ReplayedUnitCost: replayedCost,
			})
		}
	}
	report.Quantity = ledger.Quantity()
	report.UnitCost = ledger.UnitCost()
	report.Consistent = len(report.Drifts) == 0
	if !report.Consistent {
		metrics.StockLedgerDrift.Add(float64(len(report.Drifts)))
		logger.Warnw("stock_ledger_drift_detected",
			"product_id", product.ID,
			"drift_count", len(report.Drifts),
			"first_movement_id", report.Drifts[0].MovementID,
		)
	}
	return report, nil
}

// VerifyAll 校验所有存在流水的商品，返回存在漂移的结果
func (s *StockService) VerifyAll(ctx context.Context) ([]LedgerVerification, error) {
	productIDs, err := s.movementRepo.ListProductIDs()
	if err != nil {
		return nil, storageError(err)
	}
	drifted := make([]LedgerVerification, 0)
	for _, productID := range productIDs {
		if err := ctx.Err(); err != nil {
			return drifted, err
		}
		report, err := s.VerifyLedger(productID)
		if err != nil {
			if errors.Is(err, ErrProductNotFound) {
				continue
			}
			return drifted, err
		}
		if !report.Consistent {
			drifted = append(drifted, *report)
		}
	}
	return drifted, nil
}

// WithStateLock 在商品库存锁内执行 fn 并清除快照缓存，避免并发追加把旧属性写回缓存
func (s *StockService) WithStateLock(ctx context.Context, productID uint, fn func() error) error {
	lock, err := cache.AcquireLock(ctx, cache.StockLockKey(productID), s.lockTTL(), s.lockTTL())
	if err != nil {
		if errors.Is(err, cache.ErrLockTimeout) || ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		logger.Warnw("stock_lock_unavailable", "product_id", productID, "error", err)
	}
	defer func() {
		if releaseErr := lock.Release(context.Background()); releaseErr != nil {
			logger.Warnw("stock_lock_release_failed", "product_id", productID, "error", releaseErr)
		}
	}()
	if err := fn(); err != nil {
		return err
	}
	s.InvalidateState(ctx, productID)
	return nil
}

// InvalidateState 清除商品库存快照缓存（商品阈值等属性变更后调用）
func (s *StockService) InvalidateState(ctx context.Context, productID uint) {
	if err := cache.DelStockState(ctx, productID); err != nil {
		logger.Warnw("stock_state_cache_invalidate_failed", "product_id", productID, "error", err)
	}
}

func (s *StockService) storeSnapshot(ctx context.Context, snapshot *StockSnapshot) {
	if snapshot == nil {
		return
	}
	if err := cache.SetStockState(ctx, snapshotToCache(snapshot), s.cacheTTL()); err != nil {
		logger.Warnw("stock_state_cache_write_failed", "product_id", snapshot.ProductID, "error", err)
		// 新快照写不进去时至少删掉旧快照，读路径回落到重放
		s.InvalidateState(ctx, snapshot.ProductID)
	}
}

func (s *StockService) publishStockAlert(snapshot *StockSnapshot) {
	if s.publisher == nil || !s.cfg.AlertEnabled || snapshot.Movement == nil {
		return
	}
	if !valuation.StockStatus(snapshot.Status).NeedsAlert() {
		return
	}
	payload := queue.StockLevelAlertPayload{
		ProductID:  snapshot.ProductID,
		MovementID: snapshot.Movement.ID,
		Quantity:   snapshot.Quantity,
		Threshold:  snapshot.LowStockThreshold,
		Status:     snapshot.Status,
	}
	if err := s.publisher.EnqueueStockLevelAlert(payload); err != nil {
		logger.Warnw("stock_alert_enqueue_failed",
			"product_id", snapshot.ProductID,
			"movement_id", snapshot.Movement.ID,
			"error", err,
		)
	}
}

func (s *StockService) lockTTL() time.Duration {
	if s.cfg.LockTTLSeconds <= 0 {
		return stockDefaultLockTTL
	}
	return time.Duration(s.cfg.LockTTLSeconds) * time.Second
}

func (s *StockService) cacheTTL() time.Duration {
	if s.cfg.CacheTTLSeconds <= 0 {
		return stockDefaultCacheTTL
	}
	return time.Duration(s.cfg.CacheTTLSeconds) * time.Second
}

func normalizeAppendInput(input *AppendMovementInput) (string, error) {
	if input.ProductID == 0 {
		return "", newValidationError("product_id", "is required")
	}
	movementType := strings.ToLower(strings.TrimSpace(input.Type))
	switch movementType {
	case constants.StockMovementPurchase, constants.StockMovementSale,
		constants.StockMovementReturn, constants.StockMovementAdjustment:
	default:
		return "", newValidationError("type", "is unknown")
	}
	input.Reference = strings.TrimSpace(input.Reference)
	if len(input.Reference) > stockReferenceMaxLen {
		return "", newValidationError("reference", "is too long")
	}
	input.Note = strings.TrimSpace(input.Note)
	if len([]rune(input.Note)) > stockNoteMaxLen {
		return "", newValidationError("note", "is too long")
	}
	if input.UnitCost != nil {
		// 成本按 2 位小数落库，重放只能看到落库值
		cost := input.UnitCost.Round(2)
		if !cost.Equal(*input.UnitCost) {
			return "", newValidationError("unit_cost", "must have at most 2 decimal places")
		}
		input.UnitCost = &cost
	}
	return movementType, nil
}

// replayProductLedger 按写入顺序重放商品全部流水并返回历史；历史无法重放视为存储损坏
func replayProductLedger(movementRepo repository.StockMovementRepository, product *models.Product) (*valuation.Ledger, []models.StockMovement, error) {
	method, err := valuation.ParseMethod(product.ValuationMethod)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: product %d valuation method %q", ErrStorageUnavailable, product.ID, product.ValuationMethod)
	}
	rows, err := movementRepo.ListByProduct(product.ID)
	if err != nil {
		return nil, nil, err
	}
	movements := make([]valuation.Movement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, toValuationMovement(row))
	}
	ledger, err := valuation.Replay(method, movements)
	if err != nil {
		logger.Errorw("stock_ledger_replay_failed", "product_id", product.ID, "error", err)
		return nil, nil, fmt.Errorf("%w: replay product %d: %v", ErrStorageUnavailable, product.ID, err)
	}
	return ledger, rows, nil
}

// monotonicCreatedAt 新流水时间不早于上一条，时钟回拨时沿用上一条的时间
func monotonicCreatedAt(tx *gorm.DB, history []models.StockMovement) time.Time {
	now := tx.NowFunc()
	if n := len(history); n > 0 && history[n-1].CreatedAt.After(now) {
		return history[n-1].CreatedAt
	}
	return now
}

func toValuationMovement(row models.StockMovement) valuation.Movement {
	return valuation.Movement{
		Type:     valuation.MovementType(row.Type),
		Quantity: row.Quantity,
		UnitCost: row.UnitCost.DecimalPtr(),
	}
}

func buildStockSnapshot(product *models.Product, ledger *valuation.Ledger, count int64) *StockSnapshot {
	state := ledger.State()
	return &StockSnapshot{
		ProductID:         product.ID,
		ValuationMethod:   string(ledger.Method()),
		Quantity:          state.Quantity,
		UnitCost:          state.UnitCost,
		TotalValue:        state.TotalValue,
		Lots:              state.Lots,
		Status:            string(valuation.Classify(state.Quantity, int64(product.LowStockThreshold))),
		LowStockThreshold: product.LowStockThreshold,
		MovementCount:     count,
	}
}

func snapshotToCache(snapshot *StockSnapshot) *cache.StockState {
	return &cache.StockState{
		ProductID:         snapshot.ProductID,
		ValuationMethod:   snapshot.ValuationMethod,
		Quantity:          snapshot.Quantity,
		UnitCost:          snapshot.UnitCost,
		TotalValue:        snapshot.TotalValue,
		Lots:              snapshot.Lots,
		Status:            snapshot.Status,
		LowStockThreshold: snapshot.LowStockThreshold,
		MovementCount:     snapshot.MovementCount,
		UpdatedAt:         time.Now().Unix(),
	}
}

func snapshotFromCache(state *cache.StockState) *StockSnapshot {
	return &StockSnapshot{
		ProductID:         state.ProductID,
		ValuationMethod:   state.ValuationMethod,
		Quantity:          state.Quantity,
		UnitCost:          state.UnitCost,
		TotalValue:        state.TotalValue,
		Lots:              state.Lots,
		Status:            state.Status,
		LowStockThreshold: state.LowStockThreshold,
		MovementCount:     state.MovementCount,
	}
}

// orderStockReference 订单库存流水参考号，按订单行（商品）区分
func orderStockReference(orderID, productID uint, movementType string) string {
	return fmt.Sprintf("order:%d:product:%d:%s", orderID, productID, movementType)
}

func stockRejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrProductNotFound):
		return "product_not_found"
	case errors.Is(err, ErrStockNotTracked):
		return "not_tracked"
	default:
		return "storage"
	}
}

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = constants.DefaultPageSize
	}
	if pageSize > constants.MaxPageSize {
		pageSize = constants.MaxPageSize
	}
	return page, pageSize
}
