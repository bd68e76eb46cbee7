package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository 代币账本数据访问接口
type TokenRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) TokenRepository

	EnsureWallet(userID uint) error
	GetWalletForUpdate(userID uint) (*models.TokenWallet, error)
	TouchWallet(wallet *models.TokenWallet) error

	SumBalance(userID uint) (int64, error)
	CreateTransaction(txn *models.TokenTransaction) error
	GetTransactionByReference(reference string) (*models.TokenTransaction, error)
	ListTransactions(filter TokenTransactionListFilter) ([]models.TokenTransaction, int64, error)
	ListNegativeBalances(userIDs []uint) (map[uint]int64, error)

	GetUnlockByOrderID(orderID uint) (*models.OrderUnlock, error)
	CreateUnlock(unlock *models.OrderUnlock) error

	CreatePurchaseRequest(req *models.TokenPurchaseRequest) error
	UpdatePurchaseRequest(req *models.TokenPurchaseRequest) error
	GetPurchaseRequestByID(id uint) (*models.TokenPurchaseRequest, error)
	GetPurchaseRequestByIDForUpdate(id uint) (*models.TokenPurchaseRequest, error)
	GetPendingPurchaseRequest(userID uint) (*models.TokenPurchaseRequest, error)
	ListPurchaseRequests(filter TokenPurchaseRequestListFilter) ([]models.TokenPurchaseRequest, int64, error)
}

// GormTokenRepository GORM 实现
type GormTokenRepository struct {
	db *gorm.DB
}

// NewTokenRepository 创建代币仓库
func NewTokenRepository(db *gorm.DB) *GormTokenRepository {
	return &GormTokenRepository{db: db}
}

// WithTx 绑定事务
func (r *GormTokenRepository) WithTx(tx *gorm.DB) TokenRepository {
	if tx == nil {
		return r
	}
	return &GormTokenRepository{db: tx}
}

// Transaction 执行事务
func (r *GormTokenRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// EnsureWallet 确保用户钱包行存在（并发创建时依赖唯一索引去重）
func (r *GormTokenRepository) EnsureWallet(userID uint) error {
	if userID == 0 {
		return nil
	}
	wallet := models.TokenWallet{UserID: userID}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoNothing: true,
	}).Create(&wallet).Error
}

// GetWalletForUpdate 加锁获取用户钱包行
func (r *GormTokenRepository) GetWalletForUpdate(userID uint) (*models.TokenWallet, error) {
	if userID == 0 {
		return nil, nil
	}
	var wallet models.TokenWallet
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &wallet, nil
}

// TouchWallet 刷新钱包更新时间（sqlite 下提前获取写锁）
func (r *GormTokenRepository) TouchWallet(wallet *models.TokenWallet) error {
	if wallet == nil {
		return nil
	}
	return r.db.Model(wallet).Update("updated_at", time.Now()).Error
}

// SumBalance 计算用户余额（流水金额之和）
func (r *GormTokenRepository) SumBalance(userID uint) (int64, error) {
	var balance int64
	if err := r.db.Model(&models.TokenTransaction{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&balance).Error; err != nil {
		return 0, err
	}
	return balance, nil
}

// CreateTransaction 追加代币流水
func (r *GormTokenRepository) CreateTransaction(txn *models.TokenTransaction) error {
	return r.db.Create(txn).Error
}

// GetTransactionByReference 按参考号获取流水
func (r *GormTokenRepository) GetTransactionByReference(reference string) (*models.TokenTransaction, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var txn models.TokenTransaction
	if err := r.db.Where("reference = ?", reference).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// ListTransactions 分页查询代币流水
func (r *GormTokenRepository) ListTransactions(filter TokenTransactionListFilter) ([]models.TokenTransaction, int64, error) {
	query := r.db.Model(&models.TokenTransaction{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if txnType := strings.TrimSpace(filter.Type); txnType != "" {
		query = query.Where("type = ?", txnType)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var txns []models.TokenTransaction
	if err := query.Order("id DESC").Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

type userBalanceRow struct {
	UserID  uint
	Balance int64
}

// ListNegativeBalances 返回余额为负的用户（仅管理员调账可能产生）
func (r *GormTokenRepository) ListNegativeBalances(userIDs []uint) (map[uint]int64, error) {
	query := r.db.Model(&models.TokenTransaction{}).
		Select("user_id, COALESCE(SUM(amount), 0) AS balance").
		Group("user_id").
		Having("COALESCE(SUM(amount), 0) < 0")
	if len(userIDs) > 0 {
		query = query.Where("user_id IN ?", userIDs)
	}
	var rows []userBalanceRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	result := make(map[uint]int64, len(rows))
	for _, row := range rows {
		result[row.UserID] = row.Balance
	}
	return result, nil
}

// GetUnlockByOrderID 获取订单解锁记录
func (r *GormTokenRepository) GetUnlockByOrderID(orderID uint) (*models.OrderUnlock, error) {
	if orderID == 0 {
		return nil, nil
	}
	var unlock models.OrderUnlock
	if err := r.db.Where("order_id = ?", orderID).First(&unlock).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &unlock, nil
}

// CreateUnlock 创建订单解锁记录
func (r *GormTokenRepository) CreateUnlock(unlock *models.OrderUnlock) error {
	return r.db.Create(unlock).Error
}

// CreatePurchaseRequest 创建代币购买申请
func (r *GormTokenRepository) CreatePurchaseRequest(req *models.TokenPurchaseRequest) error {
	return r.db.Create(req).Error
}

// UpdatePurchaseRequest 更新代币购买申请
func (r *GormTokenRepository) UpdatePurchaseRequest(req *models.TokenPurchaseRequest) error {
	return r.db.Save(req).Error
}

// GetPurchaseRequestByID 按 ID 获取申请
func (r *GormTokenRepository) GetPurchaseRequestByID(id uint) (*models.TokenPurchaseRequest, error) {
	return r.findPurchaseRequest(r.db, id)
}

// GetPurchaseRequestByIDForUpdate 加锁获取申请
func (r *GormTokenRepository) GetPurchaseRequestByIDForUpdate(id uint) (*models.TokenPurchaseRequest, error) {
	return r.findPurchaseRequest(r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *GormTokenRepository) findPurchaseRequest(db *gorm.DB, id uint) (*models.TokenPurchaseRequest, error) {
	if id == 0 {
		return nil, nil
	}
	var req models.TokenPurchaseRequest
	if err := db.First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// GetPendingPurchaseRequest 获取用户待审核申请
func (r *GormTokenRepository) GetPendingPurchaseRequest(userID uint) (*models.TokenPurchaseRequest, error) {
	if userID == 0 {
		return nil, nil
	}
	var req models.TokenPurchaseRequest
	if err := r.db.Where("user_id = ? AND status = ?", userID, constants.TokenRequestStatusPending).
		Order("id DESC").
		First(&req).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// ListPurchaseRequests 分页查询代币购买申请
func (r *GormTokenRepository) ListPurchaseRequests(filter TokenPurchaseRequestListFilter) ([]models.TokenPurchaseRequest, int64, error) {
	query := r.db.Model(&models.TokenPurchaseRequest{})
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if requestNo := strings.TrimSpace(filter.RequestNo); requestNo != "" {
		query = query.Where("request_no = ?", requestNo)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var reqs []models.TokenPurchaseRequest
	if err := query.Order("id DESC").Find(&reqs).Error; err != nil {
		return nil, 0, err
	}
	return reqs, total, nil
}
