package repository

import (
	"errors"
	"strings"

	"github.com/dujiao-next/commerce-ledger/internal/models"

	"gorm.io/gorm"
)

// StockMovementRepository 库存流水数据访问接口（只追加）
type StockMovementRepository interface {
	Create(movement *models.StockMovement) error
	ListByProduct(productID uint) ([]models.StockMovement, error)
	List(filter StockMovementListFilter) ([]models.StockMovement, int64, error)
	CountByProduct(productID uint) (int64, error)
	GetByReference(reference string) (*models.StockMovement, error)
	ListProductIDs() ([]uint, error)
	WithTx(tx *gorm.DB) StockMovementRepository
}

// GormStockMovementRepository GORM 实现
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewStockMovementRepository 创建库存流水仓库
func NewStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// WithTx 绑定事务
func (r *GormStockMovementRepository) WithTx(tx *gorm.DB) StockMovementRepository {
	if tx == nil {
		return r
	}
	return &GormStockMovementRepository{db: tx}
}

// Create 追加库存流水
func (r *GormStockMovementRepository) Create(movement *models.StockMovement) error {
	return r.db.Create(movement).Error
}

// ListByProduct 按写入顺序（自增 ID）返回商品全部流水，用于重放
func (r *GormStockMovementRepository) ListByProduct(productID uint) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if productID == 0 {
		return movements, nil
	}
	if err := r.db.Where("product_id = ?", productID).
		Order("id ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// List 分页查询库存流水（最新在前）
func (r *GormStockMovementRepository) List(filter StockMovementListFilter) ([]models.StockMovement, int64, error) {
	query := r.db.Model(&models.StockMovement{})
	if filter.ProductID != 0 {
		query = query.Where("product_id = ?", filter.ProductID)
	}
	if movementType := strings.TrimSpace(filter.Type); movementType != "" {
		query = query.Where("type = ?", movementType)
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

	var movements []models.StockMovement
	if err := query.Order("id DESC").Find(&movements).Error; err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// CountByProduct 统计商品流水条数
func (r *GormStockMovementRepository) CountByProduct(productID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&models.StockMovement{}).Where("product_id = ?", productID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetByReference 按参考号获取流水
func (r *GormStockMovementRepository) GetByReference(reference string) (*models.StockMovement, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, nil
	}
	var movement models.StockMovement
	if err := r.db.Where("reference = ?", reference).First(&movement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &movement, nil
}

// ListProductIDs 返回存在流水的商品ID
func (r *GormStockMovementRepository) ListProductIDs() ([]uint, error) {
	var ids []uint
	if err := r.db.Model(&models.StockMovement{}).Distinct().Order("product_id ASC").Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
