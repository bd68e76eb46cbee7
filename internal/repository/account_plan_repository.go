package repository

import (
	"errors"

	"github.com/dujiao-next/commerce-ledger/internal/models"

	"gorm.io/gorm"
)

// AccountPlanRepository 用户套餐数据访问接口
type AccountPlanRepository interface {
	GetByUserID(userID uint) (*models.AccountPlan, error)
	WithTx(tx *gorm.DB) AccountPlanRepository
}

// GormAccountPlanRepository GORM 实现
type GormAccountPlanRepository struct {
	db *gorm.DB
}

// NewAccountPlanRepository 创建套餐仓库
func NewAccountPlanRepository(db *gorm.DB) *GormAccountPlanRepository {
	return &GormAccountPlanRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAccountPlanRepository) WithTx(tx *gorm.DB) AccountPlanRepository {
	if tx == nil {
		return r
	}
	return &GormAccountPlanRepository{db: tx}
}

// GetByUserID 获取用户套餐
func (r *GormAccountPlanRepository) GetByUserID(userID uint) (*models.AccountPlan, error) {
	if userID == 0 {
		return nil, nil
	}
	var plan models.AccountPlan
	if err := r.db.Where("user_id = ?", userID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
