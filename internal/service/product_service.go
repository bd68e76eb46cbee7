package service

import (
	"context"
	"strings"

	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/pricing"
	"github.com/dujiao-next/commerce-ledger/internal/repository"
	"github.com/dujiao-next/commerce-ledger/internal/valuation"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const productNameMaxLen = 255

// ProductService 商品业务服务
type ProductService struct {
	repo         repository.ProductRepository
	movementRepo repository.StockMovementRepository
	stockSvc     *StockService
}

// NewProductService 创建商品服务
func NewProductService(
	repo repository.ProductRepository,
	movementRepo repository.StockMovementRepository,
	stockSvc *StockService,
) *ProductService {
	return &ProductService{
		repo:         repo,
		movementRepo: movementRepo,
		stockSvc:     stockSvc,
	}
}

// CreateProductInput 创建/更新商品输入
type CreateProductInput struct {
	Name              string
	BasePrice         *decimal.Decimal
	ShippingFee       decimal.Decimal
	Variations        []pricing.Variation
	Promotions        []pricing.Promotion
	TrackStock        bool
	ValuationMethod   string
	LowStockThreshold int
	IsActive          *bool
}

// List 商品列表
func (s *ProductService) List(filter repository.ProductListFilter) ([]models.Product, int64, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	products, total, err := s.repo.List(filter)
	if err != nil {
		return nil, 0, storageError(err)
	}
	return products, total, nil
}

// Get 获取商品
func (s *ProductService) Get(id uint) (*models.Product, error) {
	product, err := s.repo.GetByID(id)
	if err != nil {
		return nil, storageError(err)
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

// Create 创建商品
func (s *ProductService) Create(input CreateProductInput) (*models.Product, error) {
	method, err := validateProductInput(&input)
	if err != nil {
		return nil, err
	}
	product := &models.Product{IsActive: true}
	applyProductInput(product, input, method)
	if err := s.repo.Create(product); err != nil {
		return nil, storageError(err)
	}
	logger.Infow("product_created",
		"product_id", product.ID,
		"track_stock", product.TrackStock,
		"valuation_method", product.ValuationMethod,
	)
	return product, nil
}

// Update 更新商品；已有库存流水的商品不允许切换计价方式
func (s *ProductService) Update(ctx context.Context, id uint, input CreateProductInput) (*models.Product, error) {
	method, err := validateProductInput(&input)
	if err != nil {
		return nil, err
	}

	var updated *models.Product
	update := func() error {
		return s.repo.Transaction(func(tx *gorm.DB) error {
			product, err := s.repo.WithTx(tx).GetByIDForUpdate(id)
			if err != nil {
				return err
			}
			if product == nil {
				return ErrProductNotFound
			}
			if product.ValuationMethod != string(method) {
				count, err := s.movementRepo.WithTx(tx).CountByProduct(product.ID)
				if err != nil {
					return err
				}
				if count > 0 {
					return ErrValuationMethodLocked
				}
			}
			applyProductInput(product, input, method)
			if err := s.repo.WithTx(tx).Update(product); err != nil {
				return err
			}
			updated = product
			return nil
		})
	}
	// 阈值等属性变化会改变快照，更新与清缓存都在库存锁内完成
	if s.stockSvc != nil {
		err = s.stockSvc.WithStateLock(ctx, id, update)
	} else {
		err = update()
	}
	if err != nil {
		return nil, storageError(err)
	}
	logger.Infow("product_updated", "product_id", updated.ID, "valuation_method", updated.ValuationMethod)
	return updated, nil
}

func validateProductInput(input *CreateProductInput) (valuation.Method, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return "", newValidationError("name", "is required")
	}
	if len([]rune(input.Name)) > productNameMaxLen {
		return "", newValidationError("name", "is too long")
	}
	if input.BasePrice != nil && input.BasePrice.IsNegative() {
		return "", newValidationError("base_price", "must not be negative")
	}
	if input.ShippingFee.IsNegative() {
		return "", newValidationError("shipping_fee", "must not be negative")
	}
	if input.LowStockThreshold < 0 {
		return "", newValidationError("low_stock_threshold", "must not be negative")
	}
	method, err := valuation.ParseMethod(strings.ToLower(strings.TrimSpace(input.ValuationMethod)))
	if err != nil {
		return "", newValidationError("valuation_method", "is unknown")
	}
	if err := pricing.ValidateVariations(input.Variations); err != nil {
		return "", newValidationError("variations", err.Error())
	}
	if err := pricing.ValidatePromotions(input.Promotions); err != nil {
		return "", newValidationError("promotions", err.Error())
	}
	return method, nil
}

func applyProductInput(product *models.Product, input CreateProductInput, method valuation.Method) {
	product.Name = input.Name
	product.BasePrice = models.NewMoneyPtr(input.BasePrice)
	product.ShippingFee = models.NewMoneyFromDecimal(input.ShippingFee)
	product.Variations = models.VariationList(input.Variations)
	product.Promotions = models.PromotionList(input.Promotions)
	product.TrackStock = input.TrackStock
	product.ValuationMethod = string(method)
	product.LowStockThreshold = input.LowStockThreshold
	if input.IsActive != nil {
		product.IsActive = *input.IsActive
	}
}
