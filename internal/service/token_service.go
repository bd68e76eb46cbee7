package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/commerce-ledger/internal/config"
	"github.com/dujiao-next/commerce-ledger/internal/constants"
	"github.com/dujiao-next/commerce-ledger/internal/logger"
	"github.com/dujiao-next/commerce-ledger/internal/metrics"
	"github.com/dujiao-next/commerce-ledger/internal/models"
	"github.com/dujiao-next/commerce-ledger/internal/queue"
	"github.com/dujiao-next/commerce-ledger/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	tokenTextMaxLen = 500
	// adminReferenceMaxLen 与流水 reference 列宽一致
	adminReferenceMaxLen = 191
)

// TokenService 代币账本与订单解锁服务
type TokenService struct {
	tokenRepo repository.TokenRepository
	planRepo  repository.AccountPlanRepository
	publisher LedgerEventPublisher
	cfg       config.TokensConfig
}

// UnlockOrderInput 订单解锁输入
type UnlockOrderInput struct {
	UserID               uint
	OrderID              uint
	PlanGrantsFullAccess bool
}

// UnlockResult 订单解锁结果；Balance 仅在本次扣费时有意义
type UnlockResult struct {
	OrderID uint                `json:"order_id"`
	Charged bool                `json:"charged"`
	ViaPlan bool                `json:"via_plan"`
	Cost    int64               `json:"cost"`
	Balance int64               `json:"balance"`
	Unlock  *models.OrderUnlock `json:"unlock,omitempty"`
}

// SubmitPurchaseRequestInput 提交代币购买申请输入
type SubmitPurchaseRequestInput struct {
	UserID          uint
	PackID          string
	PaymentProofRef string
}

// ReviewPurchaseRequestInput 审核代币购买申请输入
type ReviewPurchaseRequestInput struct {
	RequestID uint
	Action    string
	Reason    string
	AdminID   uint
}

// AdminAdjustTokensInput 管理员调整代币输入
type AdminAdjustTokensInput struct {
	UserID      uint
	Amount      int64
	Description string
	AdminID     uint
	Reference   string // 可选幂等键，重复提交只入账一次
}

// NewTokenService 创建代币服务
func NewTokenService(
	tokenRepo repository.TokenRepository,
	planRepo repository.AccountPlanRepository,
	publisher LedgerEventPublisher,
	cfg config.TokensConfig,
) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		planRepo:  planRepo,
		publisher: publisher,
		cfg:       cfg,
	}
}

// GetBalance 查询用户代币余额（全部流水之和）
func (s *TokenService) GetBalance(userID uint) (int64, error) {
	if userID == 0 {
		return 0, newValidationError("user_id", "is required")
	}
	balance, err := s.tokenRepo.SumBalance(userID)
	if err != nil {
		return 0, storageError(err)
	}
	return balance, nil
}

// IsOrderUnlocked 订单是否已解锁
func (s *TokenService) IsOrderUnlocked(orderID uint) (bool, error) {
	if orderID == 0 {
		return false, newValidationError("order_id", "is required")
	}
	unlock, err := s.tokenRepo.GetUnlockByOrderID(orderID)
	if err != nil {
		return false, storageError(err)
	}
	return unlock != nil, nil
}

// UnlockOrder 解锁订单敏感信息。
// 已解锁或套餐包含完整权限时不扣费；否则在用户钱包行锁下校验余额、写入扣费流水与解锁记录。
// 并发解锁同一订单时由 order_unlocks.order_id 唯一索引兜底，失败方回滚扣费并视为已解锁。
func (s *TokenService) UnlockOrder(input UnlockOrderInput) (*UnlockResult, error) {
	if input.UserID == 0 {
		return nil, newValidationError("user_id", "is required")
	}
	if input.OrderID == 0 {
		return nil, newValidationError("order_id", "is required")
	}

	existing, err := s.tokenRepo.GetUnlockByOrderID(input.OrderID)
	if err != nil {
		return nil, storageError(err)
	}
	if existing != nil {
		metrics.OrderUnlocksTotal.WithLabelValues("already_unlocked").Inc()
		return &UnlockResult{OrderID: input.OrderID, Unlock: existing}, nil
	}
	if input.PlanGrantsFullAccess {
		metrics.OrderUnlocksTotal.WithLabelValues("plan").Inc()
		return &UnlockResult{OrderID: input.OrderID, ViaPlan: true}, nil
	}

	cost := s.unlockCost()
	var result *UnlockResult
	err = s.tokenRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.tokenRepo.WithTx(tx)
		if err := s.lockWallet(repo, input.UserID); err != nil {
			return err
		}
		unlock, err := repo.GetUnlockByOrderID(input.OrderID)
		if err != nil {
			return err
		}
		if unlock != nil {
			result = &UnlockResult{OrderID: input.OrderID, Unlock: unlock}
			return nil
		}

		balance, err := repo.SumBalance(input.UserID)
		if err != nil {
			return err
		}
		if balance < cost {
			return &InsufficientTokensError{Balance: balance, Required: cost}
		}

		reference := fmt.Sprintf("order:%d:%s", input.OrderID, constants.ReferenceOrderUnlock)
		txn := &models.TokenTransaction{
			UserID:      input.UserID,
			Amount:      -cost,
			Type:        constants.TokenTxnTypeOrderUnlock,
			Reference:   &reference,
			Description: fmt.Sprintf("unlock order #%d", input.OrderID),
		}
		if err := repo.CreateTransaction(txn); err != nil {
			return err
		}
		unlock = &models.OrderUnlock{
			OrderID:            input.OrderID,
			UserID:             input.UserID,
			TokenTransactionID: txn.ID,
			Cost:               cost,
			GrantedAt:          time.Now(),
		}
		if err := repo.CreateUnlock(unlock); err != nil {
			return err
		}
		result = &UnlockResult{
			OrderID: input.OrderID,
			Charged: true,
			Cost:    cost,
			Balance: balance - cost,
			Unlock:  unlock,
		}
		return nil
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			unlock, readErr := s.tokenRepo.GetUnlockByOrderID(input.OrderID)
			if readErr == nil && unlock != nil {
				metrics.OrderUnlocksTotal.WithLabelValues("race_lost").Inc()
				logger.Infow("token_unlock_race_lost",
					"order_id", input.OrderID,
					"user_id", input.UserID,
					"winner_user_id", unlock.UserID,
				)
				return &UnlockResult{OrderID: input.OrderID, Unlock: unlock}, nil
			}
		}
		if errors.Is(err, ErrInsufficientTokens) {
			metrics.OrderUnlocksTotal.WithLabelValues("insufficient").Inc()
			return nil, err
		}
		metrics.OrderUnlocksTotal.WithLabelValues("error").Inc()
		return nil, storageError(err)
	}

	if !result.Charged {
		metrics.OrderUnlocksTotal.WithLabelValues("already_unlocked").Inc()
		return result, nil
	}
	metrics.OrderUnlocksTotal.WithLabelValues("charged").Inc()
	metrics.TokenTransactionsTotal.WithLabelValues(constants.TokenTxnTypeOrderUnlock).Inc()
	logger.Infow("token_unlock_charged",
		"order_id", input.OrderID,
		"user_id", input.UserID,
		"cost", cost,
		"balance", result.Balance,
	)
	return result, nil
}

// SubmitPurchaseRequest 提交代币购买申请，每个用户同时只能有一条待审核申请
func (s *TokenService) SubmitPurchaseRequest(input SubmitPurchaseRequestInput) (*models.TokenPurchaseRequest, error) {
	if input.UserID == 0 {
		return nil, newValidationError("user_id", "is required")
	}
	pack, ok := s.cfg.FindPack(input.PackID)
	if !ok || pack.Tokens <= 0 {
		return nil, newValidationError("pack_id", "is unknown")
	}
	proof := strings.TrimSpace(input.PaymentProofRef)
	if proof == "" {
		return nil, newValidationError("payment_proof_ref", "is required")
	}
	if len([]rune(proof)) > tokenTextMaxLen {
		return nil, newValidationError("payment_proof_ref", "is too long")
	}

	var req *models.TokenPurchaseRequest
	err := s.tokenRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.tokenRepo.WithTx(tx)
		if err := s.lockWallet(repo, input.UserID); err != nil {
			return err
		}
		pending, err := repo.GetPendingPurchaseRequest(input.UserID)
		if err != nil {
			return err
		}
		if pending != nil {
			return ErrPendingRequestExists
		}
		slot := input.UserID
		req = &models.TokenPurchaseRequest{
			RequestNo:       generateTokenRequestNo(),
			UserID:          input.UserID,
			PackID:          pack.ID,
			Tokens:          pack.Tokens,
			PriceDA:         models.NewMoneyFromDecimal(pack.Price()),
			PaymentProofRef: proof,
			Status:          constants.TokenRequestStatusPending,
			PendingSlot:     &slot,
		}
		return repo.CreatePurchaseRequest(req)
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, ErrPendingRequestExists
		}
		return nil, storageError(err)
	}

	metrics.PurchaseRequestsTotal.WithLabelValues(constants.TokenRequestStatusPending).Inc()
	logger.Infow("token_purchase_request_submitted",
		"request_id", req.ID,
		"request_no", req.RequestNo,
		"user_id", req.UserID,
		"pack_id", req.PackID,
	)
	return req, nil
}

// ReviewPurchaseRequest 审核代币购买申请。
// 通过时按审核时刻的套餐等级计算倍率并入账；驳回只记录原因。非待审核状态返回 ErrAlreadyReviewed。
func (s *TokenService) ReviewPurchaseRequest(input ReviewPurchaseRequestInput) (*models.TokenPurchaseRequest, error) {
	if input.RequestID == 0 {
		return nil, newValidationError("request_id", "is required")
	}
	action := strings.ToLower(strings.TrimSpace(input.Action))
	if action != constants.TokenRequestActionApprove && action != constants.TokenRequestActionReject {
		return nil, newValidationError("action", "must be approve or reject")
	}
	reason := strings.TrimSpace(input.Reason)
	if len([]rune(reason)) > tokenTextMaxLen {
		return nil, newValidationError("reason", "is too long")
	}

	current, err := s.tokenRepo.GetPurchaseRequestByID(input.RequestID)
	if err != nil {
		return nil, storageError(err)
	}
	if current == nil {
		return nil, ErrPurchaseRequestNotFound
	}

	var reviewed *models.TokenPurchaseRequest
	err = s.tokenRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.tokenRepo.WithTx(tx)
		// 与提交申请相同的加锁顺序：先钱包，后申请
		if err := s.lockWallet(repo, current.UserID); err != nil {
			return err
		}
		req, err := repo.GetPurchaseRequestByIDForUpdate(input.RequestID)
		if err != nil {
			return err
		}
		if req == nil {
			return ErrPurchaseRequestNotFound
		}
		if req.Status != constants.TokenRequestStatusPending {
			return ErrAlreadyReviewed
		}

		now := time.Now()
		req.ReviewedAt = &now
		req.PendingSlot = nil
		if input.AdminID != 0 {
			adminID := input.AdminID
			req.ReviewedBy = &adminID
		}

		if action == constants.TokenRequestActionReject {
			req.Status = constants.TokenRequestStatusRejected
			req.RejectionReason = reason
		} else {
			tier, err := s.resolvePlanTier(tx, req.UserID, now)
			if err != nil {
				return err
			}
			credited := s.creditedTokens(req.Tokens, tier)
			reference := fmt.Sprintf("token_request:%d:%s", req.ID, constants.TokenRequestActionApprove)
			txn := &models.TokenTransaction{
				UserID:      req.UserID,
				Amount:      credited,
				Type:        constants.TokenTxnTypePurchasePack,
				Reference:   &reference,
				Description: fmt.Sprintf("token pack %s (%s)", req.PackID, req.RequestNo),
				OperatorID:  req.ReviewedBy,
			}
			if err := repo.CreateTransaction(txn); err != nil {
				return err
			}
			req.Status = constants.TokenRequestStatusApproved
			req.CreditedTokens = credited
			req.PlanTierAtReview = tier
		}
		if err := repo.UpdatePurchaseRequest(req); err != nil {
			return err
		}
		reviewed = req
		return nil
	})
	if err != nil {
		return nil, storageError(err)
	}

	metrics.PurchaseRequestsTotal.WithLabelValues(reviewed.Status).Inc()
	if reviewed.Status == constants.TokenRequestStatusApproved {
		metrics.TokenTransactionsTotal.WithLabelValues(constants.TokenTxnTypePurchasePack).Inc()
	}
	logger.Infow("token_purchase_request_reviewed",
		"request_id", reviewed.ID,
		"user_id", reviewed.UserID,
		"status", reviewed.Status,
		"credited_tokens", reviewed.CreditedTokens,
		"plan_tier", reviewed.PlanTierAtReview,
	)
	if s.publisher != nil {
		payload := queue.TokenRequestReviewedPayload{
			RequestID:      reviewed.ID,
			UserID:         reviewed.UserID,
			Status:         reviewed.Status,
			CreditedTokens: reviewed.CreditedTokens,
		}
		if err := s.publisher.EnqueueTokenRequestReviewed(payload); err != nil {
			logger.Warnw("token_request_reviewed_enqueue_failed", "request_id", reviewed.ID, "error", err)
		}
	}
	return reviewed, nil
}

// AdminAdjustTokens 管理员调整代币，允许余额为负，返回调整后余额
func (s *TokenService) AdminAdjustTokens(input AdminAdjustTokensInput) (int64, error) {
	if input.UserID == 0 {
		return 0, newValidationError("user_id", "is required")
	}
	if input.Amount == 0 {
		return 0, newValidationError("amount", "must not be zero")
	}
	description := strings.TrimSpace(input.Description)
	if len([]rune(description)) > tokenTextMaxLen {
		return 0, newValidationError("description", "is too long")
	}
	reference := adminAdjustReference(input.Reference)
	if len(reference) > adminReferenceMaxLen {
		return 0, newValidationError("reference", "is too long")
	}

	var balance int64
	duplicate := false
	err := s.tokenRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.tokenRepo.WithTx(tx)
		if err := s.lockWallet(repo, input.UserID); err != nil {
			return err
		}
		if reference != "" {
			existing, err := repo.GetTransactionByReference(reference)
			if err != nil {
				return err
			}
			if existing != nil {
				if existing.UserID != input.UserID {
					return newValidationError("reference", "is already used by another user")
				}
				sum, err := repo.SumBalance(input.UserID)
				if err != nil {
					return err
				}
				balance = sum
				duplicate = true
				return nil
			}
		}
		txn := &models.TokenTransaction{
			UserID:      input.UserID,
			Amount:      input.Amount,
			Type:        constants.TokenTxnTypeAdminAdjust,
			Description: description,
		}
		if input.AdminID != 0 {
			adminID := input.AdminID
			txn.OperatorID = &adminID
		}
		if reference != "" {
			txn.Reference = &reference
		}
		if err := repo.CreateTransaction(txn); err != nil {
			if reference != "" && repository.IsUniqueViolation(err) {
				return newValidationError("reference", "is already used by another user")
			}
			return err
		}
		sum, err := repo.SumBalance(input.UserID)
		if err != nil {
			return err
		}
		balance = sum
		return nil
	})
	if err != nil {
		return 0, storageError(err)
	}
	if duplicate {
		logger.Infow("token_admin_adjust_duplicate",
			"user_id", input.UserID,
			"reference", reference,
			"balance", balance,
		)
		return balance, nil
	}

	metrics.TokenTransactionsTotal.WithLabelValues(constants.TokenTxnTypeAdminAdjust).Inc()
	logger.Infow("token_admin_adjusted",
		"user_id", input.UserID,
		"amount", input.Amount,
		"balance", balance,
		"admin_id", input.AdminID,
	)
	if balance < 0 {
		logger.Warnw("token_balance_negative", "user_id", input.UserID, "balance", balance)
	}
	return balance, nil
}

// ListTransactions 分页查询代币流水
func (s *TokenService) ListTransactions(filter repository.TokenTransactionListFilter) ([]models.TokenTransaction, int64, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	txns, total, err := s.tokenRepo.ListTransactions(filter)
	if err != nil {
		return nil, 0, storageError(err)
	}
	return txns, total, nil
}

// ListPurchaseRequests 分页查询代币购买申请
func (s *TokenService) ListPurchaseRequests(filter repository.TokenPurchaseRequestListFilter) ([]models.TokenPurchaseRequest, int64, error) {
	filter.Page, filter.PageSize = normalizePage(filter.Page, filter.PageSize)
	reqs, total, err := s.tokenRepo.ListPurchaseRequests(filter)
	if err != nil {
		return nil, 0, storageError(err)
	}
	return reqs, total, nil
}

// GetPurchaseRequest 获取代币购买申请
func (s *TokenService) GetPurchaseRequest(id uint) (*models.TokenPurchaseRequest, error) {
	req, err := s.tokenRepo.GetPurchaseRequestByID(id)
	if err != nil {
		return nil, storageError(err)
	}
	if req == nil {
		return nil, ErrPurchaseRequestNotFound
	}
	return req, nil
}

// ListNegativeBalances 查询余额为负的用户
func (s *TokenService) ListNegativeBalances() (map[uint]int64, error) {
	balances, err := s.tokenRepo.ListNegativeBalances(nil)
	if err != nil {
		return nil, storageError(err)
	}
	return balances, nil
}

// lockWallet 确保钱包行存在并加锁，同一用户的代币写入在此串行
func (s *TokenService) lockWallet(repo repository.TokenRepository, userID uint) error {
	if err := repo.EnsureWallet(userID); err != nil {
		return err
	}
	wallet, err := repo.GetWalletForUpdate(userID)
	if err != nil {
		return err
	}
	if wallet == nil {
		return fmt.Errorf("token wallet missing for user %d", userID)
	}
	return repo.TouchWallet(wallet)
}

func (s *TokenService) resolvePlanTier(tx *gorm.DB, userID uint, now time.Time) (string, error) {
	if s.planRepo == nil {
		return constants.PlanTierFree, nil
	}
	plan, err := s.planRepo.WithTx(tx).GetByUserID(userID)
	if err != nil {
		return "", err
	}
	tier := plan.ActiveTier(now)
	if tier == "" {
		return constants.PlanTierFree, nil
	}
	return tier, nil
}

// PlanGrantsFullAccess 用户当前套餐是否包含订单完整查看权限
func (s *TokenService) PlanGrantsFullAccess(userID uint) (bool, error) {
	if userID == 0 || len(s.cfg.FullAccessTiers) == 0 {
		return false, nil
	}
	tier, err := s.resolvePlanTier(nil, userID, time.Now())
	if err != nil {
		return false, storageError(err)
	}
	return tierListed(s.cfg.FullAccessTiers, tier), nil
}

// creditedTokens 入账数量 = floor(基础数量 × 套餐倍率)
func (s *TokenService) creditedTokens(tokens int64, tier string) int64 {
	multiplier := decimal.NewFromInt(1)
	if s.cfg.ProMultiplier > 0 && tierListed(s.cfg.ProTiers, tier) {
		multiplier = decimal.NewFromFloat(s.cfg.ProMultiplier)
	}
	return decimal.NewFromInt(tokens).Mul(multiplier).Floor().IntPart()
}

func tierListed(tiers []string, tier string) bool {
	for _, item := range tiers {
		if strings.EqualFold(strings.TrimSpace(item), tier) {
			return true
		}
	}
	return false
}

func (s *TokenService) unlockCost() int64 {
	if s.cfg.UnlockCost <= 0 {
		return constants.DefaultUnlockCost
	}
	return s.cfg.UnlockCost
}

func generateTokenRequestNo() string {
	now := time.Now().Format("20060102150405")
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("TR%s%s", now, suffix)
}

// adminAdjustReference 管理员幂等键加前缀，避免与订单、申请流水的参考号冲突
func adminAdjustReference(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return ""
	}
	return "admin_adjust:" + key
}
