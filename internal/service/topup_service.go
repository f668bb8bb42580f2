package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mlmpay/internal/config"
	"mlmpay/internal/infrastructure/lock"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"
	"mlmpay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrPinNotFound = errors.New("套餐不存在或已下架")

// TopupService 套餐购买
//
// 购买链路：扣款 -> 落订单 -> 激活账号，同一事务；首单且套餐
// 配置了池类型时，事务提交后把买家安置进矩阵池
type TopupService struct {
	db        *gorm.DB
	cfg       *config.Config
	redis     *redis.Client
	ledger    *LedgerService
	pool      *PoolService
	orderRepo *repository.OrderRepository
	userRepo  *repository.UserRepository
	txRepo    *repository.TransactionRepository
	outbox    *repository.OutboxRepository
}

func NewTopupService(db *gorm.DB, cfg *config.Config, redisClient *redis.Client) *TopupService {
	return &TopupService{
		db:        db,
		cfg:       cfg,
		redis:     redisClient,
		ledger:    NewLedgerService(db),
		pool:      NewPoolService(db, cfg, redisClient),
		orderRepo: repository.NewOrderRepository(db),
		userRepo:  repository.NewUserRepository(db),
		txRepo:    repository.NewTransactionRepository(db),
		outbox:    repository.NewOutboxRepository(db),
	}
}

// Topup 用资金钱包购买套餐
func (s *TopupService) Topup(ctx context.Context, uCode int64, pinSlug string) (*model.Order, error) {
	var pin model.PinSetting
	err := s.db.WithContext(ctx).Where("slug = ? AND status = 1", pinSlug).First(&pin).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPinNotFound
		}
		return nil, err
	}

	user, err := s.userRepo.GetByUCode(ctx, uCode)
	if err != nil {
		return nil, err
	}

	// redis 未配置时退化为进程内互斥
	if s.redis != nil {
		walletLock := lock.NewWalletLock(s.redis, uCode, uuid.NewString())
		if err := walletLock.Lock(ctx, 100*time.Millisecond, 50); err != nil {
			return nil, err
		}
		defer func() {
			if err := walletLock.Unlock(context.Background()); err != nil {
				log.Printf("[Topup] 释放钱包锁失败: uCode=%d, err=%v", uCode, err)
			}
		}()
	} else {
		unlock, err := lock.LockWalletLocal(ctx, uCode, 100*time.Millisecond, 50)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	var order *model.Order
	err = s.db.Transaction(func(tx *gorm.DB) error {
		result, err := s.ledger.AdjustBalance(ctx, tx, uCode, model.SlugFundWallet, -pin.Amount)
		if err != nil {
			return err
		}
		if !result.Applied {
			return repository.ErrInsufficientBalance
		}

		order = &model.Order{
			UCode:        uCode,
			PinID:        pin.ID,
			BV:           pin.BV,
			Amount:       pin.Amount,
			Status:       model.OrderStatusActive,
			PayOutStatus: model.PayOutEligible,
		}
		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("创建订单失败: %w", err)
		}

		trans := &model.FundTransaction{
			TxNo:                 idgen.GenerateOrderNo(),
			UCode:                uCode,
			TxType:               model.FundTxTypeTopup,
			DebitCredit:          model.DebitCreditDebit,
			WalletType:           model.SlugFundWallet,
			Amount:               pin.Amount,
			CurrentWalletBalance: result.NewBalance + pin.Amount,
			PostWalletBalance:    result.NewBalance,
			Remark:               fmt.Sprintf("%s 购买套餐 %s，金额 %.4f", user.Username, pin.Name, pin.Amount),
			Status:               1,
		}
		if err := s.txRepo.CreateFund(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录购买流水失败: %w", err)
		}

		if err := s.userRepo.Activate(ctx, tx, uCode); err != nil {
			return fmt.Errorf("激活账号失败: %w", err)
		}

		return s.outbox.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.FundEvent, trans.TxNo, map[string]interface{}{
			"tx_no":   trans.TxNo,
			"tx_type": model.FundTxTypeTopup,
			"u_code":  uCode,
			"pin":     pin.Slug,
			"amount":  pin.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	// 首单进池；池安置失败不回滚订单，下次购买或人工补登
	if pin.PoolType != "" {
		count, cErr := s.orderRepo.CountByUCode(ctx, nil, uCode)
		if cErr == nil && count == 1 {
			if _, pErr := s.pool.Register(ctx, uCode, pin.PoolType); pErr != nil {
				log.Printf("[Topup] 矩阵池安置失败: uCode=%d, poolType=%s, err=%v", uCode, pin.PoolType, pErr)
			}
		}
	}
	return order, nil
}
