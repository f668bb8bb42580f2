package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"mlmpay/internal/config"
	"mlmpay/internal/gateway"
	"mlmpay/internal/infrastructure/lock"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"
	"mlmpay/pkg/idgen"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ============================================================================
// 资金服务：转账 / 互转 / 提现
// ============================================================================
//
// 【重要】三条铁律：
// 1. 同一用户的多步资金流程必须先拿用户级分布式锁再动钱包
// 2. 提现的余额校验在任何落库、任何网关调用之前
// 3. 链上代付先问网关再扣款：结果未知时绝不能先把钱扣了
//
// ============================================================================

var (
	ErrTransferBelowMinimum = errors.New("转账金额低于最低限额")
	ErrSameUser             = errors.New("不能向自己转账")
	ErrInvalidAmount        = errors.New("金额必须大于 0")
	ErrGatewayUncertain     = errors.New("代付网关结果未知，流水已挂起待人工对账")
)

// FundService 用户侧资金操作
type FundService struct {
	db          *gorm.DB
	cfg         *config.Config
	redis       *redis.Client
	gateway     *gateway.Client
	income      *IncomeService
	ledger      *LedgerService
	walletRepo  *repository.WalletRepository
	settingRepo *repository.WalletSettingRepository
	userRepo    *repository.UserRepository
	txRepo      *repository.TransactionRepository
	accountRepo *repository.WithdrawalAccountRepository
	outboxRepo  *repository.OutboxRepository
}

func NewFundService(db *gorm.DB, cfg *config.Config, redisClient *redis.Client, gatewayClient *gateway.Client) *FundService {
	return &FundService{
		db:          db,
		cfg:         cfg,
		redis:       redisClient,
		gateway:     gatewayClient,
		income:      NewIncomeService(db, cfg, redisClient),
		ledger:      NewLedgerService(db),
		walletRepo:  repository.NewWalletRepository(db),
		settingRepo: repository.NewWalletSettingRepository(db),
		userRepo:    repository.NewUserRepository(db),
		txRepo:      repository.NewTransactionRepository(db),
		accountRepo: repository.NewWithdrawalAccountRepository(db),
		outboxRepo:  repository.NewOutboxRepository(db),
	}
}

// lockWallet 拿用户级钱包锁，返回解锁函数
// redis 未配置时退化为进程内互斥
func (s *FundService) lockWallet(ctx context.Context, uCode int64) (func(), error) {
	if s.redis == nil {
		return lock.LockWalletLocal(ctx, uCode, 100*time.Millisecond, 50)
	}
	walletLock := lock.NewWalletLock(s.redis, uCode, uuid.NewString())
	if err := walletLock.Lock(ctx, 100*time.Millisecond, 50); err != nil {
		return nil, err
	}
	return func() {
		if err := walletLock.Unlock(context.Background()); err != nil {
			log.Printf("[Fund] 释放钱包锁失败: uCode=%d, err=%v", uCode, err)
		}
	}, nil
}

// Transfer 同钱包用户间转账
//
// 手续费从入账侧扣：出账方扣全额 amount，入账方到账
// amount - amount × 手续费%。两侧流水和两侧余额变更在同一事务
func (s *FundService) Transfer(ctx context.Context, fromUCode, toUCode int64, slug string, amount float64) (*model.FundTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromUCode == toUCode {
		return nil, ErrSameUser
	}
	if amount < s.cfg.Business.TransferMinimum {
		return nil, ErrTransferBelowMinimum
	}

	setting, err := s.settingRepo.Resolve(ctx, nil, slug)
	if err != nil {
		return nil, err
	}
	receiver, err := s.userRepo.GetByUCode(ctx, toUCode)
	if err != nil {
		return nil, err
	}

	txCharge := amount * s.cfg.Business.TransferChargePercent / 100
	creditAmount := amount - txCharge

	unlock, err := s.lockWallet(ctx, fromUCode)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var debitTrans *model.FundTransaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		currentBalance, err := s.walletRepo.GetColumn(ctx, tx, fromUCode, setting.Column)
		if err != nil {
			return err
		}

		result, err := s.ledger.AdjustBalance(ctx, tx, fromUCode, slug, -amount)
		if err != nil {
			return err
		}
		if !result.Applied {
			return repository.ErrInsufficientBalance
		}

		debitTrans = &model.FundTransaction{
			TxNo:                 idgen.GenerateTransactionNo(),
			UCode:                fromUCode,
			TxUCode:              toUCode,
			TxType:               model.FundTxTypeTransfer,
			DebitCredit:          model.DebitCreditDebit,
			WalletType:           slug,
			Amount:               amount,
			TxCharge:             txCharge,
			CurrentWalletBalance: currentBalance,
			PostWalletBalance:    result.NewBalance,
			Remark:               fmt.Sprintf("转账给 %s，到账 %.4f（手续费 %.4f）", receiver.Username, creditAmount, txCharge),
			Status:               1,
		}
		if err := s.txRepo.CreateFund(ctx, tx, debitTrans); err != nil {
			return fmt.Errorf("记录出账流水失败: %w", err)
		}

		receiverBalance, err := s.walletRepo.GetColumn(ctx, tx, toUCode, setting.Column)
		if err != nil {
			return err
		}
		creditResult, err := s.ledger.AdjustBalance(ctx, tx, toUCode, slug, creditAmount)
		if err != nil {
			return err
		}
		if !creditResult.Applied {
			return fmt.Errorf("入账失败: %s", creditResult.Reason)
		}

		creditTrans := &model.FundTransaction{
			TxNo:                 idgen.GenerateTransactionNo(),
			UCode:                toUCode,
			TxUCode:              fromUCode,
			TxType:               model.FundTxTypeTransfer,
			DebitCredit:          model.DebitCreditCredit,
			WalletType:           slug,
			Amount:               creditAmount,
			TxCharge:             0,
			CurrentWalletBalance: receiverBalance,
			PostWalletBalance:    creditResult.NewBalance,
			Remark:               fmt.Sprintf("收到转账 %.4f", creditAmount),
			Status:               1,
		}
		if err := s.txRepo.CreateFund(ctx, tx, creditTrans); err != nil {
			return fmt.Errorf("记录入账流水失败: %w", err)
		}

		return s.outboxRepo.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.FundEvent, debitTrans.TxNo, map[string]interface{}{
			"tx_no":   debitTrans.TxNo,
			"tx_type": model.FundTxTypeTransfer,
			"u_code":  fromUCode,
			"to":      toUCode,
			"amount":  amount,
		})
	})
	if err != nil {
		return nil, err
	}
	return debitTrans, nil
}

// Convert 同一用户的钱包互转
//
// 扣出 amount，入 amount - 手续费。入账失败时整个事务回滚，
// 扣出的金额自动恢复，不需要补偿流水
func (s *FundService) Convert(ctx context.Context, uCode int64, fromSlug, toSlug string, amount float64) (*model.FundTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if fromSlug == toSlug {
		return nil, fmt.Errorf("互转钱包不能相同")
	}

	fromSetting, err := s.settingRepo.Resolve(ctx, nil, fromSlug)
	if err != nil {
		return nil, err
	}
	if _, err := s.settingRepo.Resolve(ctx, nil, toSlug); err != nil {
		return nil, err
	}

	txCharge := amount * s.cfg.Business.ConvertChargePercent / 100
	creditAmount := amount - txCharge

	unlock, err := s.lockWallet(ctx, uCode)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var trans *model.FundTransaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		currentBalance, err := s.walletRepo.GetColumn(ctx, tx, uCode, fromSetting.Column)
		if err != nil {
			return err
		}

		result, err := s.ledger.AdjustBalance(ctx, tx, uCode, fromSlug, -amount)
		if err != nil {
			return err
		}
		if !result.Applied {
			return repository.ErrInsufficientBalance
		}

		creditResult, err := s.ledger.AdjustBalance(ctx, tx, uCode, toSlug, creditAmount)
		if err != nil {
			return err
		}
		if !creditResult.Applied {
			return fmt.Errorf("互转入账失败: %s", creditResult.Reason)
		}

		trans = &model.FundTransaction{
			TxNo:                 idgen.GenerateTransactionNo(),
			UCode:                uCode,
			TxType:               model.FundTxTypeConvert,
			DebitCredit:          model.DebitCreditDebit,
			FromWalletType:       fromSlug,
			WalletType:           toSlug,
			Amount:               amount,
			TxCharge:             txCharge,
			CurrentWalletBalance: currentBalance,
			PostWalletBalance:    result.NewBalance,
			Remark:               fmt.Sprintf("从 %s 互转 %.4f 到 %s，到账 %.4f", fromSlug, amount, toSlug, creditAmount),
			Status:               1,
		}
		if err := s.txRepo.CreateFund(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录互转流水失败: %w", err)
		}

		return s.outboxRepo.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.FundEvent, trans.TxNo, map[string]interface{}{
			"tx_no":   trans.TxNo,
			"tx_type": model.FundTxTypeConvert,
			"u_code":  uCode,
			"from":    fromSlug,
			"to":      toSlug,
			"amount":  amount,
		})
	})
	if err != nil {
		return nil, err
	}
	return trans, nil
}

// Withdraw 发起提现
//
// 流程顺序不可调换：
//  1. 余额校验 —— 不足直接拒绝，不落任何流水，不碰网关
//  2. auto 账户先调网关 —— 明确拒绝则整单失败；结果未知则挂起
//     一条未扣款的待对账流水，绝不带着已扣的钱重试
//  3. 网关结果明确后才扣款、落待审流水（status=0）
//  4. 提现落库后顺路触发提现层级收益，发放失败不影响提现本身
func (s *FundService) Withdraw(ctx context.Context, uCode int64, slug string, amount float64, accountID int64) (*model.FundTransaction, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	setting, err := s.settingRepo.Resolve(ctx, nil, slug)
	if err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByUCode(ctx, uCode)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockWallet(ctx, uCode)
	if err != nil {
		return nil, err
	}
	defer unlock()

	currentBalance, err := s.walletRepo.GetColumn(ctx, nil, uCode, setting.Column)
	if err != nil {
		return nil, err
	}
	if currentBalance < amount {
		return nil, repository.ErrInsufficientBalance
	}

	account, err := s.accountRepo.GetActiveByID(ctx, accountID, uCode)
	if err != nil {
		return nil, err
	}

	txCharge := amount * s.cfg.Business.WithdrawalChargePercent / 100
	netAmount := amount - txCharge
	if netAmount <= 0 {
		return nil, fmt.Errorf("扣除手续费后提现金额无效")
	}

	uniqueID := uuid.NewString()
	txNumber := ""
	response := ""
	remark := fmt.Sprintf("%s 提现 %.4f，到账 %.4f（手续费 %.4f）", user.Username, amount, netAmount, txCharge)

	if account.Type == model.WithdrawalAccountAuto {
		gwResp, gwErr := s.gateway.InitiateWithdrawal(ctx, &gateway.WithdrawRequest{
			UUID:   uniqueID,
			Chain:  account.Chain,
			To:     account.Address,
			Token:  account.Token,
			Amount: netAmount,
			Memo:   remark,
		})
		if gwErr != nil {
			if errors.Is(gwErr, gateway.ErrGatewayRejected) {
				// 明确拒绝：没动钱，整单失败
				return nil, gwErr
			}
			// 超时等未知结果：挂起一条未扣款的对账流水，留给人工处理
			s.recordUncertainWithdrawal(ctx, uCode, slug, netAmount, txCharge, uniqueID, currentBalance, gwErr)
			return nil, ErrGatewayUncertain
		}
		txNumber = gwResp.TxHash
		if raw, mErr := json.Marshal(gwResp); mErr == nil {
			response = string(raw)
		}
	}

	var trans *model.FundTransaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		result, err := s.ledger.AdjustBalance(ctx, tx, uCode, slug, -amount)
		if err != nil {
			return err
		}
		if !result.Applied {
			return repository.ErrInsufficientBalance
		}

		trans = &model.FundTransaction{
			TxNo:                 idgen.GenerateWithdrawalNo(),
			UUID:                 uniqueID,
			UCode:                uCode,
			TxType:               model.FundTxTypeWithdrawal,
			DebitCredit:          model.DebitCreditDebit,
			WalletType:           slug,
			Amount:               netAmount,
			TxCharge:             txCharge,
			TxNumber:             txNumber,
			CurrentWalletBalance: currentBalance,
			PostWalletBalance:    result.NewBalance,
			Remark:               remark,
			Response:             response,
			Status:               model.WithdrawalStatusPending,
		}
		if err := s.txRepo.CreateFund(ctx, tx, trans); err != nil {
			return fmt.Errorf("记录提现流水失败: %w", err)
		}

		return s.outboxRepo.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.FundEvent, trans.TxNo, map[string]interface{}{
			"tx_no":   trans.TxNo,
			"tx_type": model.FundTxTypeWithdrawal,
			"u_code":  uCode,
			"amount":  netAmount,
			"status":  model.WithdrawalStatusPending,
		})
	})
	if err != nil {
		return nil, err
	}

	// 提现层级收益：失败只记日志，不影响提现本身
	if err := s.income.DistributeWithdrawLevel(ctx, uCode, amount, uniqueID); err != nil {
		log.Printf("[Withdraw] 提现层级收益发放失败: uCode=%d, err=%v", uCode, err)
	}
	return trans, nil
}

// recordUncertainWithdrawal 网关结果未知时落一条未扣款的挂起流水
// Remark 标明钱没动，等人工核对链上结果后再决定补扣还是作废
func (s *FundService) recordUncertainWithdrawal(ctx context.Context, uCode int64, slug string, netAmount, txCharge float64, uniqueID string, currentBalance float64, gwErr error) {
	trans := &model.FundTransaction{
		TxNo:                 idgen.GenerateWithdrawalNo(),
		UUID:                 uniqueID,
		UCode:                uCode,
		TxType:               model.FundTxTypeWithdrawal,
		DebitCredit:          model.DebitCreditDebit,
		WalletType:           slug,
		Amount:               netAmount,
		TxCharge:             txCharge,
		CurrentWalletBalance: currentBalance,
		PostWalletBalance:    currentBalance, // 未扣款
		Remark:               "网关结果未知，未扣款，待人工对账",
		Response:             gwErr.Error(),
		Status:               model.WithdrawalStatusPending,
	}
	if err := s.txRepo.CreateFund(ctx, nil, trans); err != nil {
		log.Printf("[Withdraw] 挂起流水写入失败: uCode=%d, uuid=%s, err=%v", uCode, uniqueID, err)
	}
}

// ApproveWithdrawal 审核通过提现
// 条件状态迁移保证并发审批只生效一次
func (s *FundService) ApproveWithdrawal(ctx context.Context, txNo string) error {
	trans, err := s.txRepo.GetFundByTxNo(ctx, txNo)
	if err != nil {
		return err
	}
	if trans == nil || trans.TxType != model.FundTxTypeWithdrawal {
		return fmt.Errorf("提现流水不存在: %s", txNo)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.txRepo.TransitionWithdrawalStatus(ctx, tx, txNo,
			model.WithdrawalStatusPending, model.WithdrawalStatusApproved); err != nil {
			return err
		}
		return s.outboxRepo.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.FundEvent, txNo, map[string]interface{}{
			"tx_no":   txNo,
			"tx_type": model.FundTxTypeWithdrawal,
			"u_code":  trans.UCode,
			"status":  model.WithdrawalStatusApproved,
		})
	})
}

// RejectWithdrawal 驳回提现并退款
// 退还到账额 + 手续费 = 发起时扣掉的全额
func (s *FundService) RejectWithdrawal(ctx context.Context, txNo, reason string) error {
	if reason == "" {
		return fmt.Errorf("驳回必须填写原因")
	}

	trans, err := s.txRepo.GetFundByTxNo(ctx, txNo)
	if err != nil {
		return err
	}
	if trans == nil || trans.TxType != model.FundTxTypeWithdrawal {
		return fmt.Errorf("提现流水不存在: %s", txNo)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.txRepo.TransitionWithdrawalStatus(ctx, tx, txNo,
			model.WithdrawalStatusPending, model.WithdrawalStatusRejected); err != nil {
			return err
		}

		refundAmount := trans.Amount + trans.TxCharge
		result, err := s.ledger.AdjustBalance(ctx, tx, trans.UCode, trans.WalletType, refundAmount)
		if err != nil {
			return err
		}
		if !result.Applied {
			return fmt.Errorf("驳回退款失败: %s", result.Reason)
		}

		if err := tx.WithContext(ctx).
			Model(&model.FundTransaction{}).
			Where("tx_no = ?", txNo).
			Update("remark", fmt.Sprintf("%s | 驳回原因: %s", trans.Remark, reason)).Error; err != nil {
			return err
		}

		return s.outboxRepo.CreateEvent(ctx, tx, s.cfg.Kafka.Topic.FundEvent, txNo, map[string]interface{}{
			"tx_no":   txNo,
			"tx_type": model.FundTxTypeWithdrawal,
			"u_code":  trans.UCode,
			"status":  model.WithdrawalStatusRejected,
			"reason":  reason,
		})
	})
}
