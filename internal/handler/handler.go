package handler

import (
	"context"
	"errors"
	"strconv"

	"mlmpay/internal/config"
	"mlmpay/internal/gateway"
	"mlmpay/internal/job"
	"mlmpay/internal/model"
	"mlmpay/internal/repository"
	"mlmpay/internal/service"
	"mlmpay/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	ledgerService   *service.LedgerService
	teamService     *service.TeamService
	businessService *service.BusinessService
	fundService     *service.FundService
	topupService    *service.TopupService
	poolService     *service.PoolService
	txRepo          *repository.TransactionRepository
	adminJobs       map[string]func(context.Context)
}

// NewHandler 创建处理器实例
func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	gatewayClient := gateway.NewClient(&cfg.Gateway)

	roiJob := job.NewROIJob(db, cfg, rdb)
	dailyLevelJob := job.NewDailyLevelJob(db, cfg, rdb)
	rewardJob := job.NewRewardJob(db, cfg, rdb)
	growthBoosterJob := job.NewGrowthBoosterJob(db, cfg, rdb)
	maintenanceJob := job.NewMaintenanceJob(db, cfg)

	return &Handler{
		ledgerService:   service.NewLedgerService(db),
		teamService:     service.NewTeamService(db, cfg.Business.MaxTeamLevels),
		businessService: service.NewBusinessService(db, cfg),
		fundService:     service.NewFundService(db, cfg, rdb, gatewayClient),
		topupService:    service.NewTopupService(db, cfg, rdb),
		poolService:     service.NewPoolService(db, cfg, rdb),
		txRepo:          repository.NewTransactionRepository(db),
		adminJobs: map[string]func(context.Context){
			"roi":            roiJob.Run,
			"daily_level":    dailyLevelJob.Run,
			"reward":         rewardJob.Run,
			"growth_booster": growthBoosterJob.Run,
			"payout_sweep":   maintenanceJob.RunPayoutSweep,
			"status_sweep":   maintenanceJob.RunStatusSweep,
		},
	}
}

// writeFundError 资金操作错误到响应码的统一映射
// 预期内的业务失败给业务码，其余一律 500 且不暴露内部细节
func writeFundError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInsufficientBalance):
		response.BusinessError(c, response.CodeBalanceNotEnough, "钱包余额不足")
	case errors.Is(err, service.ErrTransferBelowMinimum):
		response.BusinessError(c, response.CodeTransferBelowMin, "转账金额低于最低限额")
	case errors.Is(err, service.ErrInvalidAmount), errors.Is(err, service.ErrSameUser):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrGatewayUncertain):
		response.BusinessError(c, response.CodeGatewayUncertain, err.Error())
	case errors.Is(err, gateway.ErrGatewayRejected):
		response.BusinessError(c, response.CodeWithdrawalFailed, "代付网关拒绝了提现请求")
	case errors.Is(err, repository.ErrWithdrawalAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, "提现账户不存在或不可用")
	case errors.Is(err, repository.ErrTxStatusInvalid):
		response.BusinessError(c, response.CodeTxStatusInvalid, "流水状态不允许该操作")
	case errors.Is(err, repository.ErrWalletSettingNotFound):
		response.BusinessError(c, response.CodeWalletNotFound, "钱包类型未注册")
	case errors.Is(err, service.ErrPinNotFound):
		response.BusinessError(c, response.CodePinNotFound, "套餐不存在或已下架")
	default:
		response.ServerError(c, "操作失败，请稍后重试")
	}
}

func parseUCode(c *gin.Context) (int64, bool) {
	uCode, err := strconv.ParseInt(c.Query("u_code"), 10, 64)
	if err != nil || uCode <= 0 {
		response.ParamError(c, "u_code 参数错误")
		return 0, false
	}
	return uCode, true
}

// ============================================================
// 钱包相关接口
// ============================================================

// GetBalance 查询单个钱包余额
// GET /api/v1/wallet/balance?u_code=xxx&wallet_type=main_wallet
func (h *Handler) GetBalance(c *gin.Context) {
	uCode, ok := parseUCode(c)
	if !ok {
		return
	}
	slug := c.DefaultQuery("wallet_type", model.SlugMainWallet)

	balance := h.ledgerService.GetBalance(c.Request.Context(), uCode, slug)
	response.Success(c, gin.H{
		"u_code":      uCode,
		"wallet_type": slug,
		"balance":     balance,
	})
}

// GetBalanceSummary 按钱包类型汇总余额
// GET /api/v1/wallet/summary?u_code=xxx
func (h *Handler) GetBalanceSummary(c *gin.Context) {
	uCode, ok := parseUCode(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	incomeTotal, err := h.ledgerService.GetBalancesByType(ctx, uCode, model.WalletTypeIncome)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	walletTotal, err := h.ledgerService.GetBalancesByType(ctx, uCode, model.WalletTypeWallet)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, gin.H{
		"u_code":       uCode,
		"income_total": incomeTotal,
		"wallet_total": walletTotal,
	})
}

// ListIncomes 收益流水分页
// GET /api/v1/wallet/incomes?u_code=xxx&page=1&page_size=10
func (h *Handler) ListIncomes(c *gin.Context) {
	uCode, ok := parseUCode(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "10"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 10
	}

	transactions, total, err := h.txRepo.ListIncomeByUCode(c.Request.Context(), uCode, page, pageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, gin.H{
		"list":      transactions,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// ============================================================
// 资金操作接口
// ============================================================

// TransferRequest 转账请求
type TransferRequest struct {
	FromUCode  int64   `json:"from_u_code" binding:"required"`
	ToUCode    int64   `json:"to_u_code" binding:"required"`
	WalletType string  `json:"wallet_type" binding:"required"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
}

// Transfer 用户间转账
// POST /api/v1/fund/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.fundService.Transfer(c.Request.Context(), req.FromUCode, req.ToUCode, req.WalletType, req.Amount)
	if err != nil {
		writeFundError(c, err)
		return
	}

	response.Success(c, gin.H{
		"tx_no":        trans.TxNo,
		"amount":       trans.Amount,
		"tx_charge":    trans.TxCharge,
		"post_balance": trans.PostWalletBalance,
	})
}

// ConvertRequest 互转请求
type ConvertRequest struct {
	UCode      int64   `json:"u_code" binding:"required"`
	FromWallet string  `json:"from_wallet" binding:"required"`
	ToWallet   string  `json:"to_wallet" binding:"required"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
}

// Convert 同一用户钱包间互转
// POST /api/v1/fund/convert
func (h *Handler) Convert(c *gin.Context) {
	var req ConvertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.fundService.Convert(c.Request.Context(), req.UCode, req.FromWallet, req.ToWallet, req.Amount)
	if err != nil {
		writeFundError(c, err)
		return
	}

	response.Success(c, gin.H{
		"tx_no":        trans.TxNo,
		"amount":       trans.Amount,
		"tx_charge":    trans.TxCharge,
		"post_balance": trans.PostWalletBalance,
	})
}

// WithdrawRequest 提现请求
type WithdrawRequest struct {
	UCode      int64   `json:"u_code" binding:"required"`
	WalletType string  `json:"wallet_type" binding:"required"`
	Amount     float64 `json:"amount" binding:"required,gt=0"`
	AccountID  int64   `json:"account_id" binding:"required"`
}

// Withdraw 发起提现
// POST /api/v1/fund/withdraw
//
// 【关键点】余额校验在网关调用和落库之前；auto 账户网关结果
// 未知时返回业务码 1005，流水挂起待对账，钱没动
func (h *Handler) Withdraw(c *gin.Context) {
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	trans, err := h.fundService.Withdraw(c.Request.Context(), req.UCode, req.WalletType, req.Amount, req.AccountID)
	if err != nil {
		writeFundError(c, err)
		return
	}

	response.Success(c, gin.H{
		"tx_no":     trans.TxNo,
		"uuid":      trans.UUID,
		"amount":    trans.Amount,
		"tx_charge": trans.TxCharge,
		"tx_number": trans.TxNumber,
		"status":    trans.Status,
	})
}

// ============================================================
// 套餐购买接口
// ============================================================

// TopupRequest 套餐购买请求
type TopupRequest struct {
	UCode int64  `json:"u_code" binding:"required"`
	Pin   string `json:"pin" binding:"required"`
}

// Topup 购买套餐
// POST /api/v1/order/topup
func (h *Handler) Topup(c *gin.Context) {
	var req TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	order, err := h.topupService.Topup(c.Request.Context(), req.UCode, req.Pin)
	if err != nil {
		writeFundError(c, err)
		return
	}

	response.Success(c, gin.H{
		"order_id": order.ID,
		"amount":   order.Amount,
		"bv":       order.BV,
		"status":   order.Status,
	})
}

// ============================================================
// 团队 / 矩阵池查询接口
// ============================================================

// GetTeam 团队逐层结构
// GET /api/v1/team?u_code=xxx&depth=5&active_only=true
func (h *Handler) GetTeam(c *gin.Context) {
	uCode, ok := parseUCode(c)
	if !ok {
		return
	}
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))
	activeOnly := c.DefaultQuery("active_only", "false") == "true"

	levels, err := h.teamService.Team(c.Request.Context(), uCode, depth, activeOnly)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, gin.H{
		"u_code": uCode,
		"levels": levels,
	})
}

// GetBusiness 业务量概览
// GET /api/v1/team/business?u_code=xxx
func (h *Handler) GetBusiness(c *gin.Context) {
	uCode, ok := parseUCode(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	myPackage, err := h.businessService.MyPackage(ctx, uCode)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	directBusiness, err := h.businessService.DirectBusiness(ctx, uCode, true)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	teamBusiness, err := h.businessService.TeamBusiness(ctx, uCode, true)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	remainingCap, err := h.businessService.RemainingCap(ctx, uCode)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, gin.H{
		"u_code":          uCode,
		"my_package":      myPackage,
		"direct_business": directBusiness,
		"team_business":   teamBusiness,
		"remaining_cap":   remainingCap,
	})
}

// GetPoolTeam 矩阵池逐层下级
// GET /api/v1/pool/team?u_code=xxx&pool_type=autopool&depth=5
func (h *Handler) GetPoolTeam(c *gin.Context) {
	uCode, ok := parseUCode(c)
	if !ok {
		return
	}
	poolType := c.DefaultQuery("pool_type", "autopool")
	depth, _ := strconv.Atoi(c.DefaultQuery("depth", "0"))

	levels, err := h.poolService.PoolTeam(c.Request.Context(), uCode, poolType, depth)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, gin.H{
		"u_code": uCode,
		"levels": levels,
	})
}

// ============================================================
// 管理端接口
// ============================================================

// ListPendingWithdrawals 待审提现列表
// GET /api/v1/admin/withdrawals/pending?limit=50
func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	transactions, err := h.txRepo.ListPendingWithdrawals(c.Request.Context(), limit)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}
	response.Success(c, gin.H{"list": transactions})
}

// ApproveWithdrawal 审核通过提现
// POST /api/v1/admin/withdrawals/approve
func (h *Handler) ApproveWithdrawal(c *gin.Context) {
	var req struct {
		TxNo string `json:"tx_no" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.fundService.ApproveWithdrawal(c.Request.Context(), req.TxNo); err != nil {
		writeFundError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "提现已通过"})
}

// RejectWithdrawal 驳回提现并退款
// POST /api/v1/admin/withdrawals/reject
func (h *Handler) RejectWithdrawal(c *gin.Context) {
	var req struct {
		TxNo   string `json:"tx_no" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	if err := h.fundService.RejectWithdrawal(c.Request.Context(), req.TxNo, req.Reason); err != nil {
		writeFundError(c, err)
		return
	}
	response.Success(c, gin.H{"message": "提现已驳回并退款"})
}

// RunJob 手动触发分发任务
// POST /api/v1/admin/jobs/run
//
// 所有任务都是幂等的，补跑不会造成重复发放
func (h *Handler) RunJob(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	run, ok := h.adminJobs[req.Name]
	if !ok {
		response.ParamError(c, "未知任务: "+req.Name)
		return
	}

	// 整批扫描可能跑几分钟，异步执行，触发即返回
	go run(context.Background())
	response.Success(c, gin.H{"message": "任务已触发", "name": req.Name})
}
