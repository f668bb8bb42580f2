package handler

import (
	"mlmpay/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// SetupRouter 配置路由
func SetupRouter(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *gin.Engine {
	// 设置 gin 为发布模式（减少日志输出）
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// 注册中间件
	r.Use(RecoveryMiddleware())
	r.Use(LoggerMiddleware())
	r.Use(CORSMiddleware())

	// 创建处理器
	h := NewHandler(db, rdb, cfg)

	// API 路由组
	api := r.Group("/api/v1")
	{
		// 钱包相关
		wallet := api.Group("/wallet")
		{
			wallet.GET("/balance", h.GetBalance)
			wallet.GET("/summary", h.GetBalanceSummary)
			wallet.GET("/incomes", h.ListIncomes)
		}

		// 资金操作
		fund := api.Group("/fund")
		{
			fund.POST("/transfer", h.Transfer)
			fund.POST("/convert", h.Convert)
			fund.POST("/withdraw", h.Withdraw)
		}

		// 套餐购买
		order := api.Group("/order")
		{
			order.POST("/topup", h.Topup)
		}

		// 团队与矩阵池查询
		api.GET("/team", h.GetTeam)
		api.GET("/team/business", h.GetBusiness)
		api.GET("/pool/team", h.GetPoolTeam)

		// 管理端
		admin := api.Group("/admin")
		{
			admin.GET("/withdrawals/pending", h.ListPendingWithdrawals)
			admin.POST("/withdrawals/approve", h.ApproveWithdrawal)
			admin.POST("/withdrawals/reject", h.RejectWithdrawal)
			admin.POST("/jobs/run", h.RunJob)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
