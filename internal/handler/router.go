package handler

import (
	"ledgersystem/internal/config"

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
		// 科目相关
		account := api.Group("/account")
		{
			account.POST("/create", h.CreateAccount)
			account.POST("/update", h.UpdateAccount)
			account.POST("/delete", h.DeleteAccount)
			account.GET("/detail", h.GetAccount)
			account.GET("/list", h.ListAccounts)
		}

		// 科目映射相关
		alias := api.Group("/alias")
		{
			alias.POST("/set", h.SetAlias)
			alias.POST("/delete", h.DeleteAlias)
			alias.GET("/resolve", h.ResolveAccount)
			alias.GET("/list", h.ListAliases)
		}

		// 凭证相关
		voucher := api.Group("/voucher")
		{
			voucher.POST("/create", h.CreateVoucher)
			voucher.GET("/detail", h.GetVoucher)
			voucher.GET("/list", h.ListVouchers)
			voucher.POST("/update-header", h.UpdateHeader)
			voucher.POST("/delete", h.DeleteVoucher)
		}

		// 分录相关（实时过账）
		line := api.Group("/line")
		{
			line.POST("/insert", h.InsertLine)
			line.POST("/update", h.UpdateLine)
			line.POST("/delete", h.DeleteLine)
		}

		// 余额相关
		balance := api.Group("/balance")
		{
			balance.GET("/bucket", h.GetBucket)
			balance.GET("/trial", h.TrialBalance)
		}

		// 批量操作（重算 / 月结 / 年结）
		period := api.Group("/period")
		{
			period.POST("/repost", h.Repost)
			period.POST("/close-month", h.CloseMonth)
			period.POST("/close-year", h.CloseYear)
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}
