package handler

import (
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// 批量接口（重算/结转）跑整年长事务，超过这个阈值才算异常慢
const slowBatchThreshold = 30 * time.Second

// LoggerMiddleware 日志中间件
// 批量接口额外标记慢请求，便于排查被年度锁阻塞的重算/结转
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if query != "" {
			path = path + "?" + query
		}

		log.Printf("[HTTP] %d | %13v | %15s | %-7s %s",
			status,
			latency,
			c.ClientIP(),
			c.Request.Method,
			path,
		)

		if latency > slowBatchThreshold && strings.HasPrefix(c.Request.URL.Path, "/api/v1/period/") {
			log.Printf("[HTTP] 批量操作耗时异常: %s 用时 %v", path, latency)
		}
	}
}

// RecoveryMiddleware 恢复中间件
// 单个请求 panic 不能带崩整个账务服务，未提交的事务由 gorm 回滚
func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[PANIC] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
				c.AbortWithStatusJSON(500, gin.H{
					"code":    500,
					"message": "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件，供记账前端与报表页面调用
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
