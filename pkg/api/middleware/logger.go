package middleware

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger 请求日志中间件
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		marker := "✅"
		if status >= 500 {
			marker = "❌"
		} else if status >= 400 {
			marker = "⚠️"
		}
		log.Printf("%s [API] %s %s status=%d latency=%s", marker, c.Request.Method, path, status, time.Since(start))
	}
}
