package middleware

import (
	"net/http"
	"strconv"
	"time"

	"instituteApp/utils"

	"github.com/gin-gonic/gin"
)

var (
	// Global rate limiter, 100 requests per minute per client
	globalLimiter = utils.NewRateLimiter(100, time.Minute)
)

// RateLimit limits the request rate per client IP
func RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !globalLimiter.Allow(clientIP) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Too many requests",
				"reset": globalLimiter.GetResetTime(clientIP),
			})
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", "100")
		c.Header("X-RateLimit-Remaining", strconv.Itoa(globalLimiter.GetRemaining(clientIP)))
		c.Header("X-RateLimit-Reset", globalLimiter.GetResetTime(clientIP).String())

		c.Next()
	}
}

// Logger logs requests and records request metrics
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()

		c.Next()

		duration := time.Since(startTime)
		status := c.Writer.Status()

		utils.LogInfo("Request: %s %s - Status: %d - Duration: %v",
			c.Request.Method,
			c.Request.URL.Path,
			status,
			duration,
		)

		utils.GetMetrics().RecordRequest(duration, status >= http.StatusInternalServerError)

		if len(c.Errors) > 0 {
			for _, e := range c.Errors {
				utils.LogError("Error: %v", e)
			}
		}
	}
}

// Recovery turns panics into 500 responses
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				utils.LogError("Panic recovered: %v", err)

				c.JSON(http.StatusInternalServerError, gin.H{
					"error": "Internal server error",
				})
				c.Abort()
			}
		}()

		c.Next()
	}
}

// CORSMiddleware sets the CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
