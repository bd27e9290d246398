package middleware

import (
	"github.com/gin-gonic/gin"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	IdempotencyKey    = "idempotency_key"
)

func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		idempotencyKey := c.GetHeader(IdempotencyHeader)
		c.Set(IdempotencyKey, idempotencyKey)
		c.Next()
	}
}
