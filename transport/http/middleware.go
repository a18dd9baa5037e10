package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/recoverable/core"
	"github.com/layer-3/recoverable/service"
)

const callerKey = "callerAddress"

// AuthMiddleware creates middleware that validates access tokens and stores
// the caller's address in the context
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.GetHeader("Authorization")

		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
			return
		}

		session, err := authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, core.ErrTokenExpired) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(callerKey, session.Address)

		c.Next()
	}
}

// caller returns the authenticated address set by AuthMiddleware
func caller(c *gin.Context) (common.Address, bool) {
	v, exists := c.Get(callerKey)
	if !exists {
		return common.Address{}, false
	}
	addr, ok := v.(common.Address)
	return addr, ok
}

// LoggingMiddleware logs every request through the service logger
func LoggingMiddleware(logger watermill.LoggerAdapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := watermill.LogFields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}
		if addr, ok := caller(c); ok {
			fields["caller"] = addr.Hex()
		}
		logger.Debug("Request completed", fields)
	}
}
