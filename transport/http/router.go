package http

import (
	"net/http"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/gin-gonic/gin"
	"github.com/layer-3/recoverable/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter sets up the Gin router
func SetupRouter(authService *service.AuthService, walletService *service.WalletService, logger watermill.LoggerAdapter) *gin.Engine {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware(), LoggingMiddleware(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers := NewAuthHandlers(authService)
	wallets := NewWalletHandlers(walletService, logger)

	auth := router.Group("/auth")
	{
		auth.POST("/challenge", handlers.Challenge)
		auth.POST("/login", handlers.Login)
		auth.POST("/refresh", handlers.Refresh)
		auth.POST("/logout", handlers.Logout)
	}

	// Protected API routes
	api := router.Group("/api")
	api.Use(AuthMiddleware(authService))
	{
		api.GET("/me", handlers.Me)
		api.GET("/authorize", handlers.Authorize)

		api.POST("/wallets", wallets.Create)
		api.GET("/wallets/:id", wallets.Get)
		api.PUT("/wallets/:id/agent", wallets.DesignateAgent)
		api.DELETE("/wallets/:id/agent", wallets.RevokeAgent)
		api.POST("/wallets/:id/recovery", wallets.InitiateRecovery)
		api.DELETE("/wallets/:id/recovery", wallets.CancelRecovery)
		api.POST("/wallets/:id/recovery/finalize", wallets.FinalizeRecovery)
	}

	return router
}
