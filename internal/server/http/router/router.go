package router

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	pkgAuth "github.com/polkiloo/withdrawgate/internal/pkg/auth"
	"github.com/polkiloo/withdrawgate/internal/server/http/handlers"
	"github.com/polkiloo/withdrawgate/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.PayoutFacade, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestID())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.Compression())

	withdrawalHandler := handlers.NewWithdrawalHandler(facade)
	adminHandler := handlers.NewAdminHandler(facade)

	api := engine.Group("/api")

	user := api.Group("")
	user.Use(middleware.AuthRequired(facade, pkgAuth.RoleUser))
	user.POST("/withdrawals", withdrawalHandler.Create)
	user.GET("/withdrawals", withdrawalHandler.List)
	user.GET("/withdrawals/:id", withdrawalHandler.Get)
	user.POST("/withdrawals/:id/cancel", withdrawalHandler.Cancel)
	user.GET("/balance", withdrawalHandler.Balance)

	admin := api.Group("/admin")
	admin.Use(middleware.AuthRequired(facade, pkgAuth.RoleAdmin))
	admin.GET("/withdrawals", adminHandler.List)
	admin.GET("/withdrawals/stats", adminHandler.Stats)
	admin.GET("/withdrawals/:id", adminHandler.Get)
	admin.POST("/withdrawals/:id/approve", adminHandler.Approve)
	admin.POST("/withdrawals/:id/reject", adminHandler.Reject)
	admin.POST("/withdrawals/:id/escrow", adminHandler.InitiateEscrow)
	admin.GET("/escrows/:id", adminHandler.GetEscrow)
	admin.POST("/escrows/:id/approve", adminHandler.ApproveEscrow)
	admin.POST("/escrows/:id/reject", adminHandler.RejectEscrow)
	admin.GET("/switches", adminHandler.Switches)
	admin.PUT("/maintenance", adminHandler.Maintenance)
	admin.PUT("/emergency-stop", adminHandler.EmergencyStop)

	return engine
}
