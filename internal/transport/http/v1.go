package http

import (
	"github.com/gin-gonic/gin"

	"github.com/tradegraph/clearing-backend/internal/handler"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

func loadV1Routes(r *gin.Engine, h *handler.Handler, appConfig *config.AppConfig, logger *logger.Logger) {
	v1 := r.Group("/api/v1")

	settlements := v1.Group("/settlements")
	{
		settlements.POST("", h.SettlementHandler.Settle)
		settlements.GET("/:id", h.SettlementHandler.View)
		settlements.GET("/:id/history", h.SettlementHandler.History)
		settlements.GET("/:id/transactions", h.SettlementHandler.Transactions)
		settlements.POST("/:id/initiate", h.SettlementHandler.RecordInitiate)
		settlements.POST("/:id/participate", h.SettlementHandler.RecordParticipate)
		settlements.POST("/:id/delegated-txs", h.SettlementHandler.RegisterDelegatedTxs)
		settlements.POST("/:id/redeem", h.SettlementHandler.Redeem)
		settlements.POST("/:id/refund", h.SettlementHandler.Refund)
		settlements.POST("/:id/abort", h.SettlementHandler.Abort)
	}

	v1.GET("/transactions/:hash", h.SettlementHandler.TransactionByHash)

	healthGroup := v1.Group("/health")
	{
		healthGroup.GET("/db", h.HealthHandler.Database)
		healthGroup.GET("/external", h.HealthHandler.External)
	}

	// health check
	r.GET("/healthz", h.HealthHandler.Basic)
}
