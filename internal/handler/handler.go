package handler

import (
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/clearing"
	"github.com/tradegraph/clearing-backend/internal/handler/health"
	"github.com/tradegraph/clearing-backend/internal/handler/settlement"
	"github.com/tradegraph/clearing-backend/internal/store"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

type Handler struct {
	SettlementHandler settlement.IHandler
	HealthHandler     health.IHealthHandler
}

func New(appConfig *config.AppConfig, logger *logger.Logger,
	engine clearing.IEngine,
	registry *chainrpc.Registry,
	db *gorm.DB,
	s *store.Store) *Handler {
	return &Handler{
		SettlementHandler: settlement.New(engine, logger, appConfig, db, s),
		HealthHandler:     health.New(appConfig, logger, db, registry),
	}
}
