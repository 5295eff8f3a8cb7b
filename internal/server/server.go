package server

import (
	"strconv"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/btcrpc"
	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/clearing"
	"github.com/tradegraph/clearing-backend/internal/dispatcher"
	"github.com/tradegraph/clearing-backend/internal/ethrpc"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/monitoring"
	"github.com/tradegraph/clearing-backend/internal/reconciler"
	"github.com/tradegraph/clearing-backend/internal/store"
	pgstore "github.com/tradegraph/clearing-backend/internal/store/postgres"
	"github.com/tradegraph/clearing-backend/internal/tracker"
	"github.com/tradegraph/clearing-backend/internal/transport/http"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
	"github.com/tradegraph/clearing-backend/internal/utils/webhook"
)

func Init() {
	appConfig := config.New()
	logger := logger.New(appConfig.Environment)

	db := pgstore.New(appConfig, logger)
	s := store.New()

	btcClient := monitoring.NewCircuitBreakerChainClient(
		"btc-rpc",
		btcrpc.New(appConfig, logger),
		monitoring.DefaultCircuitBreakerConfig,
		logger,
	)

	ethRpc, err := ethrpc.New(appConfig, logger)
	if err != nil {
		logger.Fatal("failed to init eth rpc", map[string]string{
			"error": err.Error(),
		})
	}
	ethClient := monitoring.NewCircuitBreakerChainClient(
		"eth-rpc",
		ethRpc,
		monitoring.DefaultCircuitBreakerConfig,
		logger,
	)

	registry := chainrpc.NewRegistry(btcClient, ethClient)

	sinks := []dispatcher.Sink{
		store.NewProjectionSink(db, s, logger),
	}
	if appConfig.Clearing.NotifyWebhookURL != "" {
		sinks = append(sinks, webhook.New(appConfig.Clearing.NotifyWebhookURL, logger))
	}
	d := dispatcher.New(logger, sinks...)

	engine := clearing.New(registry, tracker.New(appConfig, logger), d, logger)
	r := reconciler.New(engine, registry, db, s, appConfig, logger)

	logOpenSettlements(db, s, logger)

	// Catch up with the chains before serving: transactions the previous run
	// left in flight are re-checked first, then live settlements converge on
	// the first reconcile pass.
	go func() {
		r.RecoverPending()
		r.Run()
	}()

	c := cron.New()
	c.AddFunc("@every "+appConfig.Clearing.ReconcilePeriod, r.Run)
	c.Start()

	httpServer := http.NewHttpServer(appConfig, logger, engine, registry, db, s)

	httpServer.Run()
}

// logOpenSettlements surfaces what the previous run left unfinished.
// Terminal settlements are served from the projection; non-terminal ones
// need their counterparties to resubmit, so operators should see them at
// startup.
func logOpenSettlements(db *gorm.DB, s *store.Store, logger *logger.Logger) {
	open := 0
	for _, state := range []model.SettlementState{
		model.SettlementInitiated,
		model.SettlementParticipated,
		model.SettlementRedeeming,
		model.SettlementRefunding,
	} {
		records, err := s.Settlement.FindByState(db, string(state))
		if err != nil {
			logger.Error("[Init][FindByState] failed to scan open settlements", map[string]string{
				"state": string(state),
				"error": err.Error(),
			})
			return
		}
		open += len(records)
	}

	logger.Info("[Init] recovered projection state", map[string]string{
		"open_settlements": strconv.Itoa(open),
	})
}
