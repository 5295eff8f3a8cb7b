package health

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
)

const checkTimeout = 5 * time.Second

type HealthHandler struct {
	config   *config.AppConfig
	logger   *logger.Logger
	db       *gorm.DB
	registry *chainrpc.Registry
}

func New(config *config.AppConfig, logger *logger.Logger, db *gorm.DB, registry *chainrpc.Registry) IHealthHandler {
	return &HealthHandler{
		config:   config,
		logger:   logger,
		db:       db,
		registry: registry,
	}
}

// Basic handles the basic health check endpoint (/healthz)
// @Summary Basic health check
// @Description Returns basic system availability status
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} BasicHealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Basic(c *gin.Context) {
	c.JSON(http.StatusOK, BasicHealthResponse{Message: "ok"})
}

// Database handles the database health check endpoint
// @Summary Database health check
// @Description Validates database connectivity
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/db [get]
func (h *HealthHandler) Database(c *gin.Context) {
	started := time.Now()

	status := DependencyStatus{Status: "ok"}
	var err error
	if h.db == nil {
		err = errors.New("database connection not available")
	} else {
		var sqlDB *sql.DB
		sqlDB, err = h.db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
	}
	if err != nil {
		status.Status = "unavailable"
		status.Error = err.Error()
	}
	status.Latency = time.Since(started).Milliseconds()

	response := HealthResponse{
		Status:       status.Status,
		Dependencies: map[string]DependencyStatus{"postgres": status},
	}

	code := http.StatusOK
	if err != nil {
		code = http.StatusServiceUnavailable
		h.logger.Error("[Database] postgres ping failed", map[string]string{
			"error": err.Error(),
		})
	}

	c.JSON(code, response)
}

// External handles the chain endpoint health check
// @Summary External dependency health check
// @Description Probes each chain endpoint for its tip height
// @Tags health
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /api/v1/health/external [get]
func (h *HealthHandler) External(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), checkTimeout)
	defer cancel()

	response := HealthResponse{
		Status:       "ok",
		Dependencies: map[string]DependencyStatus{},
	}

	for _, asset := range []model.Asset{model.AssetBTC, model.AssetETH} {
		response.Dependencies[asset.Symbol] = h.probe(ctx, asset)
	}

	code := http.StatusOK
	for symbol, dependency := range response.Dependencies {
		if dependency.Status != "ok" {
			response.Status = "degraded"
			code = http.StatusServiceUnavailable
			h.logger.Error("[External] chain endpoint unavailable", map[string]string{
				"asset": symbol,
				"error": dependency.Error,
			})
		}
	}

	c.JSON(code, response)
}

func (h *HealthHandler) probe(ctx context.Context, asset model.Asset) DependencyStatus {
	started := time.Now()
	status := DependencyStatus{Status: "ok"}

	client, err := h.registry.Client(asset)
	if err == nil {
		_, err = client.TipHeight(ctx)
	}
	if err != nil {
		status.Status = "unavailable"
		status.Error = err.Error()
	}
	status.Latency = time.Since(started).Milliseconds()

	return status
}
