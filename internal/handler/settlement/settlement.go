package settlement

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/tradegraph/clearing-backend/internal/chainrpc"
	"github.com/tradegraph/clearing-backend/internal/clearing"
	"github.com/tradegraph/clearing-backend/internal/model"
	"github.com/tradegraph/clearing-backend/internal/store"
	"github.com/tradegraph/clearing-backend/internal/utils/config"
	"github.com/tradegraph/clearing-backend/internal/utils/logger"
	"github.com/tradegraph/clearing-backend/internal/view"
)

type handler struct {
	engine    clearing.IEngine
	logger    *logger.Logger
	appConfig *config.AppConfig
	db        *gorm.DB
	store     *store.Store
}

func New(engine clearing.IEngine, logger *logger.Logger, appConfig *config.AppConfig, db *gorm.DB, store *store.Store) IHandler {
	return &handler{
		engine:    engine,
		logger:    logger,
		appConfig: appConfig,
		db:        db,
		store:     store,
	}
}

// Settle godoc
// @Summary Create a settlement
// @Description Validates and registers a two-channel settlement in CREATED state
// @id settle
// @Tags Settlement
// @Accept json
// @Produce json
// @Param request body SettleRequest true "Settlement parameters"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 500 {object} view.ErrorResponse
// @Router /settlements [post]
func (h *handler) Settle(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[Settle][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	if err := validator.New().Struct(req); err != nil {
		h.logger.Error("[Settle][Validator]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	settlement, err := h.engine.Settle(req.toSpec())
	if err != nil {
		h.logger.Error("[Settle][Settle]", map[string]string{
			"asset_pair": req.AssetPair,
			"error":      err.Error(),
		})
		c.JSON(statusOf(err), view.CreateResponse[any](nil, err, model.ErrorCode(err), "failed to create settlement"))
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

// RecordInitiate godoc
// @Summary Record the initiate contract transaction
// @Description Attaches the broadcast hash of the initiator's contract transaction
// @id recordInitiate
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param request body RecordInitiateRequest true "Contract transaction hash"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id}/initiate [post]
func (h *handler) RecordInitiate(c *gin.Context) {
	var req RecordInitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[RecordInitiate][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	settlement, err := h.engine.RecordInitiateChannel(c.Param("id"), req.TxContractHash)
	if err != nil {
		h.respondError(c, "RecordInitiate", err, "failed to record initiate channel")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

// RecordParticipate godoc
// @Summary Record the participate contract transaction
// @Description Attaches the participant's contract hash after checking the hashed secret matches
// @id recordParticipate
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param request body RecordParticipateRequest true "Hashed secret and contract hash"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id}/participate [post]
func (h *handler) RecordParticipate(c *gin.Context) {
	var req RecordParticipateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[RecordParticipate][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	if err := validator.New().Struct(req); err != nil {
		h.logger.Error("[RecordParticipate][Validator]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	settlement, err := h.engine.RecordParticipateChannel(c.Param("id"), req.HashedSecret, req.TxContractHash)
	if err != nil {
		h.respondError(c, "RecordParticipate", err, "failed to record participate channel")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

// RegisterDelegatedTxs godoc
// @Summary Register pre-signed resolution transactions
// @Description Stores raw redeem and refund transactions the engine may broadcast on the counterparty's behalf
// @id registerDelegatedTxs
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param request body RegisterDelegatedTxsRequest true "Delegated raw transactions"
// @Success 200 {object} view.MessageResponse
// @Failure 400 {object} view.ErrorResponse
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id}/delegated-txs [post]
func (h *handler) RegisterDelegatedTxs(c *gin.Context) {
	var req RegisterDelegatedTxsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[RegisterDelegatedTxs][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	if err := h.engine.RegisterDelegatedTxs(c.Param("id"), req.ChannelID, req.RedeemRaw, req.RefundRaw); err != nil {
		h.respondError(c, "RegisterDelegatedTxs", err, "failed to register delegated transactions")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse[any]("delegated transactions registered", nil, "", ""))
}

// Redeem godoc
// @Summary Redeem the initiate channel
// @Description Attaches a redeem carrying the secret preimage and broadcasts it when a raw transaction is supplied
// @id redeem
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param request body RedeemRequest true "Secret preimage and resolution transaction"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Failure 502 {object} view.ErrorResponse
// @Router /settlements/{id}/redeem [post]
func (h *handler) Redeem(c *gin.Context) {
	var req RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[Redeem][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	settlement, err := h.engine.Redeem(c.Request.Context(), c.Param("id"), req.Secret, clearing.ResolutionRequest{
		RawTx:  req.RawTx,
		TxHash: req.TxHash,
	})
	if err != nil {
		h.respondErrorWithState(c, "Redeem", err, "failed to redeem")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

// Refund godoc
// @Summary Refund a channel after its timeout
// @Description Attaches a refund to the named channel once its timeout has elapsed
// @id refund
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Param request body RefundRequest true "Channel and resolution transaction"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 400 {object} view.ErrorResponse
// @Failure 409 {object} view.ErrorResponse
// @Failure 502 {object} view.ErrorResponse
// @Router /settlements/{id}/refund [post]
func (h *handler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("[Refund][ShouldBindJSON]", map[string]string{
			"error": err.Error(),
		})
		c.JSON(http.StatusBadRequest, view.CreateResponse[any](nil, err, "", "invalid request"))
		return
	}

	settlement, err := h.engine.Refund(c.Request.Context(), c.Param("id"), req.ChannelID, clearing.ResolutionRequest{
		RawTx:  req.RawTx,
		TxHash: req.TxHash,
	})
	if err != nil {
		h.respondErrorWithState(c, "Refund", err, "failed to refund")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

// Abort godoc
// @Summary Abort a settlement
// @Description Freezes the settlement against further mutation; already broadcast transactions are unaffected
// @id abortSettlement
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id}/abort [post]
func (h *handler) Abort(c *gin.Context) {
	settlement, err := h.engine.Abort(c.Param("id"))
	if err != nil {
		h.respondError(c, "Abort", err, "failed to abort settlement")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

// View godoc
// @Summary Get a settlement
// @Description Returns the settlement with derived channel states
// @id viewSettlement
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Success 200 {object} view.Response[SettlementView]
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id} [get]
func (h *handler) View(c *gin.Context) {
	settlement, err := h.engine.Get(c.Param("id"))
	if err != nil {
		// The engine holds live aggregates only; the persisted projection
		// stays readable across restarts.
		if errors.Is(err, model.ErrSettlementNotFound) && h.db != nil {
			h.viewFromStore(c)
			return
		}
		h.respondError(c, "View", err, "failed to get settlement")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(toSettlementView(settlement), nil, "", ""))
}

func (h *handler) viewFromStore(c *gin.Context) {
	id := c.Param("id")

	record, err := h.store.Settlement.GetBySettlementID(h.db, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.respondError(c, "View", model.ErrSettlementNotFound, "failed to get settlement")
			return
		}
		h.respondError(c, "View", err, "failed to get settlement")
		return
	}

	channels, err := h.store.ChannelRecord.ListBySettlementID(h.db, id)
	if err != nil {
		h.respondError(c, "View", err, "failed to get settlement")
		return
	}

	transactions, err := h.store.TransactionRecord.ListBySettlementID(h.db, id)
	if err != nil {
		h.respondError(c, "View", err, "failed to get settlement")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(StoredSettlementView{
		Settlement:   *record,
		Channels:     channels,
		Transactions: transactions,
	}, nil, "", ""))
}

// History godoc
// @Summary Get a settlement's state history
// @Description Returns the append-only ordered state transitions
// @id settlementHistory
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Success 200 {object} view.Response[[]model.SettlementStateChange]
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id}/history [get]
func (h *handler) History(c *gin.Context) {
	history, err := h.engine.History(c.Param("id"))
	if err != nil {
		if errors.Is(err, model.ErrSettlementNotFound) && h.db != nil {
			h.historyFromStore(c)
			return
		}
		h.respondError(c, "History", err, "failed to get settlement history")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(history, nil, "", ""))
}

func (h *handler) historyFromStore(c *gin.Context) {
	id := c.Param("id")

	if _, err := h.store.Settlement.GetBySettlementID(h.db, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			h.respondError(c, "History", model.ErrSettlementNotFound, "failed to get settlement history")
			return
		}
		h.respondError(c, "History", err, "failed to get settlement history")
		return
	}

	events, err := h.store.SettlementEvent.ListBySettlementID(h.db, id)
	if err != nil {
		h.respondError(c, "History", err, "failed to get settlement history")
		return
	}

	history := make([]model.SettlementStateChange, 0, len(events))
	for _, event := range events {
		history = append(history, model.SettlementStateChange{
			State:     model.SettlementState(event.State),
			Timestamp: event.Timestamp,
		})
	}

	c.JSON(http.StatusOK, view.CreateResponse(history, nil, "", ""))
}

// Transactions godoc
// @Summary List a settlement's transactions
// @Description Returns the persisted transaction records with their state histories
// @id settlementTransactions
// @Tags Settlement
// @Accept json
// @Produce json
// @Param id path string true "Settlement ID"
// @Success 200 {object} view.Response[[]TransactionAuditView]
// @Failure 404 {object} view.ErrorResponse
// @Router /settlements/{id}/transactions [get]
func (h *handler) Transactions(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, view.CreateResponse[any](nil, errors.New("audit store unavailable"), "", ""))
		return
	}

	records, err := h.store.TransactionRecord.ListBySettlementID(h.db, c.Param("id"))
	if err != nil {
		h.respondError(c, "Transactions", err, "failed to list transactions")
		return
	}
	if len(records) == 0 {
		h.respondError(c, "Transactions", model.ErrSettlementNotFound, "failed to list transactions")
		return
	}

	audit := make([]TransactionAuditView, 0, len(records))
	for _, record := range records {
		events, err := h.store.TransactionEvent.ListByTransactionID(h.db, record.TransactionID)
		if err != nil {
			h.respondError(c, "Transactions", err, "failed to list transactions")
			return
		}
		audit = append(audit, TransactionAuditView{Transaction: record, Events: events})
	}

	c.JSON(http.StatusOK, view.CreateResponse(audit, nil, "", ""))
}

// TransactionByHash godoc
// @Summary Look up a transaction by its on-chain hash
// @Description Routes an observed chain hash back to its settlement
// @id transactionByHash
// @Tags Settlement
// @Accept json
// @Produce json
// @Param hash path string true "On-chain transaction hash"
// @Success 200 {object} view.Response[model.TransactionRecord]
// @Failure 404 {object} view.ErrorResponse
// @Router /transactions/{hash} [get]
func (h *handler) TransactionByHash(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, view.CreateResponse[any](nil, errors.New("audit store unavailable"), "", ""))
		return
	}

	record, err := h.store.TransactionRecord.GetByHash(h.db, c.Param("hash"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, view.CreateResponse[any](nil, err, "", "transaction not found"))
			return
		}
		h.respondError(c, "TransactionByHash", err, "failed to look up transaction")
		return
	}

	c.JSON(http.StatusOK, view.CreateResponse(*record, nil, "", ""))
}

func (h *handler) respondError(c *gin.Context, op string, err error, message string) {
	h.logger.Error("["+op+"]", map[string]string{
		"settlement_id": c.Param("id"),
		"error":         err.Error(),
	})
	c.JSON(statusOf(err), view.CreateResponse[any](nil, err, model.ErrorCode(err), message))
}

// respondErrorWithState includes the last known good settlement state in the
// error payload, so callers always learn where the settlement stands even
// when the operation itself was rejected.
func (h *handler) respondErrorWithState(c *gin.Context, op string, err error, message string) {
	h.logger.Error("["+op+"]", map[string]string{
		"settlement_id": c.Param("id"),
		"error":         err.Error(),
	})

	var data any
	if settlement, getErr := h.engine.Get(c.Param("id")); getErr == nil {
		data = toSettlementView(settlement)
	}

	c.JSON(statusOf(err), view.CreateResponse(data, err, model.ErrorCode(err), message))
}

func statusOf(err error) int {
	var broadcastErr *chainrpc.BroadcastError
	if errors.As(err, &broadcastErr) {
		return http.StatusBadGateway
	}

	switch {
	case errors.Is(err, model.ErrSettlementNotFound),
		errors.Is(err, model.ErrChannelNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrTimeoutOrdering),
		errors.Is(err, model.ErrAssetPairMismatch),
		errors.Is(err, model.ErrInvalidChannelSpec),
		errors.Is(err, model.ErrHashedSecretMismatch),
		errors.Is(err, model.ErrSecretMismatch):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrAlreadyResolved),
		errors.Is(err, model.ErrTimeoutNotElapsed),
		errors.Is(err, model.ErrSecretUnavailable),
		errors.Is(err, model.ErrSettlementAborted),
		errors.Is(err, model.ErrHashImmutable):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
