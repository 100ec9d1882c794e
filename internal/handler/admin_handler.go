package handler

import (
	"errors"
	"net/http"
	"strconv"

	"momo-service/config"
	"momo-service/internal/domain"
	"momo-service/internal/repository"
	"momo-service/internal/usecase"
	"momo-service/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AdminHandler exposes the operator surface: the audit trail, manual
// reconciliation of pending transactions, and operator-triggered expiry of
// stuck ones.
type AdminHandler struct {
	txRepo     repository.TransactionRepository
	callbackUC *usecase.CallbackUsecase
	cfg        config.AdminConfig
	logger     *zap.Logger
}

func NewAdminHandler(
	txRepo repository.TransactionRepository,
	callbackUC *usecase.CallbackUsecase,
	cfg config.AdminConfig,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		txRepo:     txRepo,
		callbackUC: callbackUC,
		cfg:        cfg,
		logger:     logger,
	}
}

// HandleListTransactions lists ledger entries, newest first, optionally
// filtered by status.
func (h *AdminHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	var status *domain.Status
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.Status(s)
		switch st {
		case domain.StatusPending, domain.StatusSuccessful, domain.StatusFailed:
			status = &st
		default:
			response.Error(w, http.StatusBadRequest, "invalid status filter")
			return
		}
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	txs, err := h.txRepo.List(r.Context(), status, limit)
	if err != nil {
		h.logger.Error("failed to list transactions", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "failed to list transactions")
		return
	}

	response.JSON(w, http.StatusOK, map[string]interface{}{
		"count":        len(txs),
		"transactions": txs,
	})
}

// HandleReconcile re-runs reconciliation for one transaction, for
// notifications the gateway never delivered.
func (h *AdminHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := h.callbackUC.ReconcileByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrTransactionNotFound) {
			response.Error(w, http.StatusNotFound, "transaction not found")
			return
		}
		h.logger.Error("manual reconciliation failed",
			zap.String("transaction_id", id),
			zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	response.JSON(w, http.StatusOK, outcome)
}

// HandleExpire fails a pending transaction stuck past the configured
// minimum age.
func (h *AdminHandler) HandleExpire(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := h.callbackUC.ExpirePending(r.Context(), id, h.cfg.ExpireMinAge)
	switch {
	case err == nil:
		response.JSON(w, http.StatusOK, outcome)
	case errors.Is(err, domain.ErrTransactionNotFound):
		response.Error(w, http.StatusNotFound, "transaction not found")
	case errors.Is(err, domain.ErrAlreadyFinal):
		response.Error(w, http.StatusConflict, "transaction already in a terminal state")
	case errors.Is(err, domain.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("expiry failed",
			zap.String("transaction_id", id),
			zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "expiry failed")
	}
}
