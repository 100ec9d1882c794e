package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"momo-service/internal/domain"
	"momo-service/internal/usecase"
	"momo-service/pkg/response"

	"go.uber.org/zap"
)

const maxIPNBodySize = 1 << 20

type IPNHandler struct {
	callbackUC *usecase.CallbackUsecase
	logger     *zap.Logger
}

func NewIPNHandler(callbackUC *usecase.CallbackUsecase, logger *zap.Logger) *IPNHandler {
	return &IPNHandler{
		callbackUC: callbackUC,
		logger:     logger,
	}
}

// HandleIPN processes a Pesapal payment notification. The gateway may call
// with GET (query parameters) or POST (JSON body) depending on how the IPN
// was registered; both carry OrderTrackingId and OrderMerchantReference.
// Processed notifications are always acknowledged with 200, including the
// idempotent duplicate case, so the provider stops retrying.
func (h *IPNHandler) HandleIPN(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("OrderTrackingId")
	merchantRef := r.URL.Query().Get("OrderMerchantReference")

	var raw json.RawMessage
	if r.Method == http.MethodPost {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxIPNBodySize))
		if err == nil && len(body) > 0 {
			raw = body

			var payload map[string]interface{}
			if err := json.Unmarshal(body, &payload); err == nil {
				if trackingID == "" {
					trackingID, _ = payload["OrderTrackingId"].(string)
				}
				if merchantRef == "" {
					merchantRef, _ = payload["OrderMerchantReference"].(string)
				}
			}
		}
	}
	if raw == nil && (trackingID != "" || merchantRef != "") {
		raw, _ = json.Marshal(map[string]string{
			"OrderTrackingId":        trackingID,
			"OrderMerchantReference": merchantRef,
		})
	}

	h.logger.Info("received payment notification",
		zap.String("order_tracking_id", trackingID),
		zap.String("merchant_reference", merchantRef),
		zap.String("method", r.Method))

	outcome, err := h.callbackUC.Reconcile(r.Context(), &usecase.ReconcileInput{
		OrderTrackingID:   trackingID,
		MerchantReference: merchantRef,
		RawPayload:        raw,
	})

	switch {
	case err == nil:
		detail := "OK"
		if outcome.Deferred {
			detail = "deferred"
		}
		response.JSON(w, http.StatusOK, map[string]interface{}{
			"detail":         detail,
			"transaction_id": outcome.TransactionID,
			"status":         outcome.Status,
		})
	case errors.Is(err, domain.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, "missing order reference")
	case errors.Is(err, domain.ErrTransactionNotFound):
		response.Error(w, http.StatusNotFound, "transaction not found")
	default:
		// Acknowledge and defer: a 5xx here only provokes a provider
		// retry storm, and pending rows can always be reconciled later.
		h.logger.Error("reconciliation failed, acknowledging for later retry",
			zap.String("order_tracking_id", trackingID),
			zap.String("merchant_reference", merchantRef),
			zap.Error(err))
		response.JSON(w, http.StatusOK, map[string]interface{}{"detail": "deferred"})
	}
}
