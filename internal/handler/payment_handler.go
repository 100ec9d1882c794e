package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"momo-service/internal/domain"
	"momo-service/internal/usecase"
	"momo-service/pkg/response"

	"go.uber.org/zap"
)

type PaymentHandler struct {
	paymentUC *usecase.PaymentUsecase
	logger    *zap.Logger
}

func NewPaymentHandler(paymentUC *usecase.PaymentUsecase, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentUC: paymentUC,
		logger:    logger,
	}
}

// initiateBody is the client payload for every initiate endpoint. Any
// client-sent amount is ignored; prices are a fixed server-side table.
type initiateBody struct {
	Plan        string `json:"plan,omitempty"`
	Network     string `json:"network"`
	PhoneNumber string `json:"phone_number"`
}

// HandleMaidOnboarding initiates the maid onboarding fee payment.
func (h *PaymentHandler) HandleMaidOnboarding(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, domain.PurposeMaidOnboarding)
}

// HandleHomeNurseOnboarding initiates the home nurse premium onboarding fee.
func (h *PaymentHandler) HandleHomeNurseOnboarding(w http.ResponseWriter, r *http.Request) {
	h.initiate(w, r, domain.PurposeHomeNurseOnboarding)
}

// HandleHomeowner initiates a homeowner plan payment selected by the
// plan field: live_in, monthly or day_pass.
func (h *PaymentHandler) HandleHomeowner(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	var purpose domain.Purpose
	switch body.Plan {
	case "live_in":
		purpose = domain.PurposeHomeownerLiveIn
	case "monthly":
		purpose = domain.PurposeHomeownerMonthly
	case "day_pass":
		purpose = domain.PurposeHomeownerDayPass
	default:
		response.Error(w, http.StatusBadRequest, "invalid plan, use live_in, monthly or day_pass")
		return
	}

	h.run(w, r, purpose, body)
}

// HandleCompany initiates a cleaning company plan payment: monthly or annual.
func (h *PaymentHandler) HandleCompany(w http.ResponseWriter, r *http.Request) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}

	var purpose domain.Purpose
	switch body.Plan {
	case "monthly":
		purpose = domain.PurposeCompanyMonthly
	case "annual":
		purpose = domain.PurposeCompanyAnnual
	default:
		response.Error(w, http.StatusBadRequest, "invalid plan, use monthly or annual")
		return
	}

	h.run(w, r, purpose, body)
}

func (h *PaymentHandler) initiate(w http.ResponseWriter, r *http.Request, purpose domain.Purpose) {
	body, ok := h.decode(w, r)
	if !ok {
		return
	}
	h.run(w, r, purpose, body)
}

func (h *PaymentHandler) decode(w http.ResponseWriter, r *http.Request) (*initiateBody, bool) {
	var body initiateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return nil, false
	}
	return &body, true
}

func (h *PaymentHandler) run(w http.ResponseWriter, r *http.Request, purpose domain.Purpose, body *initiateBody) {
	userID := UserID(r.Context())

	result, err := h.paymentUC.Initiate(r.Context(), &usecase.InitiateRequest{
		UserID:      userID,
		Purpose:     purpose,
		Network:     body.Network,
		PhoneNumber: body.PhoneNumber,
	})
	if err != nil {
		h.writeInitiateError(w, purpose, userID, err)
		return
	}

	response.Message(w, http.StatusCreated,
		"We have sent your payment request to Pesapal. If Mobile Money is available for your number, you should receive a prompt on your phone to enter your PIN.",
		map[string]interface{}{
			"status":            domain.StatusPending,
			"transaction_id":    result.TransactionID,
			"order_tracking_id": result.OrderTrackingID,
			"redirect_url":      result.RedirectURL,
		})
}

func (h *PaymentHandler) writeInitiateError(w http.ResponseWriter, purpose domain.Purpose, userID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNotEligible),
		errors.Is(err, domain.ErrAlreadyPaid),
		errors.Is(err, domain.ErrDuplicateInProgress),
		errors.Is(err, domain.ErrInvalidInput):
		response.Error(w, http.StatusBadRequest, err.Error())
	case domain.IsGatewayError(err):
		h.logger.Error("gateway failure during initiation",
			zap.String("purpose", string(purpose)),
			zap.String("user_id", userID),
			zap.Error(err))
		response.Error(w, http.StatusBadGateway, "payment gateway error, please try again later")
	default:
		h.logger.Error("payment initiation failed",
			zap.String("purpose", string(purpose)),
			zap.String("user_id", userID),
			zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "failed to initiate payment")
	}
}
