package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"momo-service/config"
	"momo-service/internal/domain"
	"momo-service/internal/provider/pesapal"
	"momo-service/internal/repository"

	"go.uber.org/zap"
)

// Gateway is the slice of the Pesapal client the usecases depend on.
type Gateway interface {
	Authenticate(ctx context.Context) (string, error)
	SubmitOrder(ctx context.Context, token string, order *pesapal.OrderRequest) (*pesapal.OrderResponse, []byte, error)
	QueryStatus(ctx context.Context, token, orderTrackingID string) pesapal.StatusResult
}

type InitiateRequest struct {
	UserID      string
	Purpose     domain.Purpose
	Network     string
	PhoneNumber string
}

type InitiateResult struct {
	TransactionID   string `json:"transaction_id"`
	OrderTrackingID string `json:"order_tracking_id"`
	RedirectURL     string `json:"redirect_url"`
}

type PaymentUsecase struct {
	txRepo  repository.TransactionRepository
	billing repository.BillingRepository
	gateway Gateway
	cfg     config.PesapalConfig
	logger  *zap.Logger

	now func() time.Time
}

func NewPaymentUsecase(
	txRepo repository.TransactionRepository,
	billing repository.BillingRepository,
	gateway Gateway,
	cfg config.PesapalConfig,
	logger *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		txRepo:  txRepo,
		billing: billing,
		gateway: gateway,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Initiate runs the full initiation contract for one purpose: eligibility,
// already-paid and in-flight guards, input validation, fixed amount lookup,
// ledger entry, then the gateway round-trip. Business-rule rejections
// happen before any remote call; gateway failures leave a failed ledger row
// with the raw diagnostic payload attached.
func (uc *PaymentUsecase) Initiate(ctx context.Context, req *InitiateRequest) (*InitiateResult, error) {
	spec, err := domain.SpecFor(req.Purpose)
	if err != nil {
		return nil, err
	}

	// Eligibility: the caller must own a profile of the billable type for
	// this purpose.
	profile, err := uc.billing.ProfileByUser(ctx, spec.Owner, req.UserID)
	if err != nil {
		return nil, err
	}

	now := uc.now()
	if alreadyPaid(req.Purpose, profile, now) {
		return nil, domain.ErrAlreadyPaid
	}

	// Duplicate in-flight guard. Onboarding fees block owner-wide; the
	// storage layer's unique index backstops the remaining race.
	guardPurpose := &req.Purpose
	if spec.OwnerWideGuard {
		guardPurpose = nil
	}
	existing, err := uc.txRepo.FindInFlight(ctx, profile.Owner, guardPurpose)
	if err != nil {
		return nil, fmt.Errorf("in-flight lookup failed: %w", err)
	}
	if existing != nil {
		uc.logger.Info("duplicate payment attempt blocked",
			zap.String("owner", profile.Owner.String()),
			zap.String("purpose", string(req.Purpose)),
			zap.String("existing_transaction_id", existing.ID),
			zap.String("existing_status", string(existing.Status)))
		return nil, domain.ErrDuplicateInProgress
	}

	network, err := domain.ParseNetwork(req.Network)
	if err != nil {
		return nil, err
	}
	phone := strings.TrimSpace(req.PhoneNumber)
	if phone == "" {
		return nil, fmt.Errorf("%w: phone number is required", domain.ErrInvalidInput)
	}

	tx, err := domain.NewTransaction(profile.Owner, network, phone, req.Purpose)
	if err != nil {
		return nil, err
	}

	if err := uc.txRepo.Create(ctx, tx); err != nil {
		return nil, err
	}

	uc.logger.Info("transaction created",
		zap.String("transaction_id", tx.ID),
		zap.String("owner", tx.Owner.String()),
		zap.String("purpose", string(tx.Purpose)),
		zap.String("amount", tx.Amount.StringFixed(2)))

	token, err := uc.gateway.Authenticate(ctx)
	if err != nil {
		uc.failTransaction(ctx, tx.ID, nil, err)
		return nil, err
	}

	order := uc.buildOrder(tx, profile, spec)
	resp, raw, err := uc.gateway.SubmitOrder(ctx, token, order)
	if err != nil {
		uc.failTransaction(ctx, tx.ID, raw, err)
		return nil, err
	}

	if err := uc.txRepo.SetProviderReference(ctx, tx.ID, resp.OrderTrackingID, raw); err != nil {
		uc.logger.Error("failed to persist provider reference",
			zap.String("transaction_id", tx.ID),
			zap.String("order_tracking_id", resp.OrderTrackingID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to persist provider reference: %w", err)
	}

	uc.logger.Info("payment submitted to gateway",
		zap.String("transaction_id", tx.ID),
		zap.String("order_tracking_id", resp.OrderTrackingID))

	return &InitiateResult{
		TransactionID:   tx.ID,
		OrderTrackingID: resp.OrderTrackingID,
		RedirectURL:     resp.RedirectURL,
	}, nil
}

func (uc *PaymentUsecase) buildOrder(tx *domain.Transaction, profile *domain.BillingProfile, spec domain.PurposeSpec) *pesapal.OrderRequest {
	firstName, lastName := splitName(profile.FullName, string(profile.Owner.Type()))

	return &pesapal.OrderRequest{
		ID:             tx.MerchantReference(),
		Currency:       domain.Currency,
		Amount:         tx.Amount.InexactFloat64(),
		Description:    spec.Description,
		CallbackURL:    uc.cfg.CallbackURL,
		RedirectMode:   0,
		NotificationID: uc.cfg.NotificationID,
		Branch:         uc.cfg.Branch,
		BillingAddress: pesapal.BillingAddress{
			EmailAddress: profile.Email,
			PhoneNumber:  tx.PhoneNumber,
			CountryCode:  "UG",
			FirstName:    firstName,
			LastName:     lastName,
			Line1:        profile.Location,
		},
	}
}

// failTransaction records a gateway failure on the ledger so the attempt
// stays auditable. A row that cannot be marked failed is logged, not
// retried; the in-flight guard keeps it from causing a double charge.
func (uc *PaymentUsecase) failTransaction(ctx context.Context, id string, raw []byte, cause error) {
	uc.logger.Warn("payment initiation failed at gateway",
		zap.String("transaction_id", id),
		zap.Error(cause))

	if err := uc.txRepo.Transition(ctx, id, domain.StatusFailed, asJSON(raw)); err != nil {
		uc.logger.Error("failed to mark transaction failed",
			zap.String("transaction_id", id),
			zap.Error(err))
	}
}

// asJSON makes arbitrary gateway bytes safe for the JSONB audit column.
// Valid JSON passes through; anything else (an HTML error page, a truncated
// body) is stored as a JSON string so the transition itself never fails on
// a malformed diagnostic payload.
func asJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return raw
	}
	quoted, _ := json.Marshal(string(raw))
	return quoted
}

func splitName(fullName, fallback string) (string, string) {
	fields := strings.Fields(fullName)
	switch len(fields) {
	case 0:
		return fallback, fallback
	case 1:
		return fields[0], fields[0]
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
