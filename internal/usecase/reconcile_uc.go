package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"momo-service/internal/domain"
	"momo-service/internal/provider/pesapal"
	"momo-service/internal/repository"

	"go.uber.org/zap"
)

type ReconcileInput struct {
	OrderTrackingID   string
	MerchantReference string

	// RawPayload is the inbound notification body, stored for audit. It is
	// never the basis for a status decision.
	RawPayload json.RawMessage
}

type ReconcileOutcome struct {
	TransactionID string        `json:"transaction_id"`
	Status        domain.Status `json:"status"`

	// Deferred means the authoritative status could not be established;
	// the transaction stays pending for a later retry.
	Deferred bool `json:"deferred,omitempty"`
}

type CallbackUsecase struct {
	txRepo  repository.TransactionRepository
	billing repository.BillingRepository
	gateway Gateway
	logger  *zap.Logger

	now func() time.Time
}

func NewCallbackUsecase(
	txRepo repository.TransactionRepository,
	billing repository.BillingRepository,
	gateway Gateway,
	logger *zap.Logger,
) *CallbackUsecase {
	return &CallbackUsecase{
		txRepo:  txRepo,
		billing: billing,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
}

// Reconcile brings a transaction to a terminal state exactly once, based on
// the gateway's authoritative status. Safe to invoke any number of times
// for the same event: terminal transactions produce an idempotent ack.
func (uc *CallbackUsecase) Reconcile(ctx context.Context, in *ReconcileInput) (*ReconcileOutcome, error) {
	if in.OrderTrackingID == "" && in.MerchantReference == "" {
		return nil, fmt.Errorf("%w: missing order reference", domain.ErrInvalidInput)
	}

	tx, err := uc.resolve(ctx, in)
	if err != nil {
		return nil, err
	}

	return uc.reconcileTransaction(ctx, tx, in)
}

// ReconcileByID re-runs reconciliation for a known transaction, the manual
// retry path operators use for notifications the gateway never delivered.
func (uc *CallbackUsecase) ReconcileByID(ctx context.Context, id string) (*ReconcileOutcome, error) {
	tx, err := uc.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, _ := json.Marshal(map[string]string{"trigger": "manual_reconcile"})
	return uc.reconcileTransaction(ctx, tx, &ReconcileInput{RawPayload: raw})
}

func (uc *CallbackUsecase) reconcileTransaction(ctx context.Context, tx *domain.Transaction, in *ReconcileInput) (*ReconcileOutcome, error) {
	if tx.Status.IsTerminal() {
		uc.logger.Info("notification for terminal transaction ignored",
			zap.String("transaction_id", tx.ID),
			zap.String("status", string(tx.Status)))
		return &ReconcileOutcome{TransactionID: tx.ID, Status: tx.Status}, nil
	}

	trackingID := in.OrderTrackingID
	if trackingID == "" && tx.ProviderReference != nil {
		trackingID = *tx.ProviderReference
	}
	if trackingID == "" {
		// Initiation never recorded a gateway order; nothing to query.
		uc.storeAudit(ctx, tx.ID, in.RawPayload, nil)
		return &ReconcileOutcome{TransactionID: tx.ID, Status: tx.Status, Deferred: true}, nil
	}

	token, err := uc.gateway.Authenticate(ctx)
	if err != nil {
		uc.logger.Warn("status query blocked by gateway auth failure",
			zap.String("transaction_id", tx.ID),
			zap.Error(err))
		uc.storeAudit(ctx, tx.ID, in.RawPayload, nil)
		return &ReconcileOutcome{TransactionID: tx.ID, Status: tx.Status, Deferred: true}, nil
	}

	// The inbound payload's claimed status is never trusted; the gateway's
	// answer is the only input to the state machine.
	result := uc.gateway.QueryStatus(ctx, token, trackingID)
	audit := uc.auditPayload(in.RawPayload, result.Raw)

	switch result.Status {
	case pesapal.StatusCompleted:
		return uc.complete(ctx, tx, audit)
	case pesapal.StatusFailed, pesapal.StatusCancelled:
		return uc.fail(ctx, tx, audit)
	default:
		uc.logger.Info("gateway status unknown, leaving transaction pending",
			zap.String("transaction_id", tx.ID),
			zap.String("order_tracking_id", trackingID))
		uc.storeAudit(ctx, tx.ID, nil, audit)
		return &ReconcileOutcome{TransactionID: tx.ID, Status: tx.Status, Deferred: true}, nil
	}
}

func (uc *CallbackUsecase) complete(ctx context.Context, tx *domain.Transaction, audit json.RawMessage) (*ReconcileOutcome, error) {
	err := uc.txRepo.Transition(ctx, tx.ID, domain.StatusSuccessful, audit)
	if errors.Is(err, domain.ErrAlreadyFinal) {
		// A concurrent duplicate got there first; its transition applied
		// the side effect.
		return &ReconcileOutcome{TransactionID: tx.ID, Status: domain.StatusSuccessful}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark transaction successful: %w", err)
	}

	uc.logger.Info("transaction successful",
		zap.String("transaction_id", tx.ID),
		zap.String("owner", tx.Owner.String()),
		zap.String("purpose", string(tx.Purpose)),
		zap.String("amount", tx.Amount.StringFixed(2)))

	effect, err := EffectFor(tx.Purpose)
	if err != nil {
		uc.logger.Error("no side effect for purpose",
			zap.String("transaction_id", tx.ID),
			zap.String("purpose", string(tx.Purpose)))
		return &ReconcileOutcome{TransactionID: tx.ID, Status: domain.StatusSuccessful}, nil
	}
	if err := effect(ctx, uc.billing, tx.Owner, uc.now()); err != nil {
		// The transaction is terminal; the missing entitlement needs
		// operator attention, not a retry that could double-credit.
		uc.logger.Error("side effect application failed",
			zap.String("transaction_id", tx.ID),
			zap.String("owner", tx.Owner.String()),
			zap.String("purpose", string(tx.Purpose)),
			zap.Error(err))
	}

	return &ReconcileOutcome{TransactionID: tx.ID, Status: domain.StatusSuccessful}, nil
}

func (uc *CallbackUsecase) fail(ctx context.Context, tx *domain.Transaction, audit json.RawMessage) (*ReconcileOutcome, error) {
	err := uc.txRepo.Transition(ctx, tx.ID, domain.StatusFailed, audit)
	if errors.Is(err, domain.ErrAlreadyFinal) {
		return &ReconcileOutcome{TransactionID: tx.ID, Status: domain.StatusFailed}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to mark transaction failed: %w", err)
	}

	uc.logger.Info("transaction failed",
		zap.String("transaction_id", tx.ID),
		zap.String("purpose", string(tx.Purpose)))

	return &ReconcileOutcome{TransactionID: tx.ID, Status: domain.StatusFailed}, nil
}

// ExpirePending fails a pending transaction stuck past minAge. Operator
// triggered only; nothing in this service expires transactions on a timer.
func (uc *CallbackUsecase) ExpirePending(ctx context.Context, id string, minAge time.Duration) (*ReconcileOutcome, error) {
	tx, err := uc.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Status.IsTerminal() {
		return nil, domain.ErrAlreadyFinal
	}

	age := uc.now().Sub(tx.CreatedAt)
	if age < minAge {
		return nil, fmt.Errorf("%w: transaction is only %s old, minimum age for expiry is %s",
			domain.ErrInvalidInput, age.Round(time.Minute), minAge)
	}

	raw, _ := json.Marshal(map[string]string{"trigger": "manual_expire"})
	if err := uc.txRepo.Transition(ctx, id, domain.StatusFailed, raw); err != nil {
		return nil, err
	}

	uc.logger.Info("stuck pending transaction expired",
		zap.String("transaction_id", id),
		zap.Duration("age", age))

	return &ReconcileOutcome{TransactionID: id, Status: domain.StatusFailed}, nil
}

// resolve finds the transaction for an inbound notification: exact
// provider reference first, then the merchant reference, which may arrive
// before the initiator's provider_reference write is visible.
func (uc *CallbackUsecase) resolve(ctx context.Context, in *ReconcileInput) (*domain.Transaction, error) {
	if in.OrderTrackingID != "" {
		tx, err := uc.txRepo.GetByProviderReference(ctx, in.OrderTrackingID)
		if err == nil {
			return tx, nil
		}
		if !errors.Is(err, domain.ErrTransactionNotFound) {
			return nil, err
		}
	}

	if in.MerchantReference != "" {
		id, err := domain.ParseMerchantReference(in.MerchantReference)
		if err == nil {
			tx, err := uc.txRepo.GetByID(ctx, id)
			if err == nil {
				return tx, nil
			}
			if !errors.Is(err, domain.ErrTransactionNotFound) {
				return nil, err
			}
		}
	}

	uc.logger.Warn("notification did not resolve to any transaction",
		zap.String("order_tracking_id", in.OrderTrackingID),
		zap.String("merchant_reference", in.MerchantReference))

	return nil, domain.ErrTransactionNotFound
}

func (uc *CallbackUsecase) auditPayload(inbound, status json.RawMessage) json.RawMessage {
	payload := map[string]json.RawMessage{}
	if v := asJSON(inbound); v != nil {
		payload["ipn"] = v
	}
	if v := asJSON(status); v != nil {
		payload["status"] = v
	}
	if len(payload) == 0 {
		return nil
	}
	raw, _ := json.Marshal(payload)
	return raw
}

func (uc *CallbackUsecase) storeAudit(ctx context.Context, id string, inbound, combined json.RawMessage) {
	raw := combined
	if raw == nil {
		raw = uc.auditPayload(inbound, nil)
	}
	if raw == nil {
		return
	}
	if err := uc.txRepo.SetRawCallback(ctx, id, raw); err != nil {
		uc.logger.Error("failed to store callback audit payload",
			zap.String("transaction_id", id),
			zap.Error(err))
	}
}
