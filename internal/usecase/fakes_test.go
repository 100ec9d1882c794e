package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"momo-service/internal/domain"
	"momo-service/internal/provider/pesapal"
)

// fakeTxRepo is an in-memory TransactionRepository with the same transition
// semantics as the Postgres implementation.
type fakeTxRepo struct {
	mu  sync.Mutex
	txs map[string]*domain.Transaction
}

func newFakeTxRepo() *fakeTxRepo {
	return &fakeTxRepo{txs: make(map[string]*domain.Transaction)}
}

func (r *fakeTxRepo) Create(_ context.Context, tx *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.txs {
		if existing.Owner == tx.Owner && existing.Purpose == tx.Purpose &&
			(existing.Status == domain.StatusPending || existing.Status == domain.StatusSuccessful) {
			return domain.ErrDuplicateInProgress
		}
	}
	now := time.Now()
	tx.CreatedAt = now
	tx.UpdatedAt = now
	r.txs[tx.ID] = tx
	return nil
}

func (r *fakeTxRepo) GetByID(_ context.Context, id string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (r *fakeTxRepo) GetByProviderReference(_ context.Context, ref string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.ProviderReference != nil && *tx.ProviderReference == ref {
			cp := *tx
			return &cp, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (r *fakeTxRepo) FindInFlight(_ context.Context, owner domain.OwnerRef, purpose *domain.Purpose) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tx := range r.txs {
		if tx.Owner != owner {
			continue
		}
		if tx.Status != domain.StatusPending && tx.Status != domain.StatusSuccessful {
			continue
		}
		if purpose != nil && tx.Purpose != *purpose {
			continue
		}
		cp := *tx
		return &cp, nil
	}
	return nil, nil
}

// requireJSON mirrors the JSONB column: Postgres rejects writes whose raw
// payload is not valid JSON.
func requireJSON(raw json.RawMessage) error {
	if raw != nil && !json.Valid(raw) {
		return fmt.Errorf("invalid input syntax for type json")
	}
	return nil
}

func (r *fakeTxRepo) SetProviderReference(_ context.Context, id, providerRef string, raw json.RawMessage) error {
	if err := requireJSON(raw); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.ProviderReference = &providerRef
	if raw != nil {
		tx.RawCallback = raw
	}
	tx.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTxRepo) SetRawCallback(_ context.Context, id string, raw json.RawMessage) error {
	if err := requireJSON(raw); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	tx.RawCallback = raw
	tx.UpdatedAt = time.Now()
	return nil
}

func (r *fakeTxRepo) Transition(_ context.Context, id string, status domain.Status, raw json.RawMessage) error {
	if !status.IsTerminal() {
		return fmt.Errorf("cannot transition to non-terminal status %q", status)
	}
	if err := requireJSON(raw); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return domain.ErrTransactionNotFound
	}
	if tx.Status != domain.StatusPending {
		return domain.ErrAlreadyFinal
	}
	tx.Status = status
	if raw != nil {
		tx.RawCallback = raw
	}
	now := time.Now()
	tx.CompletedAt = &now
	tx.UpdatedAt = now
	return nil
}

func (r *fakeTxRepo) List(_ context.Context, status *domain.Status, limit int) ([]*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Transaction
	for _, tx := range r.txs {
		if status != nil && tx.Status != *status {
			continue
		}
		cp := *tx
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// seed inserts a transaction directly, bypassing guards.
func (r *fakeTxRepo) seed(tx *domain.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	r.txs[tx.ID] = tx
}

// fakeBilling serves a fixed set of profiles and records every effect call.
type fakeBilling struct {
	mu       sync.Mutex
	profiles map[string]*domain.BillingProfile

	onboardingPaid []domain.OwnerRef
	liveInCredits  []domain.OwnerRef
	subscriptions  []subscriptionCall

	failEffects bool
}

type subscriptionCall struct {
	owner     domain.OwnerRef
	planType  string
	expiresAt time.Time
}

func newFakeBilling() *fakeBilling {
	return &fakeBilling{profiles: make(map[string]*domain.BillingProfile)}
}

func billingKey(t domain.OwnerType, userID string) string {
	return string(t) + ":" + userID
}

func (b *fakeBilling) addProfile(userID string, p *domain.BillingProfile) {
	b.profiles[billingKey(p.Owner.Type(), userID)] = p
}

func (b *fakeBilling) ProfileByUser(_ context.Context, ownerType domain.OwnerType, userID string) (*domain.BillingProfile, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.profiles[billingKey(ownerType, userID)]
	if !ok {
		return nil, domain.ErrNotEligible
	}
	cp := *p
	return &cp, nil
}

func (b *fakeBilling) SetOnboardingPaid(_ context.Context, owner domain.OwnerRef, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failEffects {
		return fmt.Errorf("profile table unavailable")
	}
	b.onboardingPaid = append(b.onboardingPaid, owner)
	return nil
}

func (b *fakeBilling) SetLiveInCredit(_ context.Context, owner domain.OwnerRef, _ time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failEffects {
		return fmt.Errorf("profile table unavailable")
	}
	b.liveInCredits = append(b.liveInCredits, owner)
	return nil
}

func (b *fakeBilling) SetSubscription(_ context.Context, owner domain.OwnerRef, planType string, expiresAt time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failEffects {
		return fmt.Errorf("profile table unavailable")
	}
	b.subscriptions = append(b.subscriptions, subscriptionCall{owner, planType, expiresAt})
	return nil
}

// fakeGateway returns scripted results and counts calls.
type fakeGateway struct {
	authToken string
	authErr   error

	submitResp *pesapal.OrderResponse
	submitRaw  []byte
	submitErr  error

	statusResult pesapal.StatusResult

	authCalls   int
	submitCalls int
	queryCalls  int
	lastOrder   *pesapal.OrderRequest
	lastQueryID string
}

func (g *fakeGateway) Authenticate(_ context.Context) (string, error) {
	g.authCalls++
	if g.authErr != nil {
		return "", g.authErr
	}
	if g.authToken == "" {
		return "test-token", nil
	}
	return g.authToken, nil
}

func (g *fakeGateway) SubmitOrder(_ context.Context, _ string, order *pesapal.OrderRequest) (*pesapal.OrderResponse, []byte, error) {
	g.submitCalls++
	g.lastOrder = order
	if g.submitErr != nil {
		return nil, g.submitRaw, g.submitErr
	}
	if g.submitResp == nil {
		return &pesapal.OrderResponse{
			OrderTrackingID: "trk-001",
			RedirectURL:     "https://pay.pesapal.com/iframe/trk-001",
			Status:          "200",
		}, []byte(`{"order_tracking_id":"trk-001"}`), nil
	}
	return g.submitResp, g.submitRaw, nil
}

func (g *fakeGateway) QueryStatus(_ context.Context, _, orderTrackingID string) pesapal.StatusResult {
	g.queryCalls++
	g.lastQueryID = orderTrackingID
	return g.statusResult
}
