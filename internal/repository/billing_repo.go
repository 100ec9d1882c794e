package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"momo-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BillingRepository is the service's only view of the marketplace profile
// tables: a per-role lookup for eligibility and billing details, and the
// scoped field setters the reconciler applies on payment success. Every
// setter updates exactly the columns this service owns, so concurrent
// profile edits elsewhere are never clobbered.
type BillingRepository interface {
	ProfileByUser(ctx context.Context, ownerType domain.OwnerType, userID string) (*domain.BillingProfile, error)

	SetOnboardingPaid(ctx context.Context, owner domain.OwnerRef, at time.Time) error
	SetLiveInCredit(ctx context.Context, owner domain.OwnerRef, at time.Time) error
	SetSubscription(ctx context.Context, owner domain.OwnerRef, planType string, expiresAt time.Time) error
}

type billingRepo struct {
	db *pgxpool.Pool
}

func NewBillingRepository(db *pgxpool.Pool) BillingRepository {
	return &billingRepo{db: db}
}

func (r *billingRepo) ProfileByUser(ctx context.Context, ownerType domain.OwnerType, userID string) (*domain.BillingProfile, error) {
	var query string
	switch ownerType {
	case domain.OwnerMaid:
		query = `
            SELECT id, full_name, email, location, onboarding_fee_paid,
                   FALSE, FALSE, '', NULL::timestamptz
            FROM maid_profiles WHERE user_id = $1
        `
	case domain.OwnerHomeNurse:
		query = `
            SELECT id, full_name, email, location, onboarding_fee_paid,
                   FALSE, FALSE, '', NULL::timestamptz
            FROM home_nurses WHERE user_id = $1
        `
	case domain.OwnerHomeowner:
		query = `
            SELECT id, full_name, email, home_address, FALSE,
                   has_live_in_credit, FALSE,
                   COALESCE(subscription_type, ''), subscription_expires_at
            FROM homeowner_profiles WHERE user_id = $1
        `
	case domain.OwnerCompany:
		query = `
            SELECT id, company_name, email, location, FALSE,
                   FALSE, has_active_subscription,
                   COALESCE(subscription_type, ''), subscription_expires_at
            FROM cleaning_companies WHERE user_id = $1
        `
	default:
		return nil, fmt.Errorf("unknown owner type %q", ownerType)
	}

	var (
		p  domain.BillingProfile
		id string
	)
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&id,
		&p.FullName,
		&p.Email,
		&p.Location,
		&p.OnboardingFeePaid,
		&p.HasLiveInCredit,
		&p.HasActiveSubscription,
		&p.SubscriptionType,
		&p.SubscriptionExpiresAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotEligible
	}
	if err != nil {
		return nil, err
	}

	owner, err := domain.NewOwnerRef(ownerType, id)
	if err != nil {
		return nil, err
	}
	p.Owner = owner

	return &p, nil
}

func (r *billingRepo) SetOnboardingPaid(ctx context.Context, owner domain.OwnerRef, at time.Time) error {
	var table string
	switch owner.Type() {
	case domain.OwnerMaid:
		table = "maid_profiles"
	case domain.OwnerHomeNurse:
		table = "home_nurses"
	default:
		return fmt.Errorf("owner type %s has no onboarding fee", owner.Type())
	}

	query := fmt.Sprintf(`
        UPDATE %s
        SET onboarding_fee_paid = TRUE, onboarding_fee_paid_at = $2
        WHERE id = $1
    `, table)

	tag, err := r.db.Exec(ctx, query, owner.ID(), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s not found", owner.Type(), owner.ID())
	}
	return nil
}

func (r *billingRepo) SetLiveInCredit(ctx context.Context, owner domain.OwnerRef, at time.Time) error {
	if owner.Type() != domain.OwnerHomeowner {
		return fmt.Errorf("owner type %s has no live-in credit", owner.Type())
	}

	query := `
        UPDATE homeowner_profiles
        SET has_live_in_credit = TRUE, live_in_credit_awarded_at = $2
        WHERE id = $1
    `

	tag, err := r.db.Exec(ctx, query, owner.ID(), at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("homeowner %s not found", owner.ID())
	}
	return nil
}

func (r *billingRepo) SetSubscription(ctx context.Context, owner domain.OwnerRef, planType string, expiresAt time.Time) error {
	var query string
	switch owner.Type() {
	case domain.OwnerHomeowner:
		query = `
            UPDATE homeowner_profiles
            SET subscription_type = $2, subscription_expires_at = $3
            WHERE id = $1
        `
	case domain.OwnerCompany:
		query = `
            UPDATE cleaning_companies
            SET has_active_subscription = TRUE, subscription_type = $2, subscription_expires_at = $3
            WHERE id = $1
        `
	default:
		return fmt.Errorf("owner type %s has no subscription", owner.Type())
	}

	tag, err := r.db.Exec(ctx, query, owner.ID(), planType, expiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s not found", owner.Type(), owner.ID())
	}
	return nil
}
