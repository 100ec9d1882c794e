package usecase

import (
	"context"
	"fmt"
	"time"

	"momo-service/internal/domain"
	"momo-service/internal/repository"
)

// Subscription plan names written onto the owning profile.
const (
	PlanMonthly = "monthly"
	PlanDayPass = "day_pass"
	PlanAnnual  = "annual"
)

const (
	monthlyDuration = 30 * 24 * time.Hour
	dayPassDuration = 24 * time.Hour
	annualDuration  = 365 * 24 * time.Hour
)

// EffectFunc applies the purpose-specific mutation on the owning entity
// when its transaction reaches successful. Effects fire exactly once, on
// the pending -> successful transition; the state machine, not the effect,
// carries that guarantee.
type EffectFunc func(ctx context.Context, billing repository.BillingRepository, owner domain.OwnerRef, now time.Time) error

// sideEffects maps each purpose to its mutation, keeping the reconciler
// itself free of business branching.
var sideEffects = map[domain.Purpose]EffectFunc{
	domain.PurposeMaidOnboarding:      applyOnboardingPaid,
	domain.PurposeHomeNurseOnboarding: applyOnboardingPaid,
	domain.PurposeHomeownerLiveIn: func(ctx context.Context, billing repository.BillingRepository, owner domain.OwnerRef, now time.Time) error {
		return billing.SetLiveInCredit(ctx, owner, now)
	},
	domain.PurposeHomeownerMonthly: subscriptionEffect(PlanMonthly, monthlyDuration),
	domain.PurposeHomeownerDayPass: subscriptionEffect(PlanDayPass, dayPassDuration),
	domain.PurposeCompanyMonthly:   subscriptionEffect(PlanMonthly, monthlyDuration),
	domain.PurposeCompanyAnnual:    subscriptionEffect(PlanAnnual, annualDuration),
}

func applyOnboardingPaid(ctx context.Context, billing repository.BillingRepository, owner domain.OwnerRef, now time.Time) error {
	return billing.SetOnboardingPaid(ctx, owner, now)
}

func subscriptionEffect(planType string, duration time.Duration) EffectFunc {
	return func(ctx context.Context, billing repository.BillingRepository, owner domain.OwnerRef, now time.Time) error {
		return billing.SetSubscription(ctx, owner, planType, now.Add(duration))
	}
}

// EffectFor returns the side effect registered for a purpose.
func EffectFor(purpose domain.Purpose) (EffectFunc, error) {
	effect, ok := sideEffects[purpose]
	if !ok {
		return nil, fmt.Errorf("no side effect registered for purpose %q", purpose)
	}
	return effect, nil
}

// alreadyPaid reports whether the owning entity already holds the state
// this purpose would grant, making another charge pointless.
func alreadyPaid(purpose domain.Purpose, profile *domain.BillingProfile, now time.Time) bool {
	switch purpose {
	case domain.PurposeMaidOnboarding, domain.PurposeHomeNurseOnboarding:
		return profile.OnboardingFeePaid
	case domain.PurposeHomeownerLiveIn:
		return profile.HasLiveInCredit
	case domain.PurposeHomeownerMonthly, domain.PurposeHomeownerDayPass:
		plan := PlanMonthly
		if purpose == domain.PurposeHomeownerDayPass {
			plan = PlanDayPass
		}
		return profile.SubscriptionType == plan &&
			profile.SubscriptionExpiresAt != nil &&
			profile.SubscriptionExpiresAt.After(now)
	case domain.PurposeCompanyMonthly, domain.PurposeCompanyAnnual:
		return profile.HasActiveSubscription &&
			profile.SubscriptionExpiresAt != nil &&
			profile.SubscriptionExpiresAt.After(now)
	}
	return false
}
