package domain

import (
	"fmt"
	"time"
)

type OwnerType string

const (
	OwnerMaid      OwnerType = "maid"
	OwnerHomeowner OwnerType = "homeowner"
	OwnerCompany   OwnerType = "company"
	OwnerHomeNurse OwnerType = "home_nurse"
)

// OwnerRef links a transaction to exactly one billable marketplace entity.
// The zero value is invalid; construct through NewOwnerRef or the typed
// helpers so the exactly-one invariant holds by construction.
type OwnerRef struct {
	ownerType OwnerType
	id        string
}

func NewOwnerRef(t OwnerType, id string) (OwnerRef, error) {
	switch t {
	case OwnerMaid, OwnerHomeowner, OwnerCompany, OwnerHomeNurse:
	default:
		return OwnerRef{}, fmt.Errorf("invalid owner type: %q", t)
	}
	if id == "" {
		return OwnerRef{}, fmt.Errorf("owner id is required")
	}
	return OwnerRef{ownerType: t, id: id}, nil
}

func MaidRef(id string) OwnerRef      { return OwnerRef{ownerType: OwnerMaid, id: id} }
func HomeownerRef(id string) OwnerRef { return OwnerRef{ownerType: OwnerHomeowner, id: id} }
func CompanyRef(id string) OwnerRef   { return OwnerRef{ownerType: OwnerCompany, id: id} }
func HomeNurseRef(id string) OwnerRef { return OwnerRef{ownerType: OwnerHomeNurse, id: id} }

func (o OwnerRef) Type() OwnerType { return o.ownerType }
func (o OwnerRef) ID() string      { return o.id }
func (o OwnerRef) IsZero() bool    { return o.ownerType == "" || o.id == "" }

func (o OwnerRef) String() string {
	return fmt.Sprintf("%s:%s", o.ownerType, o.id)
}

// BillingProfile is the slice of a billable entity this service reads:
// identity for the gateway's billing address plus the paid/subscription
// state the already-paid guard inspects. The owning application writes
// everything else.
type BillingProfile struct {
	Owner    OwnerRef
	FullName string
	Email    string
	Location string

	OnboardingFeePaid     bool
	HasLiveInCredit       bool
	HasActiveSubscription bool
	SubscriptionType      string
	SubscriptionExpiresAt *time.Time
}
