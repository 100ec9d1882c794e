package domain

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type Network string

const (
	NetworkMTN    Network = "mtn"
	NetworkAirtel Network = "airtel"
)

func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(s))) {
	case NetworkMTN:
		return NetworkMTN, nil
	case NetworkAirtel:
		return NetworkAirtel, nil
	}
	return "", fmt.Errorf("%w: invalid network, choose mtn or airtel", ErrInvalidInput)
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusSuccessful Status = "successful"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transition.
func (s Status) IsTerminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

type Purpose string

const (
	PurposeMaidOnboarding      Purpose = "maid_onboarding"
	PurposeHomeNurseOnboarding Purpose = "home_nurse_onboarding"
	PurposeHomeownerLiveIn     Purpose = "homeowner_live_in"
	PurposeHomeownerMonthly    Purpose = "homeowner_monthly"
	PurposeHomeownerDayPass    Purpose = "homeowner_day_pass"
	PurposeCompanyMonthly      Purpose = "company_monthly"
	PurposeCompanyAnnual       Purpose = "company_annual"
)

const ProviderPesapal = "pesapal"

const Currency = "UGX"

// PurposeSpec fixes everything the server derives from a purpose: who may
// pay it, what it costs, and how its merchant reference is prefixed.
// Amounts are never taken from client input.
type PurposeSpec struct {
	Owner          OwnerType
	Amount         decimal.Decimal
	MerchantPrefix string
	Description    string

	// OwnerWideGuard widens the duplicate in-flight guard from
	// (owner, purpose) to any purpose for the owner. Onboarding fees use
	// it: one onboarding charge ever per provider profile.
	OwnerWideGuard bool
}

var purposeCatalog = map[Purpose]PurposeSpec{
	PurposeMaidOnboarding: {
		Owner:          OwnerMaid,
		Amount:         decimal.NewFromInt(5000),
		MerchantPrefix: "MM-ONBOARD-",
		Description:    "MaidMatch onboarding fee (UGX 5,000)",
		OwnerWideGuard: true,
	},
	PurposeHomeNurseOnboarding: {
		Owner:          OwnerHomeNurse,
		Amount:         decimal.NewFromInt(10000),
		MerchantPrefix: "HN-ONBOARD-",
		Description:    "MaidMatch home nurse premium onboarding fee (UGX 10,000)",
		OwnerWideGuard: true,
	},
	PurposeHomeownerLiveIn: {
		Owner:          OwnerHomeowner,
		Amount:         decimal.NewFromInt(25000),
		MerchantPrefix: "HM-LIVE-",
		Description:    "MaidMatch homeowner live-in placement fee (UGX 25,000)",
	},
	PurposeHomeownerMonthly: {
		Owner:          OwnerHomeowner,
		Amount:         decimal.NewFromInt(20000),
		MerchantPrefix: "HM-MONTH-",
		Description:    "MaidMatch homeowner monthly subscription (UGX 20,000)",
	},
	PurposeHomeownerDayPass: {
		Owner:          OwnerHomeowner,
		Amount:         decimal.NewFromInt(5000),
		MerchantPrefix: "HM-DAY-",
		Description:    "MaidMatch homeowner 24 hour access pass (UGX 5,000)",
	},
	PurposeCompanyMonthly: {
		Owner:          OwnerCompany,
		Amount:         decimal.NewFromInt(30000),
		MerchantPrefix: "CC-MONTH-",
		Description:    "MaidMatch cleaning company monthly plan (UGX 30,000)",
	},
	PurposeCompanyAnnual: {
		// 12 * 30,000 with 5% discount.
		Owner:          OwnerCompany,
		Amount:         decimal.NewFromInt(342000),
		MerchantPrefix: "CC-ANNUAL-",
		Description:    "MaidMatch cleaning company annual plan (UGX 342,000, 5% off)",
	},
}

func SpecFor(p Purpose) (PurposeSpec, error) {
	spec, ok := purposeCatalog[p]
	if !ok {
		return PurposeSpec{}, fmt.Errorf("%w: unknown purpose %q", ErrInvalidInput, p)
	}
	return spec, nil
}

// AmountFor returns the fixed server-side price for a purpose.
func AmountFor(p Purpose) (decimal.Decimal, error) {
	spec, err := SpecFor(p)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return spec.Amount, nil
}

// MerchantReference derives the outbound order id from the purpose prefix
// and the transaction id, so an inbound notification carrying only the
// merchant reference can be resolved back to the ledger row.
func MerchantReference(p Purpose, txID string) string {
	spec := purposeCatalog[p]
	return spec.MerchantPrefix + txID
}

// ParseMerchantReference recovers a transaction id from a merchant
// reference, tolerating every prefix scheme this service has ever emitted.
func ParseMerchantReference(ref string) (string, error) {
	for _, spec := range purposeCatalog {
		if strings.HasPrefix(ref, spec.MerchantPrefix) {
			id := strings.TrimPrefix(ref, spec.MerchantPrefix)
			if id == "" {
				return "", fmt.Errorf("merchant reference %q has no transaction id", ref)
			}
			return id, nil
		}
	}
	return "", fmt.Errorf("unrecognized merchant reference %q", ref)
}

// Transaction is a single mobile-money payment attempt. Rows are created
// pending, move one way to successful or failed, and are never deleted.
type Transaction struct {
	ID                string          `json:"id"`
	Owner             OwnerRef        `json:"-"`
	Network           Network         `json:"network"`
	PhoneNumber       string          `json:"phone_number"`
	Amount            decimal.Decimal `json:"amount"`
	Purpose           Purpose         `json:"purpose"`
	Provider          string          `json:"provider"`
	ProviderReference *string         `json:"provider_reference,omitempty"`
	Status            Status          `json:"status"`
	RawCallback       json.RawMessage `json:"raw_callback,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

// NewTransaction builds a pending ledger entry with the fixed amount for
// the purpose. The caller is responsible for eligibility and guard checks.
func NewTransaction(owner OwnerRef, network Network, phoneNumber string, purpose Purpose) (*Transaction, error) {
	if owner.IsZero() {
		return nil, fmt.Errorf("owner reference is required")
	}
	spec, err := SpecFor(purpose)
	if err != nil {
		return nil, err
	}
	if spec.Owner != owner.Type() {
		return nil, fmt.Errorf("%w: purpose %s is not payable by %s", ErrNotEligible, purpose, owner.Type())
	}
	if phoneNumber == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	}

	return &Transaction{
		ID:          NewTransactionID(),
		Owner:       owner,
		Network:     network,
		PhoneNumber: phoneNumber,
		Amount:      spec.Amount,
		Purpose:     purpose,
		Provider:    ProviderPesapal,
		Status:      StatusPending,
	}, nil
}

func NewTransactionID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// MerchantReference returns this transaction's outbound order id.
func (t *Transaction) MerchantReference() string {
	return MerchantReference(t.Purpose, t.ID)
}
