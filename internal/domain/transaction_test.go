package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountFor(t *testing.T) {
	tests := []struct {
		purpose Purpose
		amount  int64
	}{
		{PurposeMaidOnboarding, 5000},
		{PurposeHomeNurseOnboarding, 10000},
		{PurposeHomeownerLiveIn, 25000},
		{PurposeHomeownerMonthly, 20000},
		{PurposeHomeownerDayPass, 5000},
		{PurposeCompanyMonthly, 30000},
		{PurposeCompanyAnnual, 342000},
	}

	for _, tt := range tests {
		t.Run(string(tt.purpose), func(t *testing.T) {
			amount, err := AmountFor(tt.purpose)
			require.NoError(t, err)
			assert.True(t, amount.Equal(decimal.NewFromInt(tt.amount)),
				"expected %d, got %s", tt.amount, amount)
		})
	}
}

func TestAmountForUnknownPurpose(t *testing.T) {
	_, err := AmountFor(Purpose("free_money"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestParseNetwork(t *testing.T) {
	tests := []struct {
		input   string
		want    Network
		wantErr bool
	}{
		{"mtn", NetworkMTN, false},
		{"MTN", NetworkMTN, false},
		{" airtel ", NetworkAirtel, false},
		{"Airtel", NetworkAirtel, false},
		{"safaricom", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseNetwork(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStatusIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusSuccessful.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
}

func TestMerchantReferenceRoundTrip(t *testing.T) {
	for purpose := range purposeCatalog {
		id := NewTransactionID()
		ref := MerchantReference(purpose, id)

		parsed, err := ParseMerchantReference(ref)
		require.NoError(t, err, "purpose %s", purpose)
		assert.Equal(t, id, parsed)
	}
}

func TestParseMerchantReferenceLegacyPrefixes(t *testing.T) {
	// Every prefix this service has ever emitted stays resolvable.
	prefixes := []string{
		"MM-ONBOARD-", "HN-ONBOARD-", "HM-LIVE-",
		"HM-MONTH-", "HM-DAY-", "CC-MONTH-", "CC-ANNUAL-",
	}

	for _, prefix := range prefixes {
		parsed, err := ParseMerchantReference(prefix + "abc123")
		require.NoError(t, err, "prefix %s", prefix)
		assert.Equal(t, "abc123", parsed)
	}
}

func TestParseMerchantReferenceRejectsGarbage(t *testing.T) {
	_, err := ParseMerchantReference("XX-UNKNOWN-abc123")
	assert.Error(t, err)

	_, err = ParseMerchantReference("MM-ONBOARD-")
	assert.Error(t, err)

	_, err = ParseMerchantReference("")
	assert.Error(t, err)
}

func TestNewOwnerRef(t *testing.T) {
	ref, err := NewOwnerRef(OwnerMaid, "42")
	require.NoError(t, err)
	assert.Equal(t, OwnerMaid, ref.Type())
	assert.Equal(t, "42", ref.ID())
	assert.False(t, ref.IsZero())
	assert.Equal(t, "maid:42", ref.String())

	_, err = NewOwnerRef(OwnerType("plumber"), "42")
	assert.Error(t, err)

	_, err = NewOwnerRef(OwnerHomeowner, "")
	assert.Error(t, err)

	assert.True(t, OwnerRef{}.IsZero())
}

func TestNewTransaction(t *testing.T) {
	tx, err := NewTransaction(MaidRef("7"), NetworkMTN, "+256700000001", PurposeMaidOnboarding)
	require.NoError(t, err)

	assert.NotEmpty(t, tx.ID)
	assert.Equal(t, StatusPending, tx.Status)
	assert.Equal(t, ProviderPesapal, tx.Provider)
	assert.Equal(t, PurposeMaidOnboarding, tx.Purpose)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(5000)))
	assert.Nil(t, tx.ProviderReference)
	assert.Nil(t, tx.CompletedAt)
	assert.Equal(t, "MM-ONBOARD-"+tx.ID, tx.MerchantReference())
}

func TestNewTransactionOwnerPurposeMismatch(t *testing.T) {
	// A homeowner cannot pay the maid onboarding fee.
	_, err := NewTransaction(HomeownerRef("7"), NetworkMTN, "+256700000001", PurposeMaidOnboarding)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotEligible)

	_, err = NewTransaction(MaidRef("7"), NetworkMTN, "+256700000001", PurposeCompanyMonthly)
	assert.ErrorIs(t, err, ErrNotEligible)
}

func TestNewTransactionRequiresPhone(t *testing.T) {
	_, err := NewTransaction(MaidRef("7"), NetworkMTN, "", PurposeMaidOnboarding)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewTransactionRequiresOwner(t *testing.T) {
	_, err := NewTransaction(OwnerRef{}, NetworkMTN, "+256700000001", PurposeMaidOnboarding)
	assert.Error(t, err)
}

func TestNewTransactionIDsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := NewTransactionID()
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestIsGatewayError(t *testing.T) {
	assert.True(t, IsGatewayError(ErrGatewayUnreachable))
	assert.True(t, IsGatewayError(ErrGatewayAuthFailed))
	assert.True(t, IsGatewayError(ErrGatewaySubmitFailed))
	assert.False(t, IsGatewayError(ErrNotEligible))
	assert.False(t, IsGatewayError(nil))
}
