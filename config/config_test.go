package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PESAPAL_CONSUMER_KEY", "key")
	t.Setenv("PESAPAL_CONSUMER_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8031", cfg.Server.Port)
	assert.Equal(t, "https://pay.pesapal.com/v3", cfg.Pesapal.BaseURL)
	assert.Equal(t, "MaidMatch", cfg.Pesapal.Branch)
	assert.Equal(t, 15*time.Second, cfg.Pesapal.AuthTimeout)
	assert.Equal(t, 20*time.Second, cfg.Pesapal.SubmitTimeout)
	assert.Equal(t, 24*time.Hour, cfg.Admin.ExpireMinAge)
}

func TestLoadRequiresCredentials(t *testing.T) {
	t.Setenv("PESAPAL_CONSUMER_KEY", "")
	t.Setenv("PESAPAL_CONSUMER_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PESAPAL_CONSUMER_KEY", "key")
	t.Setenv("PESAPAL_CONSUMER_SECRET", "secret")
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("ADMIN_EXPIRE_MIN_AGE", "2h")
	t.Setenv("PESAPAL_QUERY_TIMEOUT", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, 2*time.Hour, cfg.Admin.ExpireMinAge)
	// Unparseable durations fall back to the default.
	assert.Equal(t, 15*time.Second, cfg.Pesapal.QueryTimeout)
}
