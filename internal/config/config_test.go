package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/section3-compliance/internal/compliance"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/section3")

		cfg, err := New()

		require.NoError(t, err)
		assert.Equal(t, "8080", cfg.APIPort)
		assert.Equal(t, 4, cfg.NumParserWorkers)
		assert.Equal(t, 2, cfg.NumDBWorkers)
		assert.Equal(t, 5000, cfg.DBBatchSize)
		assert.Equal(t, compliance.DefaultPolicy(), cfg.Policy())
		assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
	})

	t.Run("missing database url", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")

		_, err := New()

		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("env thresholds", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/section3")
		t.Setenv("SECTION3_REQUIRED_PERCENT", "30")
		t.Setenv("AT_RISK_BUFFER_PERCENT", "2.5")

		cfg, err := New()

		require.NoError(t, err)
		assert.Equal(t, 30.0, cfg.Policy().Section3RequiredPercent)
		assert.Equal(t, 2.5, cfg.Policy().AtRiskBufferPercent)
	})

	t.Run("non numeric worker count", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/section3")
		t.Setenv("NUM_DB_WORKERS", "two")

		_, err := New()

		assert.Error(t, err)
	})

	t.Run("zero batch size", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/section3")
		t.Setenv("DB_BATCH_SIZE", "0")

		_, err := New()

		assert.ErrorContains(t, err, "DB_BATCH_SIZE")
	})

	t.Run("policy file overrides env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "policy.yaml")
		require.NoError(t, os.WriteFile(path, []byte("section3_required_percent: 35\nlow_risk_min_percent: 40\n"), 0o600))

		t.Setenv("DATABASE_URL", "postgres://localhost/section3")
		t.Setenv("SECTION3_REQUIRED_PERCENT", "30")
		t.Setenv("COMPLIANCE_POLICY_FILE", path)

		cfg, err := New()

		require.NoError(t, err)
		assert.Equal(t, 35.0, cfg.Policy().Section3RequiredPercent)
		assert.Equal(t, 40.0, cfg.Policy().LowRiskMinPercent)
		assert.Equal(t, 5.0, cfg.Policy().TargetedRequiredPercent)
	})

	t.Run("invalid policy is rejected", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/section3")
		t.Setenv("MEDIUM_RISK_MIN_PERCENT", "50")

		_, err := New()

		assert.ErrorContains(t, err, "invalid compliance policy")
	})

	t.Run("missing policy file", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "postgres://localhost/section3")
		t.Setenv("COMPLIANCE_POLICY_FILE", filepath.Join(t.TempDir(), "nope.yaml"))

		_, err := New()

		assert.Error(t, err)
	})
}

func TestConfig_AllowedOrigins(t *testing.T) {
	cfg := &Config{CORSOrigins: " https://a.example, ,https://b.example "}

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())
}
