package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env"
	"gopkg.in/yaml.v3"

	"github.com/ThiagoRGoveia/section3-compliance/internal/compliance"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	APIPort     string `env:"API_PORT" envDefault:"8080"`
	CORSOrigins string `env:"CORS_ORIGINS" envDefault:"*"`

	LogMode string `env:"LOG_MODE" envDefault:"dev"`
	LogFile string `env:"LOG_FILE"`

	NumParserWorkers   int `env:"NUM_PARSER_WORKERS" envDefault:"4"`
	NumDBWorkers       int `env:"NUM_DB_WORKERS" envDefault:"2"`
	ResultsChannelSize int `env:"RESULTS_CHANNEL_SIZE" envDefault:"10000"`
	DBBatchSize        int `env:"DB_BATCH_SIZE" envDefault:"5000"`

	PolicyFile              string  `env:"COMPLIANCE_POLICY_FILE"`
	Section3RequiredPercent float64 `env:"SECTION3_REQUIRED_PERCENT" envDefault:"25"`
	TargetedRequiredPercent float64 `env:"TARGETED_REQUIRED_PERCENT" envDefault:"5"`
	AtRiskBufferPercent     float64 `env:"AT_RISK_BUFFER_PERCENT" envDefault:"5"`
	PassThresholdPercent    float64 `env:"PASS_THRESHOLD_PERCENT" envDefault:"25"`
	LowRiskMinPercent       float64 `env:"LOW_RISK_MIN_PERCENT" envDefault:"30"`
	MediumRiskMinPercent    float64 `env:"MEDIUM_RISK_MIN_PERCENT" envDefault:"20"`

	policy compliance.Policy
}

// New reads the process environment. The policy file, when set, is applied
// on top of the env thresholds.
func New() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	if err := cfg.validateWorkers(); err != nil {
		return nil, err
	}

	cfg.policy = compliance.Policy{
		Section3RequiredPercent: cfg.Section3RequiredPercent,
		TargetedRequiredPercent: cfg.TargetedRequiredPercent,
		AtRiskBufferPercent:     cfg.AtRiskBufferPercent,
		PassThresholdPercent:    cfg.PassThresholdPercent,
		LowRiskMinPercent:       cfg.LowRiskMinPercent,
		MediumRiskMinPercent:    cfg.MediumRiskMinPercent,
	}

	if cfg.PolicyFile != "" {
		if err := overlayPolicyFile(cfg.PolicyFile, &cfg.policy); err != nil {
			return nil, err
		}
	}

	if err := cfg.policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compliance policy: %w", err)
	}

	return cfg, nil
}

// Policy returns the thresholds handed to the aggregator.
func (c *Config) Policy() compliance.Policy {
	return c.policy
}

func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c *Config) validateWorkers() error {
	values := map[string]int{
		"NUM_PARSER_WORKERS":   c.NumParserWorkers,
		"NUM_DB_WORKERS":       c.NumDBWorkers,
		"RESULTS_CHANNEL_SIZE": c.ResultsChannelSize,
		"DB_BATCH_SIZE":        c.DBBatchSize,
	}
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("invalid value for %s: expected a positive integer, got %d", key, value)
		}
	}
	return nil
}

// overlayPolicyFile decodes the YAML file into policy. Keys missing from the
// file keep their current value.
func overlayPolicyFile(path string, policy *compliance.Policy) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, policy); err != nil {
		return fmt.Errorf("failed to decode policy file %s: %w", path, err)
	}

	return nil
}
