package compliance

import (
	"fmt"
	"math"
)

// Policy holds every threshold the aggregator compares against. It is built
// once by the caller (usually from config) and never read from the process
// environment here.
type Policy struct {
	Section3RequiredPercent float64 `yaml:"section3_required_percent"`
	TargetedRequiredPercent float64 `yaml:"targeted_required_percent"`
	// AtRiskBufferPercent is how far below a requirement a rate may sit and
	// still be reported as at-risk rather than non-compliant.
	AtRiskBufferPercent  float64 `yaml:"at_risk_buffer_percent"`
	PassThresholdPercent float64 `yaml:"pass_threshold_percent"`
	LowRiskMinPercent    float64 `yaml:"low_risk_min_percent"`
	MediumRiskMinPercent float64 `yaml:"medium_risk_min_percent"`
}

func DefaultPolicy() Policy {
	return Policy{
		Section3RequiredPercent: 25,
		TargetedRequiredPercent: 5,
		AtRiskBufferPercent:     5,
		PassThresholdPercent:    25,
		LowRiskMinPercent:       30,
		MediumRiskMinPercent:    20,
	}
}

func (p Policy) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"section3_required_percent", p.Section3RequiredPercent},
		{"targeted_required_percent", p.TargetedRequiredPercent},
		{"at_risk_buffer_percent", p.AtRiskBufferPercent},
		{"pass_threshold_percent", p.PassThresholdPercent},
		{"low_risk_min_percent", p.LowRiskMinPercent},
		{"medium_risk_min_percent", p.MediumRiskMinPercent},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) || f.value < 0 || f.value > 100 {
			return fmt.Errorf("invalid %s: expected a percentage between 0 and 100, got %v", f.name, f.value)
		}
	}

	if p.MediumRiskMinPercent > p.LowRiskMinPercent {
		return fmt.Errorf("medium_risk_min_percent (%v) must not exceed low_risk_min_percent (%v)",
			p.MediumRiskMinPercent, p.LowRiskMinPercent)
	}

	return nil
}
