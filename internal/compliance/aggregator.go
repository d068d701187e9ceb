// Package compliance turns labor-hour and worker snapshots into Section 3 and
// Targeted Section 3 compliance figures. Everything here is pure: callers hand
// in rows already read from the datastore and get plain values back.
package compliance

import (
	"fmt"
	"math"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

// WorkerIndex is the explicit worker lookup used in place of joined rows.
type WorkerIndex map[string]models.Worker

func IndexWorkers(workers []models.Worker) WorkerIndex {
	index := make(WorkerIndex, len(workers))
	for _, w := range workers {
		index[w.ID] = w
	}
	return index
}

type Aggregator struct {
	policy Policy
}

func NewAggregator(policy Policy) (*Aggregator, error) {
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid compliance policy: %w", err)
	}
	return &Aggregator{policy: policy}, nil
}

func (a *Aggregator) Policy() Policy {
	return a.policy
}

// ComputeMetrics sums hours over the whole snapshot. Verification does not
// gate the totals. A record whose worker is unknown counts toward totalHours
// only; a record with unusable hours is left out and counted as malformed.
func (a *Aggregator) ComputeMetrics(hours []models.LaborHourRecord, workers WorkerIndex) models.ComplianceMetrics {
	var (
		t    tally
		diag models.Diagnostics
	)
	inconsistent := make(map[string]struct{})

	for i := range hours {
		record := &hours[i]
		if !validHours(record.HoursWorked) {
			diag.MalformedRecords++
			continue
		}
		t.add(record, workers, &diag, inconsistent)
	}
	diag.InconsistentWorkers = len(inconsistent)

	section3Pct := percentage(t.section3, t.total)
	targetedPct := percentage(t.targeted, t.total)

	return models.ComplianceMetrics{
		RecordCount:                t.records,
		TotalHours:                 t.total,
		Section3Hours:              t.section3,
		TargetedSection3Hours:      t.targeted,
		Section3Percentage:         section3Pct,
		TargetedSection3Percentage: targetedPct,
		ComplianceStatus:           a.ClassifyCompliance(section3Pct, a.policy.Section3RequiredPercent),
		TargetedComplianceStatus:   a.ClassifyCompliance(targetedPct, a.policy.TargetedRequiredPercent),
		Diagnostics:                diag,
	}
}

// ClassifyCompliance is the three-tier classifier used for workforce and
// project status.
func (a *Aggregator) ClassifyCompliance(ratePercent, requiredPercent float64) models.ComplianceStatus {
	switch {
	case math.IsNaN(ratePercent):
		return models.StatusNonCompliant
	case ratePercent >= requiredPercent:
		return models.StatusCompliant
	case ratePercent >= requiredPercent-a.policy.AtRiskBufferPercent:
		return models.StatusAtRisk
	default:
		return models.StatusNonCompliant
	}
}

// ClassifyPassFail is the two-tier classifier behind the dashboard banner.
// It has no at-risk band.
func (a *Aggregator) ClassifyPassFail(ratePercent, requiredPercent float64) models.PassFail {
	if !math.IsNaN(ratePercent) && ratePercent >= requiredPercent {
		return models.Pass
	}
	return models.Fail
}

// Banner applies the two-tier classifier with the policy's pass threshold.
func (a *Aggregator) Banner(metrics models.ComplianceMetrics) models.PassFail {
	return a.ClassifyPassFail(metrics.Section3Percentage, a.policy.PassThresholdPercent)
}

type tally struct {
	records  int
	total    float64
	section3 float64
	targeted float64
}

func (t *tally) add(record *models.LaborHourRecord, workers WorkerIndex, diag *models.Diagnostics, inconsistent map[string]struct{}) {
	t.records++
	t.total += record.HoursWorked

	worker, ok := workers[record.WorkerID]
	if !ok {
		diag.UnmatchedRecords++
		return
	}

	if worker.IsTargetedSection3Worker && !worker.IsSection3Worker {
		inconsistent[worker.ID] = struct{}{}
	}
	if worker.IsSection3Worker {
		t.section3 += record.HoursWorked
	}
	if worker.IsTargetedSection3Worker {
		t.targeted += record.HoursWorked
	}
}

func validHours(h float64) bool {
	return !math.IsNaN(h) && !math.IsInf(h, 0) && h >= 0
}

// percentage never returns NaN or Inf; an empty denominator yields 0.
func percentage(part, total float64) float64 {
	if total <= 0 || math.IsNaN(total) || math.IsInf(total, 0) {
		return 0
	}
	p := part / total * 100
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
