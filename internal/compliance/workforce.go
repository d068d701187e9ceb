package compliance

import (
	"math"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

// SummarizeWorkforce counts workers by eligibility flag and verification
// status. Shares are percentages of the whole workforce.
func SummarizeWorkforce(workers []models.Worker) models.WorkforceSummary {
	summary := models.WorkforceSummary{
		TotalWorkers:         len(workers),
		ByVerificationStatus: make(map[models.VerificationStatus]int),
	}

	for _, w := range workers {
		if w.IsSection3Worker {
			summary.Section3Workers++
		}
		if w.IsTargetedSection3Worker {
			summary.TargetedSection3Workers++
			if !w.IsSection3Worker {
				summary.InconsistentTargetedFlags++
			}
		}

		status := w.VerificationStatus
		if status == "" {
			status = models.VerificationPending
		}
		summary.ByVerificationStatus[status]++
	}

	total := float64(summary.TotalWorkers)
	summary.Section3WorkforceShare = percentage(float64(summary.Section3Workers), total)
	summary.TargetedWorkforceShare = percentage(float64(summary.TargetedSection3Workers), total)

	return summary
}

// VerifiedHours sums the hours of verified records only. It is a separate
// read path from ComputeMetrics, whose totals ignore verification.
func VerifiedHours(hours []models.LaborHourRecord) float64 {
	var total float64
	for i := range hours {
		if hours[i].Verified && validHours(hours[i].HoursWorked) {
			total += hours[i].HoursWorked
		}
	}
	return total
}

// AverageHourlyRate averages the records that carry a usable rate.
func AverageHourlyRate(hours []models.LaborHourRecord) float64 {
	var (
		sum   float64
		count int
	)
	for i := range hours {
		rate := hours[i].HourlyRate
		if rate == nil || math.IsNaN(*rate) || math.IsInf(*rate, 0) || *rate < 0 {
			continue
		}
		sum += *rate
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
