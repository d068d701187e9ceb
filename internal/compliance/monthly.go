package compliance

import (
	"sort"
	"time"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

const monthLabelLayout = "2006-01"

type monthBucket struct {
	tally
	newHires int
}

// AggregateMonthly buckets records by the calendar month of their work date.
// Only months that have records are returned, oldest first. Records without a
// work date are counted as unparsed and left out of every bucket.
//
// NewHires counts workers whose earliest usable record in the whole input
// falls in the bucket.
func (a *Aggregator) AggregateMonthly(hours []models.LaborHourRecord, workers WorkerIndex) models.MonthlyReport {
	var diag models.Diagnostics
	buckets := make(map[time.Time]*monthBucket)
	firstSeen := make(map[string]time.Time)
	inconsistent := make(map[string]struct{})

	for i := range hours {
		record := &hours[i]
		if record.WorkDate.IsZero() {
			diag.UnparsedDates++
			continue
		}
		if !validHours(record.HoursWorked) {
			diag.MalformedRecords++
			continue
		}

		month := monthStart(record.WorkDate)
		bucket, ok := buckets[month]
		if !ok {
			bucket = &monthBucket{}
			buckets[month] = bucket
		}
		bucket.add(record, workers, &diag, inconsistent)

		if record.WorkerID == "" {
			continue
		}
		if seen, ok := firstSeen[record.WorkerID]; !ok || month.Before(seen) {
			firstSeen[record.WorkerID] = month
		}
	}
	diag.InconsistentWorkers = len(inconsistent)

	for _, month := range firstSeen {
		buckets[month].newHires++
	}

	months := make([]time.Time, 0, len(buckets))
	for month := range buckets {
		months = append(months, month)
	}
	sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

	series := make([]models.MonthlySeries, 0, len(months))
	for _, month := range months {
		b := buckets[month]
		series = append(series, models.MonthlySeries{
			Month:                  month,
			Label:                  month.Format(monthLabelLayout),
			TotalHours:             b.total,
			Section3Hours:          b.section3,
			TargetedSection3Hours:  b.targeted,
			ComplianceRate:         percentage(b.section3, b.total),
			TargetedComplianceRate: percentage(b.targeted, b.total),
			NewHires:               b.newHires,
		})
	}

	return models.MonthlyReport{Series: series, Diagnostics: diag}
}

// monthStart keeps the calendar month as written on the record, whatever its
// location, so a date stored as midnight local time never drifts a month.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
