package compliance

import (
	"math"
	"sort"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

// AssessRisk maps a compliance rate to a risk level. Since the medium floor
// never exceeds the low floor, a higher rate never yields a more severe level.
func (a *Aggregator) AssessRisk(ratePercent float64) models.RiskLevel {
	switch {
	case math.IsNaN(ratePercent):
		return models.RiskHigh
	case ratePercent >= a.policy.LowRiskMinPercent:
		return models.RiskLow
	case ratePercent >= a.policy.MediumRiskMinPercent:
		return models.RiskMedium
	default:
		return models.RiskHigh
	}
}

type group struct {
	tally
	workers map[string]struct{}
}

// groupBy tallies usable records by key. Records with unusable hours are
// counted as malformed and records with an empty key as unassigned; neither
// lands in a group.
func groupBy(hours []models.LaborHourRecord, workers WorkerIndex, key func(*models.LaborHourRecord) string) (map[string]*group, models.Diagnostics) {
	var diag models.Diagnostics
	inconsistent := make(map[string]struct{})
	groups := make(map[string]*group)

	for i := range hours {
		record := &hours[i]
		if !validHours(record.HoursWorked) {
			diag.MalformedRecords++
			continue
		}
		k := key(record)
		if k == "" {
			diag.UnassignedRecords++
			continue
		}
		g, ok := groups[k]
		if !ok {
			g = &group{workers: make(map[string]struct{})}
			groups[k] = g
		}
		g.add(record, workers, &diag, inconsistent)
		if record.WorkerID != "" {
			g.workers[record.WorkerID] = struct{}{}
		}
	}
	diag.InconsistentWorkers = len(inconsistent)

	return groups, diag
}

// AggregateByProject returns one entry per project that has usable records,
// ordered by project name and then id. Project names and statuses come from
// projects; records for projects missing there are still reported, unnamed.
func (a *Aggregator) AggregateByProject(hours []models.LaborHourRecord, workers WorkerIndex, projects []models.Project) models.ProjectReport {
	byID := make(map[string]models.Project, len(projects))
	for _, p := range projects {
		byID[p.ID] = p
	}

	groups, diag := groupBy(hours, workers, func(r *models.LaborHourRecord) string { return r.ProjectID })

	result := make([]models.ProjectCompliance, 0, len(groups))
	for projectID, g := range groups {
		rate := percentage(g.section3, g.total)
		project := byID[projectID]
		result = append(result, models.ProjectCompliance{
			ProjectID:             projectID,
			ProjectName:           project.Name,
			ProjectStatus:         project.Status,
			TotalHours:            g.total,
			Section3Hours:         g.section3,
			TargetedSection3Hours: g.targeted,
			ComplianceRate:        rate,
			ComplianceStatus:      a.ClassifyCompliance(rate, a.policy.Section3RequiredPercent),
			RiskLevel:             a.AssessRisk(rate),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ProjectName != result[j].ProjectName {
			return result[i].ProjectName < result[j].ProjectName
		}
		return result[i].ProjectID < result[j].ProjectID
	})

	return models.ProjectReport{Projects: result, Diagnostics: diag}
}

// AggregateByContractor is the per-contractor counterpart of
// AggregateByProject, ordered by compliance rate (highest first).
func (a *Aggregator) AggregateByContractor(hours []models.LaborHourRecord, workers WorkerIndex) models.ContractorReport {
	groups, diag := groupBy(hours, workers, func(r *models.LaborHourRecord) string { return r.ContractorID })

	result := make([]models.ContractorCompliance, 0, len(groups))
	for contractorID, g := range groups {
		rate := percentage(g.section3, g.total)
		result = append(result, models.ContractorCompliance{
			ContractorID:          contractorID,
			TotalHours:            g.total,
			Section3Hours:         g.section3,
			TargetedSection3Hours: g.targeted,
			ComplianceRate:        rate,
			TargetedRate:          percentage(g.targeted, g.total),
			ComplianceStatus:      a.ClassifyCompliance(rate, a.policy.Section3RequiredPercent),
			RiskLevel:             a.AssessRisk(rate),
			Workers:               len(g.workers),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].ComplianceRate != result[j].ComplianceRate {
			return result[i].ComplianceRate > result[j].ComplianceRate
		}
		return result[i].ContractorID < result[j].ContractorID
	})

	return models.ContractorReport{Contractors: result, Diagnostics: diag}
}
