package models

import "time"

type ComplianceStatus string

const (
	StatusCompliant    ComplianceStatus = "compliant"
	StatusAtRisk       ComplianceStatus = "at-risk"
	StatusNonCompliant ComplianceStatus = "non-compliant"
)

// PassFail is the two-tier outcome used by the top-level dashboard banner.
type PassFail string

const (
	Pass PassFail = "pass"
	Fail PassFail = "fail"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Severity orders risk levels so that a higher value is more severe.
func (r RiskLevel) Severity() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	default:
		return 2
	}
}

// Diagnostics reports the records an aggregation tolerated instead of failing on.
type Diagnostics struct {
	MalformedRecords    int `json:"malformed_records"`
	UnparsedDates       int `json:"unparsed_dates"`
	UnmatchedRecords    int `json:"unmatched_records"`
	InconsistentWorkers int `json:"inconsistent_workers"`
	// UnassignedRecords have no project or contractor id and so fall outside
	// every group of a grouped report.
	UnassignedRecords int `json:"unassigned_records"`
}

type ComplianceMetrics struct {
	RecordCount                int              `json:"record_count"`
	TotalHours                 float64          `json:"total_hours"`
	Section3Hours              float64          `json:"section3_hours"`
	TargetedSection3Hours      float64          `json:"targeted_section3_hours"`
	Section3Percentage         float64          `json:"section3_percentage"`
	TargetedSection3Percentage float64          `json:"targeted_section3_percentage"`
	ComplianceStatus           ComplianceStatus `json:"compliance_status"`
	TargetedComplianceStatus   ComplianceStatus `json:"targeted_compliance_status"`
	Diagnostics                Diagnostics      `json:"diagnostics"`
}

type MonthlySeries struct {
	Month                  time.Time `json:"month"`
	Label                  string    `json:"label"`
	TotalHours             float64   `json:"total_hours"`
	Section3Hours          float64   `json:"section3_hours"`
	TargetedSection3Hours  float64   `json:"targeted_section3_hours"`
	ComplianceRate         float64   `json:"compliance_rate"`
	TargetedComplianceRate float64   `json:"targeted_compliance_rate"`
	NewHires               int       `json:"new_hires"`
}

type MonthlyReport struct {
	Series      []MonthlySeries `json:"series"`
	Diagnostics Diagnostics     `json:"diagnostics"`
}

type ProjectCompliance struct {
	ProjectID             string           `json:"project_id"`
	ProjectName           string           `json:"project_name,omitempty"`
	ProjectStatus         string           `json:"project_status,omitempty"`
	TotalHours            float64          `json:"total_hours"`
	Section3Hours         float64          `json:"section3_hours"`
	TargetedSection3Hours float64          `json:"targeted_section3_hours"`
	ComplianceRate        float64          `json:"compliance_rate"`
	ComplianceStatus      ComplianceStatus `json:"compliance_status"`
	RiskLevel             RiskLevel        `json:"risk_level"`
}

type ProjectReport struct {
	Projects    []ProjectCompliance `json:"projects"`
	Diagnostics Diagnostics         `json:"diagnostics"`
}

type ContractorCompliance struct {
	ContractorID          string           `json:"contractor_id"`
	TotalHours            float64          `json:"total_hours"`
	Section3Hours         float64          `json:"section3_hours"`
	TargetedSection3Hours float64          `json:"targeted_section3_hours"`
	ComplianceRate        float64          `json:"compliance_rate"`
	TargetedRate          float64          `json:"targeted_rate"`
	ComplianceStatus      ComplianceStatus `json:"compliance_status"`
	RiskLevel             RiskLevel        `json:"risk_level"`
	Workers               int              `json:"workers"`
}

type ContractorReport struct {
	Contractors []ContractorCompliance `json:"contractors"`
	Diagnostics Diagnostics            `json:"diagnostics"`
}

type WorkforceSummary struct {
	TotalWorkers              int                        `json:"total_workers"`
	Section3Workers           int                        `json:"section3_workers"`
	TargetedSection3Workers   int                        `json:"targeted_section3_workers"`
	Section3WorkforceShare    float64                    `json:"section3_workforce_share"`
	TargetedWorkforceShare    float64                    `json:"targeted_workforce_share"`
	ByVerificationStatus      map[VerificationStatus]int `json:"by_verification_status"`
	InconsistentTargetedFlags int                        `json:"inconsistent_targeted_flags"`
}

type DashboardReport struct {
	GeneratedAt         time.Time         `json:"generated_at"`
	ProjectID           string            `json:"project_id,omitempty"`
	Period              string            `json:"period"`
	From                *time.Time        `json:"from,omitempty"`
	Metrics             ComplianceMetrics `json:"metrics"`
	Banner              PassFail          `json:"banner"`
	Workforce           WorkforceSummary  `json:"workforce"`
	VerifiedHours       float64           `json:"verified_hours"`
	AverageHourlyRate   float64           `json:"average_hourly_rate"`
	TotalProjects       int               `json:"total_projects"`
	ActiveProjects      int               `json:"active_projects"`
	// ApprovedContractors counts registrations in the approved state and
	// ignores any project filter.
	ApprovedContractors int               `json:"approved_contractors"`
	Monthly             MonthlyReport     `json:"monthly"`
	Projects            ProjectReport     `json:"projects"`
	Contractors         ContractorReport  `json:"contractors"`
}

type EligibilityStatus string

const (
	EligibilityEligible EligibilityStatus = "eligible"
	EligibilityFlagged  EligibilityStatus = "flagged"
	EligibilityPending  EligibilityStatus = "pending"
)

type EligibilityCheck struct {
	Address       WorkerAddress     `json:"address"`
	ProjectID     string            `json:"project_id"`
	Status        EligibilityStatus `json:"status"`
	DistanceMiles *float64          `json:"distance_miles,omitempty"`
	WithinRadius  bool              `json:"within_radius"`
}
