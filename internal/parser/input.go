package parser

import (
	"fmt"
	"strings"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

// LaborHourInput is a single labor-hour entry as typed by a person: posted to
// the API or captured offline on a field device. Dates arrive as text.
type LaborHourInput struct {
	ProjectID    string   `json:"project_id"`
	ContractorID string   `json:"contractor_id"`
	WorkerID     string   `json:"worker_id"`
	HoursWorked  float64  `json:"hours_worked"`
	WorkDate     string   `json:"work_date"`
	HourlyRate   *float64 `json:"hourly_rate,omitempty"`
	JobCategory  string   `json:"job_category,omitempty"`
	Verified     bool     `json:"verified"`
}

// Record converts and validates the input. The returned record carries its
// checksum.
func (in LaborHourInput) Record() (*models.LaborHourRecord, error) {
	workDate, err := ParseDate(in.WorkDate)
	if err != nil {
		return nil, fmt.Errorf("invalid work_date: %w", err)
	}

	record := &models.LaborHourRecord{
		ProjectID:    strings.ToLower(strings.TrimSpace(in.ProjectID)),
		ContractorID: strings.ToLower(strings.TrimSpace(in.ContractorID)),
		WorkerID:     strings.ToLower(strings.TrimSpace(in.WorkerID)),
		HoursWorked:  in.HoursWorked,
		WorkDate:     workDate,
		HourlyRate:   in.HourlyRate,
		JobCategory:  strings.TrimSpace(in.JobCategory),
		Verified:     in.Verified,
	}
	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	record.CheckSum = RecordChecksum(record)

	return record, nil
}
