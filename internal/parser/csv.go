package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/pkg/checksum"
)

const (
	colProjectID    = "project_id"
	colContractorID = "contractor_id"
	colWorkerID     = "worker_id"
	colHoursWorked  = "hours_worked"
	colWorkDate     = "work_date"
	colHourlyRate   = "hourly_rate"
	colJobCategory  = "job_category"
	colVerified     = "verified"
)

var requiredColumns = []string{colProjectID, colContractorID, colWorkerID, colHoursWorked, colWorkDate}

var dateLayouts = []string{"2006-01-02", time.RFC3339, "01/02/2006"}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRecord checks a labor-hour record against its struct tags.
func ValidateRecord(record *models.LaborHourRecord) error {
	return validate.Struct(record)
}

// header maps column names to their positions in a row.
type header map[string]int

func readHeader(reader *csv.Reader) (header, error) {
	names, err := reader.Read()
	if err != nil {
		return nil, err
	}

	h := make(header, len(names))
	for i, name := range names {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := h[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	return h, nil
}

func (h header) get(row []string, col string) string {
	i, ok := h[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func ParseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

func parseRecord(h header, row []string, fileID int) (*models.LaborHourRecord, error) {
	hours, err := strconv.ParseFloat(h.get(row, colHoursWorked), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid hours_worked: %w", err)
	}

	workDate, err := ParseDate(h.get(row, colWorkDate))
	if err != nil {
		return nil, fmt.Errorf("invalid work_date: %w", err)
	}

	record := &models.LaborHourRecord{
		ProjectID:    strings.ToLower(h.get(row, colProjectID)),
		ContractorID: strings.ToLower(h.get(row, colContractorID)),
		WorkerID:     strings.ToLower(h.get(row, colWorkerID)),
		HoursWorked:  hours,
		WorkDate:     workDate,
		JobCategory:  h.get(row, colJobCategory),
		FileID:       fileID,
	}

	if raw := h.get(row, colHourlyRate); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid hourly_rate: %w", err)
		}
		record.HourlyRate = &rate
	}

	if raw := h.get(row, colVerified); raw != "" {
		verified, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid verified flag: %w", err)
		}
		record.Verified = verified
	}

	return record, nil
}

// ParseCSV streams a labor-hour export into results. Row problems are sent to
// errors and the row is skipped. An unreadable file or header is sent once as
// a fatal error and also returned.
func ParseCSV(filePath string, fileID int, results chan<- *models.LaborHourRecord, errs chan<- models.AppError) error {
	file, err := os.Open(filePath)
	if err != nil {
		errs <- models.AppError{FileID: fileID, Message: "Failed to open file", Err: err, Fatal: true}
		return err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	h, err := readHeader(reader)
	if err != nil {
		errs <- models.AppError{FileID: fileID, Message: "Failed to read header from CSV", Err: err, Fatal: true}
		return err
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs <- models.AppError{FileID: fileID, Message: "Failed to read record from CSV", Err: err}
			continue
		}

		// row checksum drives the idempotent insert
		lineCheckSum := checksum.CalculateHash(row)

		record, err := parseRecord(h, row, fileID)
		if err != nil {
			errs <- models.AppError{FileID: fileID, Message: "Failed to parse record", Err: err}
			continue
		}
		record.CheckSum = lineCheckSum

		if err := ValidateRecord(record); err != nil {
			errs <- models.AppError{FileID: fileID, Message: "Invalid labor hour record", Err: err, Record: record}
			continue
		}

		results <- record
	}

	return nil
}

// RecordChecksum hashes a record that did not come from a CSV row, such as a
// single entry posted over HTTP or replayed from the offline queue. Fields are
// laid out in export column order.
func RecordChecksum(record *models.LaborHourRecord) string {
	rate := ""
	if record.HourlyRate != nil {
		rate = strconv.FormatFloat(*record.HourlyRate, 'f', -1, 64)
	}
	return checksum.CalculateHash([]string{
		strings.ToLower(record.ProjectID),
		strings.ToLower(record.ContractorID),
		strings.ToLower(record.WorkerID),
		strconv.FormatFloat(record.HoursWorked, 'f', -1, 64),
		record.WorkDate.Format(dateLayouts[0]),
		rate,
		record.JobCategory,
		strconv.FormatBool(record.Verified),
	})
}
