package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFlagged  VerificationStatus = "flagged"
)

type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	HUDProjectID string    `json:"hud_project_id,omitempty"`
	Location     string    `json:"location,omitempty"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

func (p *Project) IsActive() bool {
	return p.Status == "active"
}

// Worker carries the eligibility flags the aggregator reads. A targeted
// Section 3 worker is expected to also be a Section 3 worker, but rows coming
// from the datastore are not guaranteed to respect that.
type Worker struct {
	ID                       string             `json:"id"`
	FirstName                string             `json:"first_name"`
	LastName                 string             `json:"last_name"`
	Email                    string             `json:"email,omitempty"`
	IsSection3Worker         bool               `json:"is_section3_worker"`
	IsTargetedSection3Worker bool               `json:"is_targeted_section3_worker"`
	VerificationStatus       VerificationStatus `json:"verification_status"`
}

func (w *Worker) FullName() string {
	return fmt.Sprintf("%s %s", w.FirstName, w.LastName)
}

type LaborHourRecord struct {
	ID           string    `json:"id,omitempty"`
	ProjectID    string    `json:"project_id" validate:"required,uuid"`
	ContractorID string    `json:"contractor_id" validate:"required,uuid"`
	WorkerID     string    `json:"worker_id" validate:"required,uuid"`
	HoursWorked  float64   `json:"hours_worked" validate:"gte=0,lte=24"`
	WorkDate     time.Time `json:"work_date" validate:"required"`
	HourlyRate   *float64  `json:"hourly_rate,omitempty" validate:"omitempty,gte=0"`
	JobCategory  string    `json:"job_category,omitempty"`
	Verified     bool      `json:"verified"`
	FileID       int       `json:"file_id,omitempty"`
	CheckSum     string    `json:"checksum,omitempty"`
}

type ProjectLocation struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"project_id"`
	ProjectName        string   `json:"project_name,omitempty"`
	Latitude           float64  `json:"latitude"`
	Longitude          float64  `json:"longitude"`
	Address            string   `json:"address"`
	ServiceRadiusMiles float64  `json:"service_radius_miles"`
	CensusTract        string   `json:"census_tract,omitempty"`
	PovertyRate        *float64 `json:"poverty_rate,omitempty"`
	MedianIncome       *float64 `json:"median_income,omitempty"`
}

type WorkerAddress struct {
	ID                   string             `json:"id"`
	WorkerID             string             `json:"worker_id"`
	WorkerName           string             `json:"worker_name,omitempty"`
	Address              string             `json:"address"`
	Latitude             *float64           `json:"latitude,omitempty"`
	Longitude            *float64           `json:"longitude,omitempty"`
	CensusTract          string             `json:"census_tract,omitempty"`
	VerificationStatus   VerificationStatus `json:"verification_status"`
	EligibilityConfirmed bool               `json:"eligibility_confirmed"`
}

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSyncing SyncStatus = "syncing"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

const OfflineEntryLaborHours = "labor_hours"

// OfflineEntry is a write captured while a field device had no connectivity.
// EntryData holds the raw payload exactly as it was queued.
type OfflineEntry struct {
	ID               string          `json:"id"`
	UserID           string          `json:"user_id"`
	EntryType        string          `json:"entry_type"`
	EntryData        json.RawMessage `json:"entry_data"`
	SyncStatus       SyncStatus      `json:"sync_status"`
	CreatedOfflineAt time.Time       `json:"created_offline_at"`
	SyncedAt         *time.Time      `json:"synced_at,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// LaborHoursFilter narrows a labor-hour read. Zero values mean "no bound".
type LaborHoursFilter struct {
	ProjectID string
	From      time.Time
	To        time.Time
}

type AppError struct {
	FileID  int
	Message string
	Err     error
	Record  *LaborHourRecord
	// Fatal marks a file that could not be read at all.
	Fatal bool
}

func (e *AppError) Error() string {
	var recordDetails string
	if e.Record != nil {
		recordJSON, err := json.Marshal(e.Record)
		if err != nil {
			recordDetails = "failed to marshal record to JSON"
		} else {
			recordDetails = string(recordJSON)
		}
	}

	if e.Err != nil {
		if recordDetails != "" {
			return fmt.Sprintf("FileID %d: %s - %v - Record: %s", e.FileID, e.Message, e.Err, recordDetails)
		}
		return fmt.Sprintf("FileID %d: %s - %v", e.FileID, e.Message, e.Err)
	}

	if recordDetails != "" {
		return fmt.Sprintf("FileID %d: %s - Record: %s", e.FileID, e.Message, recordDetails)
	}

	return fmt.Sprintf("FileID %d: %s", e.FileID, e.Message)
}

// MarshalJSON flattens the wrapped error so the errors column stays readable.
func (e AppError) MarshalJSON() ([]byte, error) {
	type appErrorJSON struct {
		FileID  int              `json:"file_id"`
		Message string           `json:"message"`
		Err     string           `json:"error,omitempty"`
		Record  *LaborHourRecord `json:"record,omitempty"`
	}
	out := appErrorJSON{FileID: e.FileID, Message: e.Message, Record: e.Record}
	if e.Err != nil {
		out.Err = e.Err.Error()
	}
	return json.Marshal(out)
}

type FileProcessingJob struct {
	FilePath string
	FileID   int
}

type FileInfo struct {
	Path string
}

type FileErrorMap struct {
	Errors map[int][]AppError
	Fatal  map[int]bool
	Mu     sync.Mutex
}

type FileMap = map[int]string

type ExtractionChannels struct {
	Results chan *LaborHourRecord
	Errors  chan AppError
	Jobs    chan FileProcessingJob
}

type ExtractionWaitGroups struct {
	ParserWg *sync.WaitGroup
	DbWg     *sync.WaitGroup
	MainWg   *sync.WaitGroup
}

type SetupReturn struct {
	Channels      *ExtractionChannels
	WaitGroups    *ExtractionWaitGroups
	FileMap       *FileMap
	FileErrorsMap *FileErrorMap
}

func (s *SetupReturn) GetValues() (*ExtractionChannels, *ExtractionWaitGroups, *FileMap, *FileErrorMap) {
	return s.Channels, s.WaitGroups, s.FileMap, s.FileErrorsMap
}
