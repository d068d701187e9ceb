package database

import (
	"context"
	"time"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

const (
	FILE_STATUS_DONE             = "DONE"
	FILE_STATUS_DONE_WITH_ERRORS = "DONE_WITH_ERRORS"
	FILE_STATUS_PROCESSING       = "PROCESSING"
	FILE_STATUS_FATAL            = "FATAL"
)

// IngestionStore is what the bulk CSV import needs.
type IngestionStore interface {
	CreateLaborHourIndexes(ctx context.Context) error
	DropLaborHourIndexes(ctx context.Context) error
	InsertFileRecord(ctx context.Context, fileName string, date time.Time, status string, checksum string) (int, error)
	UpdateFileStatus(ctx context.Context, fileID int, status string, errors any) error
	IsFileAlreadyProcessed(ctx context.Context, checksum string) (bool, error)
	CreateWorkerStagingTables(ctx context.Context, numTables int) ([]string, error)
	DropWorkerStagingTable(ctx context.Context, tableName string) error
	IsLaborHoursEmpty(ctx context.Context) (bool, error)
	InsertAllStagingTableData(ctx context.Context, records []*models.LaborHourRecord, stagingTableName string) error
	InsertDiffFromStagingTable(ctx context.Context, records []*models.LaborHourRecord, stagingTableName string) error
}

// ComplianceStore is the read side used by reporting and the HTTP handlers.
type ComplianceStore interface {
	Ping(ctx context.Context) error
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	ListLaborHours(ctx context.Context, filter models.LaborHoursFilter) ([]models.LaborHourRecord, error)
	InsertLaborHour(ctx context.Context, record *models.LaborHourRecord) (string, error)
	VerifyLaborHour(ctx context.Context, id string) error
	ListProjectLocations(ctx context.Context, projectID string) ([]models.ProjectLocation, error)
	InsertProjectLocation(ctx context.Context, location *models.ProjectLocation) (string, error)
	CountApprovedContractors(ctx context.Context) (int, error)
	ListWorkerAddresses(ctx context.Context) ([]models.WorkerAddress, error)
	UpdateWorkerAddressVerification(ctx context.Context, id string, status models.VerificationStatus, confirmed bool) error
}

type OfflineStore interface {
	InsertOfflineEntry(ctx context.Context, entry *models.OfflineEntry) (string, error)
	ListPendingOfflineEntries(ctx context.Context) ([]models.OfflineEntry, error)
	ListOfflineEntries(ctx context.Context, status models.SyncStatus) ([]models.OfflineEntry, error)
	ClaimOfflineEntry(ctx context.Context, id string) (bool, error)
	ReleaseOfflineEntry(ctx context.Context, id string) error
	MarkOfflineEntrySynced(ctx context.Context, id string, syncedAt time.Time) error
	MarkOfflineEntryFailed(ctx context.Context, id string, reason string) error
	InsertLaborHour(ctx context.Context, record *models.LaborHourRecord) (string, error)
}

type SchemaManager interface {
	CreateSchema(ctx context.Context) error
	CreateLaborHourIndexes(ctx context.Context) error
}

type DBManager interface {
	IngestionStore
	ComplianceStore
	OfflineStore
	SchemaManager
}

var _ DBManager = (*PostgresDBManager)(nil)
