package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

// laborHourColumns is the COPY column order; it must match stagingRow.
var laborHourColumns = []string{
	"checksum", "project_id", "contractor_id", "worker_id", "hours_worked", "work_date", "hourly_rate", "job_category", "verified", "file_id",
}

func ConnectDB(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	dbpool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}

	return dbpool, nil
}

type PostgresDBManager struct {
	dbpool *pgxpool.Pool
	log    *logger.Logger
}

func NewPostgresDBManager(pool *pgxpool.Pool, log *logger.Logger) *PostgresDBManager {
	return &PostgresDBManager{dbpool: pool, log: log}
}

func (m *PostgresDBManager) Ping(ctx context.Context) error {
	return m.dbpool.Ping(ctx)
}

func stagingTableNames(numTables int) []string {
	names := make([]string, numTables)
	for w := 1; w <= numTables; w++ {
		names[w-1] = fmt.Sprintf("labor_hours_staging_worker_%d", w)
	}
	return names
}

func (m *PostgresDBManager) rollback(ctx context.Context, tx pgx.Tx) {
	if rx := tx.Rollback(ctx); rx != nil && !errors.Is(rx, pgx.ErrTxClosed) {
		m.log.Warn("error rolling back transaction", "error", rx)
	}
}

func (m *PostgresDBManager) CreateWorkerStagingTables(ctx context.Context, numTables int) ([]string, error) {
	if numTables <= 0 {
		return nil, nil
	}

	names := stagingTableNames(numTables)

	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("error beginning transaction: %w", err)
	}
	defer m.rollback(ctx, tx)

	existingTables := make(map[string]bool)
	rows, err := tx.Query(ctx, `SELECT tablename FROM pg_tables WHERE tablename = ANY($1)`, names)
	if err != nil {
		return nil, fmt.Errorf("error checking existing staging tables: %w", err)
	}

	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error scanning tablename: %w", err)
		}
		existingTables[tableName] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	for _, tableName := range names {
		if existingTables[tableName] {
			m.log.Debug("staging table already exists, skipping creation", "table", tableName)
			continue
		}

		query := fmt.Sprintf(`CREATE UNLOGGED TABLE IF NOT EXISTS %s (LIKE labor_hours INCLUDING DEFAULTS);`,
			pgx.Identifier{tableName}.Sanitize())
		if _, err := tx.Exec(ctx, query); err != nil {
			return nil, fmt.Errorf("error creating worker staging table %s: %w", tableName, err)
		}
		m.log.Info("created staging table", "table", tableName)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("error committing transaction: %w", err)
	}

	return names, nil
}

func (m *PostgresDBManager) DropWorkerStagingTable(ctx context.Context, tableName string) error {
	query := fmt.Sprintf(`DROP TABLE IF EXISTS %s;`, pgx.Identifier{tableName}.Sanitize())
	if _, err := m.dbpool.Exec(ctx, query); err != nil {
		return fmt.Errorf("error dropping worker staging table %s: %w", tableName, err)
	}
	return nil
}

// The unique checksum index is not listed here. It stays in place during
// imports since every insert path resolves conflicts against it.
var reportingIndexes = []struct{ name, definition string }{
	{"idx_labor_hours_project_date", `labor_hours (project_id, work_date) INCLUDE (worker_id, hours_worked)`},
	{"idx_labor_hours_contractor", `labor_hours (contractor_id)`},
}

func (m *PostgresDBManager) CreateLaborHourIndexes(ctx context.Context) error {
	for _, idx := range reportingIndexes {
		query := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s;`, idx.name, idx.definition)
		if _, err := m.dbpool.Exec(ctx, query); err != nil {
			return fmt.Errorf("error creating index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (m *PostgresDBManager) DropLaborHourIndexes(ctx context.Context) error {
	for _, idx := range reportingIndexes {
		if _, err := m.dbpool.Exec(ctx, fmt.Sprintf(`DROP INDEX IF EXISTS %s;`, idx.name)); err != nil {
			return fmt.Errorf("error dropping index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (m *PostgresDBManager) InsertFileRecord(ctx context.Context, fileName string, date time.Time, status string, checksum string) (int, error) {
	query := `
	INSERT INTO labor_hour_files (file_name, processed_at, status, checksum)
	VALUES ($1, $2, $3, $4)
	RETURNING id;`

	var fileID int
	if err := m.dbpool.QueryRow(ctx, query, fileName, date, status, checksum).Scan(&fileID); err != nil {
		return 0, fmt.Errorf("error inserting file record: %w", err)
	}

	return fileID, nil
}

func (m *PostgresDBManager) UpdateFileStatus(ctx context.Context, fileID int, status string, errors any) error {
	query := `
	UPDATE labor_hour_files
	SET status = $1,
		errors = $2
	WHERE id = $3;`

	if _, err := m.dbpool.Exec(ctx, query, status, errors, fileID); err != nil {
		return fmt.Errorf("error updating file status: %w", err)
	}

	return nil
}

func (m *PostgresDBManager) IsFileAlreadyProcessed(ctx context.Context, checksum string) (bool, error) {
	query := `
	SELECT id
	FROM labor_hour_files
	WHERE checksum = $1 AND status = 'DONE'
	LIMIT 1;`

	var id int
	err := m.dbpool.QueryRow(ctx, query, checksum).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error finding file record by checksum: %w", err)
	}

	return true, nil
}

func (m *PostgresDBManager) IsLaborHoursEmpty(ctx context.Context) (bool, error) {
	var exists bool
	if err := m.dbpool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM labor_hours);`).Scan(&exists); err != nil {
		return false, fmt.Errorf("error checking labor_hours contents: %w", err)
	}
	return !exists, nil
}

func stagingRow(record *models.LaborHourRecord) []any {
	var jobCategory *string
	if record.JobCategory != "" {
		jobCategory = &record.JobCategory
	}
	return []any{
		record.CheckSum, record.ProjectID, record.ContractorID, record.WorkerID, record.HoursWorked,
		record.WorkDate, record.HourlyRate, jobCategory, record.Verified, record.FileID,
	}
}

func (m *PostgresDBManager) copyIntoStagingTable(ctx context.Context, tx pgx.Tx, records []*models.LaborHourRecord, stagingTableName string) error {
	copySource := pgx.CopyFromSlice(len(records), func(i int) ([]any, error) {
		return stagingRow(records[i]), nil
	})

	_, err := tx.CopyFrom(ctx, pgx.Identifier{stagingTableName}, laborHourColumns, copySource)
	return err
}

func insertAllQuery(stagingTableName string) string {
	columns := strings.Join(laborHourColumns, ", ")
	return fmt.Sprintf(`
	INSERT INTO labor_hours (%s)
	SELECT DISTINCT ON (checksum) %s
	FROM %s
	ON CONFLICT (checksum) DO NOTHING;
	`, columns, columns, pgx.Identifier{stagingTableName}.Sanitize())
}

// The NOT EXISTS filter keeps the common case cheap; ON CONFLICT covers rows
// committed by a concurrent writer after the filter ran.
func insertDiffQuery(stagingTableName string) string {
	columns := strings.Join(laborHourColumns, ", ")
	return fmt.Sprintf(`
	WITH staging_diff AS (
		SELECT DISTINCT ON (s.checksum) s.*
		FROM %s s
		WHERE NOT EXISTS (
			SELECT 1
			FROM labor_hours l
			WHERE l.checksum = s.checksum
		)
	)
	INSERT INTO labor_hours (%s)
	SELECT %s
	FROM staging_diff
	ON CONFLICT (checksum) DO NOTHING;
	`, pgx.Identifier{stagingTableName}.Sanitize(), columns, columns)
}

// InsertAllStagingTableData moves a batch through the staging table, relying
// on the unique checksum index alone to drop duplicates. Meant for runs that
// started with labor_hours empty.
func (m *PostgresDBManager) InsertAllStagingTableData(ctx context.Context, records []*models.LaborHourRecord, stagingTableName string) error {
	return m.loadThroughStaging(ctx, records, stagingTableName, insertAllQuery(stagingTableName))
}

// InsertDiffFromStagingTable inserts only the staged rows whose checksum is
// not already present in labor_hours.
func (m *PostgresDBManager) InsertDiffFromStagingTable(ctx context.Context, records []*models.LaborHourRecord, stagingTableName string) error {
	return m.loadThroughStaging(ctx, records, stagingTableName, insertDiffQuery(stagingTableName))
}

func (m *PostgresDBManager) loadThroughStaging(ctx context.Context, records []*models.LaborHourRecord, stagingTableName, insertQuery string) error {
	tx, err := m.dbpool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer m.rollback(ctx, tx)

	m.log.Debug("bulk loading labor hours into staging table", "count", len(records), "table", stagingTableName)
	if err := m.copyIntoStagingTable(ctx, tx, records, stagingTableName); err != nil {
		return fmt.Errorf("unable to copy labor hours to staging table %s: %w", stagingTableName, err)
	}

	if _, err := tx.Exec(ctx, insertQuery); err != nil {
		return fmt.Errorf("error inserting from staging table %s: %w", stagingTableName, err)
	}

	if _, err := tx.Exec(ctx, fmt.Sprintf(`TRUNCATE %s;`, pgx.Identifier{stagingTableName}.Sanitize())); err != nil {
		m.log.Warn("failed to truncate staging table", "table", stagingTableName, "error", err)
	}

	return tx.Commit(ctx)
}
