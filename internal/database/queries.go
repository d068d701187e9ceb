package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

var ErrNotFound = errors.New("not found")

const foreignKeyViolation = "23503"

func (m *PostgresDBManager) ListProjects(ctx context.Context) ([]models.Project, error) {
	query := `
	SELECT id::text, name, COALESCE(hud_project_id, ''), COALESCE(location, ''), status, created_at
	FROM projects
	ORDER BY name;`

	rows, err := m.dbpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying projects: %w", err)
	}

	projects, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Project, error) {
		var p models.Project
		err := row.Scan(&p.ID, &p.Name, &p.HUDProjectID, &p.Location, &p.Status, &p.CreatedAt)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning projects: %w", err)
	}

	return projects, nil
}

func (m *PostgresDBManager) ListWorkers(ctx context.Context) ([]models.Worker, error) {
	query := `
	SELECT id::text, first_name, last_name, COALESCE(email, ''),
		is_section3_worker, is_targeted_section3_worker, verification_status
	FROM workers;`

	rows, err := m.dbpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying workers: %w", err)
	}

	workers, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Worker, error) {
		var w models.Worker
		err := row.Scan(&w.ID, &w.FirstName, &w.LastName, &w.Email,
			&w.IsSection3Worker, &w.IsTargetedSection3Worker, &w.VerificationStatus)
		return w, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning workers: %w", err)
	}

	return workers, nil
}

// buildLaborHoursQuery applies the non-zero filter fields as bound
// parameters. To is inclusive.
func buildLaborHoursQuery(filter models.LaborHoursFilter) (string, []any) {
	var (
		conditions []string
		args       []any
	)

	if filter.ProjectID != "" {
		args = append(args, filter.ProjectID)
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conditions = append(conditions, fmt.Sprintf("work_date >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conditions = append(conditions, fmt.Sprintf("work_date <= $%d", len(args)))
	}

	var query strings.Builder
	query.WriteString(`SELECT id::text, project_id::text, contractor_id::text, worker_id::text,
		hours_worked::float8, work_date, hourly_rate::float8, COALESCE(job_category, ''), verified,
		COALESCE(file_id, 0), checksum
	FROM labor_hours`)
	if len(conditions) > 0 {
		query.WriteString("\n\tWHERE ")
		query.WriteString(strings.Join(conditions, " AND "))
	}
	query.WriteString("\n\tORDER BY work_date;")

	return query.String(), args
}

func (m *PostgresDBManager) ListLaborHours(ctx context.Context, filter models.LaborHoursFilter) ([]models.LaborHourRecord, error) {
	query, args := buildLaborHoursQuery(filter)

	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying labor hours: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.LaborHourRecord, error) {
		var r models.LaborHourRecord
		err := row.Scan(&r.ID, &r.ProjectID, &r.ContractorID, &r.WorkerID, &r.HoursWorked, &r.WorkDate,
			&r.HourlyRate, &r.JobCategory, &r.Verified, &r.FileID, &r.CheckSum)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning labor hours: %w", err)
	}

	return records, nil
}

var insertLaborHourQuery = fmt.Sprintf(`
	INSERT INTO labor_hours (%s)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, 0))
	ON CONFLICT (checksum) DO NOTHING
	RETURNING id::text;`, strings.Join(laborHourColumns, ", "))

// InsertLaborHour is idempotent per checksum: inserting a record that is
// already stored returns the id of the stored row.
func (m *PostgresDBManager) InsertLaborHour(ctx context.Context, record *models.LaborHourRecord) (string, error) {
	var id string
	err := m.dbpool.QueryRow(ctx, insertLaborHourQuery, stagingRow(record)...).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = m.dbpool.QueryRow(ctx, `SELECT id::text FROM labor_hours WHERE checksum = $1;`, record.CheckSum).Scan(&id)
	}
	if err != nil {
		return "", fmt.Errorf("error inserting labor hour: %w", err)
	}

	return id, nil
}

func (m *PostgresDBManager) VerifyLaborHour(ctx context.Context, id string) error {
	tag, err := m.dbpool.Exec(ctx, `UPDATE labor_hours SET verified = true WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("error verifying labor hour %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("labor hour %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *PostgresDBManager) ListProjectLocations(ctx context.Context, projectID string) ([]models.ProjectLocation, error) {
	query := `
	SELECT l.id::text, l.project_id::text, p.name, l.latitude, l.longitude, l.address, l.service_radius_miles,
		COALESCE(l.census_tract, ''), l.poverty_rate, l.median_income
	FROM project_locations l
	JOIN projects p ON p.id = l.project_id`
	var args []any
	if projectID != "" {
		query += "\n\tWHERE l.project_id = $1"
		args = append(args, projectID)
	}

	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying project locations: %w", err)
	}

	locations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ProjectLocation, error) {
		var l models.ProjectLocation
		err := row.Scan(&l.ID, &l.ProjectID, &l.ProjectName, &l.Latitude, &l.Longitude, &l.Address,
			&l.ServiceRadiusMiles, &l.CensusTract, &l.PovertyRate, &l.MedianIncome)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning project locations: %w", err)
	}

	return locations, nil
}

// InsertProjectLocation reports ErrNotFound when the project does not exist.
func (m *PostgresDBManager) InsertProjectLocation(ctx context.Context, location *models.ProjectLocation) (string, error) {
	query := `
	INSERT INTO project_locations (project_id, latitude, longitude, address, service_radius_miles,
		census_tract, poverty_rate, median_income)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
	RETURNING id::text;`

	var id string
	err := m.dbpool.QueryRow(ctx, query, location.ProjectID, location.Latitude, location.Longitude, location.Address,
		location.ServiceRadiusMiles, location.CensusTract, location.PovertyRate, location.MedianIncome).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
			return "", fmt.Errorf("project %s: %w", location.ProjectID, ErrNotFound)
		}
		return "", fmt.Errorf("error inserting project location: %w", err)
	}

	return id, nil
}

func (m *PostgresDBManager) CountApprovedContractors(ctx context.Context) (int, error) {
	var count int
	err := m.dbpool.QueryRow(ctx, `SELECT count(*) FROM contractor_registrations WHERE registration_status = 'approved';`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting approved contractors: %w", err)
	}
	return count, nil
}

func (m *PostgresDBManager) ListWorkerAddresses(ctx context.Context) ([]models.WorkerAddress, error) {
	query := `
	SELECT a.id::text, a.worker_id::text, w.first_name || ' ' || w.last_name, a.address, a.latitude, a.longitude,
		COALESCE(a.census_tract, ''), a.verification_status, a.eligibility_confirmed
	FROM worker_addresses a
	JOIN workers w ON w.id = a.worker_id;`

	rows, err := m.dbpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying worker addresses: %w", err)
	}

	addresses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.WorkerAddress, error) {
		var a models.WorkerAddress
		err := row.Scan(&a.ID, &a.WorkerID, &a.WorkerName, &a.Address, &a.Latitude, &a.Longitude,
			&a.CensusTract, &a.VerificationStatus, &a.EligibilityConfirmed)
		return a, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning worker addresses: %w", err)
	}

	return addresses, nil
}

func (m *PostgresDBManager) UpdateWorkerAddressVerification(ctx context.Context, id string, status models.VerificationStatus, confirmed bool) error {
	query := `
	UPDATE worker_addresses
	SET verification_status = $1,
		eligibility_confirmed = $2
	WHERE id = $3;`

	tag, err := m.dbpool.Exec(ctx, query, status, confirmed, id)
	if err != nil {
		return fmt.Errorf("error updating worker address %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker address %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *PostgresDBManager) InsertOfflineEntry(ctx context.Context, entry *models.OfflineEntry) (string, error) {
	query := `
	INSERT INTO offline_entries (user_id, entry_type, entry_data, sync_status, created_offline_at)
	VALUES ($1, $2, $3, 'pending', $4)
	RETURNING id::text;`

	var id string
	err := m.dbpool.QueryRow(ctx, query, entry.UserID, entry.EntryType, []byte(entry.EntryData), entry.CreatedOfflineAt).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("error inserting offline entry: %w", err)
	}

	return id, nil
}

// ListPendingOfflineEntries returns the queue oldest first; replay order
// depends on it.
func (m *PostgresDBManager) ListPendingOfflineEntries(ctx context.Context) ([]models.OfflineEntry, error) {
	query := `
	SELECT id::text, user_id, entry_type, entry_data, sync_status, created_offline_at
	FROM offline_entries
	WHERE sync_status = 'pending'
	ORDER BY created_offline_at, id;`

	rows, err := m.dbpool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying offline entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.OfflineEntry, error) {
		var e models.OfflineEntry
		var data []byte
		err := row.Scan(&e.ID, &e.UserID, &e.EntryType, &data, &e.SyncStatus, &e.CreatedOfflineAt)
		e.EntryData = data
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning offline entries: %w", err)
	}

	return entries, nil
}

// ClaimOfflineEntry moves a pending entry to syncing. It reports false when
// the entry is no longer pending, which means another replay run owns it.
func (m *PostgresDBManager) ClaimOfflineEntry(ctx context.Context, id string) (bool, error) {
	query := `
	UPDATE offline_entries
	SET sync_status = 'syncing'
	WHERE id = $1 AND sync_status = 'pending'
	RETURNING id::text;`

	var claimed string
	err := m.dbpool.QueryRow(ctx, query, id).Scan(&claimed)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("error claiming offline entry %s: %w", id, err)
	}
	return true, nil
}

// ReleaseOfflineEntry hands a claimed entry back to the pending queue.
func (m *PostgresDBManager) ReleaseOfflineEntry(ctx context.Context, id string) error {
	query := `
	UPDATE offline_entries
	SET sync_status = 'pending'
	WHERE id = $1 AND sync_status = 'syncing';`

	if _, err := m.dbpool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("error releasing offline entry %s: %w", id, err)
	}
	return nil
}

func (m *PostgresDBManager) MarkOfflineEntrySynced(ctx context.Context, id string, syncedAt time.Time) error {
	query := `
	UPDATE offline_entries
	SET sync_status = 'synced',
		synced_at = $1,
		error = NULL
	WHERE id = $2 AND sync_status = 'syncing';`

	tag, err := m.dbpool.Exec(ctx, query, syncedAt, id)
	if err != nil {
		return fmt.Errorf("error marking offline entry %s synced: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claimed offline entry %s: %w", id, ErrNotFound)
	}
	return nil
}

func (m *PostgresDBManager) MarkOfflineEntryFailed(ctx context.Context, id string, reason string) error {
	query := `
	UPDATE offline_entries
	SET sync_status = 'failed',
		error = $1
	WHERE id = $2 AND sync_status = 'syncing';`

	tag, err := m.dbpool.Exec(ctx, query, reason, id)
	if err != nil {
		return fmt.Errorf("error marking offline entry %s failed: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("claimed offline entry %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListOfflineEntries returns the queue newest first, optionally narrowed to
// one sync status.
func (m *PostgresDBManager) ListOfflineEntries(ctx context.Context, status models.SyncStatus) ([]models.OfflineEntry, error) {
	query := `
	SELECT id::text, user_id, entry_type, entry_data, sync_status, created_offline_at,
		synced_at, COALESCE(error, '')
	FROM offline_entries`
	var args []any
	if status != "" {
		query += "\n\tWHERE sync_status = $1"
		args = append(args, status)
	}
	query += "\n\tORDER BY created_offline_at DESC, id;"

	rows, err := m.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying offline entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.OfflineEntry, error) {
		var e models.OfflineEntry
		var data []byte
		err := row.Scan(&e.ID, &e.UserID, &e.EntryType, &data, &e.SyncStatus, &e.CreatedOfflineAt,
			&e.SyncedAt, &e.Error)
		e.EntryData = data
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("error scanning offline entries: %w", err)
	}

	return entries, nil
}
