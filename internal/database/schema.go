package database

import (
	"context"
	"fmt"
)

var schemaStatements = []struct {
	name  string
	query string
}{
	{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS pgcrypto;`},
	{"projects", `
	CREATE TABLE IF NOT EXISTS projects (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(255) NOT NULL,
		hud_project_id VARCHAR(100),
		location VARCHAR(255),
		status VARCHAR(50) NOT NULL DEFAULT 'active',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"workers", `
	CREATE TABLE IF NOT EXISTS workers (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		email VARCHAR(255),
		is_section3_worker BOOLEAN NOT NULL DEFAULT false,
		is_targeted_section3_worker BOOLEAN NOT NULL DEFAULT false,
		verification_status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (verification_status IN ('pending', 'verified', 'flagged'))
	);`},
	{"labor_hour_files", `
	CREATE TABLE IF NOT EXISTS labor_hour_files (
		id SERIAL PRIMARY KEY,
		file_name VARCHAR(255) NOT NULL,
		processed_at TIMESTAMPTZ NOT NULL,
		status VARCHAR(50) NOT NULL CHECK (status IN ('DONE', 'DONE_WITH_ERRORS', 'PROCESSING', 'FATAL')),
		checksum VARCHAR(64),
		errors JSONB
	);`},
	{"labor_hours", `
	CREATE TABLE IF NOT EXISTS labor_hours (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL,
		contractor_id UUID NOT NULL,
		worker_id UUID NOT NULL,
		hours_worked NUMERIC(6, 2) NOT NULL,
		work_date DATE NOT NULL,
		hourly_rate NUMERIC(10, 2),
		job_category VARCHAR(100),
		verified BOOLEAN NOT NULL DEFAULT false,
		file_id INTEGER,
		checksum VARCHAR(64) NOT NULL
	);`},
	{"labor_hours checksum index", `CREATE UNIQUE INDEX IF NOT EXISTS idx_labor_hours_checksum_unique ON labor_hours (checksum);`},
	{"legacy labor_hours checksum index", `DROP INDEX IF EXISTS idx_labor_hours_checksum;`},
	{"project_locations", `
	CREATE TABLE IF NOT EXISTS project_locations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		project_id UUID NOT NULL REFERENCES projects(id),
		latitude DOUBLE PRECISION NOT NULL,
		longitude DOUBLE PRECISION NOT NULL,
		address TEXT NOT NULL,
		service_radius_miles DOUBLE PRECISION NOT NULL DEFAULT 5,
		census_tract VARCHAR(20),
		poverty_rate DOUBLE PRECISION,
		median_income DOUBLE PRECISION
	);`},
	{"worker_addresses", `
	CREATE TABLE IF NOT EXISTS worker_addresses (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		worker_id UUID NOT NULL REFERENCES workers(id),
		address TEXT NOT NULL,
		latitude DOUBLE PRECISION,
		longitude DOUBLE PRECISION,
		census_tract VARCHAR(20),
		verification_status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (verification_status IN ('pending', 'verified', 'flagged')),
		eligibility_confirmed BOOLEAN NOT NULL DEFAULT false
	);`},
	{"contractor_registrations", `
	CREATE TABLE IF NOT EXISTS contractor_registrations (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		company_name VARCHAR(255) NOT NULL,
		contact_email VARCHAR(255),
		registration_status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (registration_status IN ('pending', 'approved', 'rejected')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`},
	{"offline_entries", `
	CREATE TABLE IF NOT EXISTS offline_entries (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		user_id VARCHAR(255) NOT NULL,
		entry_type VARCHAR(50) NOT NULL,
		entry_data JSONB NOT NULL,
		sync_status VARCHAR(20) NOT NULL DEFAULT 'pending'
			CHECK (sync_status IN ('pending', 'syncing', 'synced', 'failed')),
		created_offline_at TIMESTAMPTZ NOT NULL,
		synced_at TIMESTAMPTZ,
		error TEXT
	);`},
}

// CreateSchema is idempotent; the setup binary runs it on every deploy.
func (m *PostgresDBManager) CreateSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := m.dbpool.Exec(ctx, stmt.query); err != nil {
			return fmt.Errorf("error creating %s: %w", stmt.name, err)
		}
		m.log.Debug("schema object ready", "name", stmt.name)
	}
	return nil
}
