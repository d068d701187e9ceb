package reporting

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

type DataSource interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	ListWorkers(ctx context.Context) ([]models.Worker, error)
	ListLaborHours(ctx context.Context, filter models.LaborHoursFilter) ([]models.LaborHourRecord, error)
	CountApprovedContractors(ctx context.Context) (int, error)
}

// Snapshot is one consistent read of everything a report aggregates.
type Snapshot struct {
	Projects []models.Project
	Workers  []models.Worker
	Hours    []models.LaborHourRecord
}

// LoadSnapshot runs the three reads concurrently and waits for all of them.
// Any failure fails the snapshot and cancels the reads still in flight.
func LoadSnapshot(ctx context.Context, source DataSource, filter models.LaborHoursFilter) (*Snapshot, error) {
	snapshot := &Snapshot{}
	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		projects, err := source.ListProjects(egCtx)
		if err != nil {
			return fmt.Errorf("loading projects: %w", err)
		}
		snapshot.Projects = projects
		return nil
	})

	eg.Go(func() error {
		workers, err := source.ListWorkers(egCtx)
		if err != nil {
			return fmt.Errorf("loading workers: %w", err)
		}
		snapshot.Workers = workers
		return nil
	})

	eg.Go(func() error {
		hours, err := source.ListLaborHours(egCtx, filter)
		if err != nil {
			return fmt.Errorf("loading labor hours: %w", err)
		}
		snapshot.Hours = hours
		return nil
	})

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return snapshot, nil
}
