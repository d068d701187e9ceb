package reporting

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ThiagoRGoveia/section3-compliance/internal/compliance"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

// Reporter turns a datastore snapshot into compliance views. Every call reads
// fresh data; nothing derived is cached between calls.
type Reporter struct {
	source     DataSource
	aggregator *compliance.Aggregator
	log        *logger.Logger
	now        func() time.Time
}

func NewReporter(source DataSource, aggregator *compliance.Aggregator, log *logger.Logger) *Reporter {
	return &Reporter{
		source:     source,
		aggregator: aggregator,
		log:        log,
		now:        time.Now,
	}
}

func (r *Reporter) Aggregator() *compliance.Aggregator {
	return r.aggregator
}

func (r *Reporter) Dashboard(ctx context.Context, projectID string, period Period) (models.DashboardReport, error) {
	now := r.now()
	filter := models.LaborHoursFilter{ProjectID: projectID, From: PeriodStart(period, now)}

	var (
		snapshot *Snapshot
		approved int
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		snapshot, err = LoadSnapshot(egCtx, r.source, filter)
		return err
	})
	eg.Go(func() error {
		var err error
		approved, err = r.source.CountApprovedContractors(egCtx)
		if err != nil {
			return fmt.Errorf("counting approved contractors: %w", err)
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return models.DashboardReport{}, err
	}

	workers := compliance.IndexWorkers(snapshot.Workers)
	metrics := r.aggregator.ComputeMetrics(snapshot.Hours, workers)

	report := models.DashboardReport{
		GeneratedAt:         now,
		ProjectID:           projectID,
		Period:              string(period),
		Metrics:             metrics,
		Banner:              r.aggregator.Banner(metrics),
		Workforce:           compliance.SummarizeWorkforce(snapshot.Workers),
		VerifiedHours:       compliance.VerifiedHours(snapshot.Hours),
		AverageHourlyRate:   compliance.AverageHourlyRate(snapshot.Hours),
		Monthly:             r.aggregator.AggregateMonthly(snapshot.Hours, workers),
		Projects:            r.aggregator.AggregateByProject(snapshot.Hours, workers, snapshot.Projects),
		Contractors:         r.aggregator.AggregateByContractor(snapshot.Hours, workers),
		ApprovedContractors: approved,
	}
	if !filter.From.IsZero() {
		from := filter.From
		report.From = &from
	}

	for i := range snapshot.Projects {
		if projectID != "" && snapshot.Projects[i].ID != projectID {
			continue
		}
		report.TotalProjects++
		if snapshot.Projects[i].IsActive() {
			report.ActiveProjects++
		}
	}

	r.log.Debug("dashboard computed",
		"project_id", projectID,
		"period", period,
		"records", metrics.RecordCount,
		"status", metrics.ComplianceStatus,
	)

	return report, nil
}

func (r *Reporter) Metrics(ctx context.Context, filter models.LaborHoursFilter) (models.ComplianceMetrics, error) {
	snapshot, err := LoadSnapshot(ctx, r.source, filter)
	if err != nil {
		return models.ComplianceMetrics{}, err
	}
	return r.aggregator.ComputeMetrics(snapshot.Hours, compliance.IndexWorkers(snapshot.Workers)), nil
}

func (r *Reporter) Monthly(ctx context.Context, filter models.LaborHoursFilter) (models.MonthlyReport, error) {
	snapshot, err := LoadSnapshot(ctx, r.source, filter)
	if err != nil {
		return models.MonthlyReport{}, err
	}
	return r.aggregator.AggregateMonthly(snapshot.Hours, compliance.IndexWorkers(snapshot.Workers)), nil
}

func (r *Reporter) Projects(ctx context.Context, filter models.LaborHoursFilter) (models.ProjectReport, error) {
	snapshot, err := LoadSnapshot(ctx, r.source, filter)
	if err != nil {
		return models.ProjectReport{}, err
	}
	return r.aggregator.AggregateByProject(snapshot.Hours, compliance.IndexWorkers(snapshot.Workers), snapshot.Projects), nil
}
