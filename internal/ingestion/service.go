package ingestion

import (
	"context"

	"github.com/ThiagoRGoveia/section3-compliance/internal/config"
	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

type IngestionService struct {
	dbManager     database.IngestionStore
	setupService  ISetup
	asyncWorker   Worker
	fileProcessor Processor
	config        config.Config
	log           *logger.Logger
}

func NewIngestionService(dbManager database.IngestionStore, setupService ISetup, worker Worker, processor Processor, cfg config.Config, log *logger.Logger) *IngestionService {
	return &IngestionService{
		dbManager:     dbManager,
		setupService:  setupService,
		asyncWorker:   worker,
		fileProcessor: processor,
		config:        cfg,
		log:           log,
	}
}

// Execute imports every CSV export under filesPath.
func (h *IngestionService) Execute(ctx context.Context, filesPath string) error {
	// Step 0: channels, wait groups and shared maps for this run.
	environmentConfig, err := h.setupService.build()
	if err != nil {
		return err
	}
	channels, waitGroups, fileMap, fileErrorsMap := environmentConfig.GetValues()

	// Step 0.1: find the exports.
	fileInfos, err := h.fileProcessor.ScanForFiles(filesPath)
	if err != nil {
		h.log.Error("failed to scan files", "error", err)
		return err
	}

	// Step 0.2: staging tables, plus whether labor_hours starts empty.
	cleanup, stagingTableNames, firstWrite, err := h.setupDatabase(ctx)
	if err != nil {
		h.log.Error("failed to setup database", "error", err)
		return err
	}
	defer cleanup()

	// Step 0.3: reporting indexes slow down bulk inserts; rebuild them at the end.
	h.log.Info("dropping labor hour indexes")
	if err := h.dbManager.DropLaborHourIndexes(ctx); err != nil {
		h.log.Warn("failed to drop labor hour indexes", "error", err)
	}
	defer func() {
		h.log.Info("re-creating labor hour indexes")
		if err := h.dbManager.CreateLaborHourIndexes(context.WithoutCancel(ctx)); err != nil {
			h.log.Error("failed to re-create labor hour indexes", "error", err)
		}
	}()

	// Step 0.4: must happen before any runner starts.
	h.asyncWorker.WithChannels(channels).WithWaitGroups(waitGroups)

	// Step 1: checksum, skip already imported files, register the rest and
	// hand them to the parsers. Shares MainWg with the error worker.
	dispatcherWorkerRunner, _, err := h.asyncWorker.SetupJobDispatcherWorker(fileInfos, *fileMap)
	if err != nil {
		return err
	}
	dispatcherWorkerRunner.Run(ctx)

	// Step 2: error worker collects row and batch failures per file.
	errorWorkerRunner, mainWaitGroup, err := h.asyncWorker.SetupErrorWorker()
	if err != nil {
		return err
	}
	errorWorkerRunner.Run(fileErrorsMap)

	// Step 3: parser workers.
	parserWorkersRunner, parserWorkerWaitGroup, err := h.asyncWorker.SetupParserWorkers(h.config.NumParserWorkers)
	if err != nil {
		return err
	}
	parserWorkersRunner.Run()

	// Step 4: one DB worker per staging table.
	dbWorkersRunner, dbWorkerWaitGroup, err := h.asyncWorker.SetupDBWorkers(stagingTableNames)
	if err != nil {
		return err
	}

	// Step 5: an empty table can skip the duplicate check.
	err = dbWorkersRunner.Run(ctx, func(ctx context.Context, records []*models.LaborHourRecord, stagingTableName string) error {
		if firstWrite {
			return h.dbManager.InsertAllStagingTableData(ctx, records, stagingTableName)
		}
		return h.dbManager.InsertDiffFromStagingTable(ctx, records, stagingTableName)
	})
	if err != nil {
		return err
	}

	// Step 6: drain in order. Parsers, then DB workers, then the error worker.
	h.log.Info("waiting for parser workers to finish")
	parserWorkerWaitGroup.Wait()
	close(channels.Results)

	h.log.Info("waiting for db workers to finish")
	dbWorkerWaitGroup.Wait()
	close(channels.Errors)

	h.log.Info("waiting for error worker to finish")
	mainWaitGroup.Wait()

	// Step 7: final status per file.
	if err := h.fileProcessor.UpdateFileStatus(context.WithoutCancel(ctx), fileErrorsMap, fileMap); err != nil {
		h.log.Error("failed to update file statuses", "error", err)
	}

	h.log.Info("ingestion finished", "files", len(*fileMap))
	return nil
}

func (h *IngestionService) setupDatabase(ctx context.Context) (func(), []string, bool, error) {
	firstWrite, err := h.dbManager.IsLaborHoursEmpty(ctx)
	if err != nil {
		return nil, nil, false, err
	}

	h.log.Info("creating staging tables", "count", h.config.NumDBWorkers, "first_write", firstWrite)
	stagingTableNames, err := h.dbManager.CreateWorkerStagingTables(ctx, h.config.NumDBWorkers)
	if err != nil {
		return nil, nil, false, err
	}

	return func() {
		for _, tableName := range stagingTableNames {
			h.log.Debug("cleaning up staging table", "table", tableName)
			if err := h.dbManager.DropWorkerStagingTable(context.WithoutCancel(ctx), tableName); err != nil {
				h.log.Warn("failed to drop staging table", "table", tableName, "error", err)
			}
		}
	}, stagingTableNames, firstWrite, nil
}
