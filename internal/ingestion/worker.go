package ingestion

import (
	"context"
	"sync"
	"time"

	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/internal/parser"
	"github.com/ThiagoRGoveia/section3-compliance/pkg/checksum"
)

// MaxErrorsPerFile caps what is kept per file. A file past this is almost
// certainly not a labor-hour export.
const MaxErrorsPerFile = 100

type Runner[T any] struct {
	Run T
}

type AsyncWorkerConfig struct {
	DBBatchSize int
}

// BatchHandler writes one batch of records through the given staging table.
type BatchHandler func(ctx context.Context, records []*models.LaborHourRecord, stagingTableName string) error

type Worker interface {
	WithChannels(channels *models.ExtractionChannels) Worker
	WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker
	SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error)
	SetupParserWorkers(numberOfWorkers int) (Runner[func()], *sync.WaitGroup, error)
	SetupDBWorkers(stagingTableNames []string) (Runner[func(context.Context, BatchHandler) error], *sync.WaitGroup, error)
	SetupJobDispatcherWorker(fileInfos []models.FileInfo, fileMap models.FileMap) (Runner[func(context.Context)], *sync.WaitGroup, error)
}

type AsyncWorker struct {
	config     AsyncWorkerConfig
	dbManager  database.IngestionStore
	log        *logger.Logger
	channels   *models.ExtractionChannels
	waitGroups *models.ExtractionWaitGroups
	fileMapMu  sync.Mutex
}

func NewAsyncWorker(dbManager database.IngestionStore, cfg AsyncWorkerConfig, log *logger.Logger) *AsyncWorker {
	if cfg.DBBatchSize <= 0 {
		cfg.DBBatchSize = 1
	}
	return &AsyncWorker{
		dbManager: dbManager,
		config:    cfg,
		log:       log,
	}
}

func (w *AsyncWorker) WithChannels(channels *models.ExtractionChannels) Worker {
	w.channels = channels
	return w
}

func (w *AsyncWorker) WithWaitGroups(waitGroups *models.ExtractionWaitGroups) Worker {
	w.waitGroups = waitGroups
	return w
}

func (w *AsyncWorker) ParserWorker() {
	defer w.waitGroups.ParserWg.Done()
	for job := range w.channels.Jobs {
		w.log.Debug("parser worker started job", "file", job.FilePath, "file_id", job.FileID)
		// ParseCSV already reported the failure on the errors channel.
		if err := parser.ParseCSV(job.FilePath, job.FileID, w.channels.Results, w.channels.Errors); err != nil {
			w.log.Warn("parser worker could not read file", "file", job.FilePath, "file_id", job.FileID, "error", err)
		}
		w.log.Debug("parser worker finished job", "file", job.FilePath, "file_id", job.FileID)
	}
}

func (w *AsyncWorker) SetupParserWorkers(numberOfWorkers int) (Runner[func()], *sync.WaitGroup, error) {
	return Runner[func()]{
		Run: func() {
			for i := 1; i <= numberOfWorkers; i++ {
				w.waitGroups.ParserWg.Add(1)
				go w.ParserWorker()
			}
		},
	}, w.waitGroups.ParserWg, nil
}

func (w *AsyncWorker) flush(ctx context.Context, workerID int, stagingTableName string, records []*models.LaborHourRecord, dbHandler BatchHandler) {
	w.log.Debug("db worker inserting batch", "worker", workerID, "count", len(records), "table", stagingTableName)
	err := dbHandler(ctx, records, stagingTableName)
	if err == nil {
		return
	}

	// the whole batch failed, so report once per file that had rows in it
	fileIDs := make(map[int]bool)
	for _, record := range records {
		fileIDs[record.FileID] = true
	}
	for fileID := range fileIDs {
		w.channels.Errors <- models.AppError{FileID: fileID, Message: "Failed to insert batch of labor hours", Err: err}
	}
}

func (w *AsyncWorker) DbWorker(ctx context.Context, workerID int, stagingTableName string, dbHandler BatchHandler) {
	defer w.waitGroups.DbWg.Done()
	w.log.Debug("db worker started", "worker", workerID, "table", stagingTableName)

	records := make([]*models.LaborHourRecord, 0, w.config.DBBatchSize)
	for record := range w.channels.Results {
		records = append(records, record)
		if len(records) >= w.config.DBBatchSize {
			w.flush(ctx, workerID, stagingTableName, records, dbHandler)
			records = make([]*models.LaborHourRecord, 0, w.config.DBBatchSize)
		}
	}

	if len(records) > 0 {
		w.flush(ctx, workerID, stagingTableName, records, dbHandler)
	}

	w.log.Debug("db worker finished", "worker", workerID)
}

// SetupDBWorkers starts one worker per staging table, all reading the shared
// results channel.
func (w *AsyncWorker) SetupDBWorkers(stagingTableNames []string) (Runner[func(context.Context, BatchHandler) error], *sync.WaitGroup, error) {
	return Runner[func(context.Context, BatchHandler) error]{
		Run: func(ctx context.Context, dbHandler BatchHandler) error {
			for i, stagingTableName := range stagingTableNames {
				w.waitGroups.DbWg.Add(1)
				go w.DbWorker(ctx, i+1, stagingTableName, dbHandler)
			}
			return nil
		},
	}, w.waitGroups.DbWg, nil
}

func (w *AsyncWorker) ErrorWorker(fileErrorsMap *models.FileErrorMap) {
	defer w.waitGroups.MainWg.Done()
	for appErr := range w.channels.Errors {
		w.log.Warn("ingestion error", "file_id", appErr.FileID, "error", appErr.Error())
		if appErr.FileID == -1 {
			continue
		}

		fileErrorsMap.Mu.Lock()
		if appErr.Fatal {
			if fileErrorsMap.Fatal == nil {
				fileErrorsMap.Fatal = make(map[int]bool)
			}
			fileErrorsMap.Fatal[appErr.FileID] = true
		}
		if len(fileErrorsMap.Errors[appErr.FileID]) < MaxErrorsPerFile {
			fileErrorsMap.Errors[appErr.FileID] = append(fileErrorsMap.Errors[appErr.FileID], appErr)
		} else {
			w.log.Debug("file has too many errors, dropping", "file_id", appErr.FileID)
		}
		fileErrorsMap.Mu.Unlock()
	}
}

func (w *AsyncWorker) PreprocessAndDispatchJobs(ctx context.Context, fileInfos []models.FileInfo, fileMap models.FileMap) {
	defer w.waitGroups.MainWg.Done()
	defer close(w.channels.Jobs)

	for _, fileInfo := range fileInfos {
		if ctx.Err() != nil {
			w.log.Warn("dispatch cancelled", "error", ctx.Err())
			return
		}

		sum, err := checksum.GetFileChecksum(fileInfo.Path)
		if err != nil {
			w.log.Error("failed to calculate checksum, skipping file", "file", fileInfo.Path, "error", err)
			continue
		}

		isProcessed, err := w.dbManager.IsFileAlreadyProcessed(ctx, sum)
		if err != nil {
			w.log.Error("failed to check if file was processed, skipping file", "file", fileInfo.Path, "error", err)
			continue
		}
		if isProcessed {
			w.log.Info("file already processed, skipping", "file", fileInfo.Path, "checksum", sum)
			continue
		}

		fileID, err := w.dbManager.InsertFileRecord(ctx, fileInfo.Path, time.Now(), database.FILE_STATUS_PROCESSING, sum)
		if err != nil {
			w.log.Error("failed to insert file record, skipping file", "file", fileInfo.Path, "error", err)
			continue
		}

		w.fileMapMu.Lock()
		fileMap[fileID] = fileInfo.Path
		w.fileMapMu.Unlock()

		w.log.Info("dispatching job", "file", fileInfo.Path, "file_id", fileID)
		select {
		case w.channels.Jobs <- models.FileProcessingJob{FilePath: fileInfo.Path, FileID: fileID}:
		case <-ctx.Done():
			return
		}
	}
}

func (w *AsyncWorker) SetupJobDispatcherWorker(fileInfos []models.FileInfo, fileMap models.FileMap) (Runner[func(context.Context)], *sync.WaitGroup, error) {
	return Runner[func(context.Context)]{
		Run: func(ctx context.Context) {
			w.waitGroups.MainWg.Add(1)
			go w.PreprocessAndDispatchJobs(ctx, fileInfos, fileMap)
		},
	}, w.waitGroups.MainWg, nil
}

func (w *AsyncWorker) SetupErrorWorker() (Runner[func(*models.FileErrorMap)], *sync.WaitGroup, error) {
	return Runner[func(*models.FileErrorMap)]{
		Run: func(fileErrorsMap *models.FileErrorMap) {
			w.waitGroups.MainWg.Add(1)
			go w.ErrorWorker(fileErrorsMap)
		},
	}, w.waitGroups.MainWg, nil
}
