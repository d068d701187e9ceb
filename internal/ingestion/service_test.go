package ingestion

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ThiagoRGoveia/section3-compliance/internal/config"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

type testSetup struct {
	path        string
	dbManager   *MockDBManager
	worker      *MockWorker
	processor   *MockProcessor
	setup       *MockSetup
	setupReturn models.SetupReturn
	cfg         config.Config
	scanResult  []models.FileInfo
	staging     []string
}

func buildTestSetup() testSetup {
	fileMap := make(models.FileMap)
	return testSetup{
		path:      "some/path",
		dbManager: new(MockDBManager),
		worker:    new(MockWorker),
		processor: new(MockProcessor),
		setup:     new(MockSetup),
		setupReturn: models.SetupReturn{
			Channels: &models.ExtractionChannels{
				Results: make(chan *models.LaborHourRecord, 100),
				Errors:  make(chan models.AppError, 100),
				Jobs:    make(chan models.FileProcessingJob, 100),
			},
			WaitGroups:    &models.ExtractionWaitGroups{ParserWg: &sync.WaitGroup{}, DbWg: &sync.WaitGroup{}, MainWg: &sync.WaitGroup{}},
			FileMap:       &fileMap,
			FileErrorsMap: &models.FileErrorMap{Errors: make(map[int][]models.AppError), Fatal: make(map[int]bool)},
		},
		cfg: config.Config{
			NumParserWorkers:   1,
			NumDBWorkers:       2,
			ResultsChannelSize: 100,
		},
		scanResult: []models.FileInfo{{Path: "some/path/hours.csv"}},
		staging:    []string{"staging_table_1", "staging_table_2"},
	}
}

func (s testSetup) service() *IngestionService {
	return NewIngestionService(s.dbManager, s.setup, s.worker, s.processor, s.cfg, logger.NewNop())
}

func (s testSetup) assertAll(t *testing.T) {
	s.setup.AssertExpectations(t)
	s.processor.AssertExpectations(t)
	s.dbManager.AssertExpectations(t)
	s.worker.AssertExpectations(t)
}

// expectUntilWorkers wires every call Execute makes before the worker runners.
func (s testSetup) expectUntilWorkers(empty bool) {
	s.setup.On("build").Return(s.setupReturn, nil).Once()
	s.processor.On("ScanForFiles", s.path).Return(s.scanResult, nil).Once()
	s.dbManager.On("IsLaborHoursEmpty").Return(empty, nil).Once()
	s.dbManager.On("CreateWorkerStagingTables", s.cfg.NumDBWorkers).Return(s.staging, nil).Once()
	for _, table := range s.staging {
		s.dbManager.On("DropWorkerStagingTable", table).Return(nil).Once()
	}
	s.dbManager.On("DropLaborHourIndexes").Return(nil).Once()
	s.dbManager.On("CreateLaborHourIndexes").Return(nil).Once()
	s.worker.On("WithChannels", s.setupReturn.Channels).Return(s.worker).Once()
	s.worker.On("WithWaitGroups", s.setupReturn.WaitGroups).Return(s.worker).Once()
}

func noopDispatcher() Runner[func(context.Context)] {
	return Runner[func(context.Context)]{Run: func(context.Context) {}}
}

func noopErrorWorker() Runner[func(*models.FileErrorMap)] {
	return Runner[func(*models.FileErrorMap)]{Run: func(*models.FileErrorMap) {}}
}

func noopParsers() Runner[func()] {
	return Runner[func()]{Run: func() {}}
}

func TestIngestionService_Execute(t *testing.T) {
	ctx := context.Background()

	for _, empty := range []bool{true, false} {
		name := "Expect: Execute to insert through diff when labor_hours has rows"
		if empty {
			name = "Expect: Execute to insert everything when labor_hours is empty"
		}
		t.Run(name, func(t *testing.T) {
			s := buildTestSetup()
			s.expectUntilWorkers(empty)
			s.worker.On("SetupJobDispatcherWorker", s.scanResult, *s.setupReturn.FileMap).Return(noopDispatcher(), &sync.WaitGroup{}, nil).Once()
			s.worker.On("SetupErrorWorker").Return(noopErrorWorker(), &sync.WaitGroup{}, nil).Once()
			s.worker.On("SetupParserWorkers", s.cfg.NumParserWorkers).Return(noopParsers(), &sync.WaitGroup{}, nil).Once()

			batch := []*models.LaborHourRecord{{FileID: 1}}
			if empty {
				s.dbManager.On("InsertAllStagingTableData", batch, "staging_table_1").Return(nil).Once()
			} else {
				s.dbManager.On("InsertDiffFromStagingTable", batch, "staging_table_1").Return(nil).Once()
			}
			dbRunner := Runner[func(context.Context, BatchHandler) error]{Run: func(ctx context.Context, handler BatchHandler) error {
				return handler(ctx, batch, "staging_table_1")
			}}
			s.worker.On("SetupDBWorkers", s.staging).Return(dbRunner, &sync.WaitGroup{}, nil).Once()
			s.processor.On("UpdateFileStatus", s.setupReturn.FileErrorsMap, s.setupReturn.FileMap).Return(nil).Once()

			err := s.service().Execute(ctx, s.path)

			require.NoError(t, err)
			s.assertAll(t)

			_, resultsOpen := <-s.setupReturn.Channels.Results
			assert.False(t, resultsOpen, "results channel must be closed once parsers finish")
			_, errorsOpen := <-s.setupReturn.Channels.Errors
			assert.False(t, errorsOpen, "errors channel must be closed once db workers finish")
		})
	}

	t.Run("Expect: Error to be returned when setup.build() fails", func(t *testing.T) {
		s := buildTestSetup()
		s.setup.On("build").Return(models.SetupReturn{}, errors.New("build error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.setup.AssertExpectations(t)
		s.processor.AssertNotCalled(t, "ScanForFiles", mock.Anything)
	})

	t.Run("Expect: Error to be returned when ScanForFiles() fails", func(t *testing.T) {
		s := buildTestSetup()
		s.setup.On("build").Return(s.setupReturn, nil).Once()
		s.processor.On("ScanForFiles", s.path).Return(nil, errors.New("scan error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.dbManager.AssertNotCalled(t, "CreateWorkerStagingTables", mock.Anything)
	})

	t.Run("Expect: Error to be returned when the emptiness check fails", func(t *testing.T) {
		s := buildTestSetup()
		s.setup.On("build").Return(s.setupReturn, nil).Once()
		s.processor.On("ScanForFiles", s.path).Return(s.scanResult, nil).Once()
		s.dbManager.On("IsLaborHoursEmpty").Return(false, errors.New("db down")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.dbManager.AssertNotCalled(t, "DropLaborHourIndexes")
	})

	t.Run("Expect: Error to be returned when staging tables cannot be created", func(t *testing.T) {
		s := buildTestSetup()
		s.setup.On("build").Return(s.setupReturn, nil).Once()
		s.processor.On("ScanForFiles", s.path).Return(s.scanResult, nil).Once()
		s.dbManager.On("IsLaborHoursEmpty").Return(true, nil).Once()
		s.dbManager.On("CreateWorkerStagingTables", s.cfg.NumDBWorkers).Return(nil, errors.New("staging error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.dbManager.AssertNotCalled(t, "DropLaborHourIndexes")
	})

	t.Run("Expect: Error to be returned when SetupJobDispatcherWorker() fails", func(t *testing.T) {
		s := buildTestSetup()
		s.expectUntilWorkers(false)
		s.worker.On("SetupJobDispatcherWorker", s.scanResult, *s.setupReturn.FileMap).Return(nil, nil, errors.New("dispatcher error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.worker.AssertNotCalled(t, "SetupErrorWorker")
	})

	t.Run("Expect: Error to be returned when SetupErrorWorker() fails", func(t *testing.T) {
		s := buildTestSetup()
		s.expectUntilWorkers(false)
		s.worker.On("SetupJobDispatcherWorker", s.scanResult, *s.setupReturn.FileMap).Return(noopDispatcher(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupErrorWorker").Return(nil, nil, errors.New("error worker error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.worker.AssertNotCalled(t, "SetupParserWorkers", mock.Anything)
	})

	t.Run("Expect: Error to be returned when SetupParserWorkers() fails", func(t *testing.T) {
		s := buildTestSetup()
		s.expectUntilWorkers(false)
		s.worker.On("SetupJobDispatcherWorker", s.scanResult, *s.setupReturn.FileMap).Return(noopDispatcher(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupErrorWorker").Return(noopErrorWorker(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupParserWorkers", s.cfg.NumParserWorkers).Return(nil, nil, errors.New("parser error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.worker.AssertNotCalled(t, "SetupDBWorkers", mock.Anything)
	})

	t.Run("Expect: Error to be returned when SetupDBWorkers() fails", func(t *testing.T) {
		s := buildTestSetup()
		s.expectUntilWorkers(false)
		s.worker.On("SetupJobDispatcherWorker", s.scanResult, *s.setupReturn.FileMap).Return(noopDispatcher(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupErrorWorker").Return(noopErrorWorker(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupParserWorkers", s.cfg.NumParserWorkers).Return(noopParsers(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupDBWorkers", s.staging).Return(nil, nil, errors.New("db worker error")).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
	})

	t.Run("Expect: Error to be returned when the DB workers runner fails", func(t *testing.T) {
		s := buildTestSetup()
		s.expectUntilWorkers(false)
		s.worker.On("SetupJobDispatcherWorker", s.scanResult, *s.setupReturn.FileMap).Return(noopDispatcher(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupErrorWorker").Return(noopErrorWorker(), &sync.WaitGroup{}, nil).Once()
		s.worker.On("SetupParserWorkers", s.cfg.NumParserWorkers).Return(noopParsers(), &sync.WaitGroup{}, nil).Once()
		dbRunner := Runner[func(context.Context, BatchHandler) error]{Run: func(context.Context, BatchHandler) error {
			return errors.New("db runner error")
		}}
		s.worker.On("SetupDBWorkers", s.staging).Return(dbRunner, &sync.WaitGroup{}, nil).Once()

		err := s.service().Execute(ctx, s.path)

		assert.Error(t, err)
		s.assertAll(t)
		s.processor.AssertNotCalled(t, "UpdateFileStatus", mock.Anything, mock.Anything)
	})
}

func TestIngestionService_Execute_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	cleanRows := []CSVRow{newDefaultCSVRow(), newDefaultCSVRow()}
	cleanRows[1].WorkDate = "2024-03-13"
	cleanPath := writeTestFile(t, dir, "a_clean.csv", createTestCSVContent(cleanRows))

	badRow := newDefaultCSVRow()
	badRow.HoursWorked = "lots"
	mixedPath := writeTestFile(t, dir, "b_mixed.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow(), badRow}))

	cfg := config.Config{NumParserWorkers: 2, NumDBWorkers: 1, ResultsChannelSize: 4, DBBatchSize: 10}
	dbManager := new(MockDBManager)
	log := logger.NewNop()

	dbManager.On("IsLaborHoursEmpty").Return(false, nil).Once()
	dbManager.On("CreateWorkerStagingTables", 1).Return([]string{"s1"}, nil).Once()
	dbManager.On("DropWorkerStagingTable", "s1").Return(nil).Once()
	dbManager.On("DropLaborHourIndexes").Return(nil).Once()
	dbManager.On("CreateLaborHourIndexes").Return(nil).Once()
	dbManager.On("IsFileAlreadyProcessed", mock.AnythingOfType("string")).Return(false, nil).Twice()
	dbManager.On("InsertFileRecord", cleanPath, mock.Anything, "PROCESSING", mock.Anything).Return(1, nil).Once()
	dbManager.On("InsertFileRecord", mixedPath, mock.Anything, "PROCESSING", mock.Anything).Return(2, nil).Once()

	var (
		mu       sync.Mutex
		inserted int
	)
	dbManager.On("InsertDiffFromStagingTable", mock.Anything, "s1").Run(func(args mock.Arguments) {
		mu.Lock()
		defer mu.Unlock()
		inserted += len(args.Get(0).([]*models.LaborHourRecord))
	}).Return(nil)
	dbManager.On("UpdateFileStatus", 1, "DONE", mock.Anything).Return(nil).Once()
	dbManager.On("UpdateFileStatus", 2, "DONE_WITH_ERRORS", mock.Anything).Return(nil).Once()

	service := NewIngestionService(
		dbManager,
		Setup{ResultsChannelSize: cfg.ResultsChannelSize},
		NewAsyncWorker(dbManager, AsyncWorkerConfig{DBBatchSize: cfg.DBBatchSize}, log),
		NewFileProcessor(dbManager, log),
		cfg,
		log,
	)

	err := service.Execute(context.Background(), dir)

	require.NoError(t, err)
	assert.Equal(t, 3, inserted)
	dbManager.AssertExpectations(t)
}
