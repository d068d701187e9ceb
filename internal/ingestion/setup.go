package ingestion

import (
	"sync"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

type ISetup interface {
	build() (models.SetupReturn, error)
}

type Setup struct {
	ResultsChannelSize int
}

// build instantiates every channel and shared map of one ingestion run. Kept
// apart from the service so tests can hand in their own.
func (h Setup) build() (models.SetupReturn, error) {
	size := h.ResultsChannelSize
	if size <= 0 {
		size = 1
	}

	channels := models.ExtractionChannels{
		Results: make(chan *models.LaborHourRecord, size),
		Errors:  make(chan models.AppError, 100),
		Jobs:    make(chan models.FileProcessingJob, 100),
	}

	var parserWg, dbWg, mainWg sync.WaitGroup
	fileMap := make(models.FileMap)
	fileErrorsMap := models.FileErrorMap{
		Errors: make(map[int][]models.AppError),
		Fatal:  make(map[int]bool),
	}

	return models.SetupReturn{
		Channels:      &channels,
		WaitGroups:    &models.ExtractionWaitGroups{ParserWg: &parserWg, DbWg: &dbWg, MainWg: &mainWg},
		FileMap:       &fileMap,
		FileErrorsMap: &fileErrorsMap,
	}, nil
}
