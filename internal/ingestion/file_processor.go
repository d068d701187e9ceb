package ingestion

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

type Processor interface {
	ScanForFiles(rootPath string) ([]models.FileInfo, error)
	UpdateFileStatus(ctx context.Context, fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap) error
}

// FileProcessor discovers export files and writes back the final status of
// each one.
type FileProcessor struct {
	dbManager database.IngestionStore
	log       *logger.Logger
}

func NewFileProcessor(dbManager database.IngestionStore, log *logger.Logger) *FileProcessor {
	return &FileProcessor{
		dbManager: dbManager,
		log:       log,
	}
}

// ScanForFiles walks rootPath and returns every .csv file, sorted by path.
func (fp *FileProcessor) ScanForFiles(rootPath string) ([]models.FileInfo, error) {
	var fileInfos []models.FileInfo
	fp.log.Info("scanning for files", "path", rootPath)

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ".csv") {
			fp.log.Debug("skipping non-csv file", "file", path)
			return nil
		}

		fileInfos = append(fileInfos, models.FileInfo{Path: path})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", rootPath, err)
	}

	sort.Slice(fileInfos, func(i, j int) bool { return fileInfos[i].Path < fileInfos[j].Path })

	fp.log.Info("found files to process", "count", len(fileInfos))
	return fileInfos, nil
}

func fileStatus(fileID int, fileErrorsMap *models.FileErrorMap) string {
	switch {
	case fileErrorsMap.Fatal[fileID]:
		return database.FILE_STATUS_FATAL
	case len(fileErrorsMap.Errors[fileID]) > 0:
		return database.FILE_STATUS_DONE_WITH_ERRORS
	default:
		return database.FILE_STATUS_DONE
	}
}

// UpdateFileStatus records DONE, DONE_WITH_ERRORS or FATAL for every file of
// the run. A failed update is logged and the remaining files still update.
func (fp *FileProcessor) UpdateFileStatus(ctx context.Context, fileErrorsMap *models.FileErrorMap, fileMap *models.FileMap) error {
	var failed int
	for fileID := range *fileMap {
		status := fileStatus(fileID, fileErrorsMap)
		appErrors := fileErrorsMap.Errors[fileID]

		if err := fp.dbManager.UpdateFileStatus(ctx, fileID, status, appErrors); err != nil {
			fp.log.Error("failed to update file status", "file_id", fileID, "error", err)
			failed++
		}
	}

	if failed > 0 {
		return fmt.Errorf("failed to update status for %d files", failed)
	}
	return nil
}
