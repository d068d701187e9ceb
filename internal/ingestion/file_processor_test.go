package ingestion

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

func TestFileProcessor_ScanForFiles(t *testing.T) {
	tempDir := t.TempDir()

	file1Path := writeTestFile(t, tempDir, "b_march.csv", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))
	file2Path := writeTestFile(t, tempDir, "a_feb.CSV", createTestCSVContent([]CSVRow{newDefaultCSVRow()}))
	writeTestFile(t, tempDir, "notes.txt", "not an export")

	fileProcessor := NewFileProcessor(new(MockDBManager), logger.NewNop())

	t.Run("Success", func(t *testing.T) {
		fileInfos, err := fileProcessor.ScanForFiles(tempDir)

		assert.NoError(t, err)
		assert.Equal(t, []models.FileInfo{{Path: file2Path}, {Path: file1Path}}, fileInfos)
	})

	t.Run("DirectoryNotFound", func(t *testing.T) {
		_, err := fileProcessor.ScanForFiles(filepath.Join(tempDir, "non_existent_dir"))
		assert.Error(t, err)
	})
}

func TestFileProcessor_UpdateFileStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("StatusDone", func(t *testing.T) {
		dbManager := new(MockDBManager)
		fileProcessor := NewFileProcessor(dbManager, logger.NewNop())
		fileMap := models.FileMap{1: "file1.csv"}
		fileErrorsMap := models.FileErrorMap{Errors: make(map[int][]models.AppError)}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_DONE, mock.Anything).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(ctx, &fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("StatusDoneWithErrors", func(t *testing.T) {
		dbManager := new(MockDBManager)
		fileProcessor := NewFileProcessor(dbManager, logger.NewNop())
		fileMap := models.FileMap{1: "file1.csv"}
		appErrors := []models.AppError{{Message: "some error"}}
		fileErrorsMap := models.FileErrorMap{Errors: map[int][]models.AppError{1: appErrors}}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_DONE_WITH_ERRORS, appErrors).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(ctx, &fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("StatusFatal", func(t *testing.T) {
		dbManager := new(MockDBManager)
		fileProcessor := NewFileProcessor(dbManager, logger.NewNop())
		fileMap := models.FileMap{1: "file1.csv", 2: "file2.csv"}
		appErrors := []models.AppError{{FileID: 1, Message: "Failed to open file", Fatal: true}}
		fileErrorsMap := models.FileErrorMap{
			Errors: map[int][]models.AppError{1: appErrors},
			Fatal:  map[int]bool{1: true},
		}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_FATAL, appErrors).Return(nil).Once()
		dbManager.On("UpdateFileStatus", 2, database.FILE_STATUS_DONE, mock.Anything).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(ctx, &fileErrorsMap, &fileMap)

		assert.NoError(t, err)
		dbManager.AssertExpectations(t)
	})

	t.Run("UpdateError", func(t *testing.T) {
		dbManager := new(MockDBManager)
		fileProcessor := NewFileProcessor(dbManager, logger.NewNop())
		fileMap := models.FileMap{1: "file1.csv", 2: "file2.csv"}
		fileErrorsMap := models.FileErrorMap{Errors: make(map[int][]models.AppError)}

		dbManager.On("UpdateFileStatus", 1, database.FILE_STATUS_DONE, mock.Anything).Return(fmt.Errorf("db update failed")).Once()
		dbManager.On("UpdateFileStatus", 2, database.FILE_STATUS_DONE, mock.Anything).Return(nil).Once()

		err := fileProcessor.UpdateFileStatus(ctx, &fileErrorsMap, &fileMap)

		assert.ErrorContains(t, err, "1 files")
		dbManager.AssertExpectations(t)
	})
}
