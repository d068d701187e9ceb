package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/internal/offline"
)

type OfflineQueue interface {
	InsertOfflineEntry(ctx context.Context, entry *models.OfflineEntry) (string, error)
	ListOfflineEntries(ctx context.Context, status models.SyncStatus) ([]models.OfflineEntry, error)
}

type OfflineReplayer interface {
	Replay(ctx context.Context) (offline.ReplayResult, error)
}

type OfflineHandler struct {
	log      *logger.Logger
	queue    OfflineQueue
	replayer OfflineReplayer
}

func NewOfflineHandler(log *logger.Logger, queue OfflineQueue, replayer OfflineReplayer) *OfflineHandler {
	return &OfflineHandler{
		log:      log.With("handler", "OfflineHandler"),
		queue:    queue,
		replayer: replayer,
	}
}

type offlineEntryRequest struct {
	UserID           string          `json:"user_id" binding:"required"`
	EntryType        string          `json:"entry_type" binding:"required"`
	EntryData        json.RawMessage `json:"entry_data" binding:"required"`
	CreatedOfflineAt *time.Time      `json:"created_offline_at"`
}

// Queue stores an entry captured on a device as is. It is only decoded when
// replayed, so a malformed payload is accepted here and fails on sync.
func (h *OfflineHandler) Queue(c *gin.Context) {
	var req offlineEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if !json.Valid(req.EntryData) {
		RespondError(c, http.StatusBadRequest, "invalid_body", errors.New("entry_data must be valid JSON"))
		return
	}

	entry := &models.OfflineEntry{
		UserID:           req.UserID,
		EntryType:        req.EntryType,
		EntryData:        req.EntryData,
		SyncStatus:       models.SyncPending,
		CreatedOfflineAt: time.Now().UTC(),
	}
	if req.CreatedOfflineAt != nil {
		entry.CreatedOfflineAt = req.CreatedOfflineAt.UTC()
	}

	id, err := h.queue.InsertOfflineEntry(c.Request.Context(), entry)
	if err != nil {
		h.log.Error("Queue offline entry failed", "error", err, "user_id", req.UserID)
		RespondError(c, http.StatusInternalServerError, "queue_offline_entry_failed", err)
		return
	}
	entry.ID = id

	c.JSON(http.StatusAccepted, gin.H{"entry": entry})
}

type queueSummary struct {
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
}

// List shows the queue newest first. An optional status narrows it.
func (h *OfflineHandler) List(c *gin.Context) {
	status := models.SyncStatus(c.Query("status"))
	switch status {
	case "", models.SyncPending, models.SyncSyncing, models.SyncSynced, models.SyncFailed:
	default:
		RespondError(c, http.StatusBadRequest, "invalid_status", fmt.Errorf("unknown sync status %q", status))
		return
	}

	entries, err := h.queue.ListOfflineEntries(c.Request.Context(), status)
	if err != nil {
		h.log.Error("List offline entries failed", "error", err, "status", status)
		RespondError(c, http.StatusInternalServerError, "load_offline_entries_failed", err)
		return
	}
	if entries == nil {
		entries = []models.OfflineEntry{}
	}

	var summary queueSummary
	for i := range entries {
		switch entries[i].SyncStatus {
		case models.SyncPending:
			summary.Pending++
		case models.SyncSyncing:
			summary.Syncing++
		case models.SyncSynced:
			summary.Synced++
		case models.SyncFailed:
			summary.Failed++
		}
	}

	RespondOK(c, gin.H{"entries": entries, "summary": summary})
}

// Sync replays the queue within the request. A partial run still reports
// what it managed to sync.
func (h *OfflineHandler) Sync(c *gin.Context) {
	result, err := h.replayer.Replay(c.Request.Context())
	if err != nil {
		h.log.Error("Offline sync failed", "error", err, "run_id", result.RunID, "synced", result.Synced)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  APIError{Message: err.Error(), Code: "offline_sync_failed"},
			"result": result,
		})
		return
	}
	RespondOK(c, result)
}
