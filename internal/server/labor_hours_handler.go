package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/internal/parser"
)

type LaborHourStore interface {
	ListLaborHours(ctx context.Context, filter models.LaborHoursFilter) ([]models.LaborHourRecord, error)
	InsertLaborHour(ctx context.Context, record *models.LaborHourRecord) (string, error)
	VerifyLaborHour(ctx context.Context, id string) error
}

type LaborHourHandler struct {
	log   *logger.Logger
	store LaborHourStore
}

func NewLaborHourHandler(log *logger.Logger, store LaborHourStore) *LaborHourHandler {
	return &LaborHourHandler{
		log:   log.With("handler", "LaborHourHandler"),
		store: store,
	}
}

// List returns the stored entries matching project_id, from and to, oldest
// work date first.
func (h *LaborHourHandler) List(c *gin.Context) {
	filter, err := filterFromQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return
	}

	records, err := h.store.ListLaborHours(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("List labor hours failed", "error", err, "project_id", filter.ProjectID)
		RespondError(c, http.StatusInternalServerError, "load_labor_hours_failed", err)
		return
	}
	if records == nil {
		records = []models.LaborHourRecord{}
	}

	RespondOK(c, gin.H{"labor_hours": records, "count": len(records)})
}

func (h *LaborHourHandler) Create(c *gin.Context) {
	var input parser.LaborHourInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	record, err := input.Record()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_labor_hour", err)
		return
	}

	id, err := h.store.InsertLaborHour(c.Request.Context(), record)
	if err != nil {
		h.log.Error("Create labor hour failed", "error", err, "project_id", record.ProjectID)
		RespondError(c, http.StatusInternalServerError, "insert_labor_hour_failed", err)
		return
	}
	record.ID = id

	c.JSON(http.StatusCreated, gin.H{"labor_hour": record})
}

func (h *LaborHourHandler) Verify(c *gin.Context) {
	id, err := uuidParam("id", c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if err := h.store.VerifyLaborHour(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "labor_hour_not_found", err)
			return
		}
		h.log.Error("Verify labor hour failed", "error", err, "id", id)
		RespondError(c, http.StatusInternalServerError, "verify_labor_hour_failed", err)
		return
	}
	RespondOK(c, gin.H{"id": id, "verified": true})
}
