package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/ThiagoRGoveia/section3-compliance/internal/database"
	"github.com/ThiagoRGoveia/section3-compliance/internal/geo"
	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

type EligibilityStore interface {
	ListProjectLocations(ctx context.Context, projectID string) ([]models.ProjectLocation, error)
	InsertProjectLocation(ctx context.Context, location *models.ProjectLocation) (string, error)
	ListWorkerAddresses(ctx context.Context) ([]models.WorkerAddress, error)
	UpdateWorkerAddressVerification(ctx context.Context, id string, status models.VerificationStatus, confirmed bool) error
}

type EligibilityHandler struct {
	log   *logger.Logger
	store EligibilityStore
}

func NewEligibilityHandler(log *logger.Logger, store EligibilityStore) *EligibilityHandler {
	return &EligibilityHandler{
		log:   log.With("handler", "EligibilityHandler"),
		store: store,
	}
}

type eligibilitySummary struct {
	Total    int `json:"total"`
	Eligible int `json:"eligible"`
	Flagged  int `json:"flagged"`
	Pending  int `json:"pending"`
	InRadius int `json:"within_radius"`
}

// List checks every worker address against the nearest location of the
// project, or of any project when project_id is absent.
func (h *EligibilityHandler) List(c *gin.Context) {
	projectID, err := uuidParam("project_id", c.Query("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}

	var (
		locations []models.ProjectLocation
		addresses []models.WorkerAddress
	)
	eg, egCtx := errgroup.WithContext(c.Request.Context())
	eg.Go(func() error {
		var err error
		locations, err = h.store.ListProjectLocations(egCtx, projectID)
		return err
	})
	eg.Go(func() error {
		var err error
		addresses, err = h.store.ListWorkerAddresses(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		h.log.Error("List eligibility failed", "error", err, "project_id", projectID)
		RespondError(c, http.StatusInternalServerError, "load_eligibility_failed", err)
		return
	}

	checks := geo.AssessAll(addresses, locations)
	var summary eligibilitySummary
	summary.Total = len(checks)
	for _, check := range checks {
		switch check.Status {
		case models.EligibilityEligible:
			summary.Eligible++
		case models.EligibilityFlagged:
			summary.Flagged++
		default:
			summary.Pending++
		}
		if check.WithinRadius {
			summary.InRadius++
		}
	}

	RespondOK(c, gin.H{
		"locations": locations,
		"checks":    checks,
		"summary":   summary,
	})
}

type addressVerificationRequest struct {
	Status               models.VerificationStatus `json:"verification_status" binding:"required,oneof=pending verified flagged"`
	EligibilityConfirmed bool                      `json:"eligibility_confirmed"`
}

// UpdateAddress records the outcome of a manual address review.
func (h *EligibilityHandler) UpdateAddress(c *gin.Context) {
	id, err := uuidParam("id", c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var req addressVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if req.EligibilityConfirmed && req.Status != models.VerificationVerified {
		RespondError(c, http.StatusBadRequest, "invalid_body",
			fmt.Errorf("eligibility can only be confirmed on a verified address, got %q", req.Status))
		return
	}

	err = h.store.UpdateWorkerAddressVerification(c.Request.Context(), id, req.Status, req.EligibilityConfirmed)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "address_not_found", err)
			return
		}
		h.log.Error("Update address failed", "error", err, "id", id)
		RespondError(c, http.StatusInternalServerError, "update_address_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"id":                    id,
		"verification_status":   req.Status,
		"eligibility_confirmed": req.EligibilityConfirmed,
	})
}

type projectLocationRequest struct {
	ProjectID          string   `json:"project_id" binding:"required"`
	Address            string   `json:"address" binding:"required"`
	Latitude           *float64 `json:"latitude" binding:"required,gte=-90,lte=90"`
	Longitude          *float64 `json:"longitude" binding:"required,gte=-180,lte=180"`
	ServiceRadiusMiles *float64 `json:"service_radius_miles" binding:"omitempty,gt=0"`
	CensusTract        string   `json:"census_tract"`
	PovertyRate        *float64 `json:"poverty_rate" binding:"omitempty,gte=0,lte=100"`
	MedianIncome       *float64 `json:"median_income" binding:"omitempty,gte=0"`
}

// CreateLocation registers a project site. Coordinates are taken as given;
// the radius defaults to geo.DefaultServiceRadiusMiles.
func (h *EligibilityHandler) CreateLocation(c *gin.Context) {
	var req projectLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	projectID, err := uuidParam("project_id", req.ProjectID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}

	location := &models.ProjectLocation{
		ProjectID:          projectID,
		Latitude:           *req.Latitude,
		Longitude:          *req.Longitude,
		Address:            req.Address,
		ServiceRadiusMiles: geo.DefaultServiceRadiusMiles,
		CensusTract:        req.CensusTract,
		PovertyRate:        req.PovertyRate,
		MedianIncome:       req.MedianIncome,
	}
	if req.ServiceRadiusMiles != nil {
		location.ServiceRadiusMiles = *req.ServiceRadiusMiles
	}

	id, err := h.store.InsertProjectLocation(c.Request.Context(), location)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			RespondError(c, http.StatusNotFound, "project_not_found", err)
			return
		}
		h.log.Error("Create project location failed", "error", err, "project_id", projectID)
		RespondError(c, http.StatusInternalServerError, "insert_project_location_failed", err)
		return
	}
	location.ID = id

	c.JSON(http.StatusCreated, gin.H{"location": location})
}
