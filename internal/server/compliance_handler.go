package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ThiagoRGoveia/section3-compliance/internal/logger"
	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/internal/reporting"
)

type ComplianceHandler struct {
	log      *logger.Logger
	reporter *reporting.Reporter
}

func NewComplianceHandler(log *logger.Logger, reporter *reporting.Reporter) *ComplianceHandler {
	return &ComplianceHandler{
		log:      log.With("handler", "ComplianceHandler"),
		reporter: reporter,
	}
}

func (h *ComplianceHandler) Dashboard(c *gin.Context) {
	projectID, err := uuidParam("project_id", c.Query("project_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_project_id", err)
		return
	}
	period, err := reporting.ParsePeriod(c.Query("period"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_period", err)
		return
	}

	report, err := h.reporter.Dashboard(c.Request.Context(), projectID, period)
	if err != nil {
		h.log.Error("Dashboard failed", "error", err, "project_id", projectID, "period", period)
		RespondError(c, http.StatusInternalServerError, "load_dashboard_failed", err)
		return
	}
	RespondOK(c, report)
}

func (h *ComplianceHandler) Metrics(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	metrics, err := h.reporter.Metrics(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("Metrics failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "load_metrics_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"metrics": metrics,
		"banner":  h.reporter.Aggregator().Banner(metrics),
	})
}

func (h *ComplianceHandler) Monthly(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	report, err := h.reporter.Monthly(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("Monthly failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "load_monthly_failed", err)
		return
	}
	RespondOK(c, report)
}

func (h *ComplianceHandler) Projects(c *gin.Context) {
	filter, ok := h.filter(c)
	if !ok {
		return
	}
	report, err := h.reporter.Projects(c.Request.Context(), filter)
	if err != nil {
		h.log.Error("Projects failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "load_projects_failed", err)
		return
	}
	RespondOK(c, report)
}

type classification struct {
	Rate     float64                 `json:"rate"`
	Required float64                 `json:"required"`
	Status   models.ComplianceStatus `json:"status"`
	PassFail models.PassFail         `json:"pass_fail"`
	Risk     models.RiskLevel        `json:"risk_level"`
}

// Classify exposes both classifiers for a rate. required defaults to the
// configured Section 3 requirement.
func (h *ComplianceHandler) Classify(c *gin.Context) {
	rate, err := percentParam("rate", c.Query("rate"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_rate", err)
		return
	}

	aggregator := h.reporter.Aggregator()
	required := aggregator.Policy().Section3RequiredPercent
	if raw := c.Query("required"); raw != "" {
		if required, err = percentParam("required", raw); err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_required", err)
			return
		}
	}

	RespondOK(c, classification{
		Rate:     rate,
		Required: required,
		Status:   aggregator.ClassifyCompliance(rate, required),
		PassFail: aggregator.ClassifyPassFail(rate, required),
		Risk:     aggregator.AssessRisk(rate),
	})
}

func (h *ComplianceHandler) filter(c *gin.Context) (models.LaborHoursFilter, bool) {
	filter, err := filterFromQuery(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_filter", err)
		return filter, false
	}
	return filter, true
}
