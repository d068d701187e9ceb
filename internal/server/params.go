package server

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
	"github.com/ThiagoRGoveia/section3-compliance/internal/parser"
)

// uuidParam returns the named value normalized, or "" when it is absent.
func uuidParam(name, raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", name, err)
	}
	return id.String(), nil
}

// dateParam returns the zero time when raw is empty.
func dateParam(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := parser.ParseDate(raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return t, nil
}

// filterFromQuery reads project_id, from and to. Both dates are inclusive.
func filterFromQuery(c *gin.Context) (models.LaborHoursFilter, error) {
	var filter models.LaborHoursFilter

	projectID, err := uuidParam("project_id", c.Query("project_id"))
	if err != nil {
		return filter, err
	}
	filter.ProjectID = projectID

	if filter.From, err = dateParam("from", c.Query("from")); err != nil {
		return filter, err
	}
	if filter.To, err = dateParam("to", c.Query("to")); err != nil {
		return filter, err
	}

	if !filter.From.IsZero() && !filter.To.IsZero() && filter.To.Before(filter.From) {
		return filter, errors.New("to must not be before from")
	}

	return filter, nil
}

func percentParam(name, raw string) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid %s: must be a finite number", name)
	}
	return v, nil
}
