package geo

import (
	"math"

	"github.com/ThiagoRGoveia/section3-compliance/internal/models"
)

const (
	EarthRadiusMiles = 3959.0
	// DefaultServiceRadiusMiles applies to project locations created without
	// an explicit radius.
	DefaultServiceRadiusMiles = 5.0
)

// DistanceMiles is the great-circle (haversine) distance between two points.
func DistanceMiles(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	// Rounding can push a past 1 for near-antipodal points, and 1-a < 0 is NaN under Sqrt.
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusMiles * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func EligibilityStatus(address models.WorkerAddress) models.EligibilityStatus {
	switch {
	case address.VerificationStatus == models.VerificationVerified && address.EligibilityConfirmed:
		return models.EligibilityEligible
	case address.VerificationStatus == models.VerificationFlagged:
		return models.EligibilityFlagged
	default:
		return models.EligibilityPending
	}
}

// Assess checks one worker address against one project location. Addresses
// that were never geocoded get no distance and are never within radius.
func Assess(address models.WorkerAddress, location models.ProjectLocation) models.EligibilityCheck {
	check := models.EligibilityCheck{
		Address:   address,
		ProjectID: location.ProjectID,
		Status:    EligibilityStatus(address),
	}

	if address.Latitude == nil || address.Longitude == nil {
		return check
	}

	distance := DistanceMiles(*address.Latitude, *address.Longitude, location.Latitude, location.Longitude)
	check.DistanceMiles = &distance
	check.WithinRadius = distance <= location.ServiceRadiusMiles

	return check
}

// AssessAll pairs every address with the nearest location of the project.
func AssessAll(addresses []models.WorkerAddress, locations []models.ProjectLocation) []models.EligibilityCheck {
	checks := make([]models.EligibilityCheck, 0, len(addresses))
	for _, address := range addresses {
		var best *models.EligibilityCheck
		for _, location := range locations {
			check := Assess(address, location)
			if best == nil || closer(check, *best) {
				c := check
				best = &c
			}
		}
		if best == nil {
			best = &models.EligibilityCheck{Address: address, Status: EligibilityStatus(address)}
		}
		checks = append(checks, *best)
	}
	return checks
}

func closer(a, b models.EligibilityCheck) bool {
	if a.DistanceMiles == nil {
		return false
	}
	if b.DistanceMiles == nil {
		return true
	}
	return *a.DistanceMiles < *b.DistanceMiles
}
