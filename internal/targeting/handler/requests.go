package handler

import (
	"fmt"
	"strings"

	"screening/internal/targeting/models"
	dErrors "screening/pkg/domain-errors"
)

// RunRequest is the body of POST /targeting/runs.
type RunRequest struct {
	ClinicID                 string  `json:"clinic_id"`
	ClinicName               string  `json:"clinic_name"`
	Postcode                 string  `json:"postcode"`
	RadiusMiles              float64 `json:"radius_miles"`
	TargetCount              int     `json:"target_count"`
	TargetFillPercentage     *int    `json:"target_fill_percentage,omitempty"`
	AppointmentsRemaining    int     `json:"appointments_remaining"`
	TargetAppointmentsToFill int     `json:"target_appointments_to_fill"`
}

// Validate implements httputil.Validatable. Range checks that depend on
// configuration are left to the service.
func (r *RunRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.ClinicID = strings.TrimSpace(r.ClinicID)
	r.ClinicName = strings.TrimSpace(r.ClinicName)
	r.Postcode = models.NormalisePostcode(r.Postcode)
	if r.ClinicID == "" {
		return dErrors.New(dErrors.CodeValidation, "clinic_id is required")
	}
	if r.TargetCount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "target_count must be positive")
	}
	if r.TargetCount > models.MaxTargetCount {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("target_count must be at most %d", models.MaxTargetCount))
	}
	if r.RadiusMiles <= 0 {
		return dErrors.New(dErrors.CodeValidation, "radius_miles must be positive")
	}
	return nil
}

func (r *RunRequest) toModel() models.RunRequest {
	return models.RunRequest{
		ClinicID:                 r.ClinicID,
		ClinicName:               r.ClinicName,
		Postcode:                 r.Postcode,
		RadiusMiles:              r.RadiusMiles,
		TargetCount:              r.TargetCount,
		TargetFillPercentage:     r.TargetFillPercentage,
		AppointmentsRemaining:    r.AppointmentsRemaining,
		TargetAppointmentsToFill: r.TargetAppointmentsToFill,
	}
}

// QuintilesRequest is the body of PUT /invitation-parameters/quintiles,
// most deprived quintile first.
type QuintilesRequest struct {
	QuintileWeights []int `json:"quintile_weights"`
}

func (r *QuintilesRequest) Validate() error {
	if len(r.QuintileWeights) != models.NumQuintiles {
		return dErrors.New(dErrors.CodeValidation, "quintile_weights must have exactly 5 entries")
	}
	return nil
}

func (r *QuintilesRequest) weights() [models.NumQuintiles]int {
	var w [models.NumQuintiles]int
	copy(w[:], r.QuintileWeights)
	return w
}

type ForecastUptakeRequest struct {
	ForecastUptake *float64 `json:"forecast_uptake"`
}

func (r *ForecastUptakeRequest) Validate() error {
	if r.ForecastUptake == nil {
		return dErrors.New(dErrors.CodeValidation, "forecast_uptake is required")
	}
	return nil
}

type TargetPercentageRequest struct {
	TargetPercentage *int `json:"target_percentage"`
}

func (r *TargetPercentageRequest) Validate() error {
	if r.TargetPercentage == nil {
		return dErrors.New(dErrors.CodeValidation, "target_percentage is required")
	}
	return nil
}
