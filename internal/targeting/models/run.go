package models

import (
	"strings"
	"time"
)

// Allocation is the output of the quota allocator.
type Allocation struct {
	Requested           int                  `json:"requested"`
	Allocated           int                  `json:"allocated"`
	Selected            []ResidentRecord     `json:"-"`
	Quintiles           []QuintileAllocation `json:"quintiles"`
	Units               []UnitAllocation     `json:"units"`
	Redistributed       int                  `json:"redistributed"`
	ExpectedAcceptances float64              `json:"expected_acceptances"`
	// UnrankedUnits have no valid decile and were left out of selection.
	UnrankedUnits []string `json:"unranked_units,omitempty"`
}

// Exhausted reports whether supply ran out before the target was met.
func (a *Allocation) Exhausted() bool {
	return a.Allocated < a.Requested
}

// FailedUpdate is one resident whose commit did not land.
type FailedUpdate struct {
	PersonID string `json:"person_id"`
	AreaCode string `json:"area_code"`
	Reason   string `json:"reason"`
}

// BatchResult enumerates every resident of a commit as succeeded or failed.
type BatchResult struct {
	BatchID   string         `json:"batch_id"`
	Succeeded []string       `json:"succeeded"`
	Failed    []FailedUpdate `json:"failed"`
}

// FailedIDs returns the person ids of failed updates.
func (b *BatchResult) FailedIDs() []string {
	ids := make([]string, 0, len(b.Failed))
	for _, f := range b.Failed {
		ids = append(ids, f.PersonID)
	}
	return ids
}

// MaxTargetCount bounds RunRequest.TargetCount. It keeps quota arithmetic
// well inside int range and is far above any clinic's capacity.
const MaxTargetCount = 1_000_000

// RunRequest is the input of one targeting run. A nil TargetFillPercentage
// falls back to the stored default target percentage.
type RunRequest struct {
	ClinicID                 string
	ClinicName               string
	Postcode                 string
	RadiusMiles              float64
	TargetCount              int
	TargetFillPercentage     *int
	AppointmentsRemaining    int
	TargetAppointmentsToFill int
}

// NormalisePostcode trims and upper-cases a postcode.
func NormalisePostcode(pc string) string {
	return strings.ToUpper(strings.TrimSpace(pc))
}

// SkippedUnit is an area unit whose population query failed during a run.
type SkippedUnit struct {
	AreaCode string `json:"area_code"`
	Reason   string `json:"reason"`
}

// RunResult is the full outcome of a targeting run.
type RunResult struct {
	BatchID             string               `json:"batch_id"`
	ClinicID            string               `json:"clinic_id"`
	Requested           int                  `json:"requested"`
	CatchmentUnits      int                  `json:"catchment_units"`
	Quintiles           []QuintileAllocation `json:"quintiles"`
	Units               []UnitAllocation     `json:"units"`
	ExpectedAcceptances float64              `json:"expected_acceptances"`
	Succeeded           []string             `json:"succeeded"`
	Failed              []FailedUpdate       `json:"failed"`
	SkippedUnits        []SkippedUnit        `json:"skipped_units,omitempty"`
	Warnings            []string             `json:"warnings,omitempty"`
	ClinicUpdated       bool                 `json:"clinic_updated"`
	CompletedAt         time.Time            `json:"completed_at"`
}

// CatchmentEntry is one in-range unit of a catchment report.
type CatchmentEntry struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Decile        int     `json:"decile"`
	Moderator     float64 `json:"moderator"`
	DistanceMiles float64 `json:"distance_miles"`
	PopulationCounts
}

// CatchmentReport lists units in range of a postcode with population counts.
type CatchmentReport struct {
	Postcode      string           `json:"postcode"`
	RadiusMiles   float64          `json:"radius_miles"`
	Units         []CatchmentEntry `json:"units"`
	TotalEligible int              `json:"total_eligible"`
	TotalInvited  int              `json:"total_invited"`
	SkippedUnits  []SkippedUnit    `json:"skipped_units,omitempty"`
}

// BatchCommittedEvent is published after a commit lands.
type BatchCommittedEvent struct {
	BatchID     string    `json:"batch_id"`
	ClinicID    string    `json:"clinic_id"`
	ClinicName  string    `json:"clinic_name"`
	PersonIDs   []string  `json:"person_ids"`
	CommittedAt time.Time `json:"committed_at"`
}

// EventTypeBatchCommitted labels BatchCommittedEvent on the wire.
const EventTypeBatchCommitted = "invitation_batch_committed"
