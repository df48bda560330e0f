// Package models holds the targeting engine's data types.
package models

import (
	"strings"
	"time"
)

// AreaUnit is one fixed geographic cell of reference data.
type AreaUnit struct {
	Code      string  `json:"code" db:"code"`
	Name      string  `json:"name" db:"name"`
	Easting   int     `json:"easting" db:"easting"`
	Northing  int     `json:"northing" db:"northing"`
	Decile    int     `json:"decile" db:"decile"`
	Moderator float64 `json:"moderator" db:"moderator"`
}

// Quintile returns the deprivation quintile of the unit's decile.
func (a AreaUnit) Quintile() Quintile {
	return QuintileForDecile(a.Decile)
}

// GridReference is an OSGB easting/northing pair in metres.
type GridReference struct {
	Easting  float64 `json:"easting"`
	Northing float64 `json:"northing"`
}

// CatchmentUnit is an area unit inside a catchment with its distance from
// the clinic.
type CatchmentUnit struct {
	AreaUnit
	DistanceMiles float64 `json:"distance_miles"`
}

// Quintile is a deprivation band 1..5; 1 is most deprived.
type Quintile int

const NumQuintiles = 5

// QuintileForDecile maps deciles 1-2 to Q1 through 9-10 to Q5.
// Out of range deciles return 0.
func QuintileForDecile(decile int) Quintile {
	if decile < 1 || decile > 10 {
		return 0
	}
	return Quintile((decile + 1) / 2)
}

// Valid reports whether q is in 1..5.
func (q Quintile) Valid() bool {
	return q >= 1 && q <= NumQuintiles
}

// Index is the zero-based slot of q in weight arrays.
func (q Quintile) Index() int {
	return int(q) - 1
}

// ResidentRecord is one person linked to exactly one area unit.
type ResidentRecord struct {
	PersonID              string     `json:"person_id" db:"person_id"`
	AreaCode              string     `json:"area_code" db:"area_code"`
	Invited               bool       `json:"invited" db:"invited"`
	IdentifiedToBeInvited bool       `json:"identified_to_be_invited" db:"identified_to_be_invited"`
	DateOfDeath           *time.Time `json:"date_of_death,omitempty" db:"date_of_death"`
	RemovalDate           *time.Time `json:"removal_date,omitempty" db:"removal_date"`
	RemovalReason         *string    `json:"removal_reason,omitempty" db:"removal_reason"`
	SupersededBy          *string    `json:"superseded_by,omitempty" db:"superseded_by"`
	BatchID               *string    `json:"batch_id,omitempty" db:"batch_id"`
}

func (r ResidentRecord) dead() bool {
	return r.DateOfDeath != nil
}

func (r ResidentRecord) removed() bool {
	return r.RemovalDate != nil || (r.RemovalReason != nil && strings.TrimSpace(*r.RemovalReason) != "")
}

func (r ResidentRecord) superseded() bool {
	return r.SupersededBy != nil && strings.TrimSpace(*r.SupersededBy) != ""
}

// IsInvitable reports whether r may be selected: not dead, not removed, not
// superseded, and neither invited nor reserved.
func IsInvitable(r ResidentRecord) bool {
	return !r.dead() && !r.removed() && !r.superseded() && !r.Invited && !r.IdentifiedToBeInvited
}

// CountsAsEligible is the reporting notion of eligibility: alive and not
// removed, whatever the invitation state.
func CountsAsEligible(r ResidentRecord) bool {
	return !r.dead() && !r.removed()
}

// PopulationCounts are reporting counts for one area unit.
type PopulationCounts struct {
	EligibleCount int `json:"eligible_count"`
	InvitedCount  int `json:"invited_count"`
}

// Add folds r into the counts.
func (p *PopulationCounts) Add(r ResidentRecord) {
	if !CountsAsEligible(r) {
		return
	}
	p.EligibleCount++
	if r.Invited {
		p.InvitedCount++
	}
}

// Clinic is the clinic state the engine reads and updates.
type Clinic struct {
	ID                   string     `json:"id" db:"id"`
	Name                 string     `json:"name" db:"name"`
	ICBCode              string     `json:"icb_code" db:"icb_code"`
	Postcode             string     `json:"postcode" db:"postcode"`
	LastSelectedRange    float64    `json:"last_selected_range" db:"last_selected_range"`
	TargetFillPercentage int        `json:"target_fill_percentage" db:"target_fill_percentage"`
	InvitesSent          int        `json:"invites_sent" db:"invites_sent"`
	PrevInviteDate       *time.Time `json:"prev_invite_date,omitempty" db:"prev_invite_date"`
	Availability         int        `json:"availability" db:"availability"`
}

// ClinicInviteFields is the single clinic write made after a commit.
// InvitesSent is an increment, not an absolute value. Stores that record
// batches use BatchID to apply the increment once.
type ClinicInviteFields struct {
	BatchID              string
	TargetFillPercentage int
	LastSelectedRange    float64
	InvitesSent          int
	PrevInviteDate       time.Time
	Availability         int
}

// ClinicUpdate identifies the clinic and carries the values the committer
// needs to build ClinicInviteFields.
type ClinicUpdate struct {
	ClinicID                 string
	ClinicName               string
	TargetFillPercentage     int
	RadiusMiles              float64
	AppointmentsRemaining    int
	TargetAppointmentsToFill int
}

// InvitationParameters is the global allocation configuration.
type InvitationParameters struct {
	QuintileWeights  [NumQuintiles]int `json:"quintile_weights"`
	ForecastUptake   float64           `json:"forecast_uptake"`
	TargetPercentage int               `json:"target_percentage"`
}

// Segment is the invitable pool of one area unit.
type Segment struct {
	Unit      AreaUnit
	Residents []ResidentRecord
}

// QuintileAllocation reports how one quintile's share was filled.
type QuintileAllocation struct {
	Quintile  Quintile `json:"quintile"`
	Weight    int      `json:"weight"`
	Share     int      `json:"share"`
	Available int      `json:"available"`
	Allocated int      `json:"allocated"`
}

// UnitAllocation is the number of residents taken from one area unit.
type UnitAllocation struct {
	AreaCode  string   `json:"area_code"`
	Quintile  Quintile `json:"quintile"`
	Moderator float64  `json:"moderator"`
	Available int      `json:"available"`
	Allocated int      `json:"allocated"`
}
