// Package targeting holds the error taxonomy shared by the targeting engine
// stages. The stages themselves live in subpackages.
package targeting

import (
	"errors"
	"fmt"
	"strings"

	"screening/internal/targeting/models"
)

// ErrUnknownPostcode is wrapped by GeocodeError when the geocoder has no
// record of the postcode.
var ErrUnknownPostcode = errors.New("unknown postcode")

// GeocodeError is fatal to a run: no catchment can be computed.
type GeocodeError struct {
	Postcode   string
	Underlying error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("geocode postcode %q: %v", e.Postcode, e.Underlying)
}

func (e *GeocodeError) Unwrap() error {
	return e.Underlying
}

// UnknownPostcode reports whether the geocoder rejected the postcode rather
// than failing to answer.
func (e *GeocodeError) UnknownPostcode() bool {
	return errors.Is(e.Underlying, ErrUnknownPostcode)
}

// QueryError is a failed population read for one area unit.
type QueryError struct {
	AreaCode   string
	Underlying error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query population for area %s: %v", e.AreaCode, e.Underlying)
}

func (e *QueryError) Unwrap() error {
	return e.Underlying
}

// QueryFailureThresholdError aborts a run when too many area unit queries fail.
type QueryFailureThresholdError struct {
	Failed   int
	Total    int
	MaxRatio float64
	Errors   []*QueryError
}

func (e *QueryFailureThresholdError) Error() string {
	return fmt.Sprintf("population queries failed for %d of %d area units (max ratio %.2f)", e.Failed, e.Total, e.MaxRatio)
}

func (e *QueryFailureThresholdError) Unwrap() []error {
	errs := make([]error, 0, len(e.Errors))
	for _, qe := range e.Errors {
		errs = append(errs, qe)
	}
	return errs
}

// InvalidWeightsError is a configuration bug: quintile weights or uptake
// are unusable.
type InvalidWeightsError struct {
	Weights [models.NumQuintiles]int
	Reason  string
}

func (e *InvalidWeightsError) Error() string {
	return fmt.Sprintf("invalid invitation parameters %v: %s", e.Weights, e.Reason)
}

// ShortfallWarning reports that supply could not meet the target. It is
// informational and never returned as an error from a run.
type ShortfallWarning struct {
	Requested     int
	Allocated     int
	Redistributed int
	// ShortByQuintile is indexed by quintile-1.
	ShortByQuintile [models.NumQuintiles]int
}

func (w *ShortfallWarning) Error() string {
	return w.String()
}

func (w *ShortfallWarning) String() string {
	if w.Allocated >= w.Requested {
		return fmt.Sprintf("quintile shortfall of %d redistributed; target of %d met", w.Redistributed, w.Requested)
	}
	return fmt.Sprintf("invitable population exhausted: allocated %d of %d requested", w.Allocated, w.Requested)
}

// PartialCommitError means resident updates were attempted but the clinic
// write failed, leaving residents marked without clinic bookkeeping.
type PartialCommitError struct {
	BatchID    string
	ClinicID   string
	Succeeded  []string
	Failed     []string
	Underlying error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("batch %s: %d residents marked but clinic %s update failed: %v",
		e.BatchID, len(e.Succeeded), e.ClinicID, e.Underlying)
}

func (e *PartialCommitError) Unwrap() error {
	return e.Underlying
}

// Summary lists failed resident ids for reconciliation logs.
func (e *PartialCommitError) Summary() string {
	if len(e.Failed) == 0 {
		return "no resident failures"
	}
	return "failed residents: " + strings.Join(e.Failed, ",")
}
