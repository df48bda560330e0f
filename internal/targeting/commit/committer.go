// Package commit persists a selection: residents are reserved one by one and
// the clinic record is updated once afterwards.
package commit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"screening/internal/targeting"
	"screening/internal/targeting/metrics"
	"screening/internal/targeting/models"
	"screening/pkg/requestcontext"
)

const (
	DefaultConcurrency = 100
	DefaultCallTimeout = 5 * time.Second

	// BatchIDPrefix marks invitation batch ids.
	BatchIDPrefix = "IB-"
)

// ResidentUpdater reserves one resident. Re-marking an already identified
// resident must succeed and keep the original batch id.
type ResidentUpdater interface {
	MarkIdentified(ctx context.Context, personID, areaCode, batchID string) error
}

// ClinicUpdater applies the post-commit clinic write.
type ClinicUpdater interface {
	UpdateAfterInvite(ctx context.Context, clinicID, clinicName string, fields models.ClinicInviteFields) error
}

// Committer marks selected residents and updates the clinic.
type Committer struct {
	residents   ResidentUpdater
	clinics     ClinicUpdater
	concurrency int
	callTimeout time.Duration
	newBatchID  func() string
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Committer)

func WithConcurrency(n int) Option {
	return func(c *Committer) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(c *Committer) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithBatchIDGenerator overrides batch id generation, for tests.
func WithBatchIDGenerator(fn func() string) Option {
	return func(c *Committer) {
		if fn != nil {
			c.newBatchID = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Committer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Committer) {
		c.metrics = m
	}
}

func New(residents ResidentUpdater, clinics ClinicUpdater, opts ...Option) (*Committer, error) {
	if residents == nil {
		return nil, errors.New("resident updater is required")
	}
	if clinics == nil {
		return nil, errors.New("clinic updater is required")
	}
	c := &Committer{
		residents:   residents,
		clinics:     clinics,
		concurrency: DefaultConcurrency,
		callTimeout: DefaultCallTimeout,
		newBatchID:  NewBatchID,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewBatchID returns a fresh invitation batch id.
func NewBatchID() string {
	return BatchIDPrefix + uuid.NewString()
}

// Commit reserves every selected resident concurrently and settles all of
// them before touching the clinic. Resident failures are reported in the
// result, not as an error. A clinic write failure returns the result together
// with *targeting.PartialCommitError.
func (c *Committer) Commit(ctx context.Context, selected []models.ResidentRecord, update models.ClinicUpdate) (*models.BatchResult, error) {
	batchID := c.newBatchID()
	errs := make([]error, len(selected))

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, r := range selected {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
			defer cancel()
			errs[i] = c.residents.MarkIdentified(callCtx, r.PersonID, r.AreaCode, batchID)
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BatchResult{
		BatchID:   batchID,
		Succeeded: make([]string, 0, len(selected)),
	}
	for i, r := range selected {
		if errs[i] != nil {
			result.Failed = append(result.Failed, models.FailedUpdate{
				PersonID: r.PersonID,
				AreaCode: r.AreaCode,
				Reason:   errs[i].Error(),
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, r.PersonID)
	}
	c.metrics.AddCommitted(len(result.Succeeded), len(result.Failed))
	if len(result.Failed) > 0 {
		c.logger.WarnContext(ctx, "some residents could not be marked",
			"batch_id", batchID,
			"failed", len(result.Failed),
			"succeeded", len(result.Succeeded),
		)
	}

	fields := models.ClinicInviteFields{
		BatchID:              batchID,
		TargetFillPercentage: update.TargetFillPercentage,
		LastSelectedRange:    update.RadiusMiles,
		InvitesSent:          len(result.Succeeded),
		PrevInviteDate:       requestcontext.Now(ctx),
		Availability:         update.AppointmentsRemaining - update.TargetAppointmentsToFill,
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()
	if err := c.clinics.UpdateAfterInvite(callCtx, update.ClinicID, update.ClinicName, fields); err != nil {
		c.logger.ErrorContext(ctx, "clinic update failed after residents were marked",
			"batch_id", batchID,
			"clinic_id", update.ClinicID,
			"succeeded", len(result.Succeeded),
			"error", err,
		)
		return result, &targeting.PartialCommitError{
			BatchID:    batchID,
			ClinicID:   update.ClinicID,
			Succeeded:  result.Succeeded,
			Failed:     result.FailedIDs(),
			Underlying: err,
		}
	}
	return result, nil
}
