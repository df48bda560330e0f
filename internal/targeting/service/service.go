// Package service composes the targeting stages into a run and serves the
// supporting catchment, clinic and parameter operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"screening/internal/targeting"
	"screening/internal/targeting/catchment"
	"screening/internal/targeting/commit"
	"screening/internal/targeting/eligibility"
	"screening/internal/targeting/metrics"
	"screening/internal/targeting/models"
	"screening/internal/targeting/quota"
	dErrors "screening/pkg/domain-errors"
	"screening/pkg/platform/sentinel"
	"screening/pkg/requestcontext"
)

const tracerName = "screening/internal/targeting/service"

// DefaultCallTimeout bounds a single parameter or clinic lookup.
const DefaultCallTimeout = 5 * time.Second

// ParametersStore holds the global invitation parameters.
type ParametersStore interface {
	Get(ctx context.Context) (models.InvitationParameters, error)
	UpdateQuintiles(ctx context.Context, weights [models.NumQuintiles]int) error
	UpdateForecastUptake(ctx context.Context, uptake float64) error
	UpdateTargetPercentage(ctx context.Context, pct int) error
}

// ClinicReader looks up a clinic by id, and by name when one is given.
type ClinicReader interface {
	Get(ctx context.Context, clinicID, clinicName string) (*models.Clinic, error)
}

// BatchPublisher announces committed batches.
type BatchPublisher interface {
	PublishBatch(ctx context.Context, event models.BatchCommittedEvent) error
}

// Service runs the targeting pipeline. It holds no state between runs.
type Service struct {
	resolver  *catchment.Resolver
	filter    *eligibility.Filter
	committer *commit.Committer
	params    ParametersStore
	clinics   ClinicReader
	publisher BatchPublisher
	randomise bool
	shuffle   func([]models.ResidentRecord)

	callTimeout time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

type Option func(*Service)

// WithPublisher enables batch events.
func WithPublisher(p BatchPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithRandomSelection shuffles each unit's invitable residents before
// allocation so the chosen residents are a random sample of the unit.
func WithRandomSelection(on bool) Option {
	return func(s *Service) {
		s.randomise = on
	}
}

// WithShuffler replaces the shuffle used by random selection, for tests.
func WithShuffler(fn func([]models.ResidentRecord)) Option {
	return func(s *Service) {
		if fn != nil {
			s.shuffle = fn
		}
	}
}

// WithCallTimeout bounds each parameter and clinic lookup.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func New(
	resolver *catchment.Resolver,
	filter *eligibility.Filter,
	committer *commit.Committer,
	params ParametersStore,
	clinics ClinicReader,
	opts ...Option,
) (*Service, error) {
	if resolver == nil {
		return nil, errors.New("catchment resolver is required")
	}
	if filter == nil {
		return nil, errors.New("eligibility filter is required")
	}
	if committer == nil {
		return nil, errors.New("committer is required")
	}
	if params == nil {
		return nil, errors.New("parameters store is required")
	}
	if clinics == nil {
		return nil, errors.New("clinic reader is required")
	}
	s := &Service{
		resolver:    resolver,
		filter:      filter,
		committer:   committer,
		params:      params,
		clinics:     clinics,
		randomise:   true,
		shuffle:     shuffleResidents,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func shuffleResidents(rs []models.ResidentRecord) {
	rand.Shuffle(len(rs), func(i, j int) { rs[i], rs[j] = rs[j], rs[i] })
}

// Run executes one targeting run. Fatal failures return no result. Once
// residents have been committed a result is always returned; a failed
// clinic write is reported as *targeting.PartialCommitError alongside it.
func (s *Service) Run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "targeting.run", trace.WithAttributes(
		attribute.String("clinic_id", req.ClinicID),
		attribute.Int("target_count", req.TargetCount),
		attribute.Float64("radius_miles", req.RadiusMiles),
	))
	defer span.End()

	result, err := s.run(ctx, req)
	switch {
	case err == nil:
		s.metrics.IncrementOutcome(outcomeOf(result))
	case result != nil:
		s.metrics.IncrementOutcome("partial")
		span.RecordError(err)
	default:
		s.metrics.IncrementOutcome("failed")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func outcomeOf(r *models.RunResult) string {
	if len(r.Failed) > 0 {
		return "partial"
	}
	if len(r.Succeeded) < r.Requested {
		return "shortfall"
	}
	return "completed"
}

func (s *Service) run(ctx context.Context, req models.RunRequest) (*models.RunResult, error) {
	req.Postcode = models.NormalisePostcode(req.Postcode)
	if err := s.validateRunRequest(req); err != nil {
		return nil, err
	}

	params, err := s.loadParameters(ctx)
	if err != nil {
		return nil, err
	}
	// Stored parameters are checked before any population is read.
	if err := quota.Validate(params); err != nil {
		s.logger.ErrorContext(ctx, "stored invitation parameters are invalid", "error", err)
		return nil, err
	}
	if req.TargetFillPercentage == nil {
		pct := params.TargetPercentage
		req.TargetFillPercentage = &pct
	}

	clinic, err := s.loadClinic(ctx, req.ClinicID, req.ClinicName)
	if err != nil {
		return nil, err
	}
	if req.Postcode == "" {
		req.Postcode = models.NormalisePostcode(clinic.Postcode)
	}
	if req.Postcode == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "postcode is required")
	}
	if req.ClinicName == "" {
		req.ClinicName = clinic.Name
	}

	units, err := s.resolveCatchment(ctx, req.Postcode, req.RadiusMiles)
	if err != nil {
		return nil, err
	}

	snap, err := s.collect(ctx, units)
	if err != nil {
		return nil, err
	}

	if s.randomise {
		for _, seg := range snap.Segments {
			s.shuffle(seg.Residents)
		}
	}

	alloc, warning, err := s.allocate(ctx, req.TargetCount, snap.Segments, params)
	if err != nil {
		return nil, err
	}

	result := &models.RunResult{
		ClinicID:            req.ClinicID,
		Requested:           req.TargetCount,
		CatchmentUnits:      len(units),
		Quintiles:           alloc.Quintiles,
		Units:               alloc.Units,
		ExpectedAcceptances: alloc.ExpectedAcceptances,
		Succeeded:           []string{},
		Failed:              []models.FailedUpdate{},
	}
	for _, qe := range snap.Failed {
		result.SkippedUnits = append(result.SkippedUnits, models.SkippedUnit{AreaCode: qe.AreaCode, Reason: qe.Underlying.Error()})
	}
	if len(snap.Failed) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d of %d area units skipped after population query failures", len(snap.Failed), snap.Total))
	}
	if len(alloc.UnrankedUnits) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d area units have no valid decile and were not selected from", len(alloc.UnrankedUnits)))
	}
	if warning != nil {
		result.Warnings = append(result.Warnings, warning.String())
	}

	if len(alloc.Selected) == 0 {
		result.Warnings = append(result.Warnings, "no invitable residents selected; nothing committed")
		result.CompletedAt = requestcontext.Now(ctx)
		return result, nil
	}

	batch, commitErr := s.commit(ctx, alloc.Selected, req)
	result.BatchID = batch.BatchID
	result.Succeeded = batch.Succeeded
	result.Failed = batch.Failed
	result.ClinicUpdated = commitErr == nil
	result.CompletedAt = requestcontext.Now(ctx)
	if len(batch.Failed) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d of %d selected residents could not be marked", len(batch.Failed), len(alloc.Selected)))
	}

	var partial *targeting.PartialCommitError
	if errors.As(commitErr, &partial) {
		result.Warnings = append(result.Warnings, "clinic update failed: "+partial.Summary())
	}

	if len(batch.Succeeded) > 0 {
		s.publish(ctx, result, req, batch)
	}
	return result, commitErr
}

func (s *Service) validateRunRequest(req models.RunRequest) error {
	if req.ClinicID == "" {
		return dErrors.New(dErrors.CodeValidation, "clinic_id is required")
	}
	if req.TargetCount <= 0 {
		return dErrors.New(dErrors.CodeValidation, "target_count must be positive")
	}
	if req.TargetCount > models.MaxTargetCount {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("target_count must be at most %d", models.MaxTargetCount))
	}
	if err := s.resolver.ValidateRadius(req.RadiusMiles); err != nil {
		return err
	}
	if pct := req.TargetFillPercentage; pct != nil && (*pct < 0 || *pct > 100) {
		return dErrors.New(dErrors.CodeValidation, "target_fill_percentage must be between 0 and 100")
	}
	if req.AppointmentsRemaining < 0 || req.TargetAppointmentsToFill < 0 {
		return dErrors.New(dErrors.CodeValidation, "appointment counts must not be negative")
	}
	return nil
}

func (s *Service) loadParameters(ctx context.Context) (models.InvitationParameters, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	p, err := s.params.Get(ctx)
	if err != nil {
		return models.InvitationParameters{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load invitation parameters")
	}
	return p, nil
}

func (s *Service) loadClinic(ctx context.Context, clinicID, clinicName string) (*models.Clinic, error) {
	ctx, cancel := context.WithTimeout(ctx, s.callTimeout)
	defer cancel()
	c, err := s.clinics.Get(ctx, clinicID, clinicName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "clinic not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to load clinic")
	}
	return c, nil
}

func (s *Service) resolveCatchment(ctx context.Context, postcode string, radius float64) ([]models.CatchmentUnit, error) {
	ctx, span := s.tracer.Start(ctx, "targeting.catchment")
	defer span.End()
	defer s.observe("catchment", time.Now())

	units, err := s.resolver.Resolve(ctx, postcode, radius)
	if err != nil {
		span.RecordError(err)
		var ge *targeting.GeocodeError
		if errors.As(err, &ge) {
			return nil, err
		}
		if _, coded := dErrors.CodeOf(err); coded {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read area units")
	}
	span.SetAttributes(attribute.Int("units", len(units)))
	return units, nil
}

func (s *Service) collect(ctx context.Context, units []models.CatchmentUnit) (*eligibility.Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "targeting.eligibility")
	defer span.End()
	defer s.observe("eligibility", time.Now())

	snap, err := s.filter.Collect(ctx, units)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("invitable", snap.Invitable()),
		attribute.Int("failed_units", len(snap.Failed)),
	)
	return snap, nil
}

func (s *Service) allocate(ctx context.Context, target int, segments []models.Segment, params models.InvitationParameters) (*models.Allocation, *targeting.ShortfallWarning, error) {
	_, span := s.tracer.Start(ctx, "targeting.allocate")
	defer span.End()
	defer s.observe("allocate", time.Now())

	alloc, warning, err := quota.Allocate(target, segments, params.QuintileWeights, params.ForecastUptake)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	span.SetAttributes(attribute.Int("allocated", alloc.Allocated))
	if warning != nil {
		s.logger.WarnContext(ctx, "quota shortfall",
			"requested", warning.Requested,
			"allocated", warning.Allocated,
			"redistributed", warning.Redistributed,
		)
	}
	return alloc, warning, nil
}

func (s *Service) commit(ctx context.Context, selected []models.ResidentRecord, req models.RunRequest) (*models.BatchResult, error) {
	ctx, span := s.tracer.Start(ctx, "targeting.commit")
	defer span.End()
	defer s.observe("commit", time.Now())

	batch, err := s.committer.Commit(ctx, selected, models.ClinicUpdate{
		ClinicID:                 req.ClinicID,
		ClinicName:               req.ClinicName,
		TargetFillPercentage:     *req.TargetFillPercentage,
		RadiusMiles:              req.RadiusMiles,
		AppointmentsRemaining:    req.AppointmentsRemaining,
		TargetAppointmentsToFill: req.TargetAppointmentsToFill,
	})
	span.SetAttributes(
		attribute.String("batch_id", batch.BatchID),
		attribute.Int("succeeded", len(batch.Succeeded)),
		attribute.Int("failed", len(batch.Failed)),
	)
	if err != nil {
		span.RecordError(err)
	}
	s.logger.InfoContext(ctx, "invitation batch committed",
		"request_id", requestcontext.RequestID(ctx),
		"clinic_id", req.ClinicID,
		"batch_id", batch.BatchID,
		"succeeded", len(batch.Succeeded),
		"failed", len(batch.Failed),
	)
	return batch, err
}

// publish never fails the run; a lost event is reported as a warning.
func (s *Service) publish(ctx context.Context, result *models.RunResult, req models.RunRequest, batch *models.BatchResult) {
	if s.publisher == nil {
		return
	}
	event := models.BatchCommittedEvent{
		BatchID:     batch.BatchID,
		ClinicID:    req.ClinicID,
		ClinicName:  req.ClinicName,
		PersonIDs:   batch.Succeeded,
		CommittedAt: result.CompletedAt,
	}
	if err := s.publisher.PublishBatch(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish invitation batch",
			"batch_id", batch.BatchID,
			"clinic_id", req.ClinicID,
			"error", err,
		)
		result.Warnings = append(result.Warnings, "batch event not published: "+err.Error())
	}
}

func (s *Service) observe(stage string, start time.Time) {
	s.metrics.ObserveStage(stage, time.Since(start))
}

// Catchment reports the units within radiusMiles of postcode with their
// population counts, nearest first.
func (s *Service) Catchment(ctx context.Context, postcode string, radiusMiles float64) (*models.CatchmentReport, error) {
	postcode = models.NormalisePostcode(postcode)
	units, err := s.resolveCatchment(ctx, postcode, radiusMiles)
	if err != nil {
		return nil, err
	}

	codes := make([]string, len(units))
	for i, u := range units {
		codes[i] = u.Code
	}
	counts, failed, err := s.filter.Population(ctx, codes)
	if err != nil {
		return nil, err
	}

	report := &models.CatchmentReport{
		Postcode:    postcode,
		RadiusMiles: radiusMiles,
		Units:       make([]models.CatchmentEntry, 0, len(units)),
	}
	for _, qe := range failed {
		report.SkippedUnits = append(report.SkippedUnits, models.SkippedUnit{AreaCode: qe.AreaCode, Reason: qe.Underlying.Error()})
	}
	for _, u := range units {
		c, ok := counts[u.Code]
		if !ok {
			continue
		}
		report.Units = append(report.Units, models.CatchmentEntry{
			Code:             u.Code,
			Name:             u.Name,
			Decile:           u.Decile,
			Moderator:        u.Moderator,
			DistanceMiles:    roundTo(u.DistanceMiles, 2),
			PopulationCounts: c,
		})
		report.TotalEligible += c.EligibleCount
		report.TotalInvited += c.InvitedCount
	}
	sort.SliceStable(report.Units, func(i, j int) bool {
		if report.Units[i].DistanceMiles != report.Units[j].DistanceMiles {
			return report.Units[i].DistanceMiles < report.Units[j].DistanceMiles
		}
		return report.Units[i].Code < report.Units[j].Code
	})
	return report, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// Clinic returns clinic information. A non-empty name must match.
func (s *Service) Clinic(ctx context.Context, clinicID, clinicName string) (*models.Clinic, error) {
	if clinicID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "clinic id is required")
	}
	return s.loadClinic(ctx, clinicID, clinicName)
}
