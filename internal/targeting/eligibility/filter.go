// Package eligibility reads area unit populations and applies the
// invitability predicates.
package eligibility

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"screening/internal/targeting"
	"screening/internal/targeting/metrics"
	"screening/internal/targeting/models"
)

const (
	DefaultQueryConcurrency = 200
	DefaultStoreCallTimeout = 5 * time.Second
	DefaultMaxFailureRatio  = 0.1
)

// PopulationReader lists residents of one area unit through the area code
// index.
type PopulationReader interface {
	ListByAreaCode(ctx context.Context, areaCode string) ([]models.ResidentRecord, error)
}

// PopulationCounter is an optional PopulationReader extension that counts
// many units in one round trip.
type PopulationCounter interface {
	CountByAreaCodes(ctx context.Context, areaCodes []string) (map[string]models.PopulationCounts, error)
}

// Filter runs population queries for a catchment.
type Filter struct {
	reader          PopulationReader
	concurrency     int
	callTimeout     time.Duration
	maxFailureRatio float64
	logger          *slog.Logger
	metrics         *metrics.Metrics
}

type Option func(*Filter)

func WithConcurrency(n int) Option {
	return func(f *Filter) {
		if n > 0 {
			f.concurrency = n
		}
	}
}

func WithCallTimeout(d time.Duration) Option {
	return func(f *Filter) {
		if d > 0 {
			f.callTimeout = d
		}
	}
}

// WithMaxFailureRatio sets the fraction of failed unit queries tolerated
// before Collect aborts.
func WithMaxFailureRatio(r float64) Option {
	return func(f *Filter) {
		if r >= 0 && r <= 1 {
			f.maxFailureRatio = r
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		if logger != nil {
			f.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Filter) {
		f.metrics = m
	}
}

func New(reader PopulationReader, opts ...Option) (*Filter, error) {
	if reader == nil {
		return nil, errors.New("population reader is required")
	}
	f := &Filter{
		reader:          reader,
		concurrency:     DefaultQueryConcurrency,
		callTimeout:     DefaultStoreCallTimeout,
		maxFailureRatio: DefaultMaxFailureRatio,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// EligiblePopulation returns the invitable residents of one area unit. A unit
// with no residents yields an empty slice.
func (f *Filter) EligiblePopulation(ctx context.Context, areaCode string) ([]models.ResidentRecord, error) {
	records, err := f.list(ctx, areaCode)
	if err != nil {
		return nil, err
	}
	invitable := make([]models.ResidentRecord, 0, len(records))
	for _, r := range records {
		if models.IsInvitable(r) {
			invitable = append(invitable, r)
		}
	}
	return invitable, nil
}

func (f *Filter) list(ctx context.Context, areaCode string) ([]models.ResidentRecord, error) {
	callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
	defer cancel()

	records, err := f.reader.ListByAreaCode(callCtx, areaCode)
	if err != nil {
		return nil, &targeting.QueryError{AreaCode: areaCode, Underlying: err}
	}
	return records, nil
}

// Snapshot is the invitable population of a catchment plus the reporting
// counts gathered in the same pass.
type Snapshot struct {
	Segments []models.Segment
	Counts   map[string]models.PopulationCounts
	Failed   []*targeting.QueryError
	Total    int
}

// Invitable is the number of invitable residents across all segments.
func (s *Snapshot) Invitable() int {
	n := 0
	for _, seg := range s.Segments {
		n += len(seg.Residents)
	}
	return n
}

// Collect queries every unit concurrently. Failed units are skipped and
// reported; if the failed fraction exceeds the configured ratio the whole
// collect fails with *targeting.QueryFailureThresholdError. Segments are
// returned in the order of units.
func (f *Filter) Collect(ctx context.Context, units []models.CatchmentUnit) (*Snapshot, error) {
	type outcome struct {
		records []models.ResidentRecord
		err     *targeting.QueryError
	}
	outcomes := make([]outcome, len(units))

	// Queries settle independently: no WithContext, so one failure never
	// cancels the rest.
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for i, u := range units {
		g.Go(func() error {
			records, err := f.list(ctx, u.Code)
			if err != nil {
				var qe *targeting.QueryError
				errors.As(err, &qe)
				outcomes[i] = outcome{err: qe}
				return nil
			}
			outcomes[i] = outcome{records: records}
			return nil
		})
	}
	_ = g.Wait()

	snap := &Snapshot{
		Counts: make(map[string]models.PopulationCounts, len(units)),
		Total:  len(units),
	}
	for i, u := range units {
		o := outcomes[i]
		if o.err != nil {
			snap.Failed = append(snap.Failed, o.err)
			continue
		}
		var counts models.PopulationCounts
		invitable := make([]models.ResidentRecord, 0, len(o.records))
		for _, r := range o.records {
			counts.Add(r)
			if models.IsInvitable(r) {
				invitable = append(invitable, r)
			}
		}
		snap.Counts[u.Code] = counts
		snap.Segments = append(snap.Segments, models.Segment{Unit: u.AreaUnit, Residents: invitable})
	}

	f.metrics.AddQueryFailures(len(snap.Failed))
	if err := f.checkFailures(ctx, snap.Failed, len(units)); err != nil {
		return nil, err
	}
	return snap, nil
}

func (f *Filter) checkFailures(ctx context.Context, failed []*targeting.QueryError, total int) error {
	if len(failed) == 0 || total == 0 {
		return nil
	}
	ratio := float64(len(failed)) / float64(total)
	if ratio > f.maxFailureRatio {
		return &targeting.QueryFailureThresholdError{
			Failed:   len(failed),
			Total:    total,
			MaxRatio: f.maxFailureRatio,
			Errors:   failed,
		}
	}
	for _, qe := range failed {
		f.logger.WarnContext(ctx, "skipping area unit after population query failure",
			"area_code", qe.AreaCode,
			"error", qe.Underlying,
		)
	}
	return nil
}

// Population returns reporting counts per area code. When the reader
// implements PopulationCounter the counts come from one batched call;
// otherwise each unit is listed concurrently. Failed units are omitted
// from the map and returned separately.
func (f *Filter) Population(ctx context.Context, areaCodes []string) (map[string]models.PopulationCounts, []*targeting.QueryError, error) {
	if counter, ok := f.reader.(PopulationCounter); ok {
		callCtx, cancel := context.WithTimeout(ctx, f.callTimeout)
		defer cancel()
		counts, err := counter.CountByAreaCodes(callCtx, areaCodes)
		if err == nil {
			return fillZeroCounts(counts, areaCodes), nil, nil
		}
		f.logger.WarnContext(ctx, "batched population count failed; falling back to per-unit queries",
			"units", len(areaCodes),
			"error", err,
		)
	}

	var (
		mu     sync.Mutex
		counts = make(map[string]models.PopulationCounts, len(areaCodes))
		failed []*targeting.QueryError
	)
	var g errgroup.Group
	g.SetLimit(f.concurrency)
	for _, code := range areaCodes {
		g.Go(func() error {
			records, err := f.list(ctx, code)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				var qe *targeting.QueryError
				errors.As(err, &qe)
				failed = append(failed, qe)
				return nil
			}
			var c models.PopulationCounts
			for _, r := range records {
				c.Add(r)
			}
			counts[code] = c
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(failed, func(i, j int) bool { return failed[i].AreaCode < failed[j].AreaCode })
	f.metrics.AddQueryFailures(len(failed))
	if err := f.checkFailures(ctx, failed, len(areaCodes)); err != nil {
		return nil, nil, err
	}
	return counts, failed, nil
}

func fillZeroCounts(counts map[string]models.PopulationCounts, areaCodes []string) map[string]models.PopulationCounts {
	if counts == nil {
		counts = make(map[string]models.PopulationCounts, len(areaCodes))
	}
	for _, code := range areaCodes {
		if _, ok := counts[code]; !ok {
			counts[code] = models.PopulationCounts{}
		}
	}
	return counts
}
