// Package catchment resolves the area units within travel range of a clinic.
package catchment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"screening/internal/targeting"
	"screening/internal/targeting/metrics"
	"screening/internal/targeting/models"
	dErrors "screening/pkg/domain-errors"
)

// DefaultMaxRadiusMiles bounds accepted radii; the flat-grid distance is
// only reasonable for local catchments.
const DefaultMaxRadiusMiles = 100.0

// DefaultCallTimeout bounds a single page read.
const DefaultCallTimeout = 5 * time.Second

// maxPages guards against a pager that never terminates.
const maxPages = 100000

// Geocoder resolves a postcode to a grid reference. Implementations return an
// error wrapping targeting.ErrUnknownPostcode for unrecognised postcodes.
type Geocoder interface {
	Resolve(ctx context.Context, postcode string) (models.GridReference, error)
}

// AreaUnitPager reads the area unit reference set one page at a time. An
// empty token starts from the beginning; an empty next token means done.
type AreaUnitPager interface {
	Page(ctx context.Context, token string) (units []models.AreaUnit, next string, err error)
}

// Resolver turns a clinic postcode and radius into the units in range.
type Resolver struct {
	geocoder       Geocoder
	pager          AreaUnitPager
	maxRadiusMiles float64
	callTimeout    time.Duration
	logger         *slog.Logger
	metrics        *metrics.Metrics
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithMaxRadius(miles float64) Option {
	return func(r *Resolver) {
		if miles > 0 {
			r.maxRadiusMiles = miles
		}
	}
}

// WithCallTimeout bounds each page read. A read that times out fails the
// resolve like any other page error.
func WithCallTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// New constructs a Resolver.
func New(geocoder Geocoder, pager AreaUnitPager, opts ...Option) (*Resolver, error) {
	if geocoder == nil {
		return nil, errors.New("geocoder is required")
	}
	if pager == nil {
		return nil, errors.New("area unit pager is required")
	}
	r := &Resolver{
		geocoder:       geocoder,
		pager:          pager,
		maxRadiusMiles: DefaultMaxRadiusMiles,
		callTimeout:    DefaultCallTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ValidateRadius checks radiusMiles against the configured bounds.
func (r *Resolver) ValidateRadius(radiusMiles float64) error {
	if radiusMiles <= 0 {
		return dErrors.New(dErrors.CodeValidation, "radius must be greater than zero")
	}
	if radiusMiles > r.maxRadiusMiles {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("radius must be at most %g miles", r.maxRadiusMiles))
	}
	return nil
}

// Geocode resolves postcode, wrapping any failure in *targeting.GeocodeError.
func (r *Resolver) Geocode(ctx context.Context, postcode string) (models.GridReference, error) {
	postcode = models.NormalisePostcode(postcode)
	if postcode == "" {
		return models.GridReference{}, dErrors.New(dErrors.CodeValidation, "postcode is required")
	}
	grid, err := r.geocoder.Resolve(ctx, postcode)
	if err != nil {
		return models.GridReference{}, &targeting.GeocodeError{Postcode: postcode, Underlying: err}
	}
	return grid, nil
}

// Resolve returns every area unit within radiusMiles of postcode, in pager
// order. A geocode failure or any page read failure aborts without a
// partial result.
func (r *Resolver) Resolve(ctx context.Context, postcode string, radiusMiles float64) ([]models.CatchmentUnit, error) {
	if err := r.ValidateRadius(radiusMiles); err != nil {
		return nil, err
	}
	grid, err := r.Geocode(ctx, postcode)
	if err != nil {
		return nil, err
	}
	return r.Within(ctx, grid, radiusMiles)
}

// Within scans the full reference set for units within radiusMiles of grid.
func (r *Resolver) Within(ctx context.Context, grid models.GridReference, radiusMiles float64) ([]models.CatchmentUnit, error) {
	var (
		inRange []models.CatchmentUnit
		token   string
		scanned int
	)
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("area unit pagination did not terminate after %d pages", maxPages)
		}
		units, next, err := r.page(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("read area unit page %d: %w", page, err)
		}
		r.metrics.IncrementPagesRead()
		scanned += len(units)

		for _, u := range units {
			d := DistanceMiles(grid, u.Easting, u.Northing)
			if d <= radiusMiles {
				inRange = append(inRange, models.CatchmentUnit{AreaUnit: u, DistanceMiles: d})
			}
		}

		next = strings.TrimSpace(next)
		if next == "" {
			break
		}
		if next == token {
			return nil, fmt.Errorf("area unit pager returned the same continuation token %q twice", next)
		}
		token = next
	}

	r.metrics.ObserveCatchmentUnits(len(inRange))
	r.logger.DebugContext(ctx, "catchment resolved",
		"radius_miles", radiusMiles,
		"scanned", scanned,
		"in_range", len(inRange),
	)
	return inRange, nil
}

func (r *Resolver) page(ctx context.Context, token string) ([]models.AreaUnit, string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return r.pager.Page(ctx, token)
}
