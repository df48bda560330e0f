// Package geocode resolves postcodes to OSGB grid references using the
// postcodes.io HTTP API, with an optional Redis cache in front.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"screening/internal/targeting"
	"screening/internal/targeting/metrics"
	"screening/internal/targeting/models"
	"screening/pkg/platform/circuit"
)

// ErrPostcodeNotFound is returned when the API has no grid reference for the
// postcode.
var ErrPostcodeNotFound = fmt.Errorf("postcode not found: %w", targeting.ErrUnknownPostcode)

const (
	DefaultTimeout = 5 * time.Second

	// maxBodyBytes caps the response body read from the API.
	maxBodyBytes = 64 << 10
)

type postcodeResponse struct {
	Status int `json:"status"`
	Result *struct {
		Postcode  string `json:"postcode"`
		Eastings  *int   `json:"eastings"`
		Northings *int   `json:"northings"`
	} `json:"result"`
	Error string `json:"error"`
}

// Client calls GET {baseURL}/postcodes/{postcode}.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithBreaker guards the API with a circuit breaker. Unknown postcodes do
// not count as failures.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		if logger != nil {
			cl.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) {
		cl.metrics = m
	}
}

// NewClient builds a postcodes.io client.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("geocoder base URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse geocoder base URL: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Resolve returns the grid reference for a normalised postcode.
func (c *Client) Resolve(ctx context.Context, postcode string) (models.GridReference, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return models.GridReference{}, fmt.Errorf("geocoder %s: %w", c.breaker.Name(), circuit.ErrOpen)
	}

	grid, err := c.lookup(ctx, postcode)
	switch {
	case err == nil, errors.Is(err, ErrPostcodeNotFound):
		c.recordSuccess()
	case ctx.Err() != nil:
		// caller gave up; says nothing about the API
	default:
		c.recordFailure(err)
	}
	return grid, err
}

func (c *Client) lookup(ctx context.Context, postcode string) (models.GridReference, error) {
	endpoint := c.baseURL + "/postcodes/" + url.PathEscape(postcode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return models.GridReference{}, fmt.Errorf("build geocode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.GridReference{}, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return models.GridReference{}, fmt.Errorf("read geocode response: %w", err)
	}
	return parsePostcodeResponse(resp.StatusCode, body)
}

func parsePostcodeResponse(status int, body []byte) (models.GridReference, error) {
	if status == http.StatusNotFound {
		return models.GridReference{}, ErrPostcodeNotFound
	}
	if status != http.StatusOK {
		return models.GridReference{}, fmt.Errorf("geocoder returned status %d", status)
	}
	var parsed postcodeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return models.GridReference{}, fmt.Errorf("decode geocode response: %w", err)
	}
	// Some valid postcodes (Channel Islands, new builds) carry no grid reference.
	if parsed.Result == nil || parsed.Result.Eastings == nil || parsed.Result.Northings == nil {
		return models.GridReference{}, ErrPostcodeNotFound
	}
	return models.GridReference{
		Easting:  float64(*parsed.Result.Eastings),
		Northing: float64(*parsed.Result.Northings),
	}, nil
}

func (c *Client) recordSuccess() {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("geocoder circuit closed", "breaker", c.breaker.Name())
		c.metrics.SetBreakerOpen(false)
	}
}

func (c *Client) recordFailure(err error) {
	if c.breaker == nil {
		return
	}
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("geocoder circuit opened", "breaker", c.breaker.Name(), "error", err)
		c.metrics.SetBreakerOpen(true)
	}
}
