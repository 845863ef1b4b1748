package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/observability"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "mosquito-risk/1.0"
	DefaultTimeout   = 10 * time.Second

	maxAttempts = 3
	baseBackoff = 500 * time.Millisecond
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Option func(*Nominatim)

func WithHTTPClient(c *http.Client) Option {
	return func(n *Nominatim) {
		if c != nil {
			n.client = c
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(n *Nominatim) {
		if ua != "" {
			n.userAgent = ua
		}
	}
}

// WithRate limits outbound requests per second; rps <= 0 disables the limiter.
func WithRate(rps float64) Option {
	return func(n *Nominatim) {
		if rps <= 0 {
			n.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		n.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

func WithSleep(fn SleepFunc) Option {
	return func(n *Nominatim) {
		if fn != nil {
			n.sleep = fn
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(n *Nominatim) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Nominatim) {
		if l != nil {
			n.logger = l
		}
	}
}

// Nominatim calls a Nominatim-compatible /search endpoint and retries transient failures.
type Nominatim struct {
	base      *url.URL
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
	sleep     SleepFunc
	timeout   time.Duration
	logger    *slog.Logger
}

func NewNominatim(baseURL string, opts ...Option) (*Nominatim, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse geocoder url: %w", err)
	}
	n := &Nominatim{
		base:      u,
		userAgent: DefaultUserAgent,
		client:    &http.Client{},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		sleep:     sleepCtx,
		timeout:   DefaultTimeout,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// transient marks failures worth another attempt.
type transient struct {
	reason string
	err    error
}

func (t *transient) Error() string { return t.err.Error() }
func (t *transient) Unwrap() error { return t.err }

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// backoff returns 0.5s * 2^attempt.
func backoff(attempt int) time.Duration {
	return baseBackoff << attempt
}

func (n *Nominatim) Geocode(ctx context.Context, text string) (Result, error) {
	q, err := requireText(text)
	if err != nil {
		return Result{}, err
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		res, err := n.once(ctx, q)
		if err == nil {
			if res.Label == "" {
				res.Label = q
			}
			return res, nil
		}

		var tr *transient
		if !errors.As(err, &tr) {
			return Result{}, err
		}
		lastErr = err
		if attempt == maxAttempts-1 {
			break
		}

		observability.IncGeocodeRetry(tr.reason)
		d := backoff(attempt)
		n.logger.Debug("geocode retry", "attempt", attempt+1, "reason", tr.reason, "backoff", d.String())
		if err := n.sleep(ctx, d); err != nil {
			return Result{}, model.InvalidLocation("Geocoding was cancelled", err)
		}
	}
	n.logger.Warn("geocode failed after retries", "query", q, "err", lastErr)
	return Result{}, model.InvalidLocation("Geocoding service unavailable", lastErr)
}

type featureCollection struct {
	Features []feature `json:"features"`
}

type feature struct {
	BBox       []float64      `json:"bbox"`
	Geometry   model.Geometry `json:"geometry"`
	Properties struct {
		DisplayName string `json:"display_name"`
	} `json:"properties"`
}

func (n *Nominatim) once(ctx context.Context, q string) (Result, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return Result{}, model.InvalidLocation("Geocoding was cancelled", err)
	}

	cctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	u := *n.base
	u.Path = strings.TrimRight(u.Path, "/") + "/search"
	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "geojson")
	params.Set("limit", "1")
	params.Set("countrycodes", "us")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Result{}, model.InvalidLocation("Geocoding request failed", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := n.client.Do(req)
	observability.ObserveUpstream("geocoder", err, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, model.InvalidLocation("Geocoding was cancelled", err)
		}
		return Result{}, &transient{reason: "transport", err: fmt.Errorf("do request: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		err := fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		if retryableStatus(resp.StatusCode) {
			return Result{}, &transient{reason: fmt.Sprintf("status_%d", resp.StatusCode), err: err}
		}
		return Result{}, model.InvalidLocation("Geocoding failed", err)
	}

	var fc featureCollection
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&fc); err != nil {
		return Result{}, model.InvalidLocation("Geocoding returned malformed data", err)
	}
	if len(fc.Features) == 0 {
		return Result{}, model.InvalidLocation("Location not found", nil)
	}

	f := fc.Features[0]
	if err := f.Geometry.Validate(); err != nil {
		return Result{}, model.InvalidLocation("Geocoding returned malformed data", err)
	}
	res := Result{
		Label:    strings.TrimSpace(f.Properties.DisplayName),
		Geometry: f.Geometry,
	}
	if len(f.BBox) == 4 {
		res.BBox = &model.BBox{MinX: f.BBox[0], MinY: f.BBox[1], MaxX: f.BBox[2], MaxY: f.BBox[3]}
	}
	return res, nil
}
