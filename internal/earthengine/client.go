// Package earthengine requests map tiles for expression graphs from the Earth
// Engine REST API.
package earthengine

import (
	"bytes"
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
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/observability"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

const (
	DefaultAPIURL  = "https://earthengine.googleapis.com"
	TileHost       = "https://earthengine.googleapis.com"
	DefaultTimeout = 30 * time.Second

	breakerName = "earthengine"

	msgNotInitialized = "Earth Engine is not initialized. Authenticate locally and retry."
	msgTileFailed     = "Failed to generate Earth Engine tile URL"
	msgInvalidMapID   = "Earth Engine returned invalid map id"
)

// Vis is the visualization applied when rendering tiles.
type Vis struct {
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Palette []string `json:"palette"`
}

type Tile struct {
	MapName     string `json:"map_name"`
	URLTemplate string `json:"url_template"`
}

// TemplateFor builds the XYZ template for a map resource name.
func TemplateFor(name string) string {
	return TileHost + "/v1/" + name + "/tiles/{z}/{x}/{y}"
}

type Credentials struct {
	Project string
	Token   string
}

type Config struct {
	APIURL      string
	Credentials Credentials
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

type Client struct {
	base    *url.URL
	creds   Credentials
	http    *http.Client
	timeout time.Duration
	logger  *slog.Logger
	cb      *gobreaker.CircuitBreaker[Tile]
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.APIURL)
	if raw == "" {
		raw = DefaultAPIURL
	}
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse earth engine url: %w", err)
	}
	c := &Client{
		base:    u,
		creds:   cfg.Credentials,
		http:    cfg.HTTPClient,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	observability.SetBreakerState(breakerName, 0)
	c.cb = gobreaker.NewCircuitBreaker[Tile](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			observability.SetBreakerState(name, stateToFloat(to))
		},
	})
	return c, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Initialize reports whether the client can reach the platform with credentials.
func (c *Client) Initialize(context.Context) error {
	if strings.TrimSpace(c.creds.Project) == "" || strings.TrimSpace(c.creds.Token) == "" {
		return model.DataUnavailable(msgNotInitialized, errors.New("project or token not configured"))
	}
	return nil
}

// TileURL encodes img and requests a map for it.
func (c *Client) TileURL(ctx context.Context, img expr.Expr, vis Vis) (Tile, error) {
	e, err := expr.Encode(img)
	if err != nil {
		return Tile{}, model.DataUnavailable(msgTileFailed, err)
	}
	return c.CreateMap(ctx, e, vis)
}

type visualizationOptions struct {
	Ranges        []visRange `json:"ranges"`
	PaletteColors []string   `json:"paletteColors,omitempty"`
}

type visRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

type createMapRequest struct {
	Expression           *expr.Expression     `json:"expression"`
	FileFormat           string               `json:"fileFormat"`
	VisualizationOptions visualizationOptions `json:"visualizationOptions"`
}

type createMapResponse struct {
	Name string `json:"name"`
}

// CreateMap posts an encoded expression to projects/{project}/maps.
func (c *Client) CreateMap(ctx context.Context, e *expr.Expression, vis Vis) (Tile, error) {
	if err := c.Initialize(ctx); err != nil {
		return Tile{}, err
	}
	tile, err := c.cb.Execute(func() (Tile, error) {
		return c.createMap(ctx, e, vis)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("earth engine request rejected by breaker", "err", err)
		}
		if model.KindOf(err) == model.KindDataUnavailable {
			return Tile{}, err
		}
		return Tile{}, model.DataUnavailable(msgTileFailed, err)
	}
	return tile, nil
}

func (c *Client) createMap(ctx context.Context, e *expr.Expression, vis Vis) (Tile, error) {
	body, err := json.Marshal(createMapRequest{
		Expression: e,
		FileFormat: "AUTO_JPEG_PNG",
		VisualizationOptions: visualizationOptions{
			Ranges:        []visRange{{Min: vis.Min, Max: vis.Max}},
			PaletteColors: vis.Palette,
		},
	})
	if err != nil {
		return Tile{}, fmt.Errorf("encode request: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/projects/" + url.PathEscape(c.creds.Project) + "/maps"
	req, err := http.NewRequestWithContext(cctx, http.MethodPost, u.String(), bytes.NewReader(body))
	if err != nil {
		return Tile{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.creds.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstream("earthengine", err, time.Since(start).Seconds())
	if err != nil {
		return Tile{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return Tile{}, fmt.Errorf("upstream status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var out createMapResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return Tile{}, model.DataUnavailable(msgInvalidMapID, err)
	}
	if strings.TrimSpace(out.Name) == "" {
		return Tile{}, model.DataUnavailable(msgInvalidMapID, nil)
	}
	c.logger.Debug("earth engine map created", "name", out.Name, "duration", time.Since(start).String())
	return Tile{MapName: out.Name, URLTemplate: TemplateFor(out.Name)}, nil
}
