package geocode

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/cache"
	"github.com/mohammed-shakir/mosquito-risk/internal/cache/keys"
	"github.com/mohammed-shakir/mosquito-risk/internal/cache/ttl"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/observability"
)

const (
	DefaultCacheTTL  = 24 * time.Hour
	DefaultCacheSize = 256
)

// Cached sits in front of a Geocoder. Lookups go L1, then the optional shared
// store, then the wrapped geocoder; only successes are stored.
type Cached struct {
	next   Geocoder
	local  *ttl.Cache[Result]
	shared cache.Shared
	ttl    time.Duration
	logger *slog.Logger
}

func NewCached(next Geocoder, ttlDur time.Duration, size int, shared cache.Shared, logger *slog.Logger) *Cached {
	if ttlDur <= 0 {
		ttlDur = DefaultCacheTTL
	}
	if size <= 0 {
		size = DefaultCacheSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cached{
		next:   next,
		local:  ttl.New[Result]("geocode", ttlDur, size),
		shared: shared,
		ttl:    ttlDur,
		logger: logger,
	}
}

// Local exposes the in-process cache for tests.
func (c *Cached) Local() *ttl.Cache[Result] { return c.local }

func (c *Cached) Geocode(ctx context.Context, text string) (Result, error) {
	if _, err := requireText(text); err != nil {
		return Result{}, err
	}
	key := keys.Geocode(text)

	if r, ok := c.local.Get(key); ok {
		return r, nil
	}
	if r, ok := c.fromShared(ctx, key); ok {
		c.local.Put(key, r)
		return r, nil
	}

	r, err := c.next.Geocode(ctx, text)
	if err != nil {
		return Result{}, err
	}
	c.local.Put(key, r)
	c.toShared(ctx, key, r)
	return r, nil
}

type wireResult struct {
	Label    string         `json:"label"`
	Geometry model.Geometry `json:"geometry"`
	BBox     []float64      `json:"bbox,omitempty"`
}

func (c *Cached) fromShared(ctx context.Context, key string) (Result, bool) {
	if c.shared == nil {
		return Result{}, false
	}
	b, ok, err := c.shared.Get(ctx, key)
	if err != nil {
		c.logger.Warn("geocode shared cache get failed", "err", err)
		return Result{}, false
	}
	if !ok {
		observability.ObserveCache("geocode_shared", "miss")
		return Result{}, false
	}
	var w wireResult
	if err := json.Unmarshal(b, &w); err != nil || w.Geometry.Validate() != nil {
		observability.ObserveCache("geocode_shared", "corrupt")
		return Result{}, false
	}
	observability.ObserveCache("geocode_shared", "hit")
	r := Result{Label: w.Label, Geometry: w.Geometry}
	if len(w.BBox) == 4 {
		r.BBox = &model.BBox{MinX: w.BBox[0], MinY: w.BBox[1], MaxX: w.BBox[2], MaxY: w.BBox[3]}
	}
	return r, true
}

func (c *Cached) toShared(ctx context.Context, key string, r Result) {
	if c.shared == nil {
		return
	}
	w := wireResult{Label: r.Label, Geometry: r.Geometry}
	if r.BBox != nil {
		w.BBox = []float64{r.BBox.MinX, r.BBox.MinY, r.BBox.MaxX, r.BBox.MaxY}
	}
	b, err := json.Marshal(w)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, key, b, c.ttl); err != nil {
		c.logger.Warn("geocode shared cache set failed", "err", err)
	}
}
