package earthengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/cache"
	"github.com/mohammed-shakir/mosquito-risk/internal/cache/keys"
	"github.com/mohammed-shakir/mosquito-risk/internal/cache/ttl"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

const (
	DefaultTileCacheTTL  = 30 * time.Minute
	DefaultTileCacheSize = 128
)

// Platform is what request orchestrators need from the raster service.
type Platform interface {
	Initialize(ctx context.Context) error
	TileURL(ctx context.Context, img expr.Expr, vis Vis) (Tile, error)
}

// MapCreator is the uncached map endpoint.
type MapCreator interface {
	Initialize(ctx context.Context) error
	CreateMap(ctx context.Context, e *expr.Expression, vis Vis) (Tile, error)
}

var (
	_ Platform   = (*Client)(nil)
	_ Platform   = (*CachedTiler)(nil)
	_ MapCreator = (*Client)(nil)
)

// CachedTiler memoises map descriptors by encoded expression and visualization.
type CachedTiler struct {
	next   MapCreator
	local  *ttl.Cache[Tile]
	shared cache.Shared
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedTiler(next MapCreator, ttlDur time.Duration, size int, shared cache.Shared, logger *slog.Logger) *CachedTiler {
	if ttlDur <= 0 {
		ttlDur = DefaultTileCacheTTL
	}
	if size <= 0 {
		size = DefaultTileCacheSize
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CachedTiler{
		next:   next,
		local:  ttl.New[Tile]("tiles", ttlDur, size),
		shared: shared,
		ttl:    ttlDur,
		logger: logger,
	}
}

func (t *CachedTiler) Initialize(ctx context.Context) error {
	return t.next.Initialize(ctx)
}

func (t *CachedTiler) TileURL(ctx context.Context, img expr.Expr, vis Vis) (Tile, error) {
	e, err := expr.Encode(img)
	if err != nil {
		return Tile{}, model.DataUnavailable(msgTileFailed, err)
	}
	eb, err := e.Bytes()
	if err != nil {
		return Tile{}, model.DataUnavailable(msgTileFailed, err)
	}
	vb, err := json.Marshal(vis)
	if err != nil {
		return Tile{}, model.DataUnavailable(msgTileFailed, err)
	}
	key := keys.Tile(eb, vb)

	if tile, ok := t.local.Get(key); ok {
		return tile, nil
	}
	if tile, ok := t.fromShared(ctx, key); ok {
		t.local.Put(key, tile)
		return tile, nil
	}

	tile, err := t.next.CreateMap(ctx, e, vis)
	if err != nil {
		return Tile{}, err
	}
	t.local.Put(key, tile)
	t.toShared(ctx, key, tile)
	return tile, nil
}

func (t *CachedTiler) fromShared(ctx context.Context, key string) (Tile, bool) {
	if t.shared == nil {
		return Tile{}, false
	}
	b, ok, err := t.shared.Get(ctx, key)
	if err != nil {
		t.logger.Warn("tile shared cache get failed", "err", err)
		return Tile{}, false
	}
	if !ok {
		return Tile{}, false
	}
	var tile Tile
	if err := json.Unmarshal(b, &tile); err != nil || tile.URLTemplate == "" {
		return Tile{}, false
	}
	return tile, true
}

func (t *CachedTiler) toShared(ctx context.Context, key string, tile Tile) {
	if t.shared == nil {
		return
	}
	b, err := json.Marshal(tile)
	if err != nil {
		return
	}
	if err := t.shared.Set(ctx, key, b, t.ttl); err != nil {
		t.logger.Warn("tile shared cache set failed", "err", err)
	}
}
