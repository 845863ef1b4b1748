package earthengine

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/mosquito-risk/internal/cache/redisstore"
	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

type fakeMaps struct {
	calls int
	err   error
}

func (f *fakeMaps) Initialize(context.Context) error { return nil }

func (f *fakeMaps) CreateMap(_ context.Context, e *expr.Expression, _ Vis) (Tile, error) {
	f.calls++
	if f.err != nil {
		return Tile{}, f.err
	}
	name := "projects/p/maps/" + e.Result
	return Tile{MapName: name, URLTemplate: TemplateFor(name)}, nil
}

func region() expr.Geometry {
	return expr.Point(-80.19, 25.76).Buffer(160934).Bounds()
}

func TestCachedTiler_HitAvoidsSecondCall(t *testing.T) {
	next := &fakeMaps{}
	ct := NewCachedTiler(next, time.Minute, 8, nil, nil)
	ctx := context.Background()

	a, err := ct.TileURL(ctx, expr.Constant(1).Clip(region()), testVis)
	if err != nil {
		t.Fatal(err)
	}
	// rebuilt graph, same structure
	b, err := ct.TileURL(ctx, expr.Constant(1).Clip(region()), testVis)
	if err != nil {
		t.Fatal(err)
	}
	if next.calls != 1 {
		t.Fatalf("calls=%d want 1", next.calls)
	}
	if a != b {
		t.Fatalf("tiles differ: %+v vs %+v", a, b)
	}
}

func TestCachedTiler_VisIsPartOfKey(t *testing.T) {
	next := &fakeMaps{}
	ct := NewCachedTiler(next, time.Minute, 8, nil, nil)
	img := expr.Constant(1)
	if _, err := ct.TileURL(context.Background(), img, testVis); err != nil {
		t.Fatal(err)
	}
	other := testVis
	other.Max = 3
	if _, err := ct.TileURL(context.Background(), img, other); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Fatalf("calls=%d want 2", next.calls)
	}
}

func TestCachedTiler_ErrorsNotCached(t *testing.T) {
	next := &fakeMaps{err: model.DataUnavailable(msgTileFailed, nil)}
	ct := NewCachedTiler(next, time.Minute, 8, nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := ct.TileURL(context.Background(), expr.Constant(1), testVis); err == nil {
			t.Fatalf("expected error")
		}
	}
	if next.calls != 2 {
		t.Fatalf("calls=%d want 2", next.calls)
	}
}

func TestCachedTiler_SharedStore(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rc.Close() }()

	first := &fakeMaps{}
	if _, err := NewCachedTiler(first, time.Minute, 8, rc, nil).TileURL(ctx, expr.Constant(2), testVis); err != nil {
		t.Fatal(err)
	}

	second := &fakeMaps{}
	tile, err := NewCachedTiler(second, time.Minute, 8, rc, nil).TileURL(ctx, expr.Constant(2), testVis)
	if err != nil {
		t.Fatal(err)
	}
	if second.calls != 0 {
		t.Fatalf("shared store missed")
	}
	if tile.URLTemplate == "" {
		t.Fatalf("empty template from shared store")
	}
}
