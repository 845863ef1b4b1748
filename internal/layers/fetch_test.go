package layers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

type visEcho struct {
	calls int32
	fail  bool
}

func (v *visEcho) Initialize(context.Context) error { return nil }

func (v *visEcho) TileURL(_ context.Context, _ expr.Expr, vis earthengine.Vis) (earthengine.Tile, error) {
	atomic.AddInt32(&v.calls, 1)
	if v.fail && vis.Max == LSTVis.Max {
		return earthengine.Tile{}, model.DataUnavailable("Failed to generate Earth Engine tile URL", nil)
	}
	return earthengine.Tile{URLTemplate: vis.Palette[0]}, nil
}

func TestFetchTiles_KeepsOrder(t *testing.T) {
	p := &visEcho{}
	reqs := []TileRequest{
		{Image: expr.Constant(1), Vis: NDVIVis},
		{Image: expr.Constant(2), Vis: LSTVis},
		{Image: expr.Constant(3), Vis: NDWIVis},
	}
	tiles, err := FetchTiles(context.Background(), p, reqs)
	if err != nil {
		t.Fatal(err)
	}
	for i, r := range reqs {
		if tiles[i].URLTemplate != r.Vis.Palette[0] {
			t.Fatalf("tile %d out of order: %s", i, tiles[i].URLTemplate)
		}
	}
}

func TestFetchTiles_FirstErrorWins(t *testing.T) {
	p := &visEcho{fail: true}
	_, err := FetchTiles(context.Background(), p, []TileRequest{
		{Image: expr.Constant(1), Vis: NDVIVis},
		{Image: expr.Constant(2), Vis: LSTVis},
	})
	if !errors.Is(err, model.ErrDataUnavailable) {
		t.Fatalf("err=%v", err)
	}
}
