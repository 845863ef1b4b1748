package layers

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

type TileRequest struct {
	Image expr.Image
	Vis   earthengine.Vis
}

// FetchTiles requests all tiles concurrently; results keep request order and
// the first error cancels the rest.
func FetchTiles(ctx context.Context, p earthengine.Platform, reqs []TileRequest) ([]earthengine.Tile, error) {
	out := make([]earthengine.Tile, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range reqs {
		g.Go(func() error {
			t, err := p.TileURL(gctx, r.Image, r.Vis)
			if err != nil {
				return err
			}
			out[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
