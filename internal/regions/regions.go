// Package regions turns locations into Earth Engine regions and loads the
// default region from the boundary dataset.
package regions

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/datasets"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
	h3mapper "github.com/mohammed-shakir/mosquito-risk/internal/mapper/h3"
)

const (
	DefaultDataset = "floridaboundaries"
	DefaultLabel   = "Florida"
	DefaultID      = "default-region"

	// ViewportRadius is 100 miles.
	ViewportRadius = 160934.0

	fallbackLat = 27.8
	fallbackLng = -81.7
)

// FallbackViewport is used when a polygon location has no bounding box.
func FallbackViewport() model.Viewport {
	return model.Viewport{CenterLat: fallbackLat, CenterLng: fallbackLng, RadiusMeters: ViewportRadius}
}

// FromLocation builds the query region and viewport. Points are snapped to
// their H3 cell centre before buffering so nearby geocodes of one place share
// an identical region; the viewport stays on the original point.
func FromLocation(loc model.Location, m *h3mapper.Mapper) (expr.Geometry, model.Viewport, error) {
	if lng, lat, ok := loc.Geometry.Point(); ok {
		c := h3mapper.Point{Lat: lat, Lng: lng}
		if m != nil {
			snapped, _, err := m.Snap(lat, lng)
			if err != nil {
				return expr.Geometry{}, model.Viewport{}, model.InvalidLocation("Location coordinates are invalid", err)
			}
			c = snapped
		}
		region := expr.Point(c.Lng, c.Lat).Buffer(ViewportRadius).Bounds()
		return region, model.Viewport{CenterLat: lat, CenterLng: lng, RadiusMeters: ViewportRadius}, nil
	}

	region, err := expr.FromGeoJSON(loc.Geometry)
	if err != nil {
		return expr.Geometry{}, model.Viewport{}, model.InvalidLocation("Location geometry is not supported", err)
	}
	if loc.BBox != nil {
		lat, lng := loc.BBox.Center()
		return region, model.Viewport{CenterLat: lat, CenterLng: lng, RadiusMeters: ViewportRadius}, nil
	}
	return region, FallbackViewport(), nil
}

// Preparer fetches a dataset into the local cache.
type Preparer interface {
	Prepare(ctx context.Context, name, url string) (datasets.Artifact, error)
}

// Default loads and memoises the default region. Failures are not memoised.
type Default struct {
	datasets map[string]string
	cache    Preparer
	label    string
	logger   *slog.Logger

	mu  sync.Mutex
	loc *model.Location
}

func NewDefault(datasetURLs map[string]string, cache Preparer, label string, logger *slog.Logger) *Default {
	if strings.TrimSpace(label) == "" {
		label = DefaultLabel
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Default{datasets: datasetURLs, cache: cache, label: label, logger: logger}
}

func (d *Default) Location(ctx context.Context) (model.Location, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loc != nil {
		return *d.loc, nil
	}

	url := strings.TrimSpace(d.datasets[DefaultDataset])
	if url == "" {
		return model.Location{}, model.DataUnavailable(fmt.Sprintf("Dataset source '%s' is not configured", DefaultDataset), nil)
	}
	art, err := d.cache.Prepare(ctx, DefaultDataset, url)
	if err != nil {
		return model.Location{}, err
	}
	path, err := firstGeoJSON(art.Path)
	if err != nil {
		return model.Location{}, model.DataUnavailable("Failed to read default region boundary", err)
	}
	geom, bbox, err := ReadUnion(path)
	if err != nil {
		return model.Location{}, err
	}

	loc := model.Location{
		ID:       DefaultID,
		Label:    d.label,
		Source:   model.SourceDefaultState,
		Geometry: geom,
		BBox:     bbox,
	}
	d.loc = &loc
	d.logger.Info("default region loaded", "label", d.label, "path", path, "bbox", bbox.String())
	return loc, nil
}

// firstGeoJSON returns p itself for files, or the first .geojson/.json file in
// lexical walk order for directories.
func firstGeoJSON(p string) (string, error) {
	fi, err := os.Stat(p)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		return p, nil
	}
	found := ""
	errFound := errors.New("found")
	err = filepath.WalkDir(p, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".geojson", ".json":
			found = path
			return errFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no GeoJSON file under %s", p)
	}
	return found, nil
}

type featureCollection struct {
	Type     string          `json:"type"`
	Features []feature       `json:"features"`
	Geometry *model.Geometry `json:"geometry"`
}

type feature struct {
	Geometry *model.Geometry `json:"geometry"`
}

// ReadUnion collects every Polygon and MultiPolygon in a GeoJSON file into one
// MultiPolygon and returns its bounding box.
func ReadUnion(path string) (model.Geometry, *model.BBox, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return model.Geometry{}, nil, model.DataUnavailable("Failed to read default region boundary", err)
	}
	var fc featureCollection
	if err := json.Unmarshal(b, &fc); err != nil {
		return model.Geometry{}, nil, model.DataUnavailable("Failed to read default region boundary", err)
	}

	var geoms []*model.Geometry
	switch fc.Type {
	case "FeatureCollection":
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	case "Feature":
		geoms = append(geoms, fc.Geometry)
	}

	var polys [][][][]float64
	for _, g := range geoms {
		if g == nil {
			continue
		}
		switch g.Type {
		case "Polygon":
			var rings [][][]float64
			if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
				return model.Geometry{}, nil, model.DataUnavailable("Default region boundary is malformed", err)
			}
			polys = append(polys, rings)
		case "MultiPolygon":
			var mp [][][][]float64
			if err := json.Unmarshal(g.Coordinates, &mp); err != nil {
				return model.Geometry{}, nil, model.DataUnavailable("Default region boundary is malformed", err)
			}
			polys = append(polys, mp...)
		}
	}
	if len(polys) == 0 {
		return model.Geometry{}, nil, model.DataUnavailable("Default region boundary dataset is empty", nil)
	}

	raw, err := json.Marshal(polys)
	if err != nil {
		return model.Geometry{}, nil, model.DataUnavailable("Default region boundary is malformed", err)
	}
	return model.Geometry{Type: "MultiPolygon", Coordinates: raw}, bounds(polys), nil
}

func bounds(polys [][][][]float64) *model.BBox {
	bb := model.BBox{MinX: math.Inf(1), MinY: math.Inf(1), MaxX: math.Inf(-1), MaxY: math.Inf(-1)}
	for _, rings := range polys {
		for _, ring := range rings {
			for _, xy := range ring {
				if len(xy) < 2 {
					continue
				}
				bb.MinX = math.Min(bb.MinX, xy[0])
				bb.MaxX = math.Max(bb.MaxX, xy[0])
				bb.MinY = math.Min(bb.MinY, xy[1])
				bb.MaxY = math.Max(bb.MaxY, xy[1])
			}
		}
	}
	return &bb
}
