// Package drivers serves the environmental layers behind the risk score.
package drivers

import (
	"context"
	"log/slog"
	"maps"
	"time"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine"
	"github.com/mohammed-shakir/mosquito-risk/internal/geocode"
	"github.com/mohammed-shakir/mosquito-risk/internal/layers"
	"github.com/mohammed-shakir/mosquito-risk/internal/logger"
	h3mapper "github.com/mohammed-shakir/mosquito-risk/internal/mapper/h3"
	"github.com/mohammed-shakir/mosquito-risk/internal/queryevents"
	"github.com/mohammed-shakir/mosquito-risk/internal/regions"
)

// DefaultDays is the lookback when a query omits its date range.
const DefaultDays = 730

type Type string

const (
	Vegetation    Type = "vegetation"
	Temperature   Type = "temperature"
	Precipitation Type = "precipitation"
	StandingWater Type = "standing_water"
)

type Tile struct {
	DriverType      Type              `json:"driver_type"`
	Title           string            `json:"title"`
	Summary         string            `json:"summary"`
	Metrics         map[string]string `json:"metrics"`
	TileURLTemplate string            `json:"tile_url_template"`
	Attribution     string            `json:"attribution"`
	Legend          model.Legend      `json:"legend"`
}

type Result struct {
	LocationLabel string          `json:"location_label"`
	DateRange     model.DateRange `json:"date_range"`
	Tiles         []Tile          `json:"tiles"`
	Viewport      model.Viewport  `json:"viewport"`
}

// driverInfo describes one driver tile apart from its image.
type driverInfo struct {
	typ         Type
	title       string
	summary     string
	metrics     map[string]string
	attribution string
	unit        string
}

var catalog = [...]driverInfo{
	{
		typ:         Vegetation,
		title:       "Vegetation",
		summary:     "NDVI composite for the selected date range.",
		metrics:     map[string]string{"index": "NDVI"},
		attribution: layers.AttributionSentinel,
		unit:        "NDVI",
	},
	{
		typ:         Temperature,
		title:       "Temperature",
		summary:     "Mean land surface temperature (°C) for the selected date range.",
		metrics:     map[string]string{"units": "C"},
		attribution: layers.AttributionMODIS,
		unit:        "°C",
	},
	{
		typ:         Precipitation,
		title:       "Precipitation / Standing Water",
		summary:     "Total precipitation (mm) and NDWI standing-water proxy for the selected date range.",
		metrics:     map[string]string{"precip_units": "mm", "index": "NDWI"},
		attribution: layers.AttributionCHIRPS,
		unit:        "mm",
	},
	{
		typ:         StandingWater,
		title:       "Standing Water (proxy)",
		summary:     "NDWI composite (water proxy) for the selected date range.",
		metrics:     map[string]string{"index": "NDWI"},
		attribution: layers.AttributionSentinel,
		unit:        "NDWI",
	},
}

type Service struct {
	geocoder geocode.Geocoder
	platform earthengine.Platform
	sets     layers.ImageSets
	mapper   *h3mapper.Mapper
	events   queryevents.Sink
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

type Option func(*Service)

func WithMapper(m *h3mapper.Mapper) Option { return func(s *Service) { s.mapper = m } }

func WithEvents(sink queryevents.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.events = sink
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func WithIDs(newID func() string) Option { return func(s *Service) { s.newID = newID } }

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewService(g geocode.Geocoder, p earthengine.Platform, sets layers.ImageSets, opts ...Option) *Service {
	s := &Service{
		geocoder: g,
		platform: p,
		sets:     sets,
		mapper:   h3mapper.New(h3mapper.DefaultRes),
		events:   queryevents.Nop{},
		now:      time.Now,
		newID:    logger.NewID,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Query geocodes text and returns the four driver tiles. A nil range means the
// last DefaultDays days.
func (s *Service) Query(ctx context.Context, text string, dr *model.DateRange) (Result, error) {
	today := s.now()
	r := model.LastDays(today, DefaultDays)
	if dr != nil {
		r = *dr
	}
	if err := r.Validate(today, false); err != nil {
		return Result{}, err
	}

	g, err := s.geocoder.Geocode(ctx, text)
	if err != nil {
		return Result{}, err
	}
	loc := geocode.LocationFromResult(s.newID(), text, g)

	if err := s.platform.Initialize(ctx); err != nil {
		return Result{}, err
	}
	region, vp, err := regions.FromLocation(loc, s.mapper)
	if err != nil {
		return Result{}, err
	}
	comps, err := layers.Build(s.sets, region, r)
	if err != nil {
		return Result{}, err
	}

	vis := [len(catalog)]earthengine.Vis{layers.NDVIVis, layers.LSTVis, layers.PrecipVis(r.Days()), layers.NDWIVis}
	imgs := [len(catalog)]layers.TileRequest{
		{Image: comps.NDVI(), Vis: vis[0]},
		{Image: comps.LST(), Vis: vis[1]},
		{Image: comps.Precipitation(), Vis: vis[2]},
		{Image: comps.NDWI(), Vis: vis[3]},
	}
	fetched, err := layers.FetchTiles(ctx, s.platform, imgs[:])
	if err != nil {
		return Result{}, err
	}

	tiles := make([]Tile, 0, len(catalog))
	for i, info := range catalog {
		tiles = append(tiles, Tile{
			DriverType:      info.typ,
			Title:           info.title,
			Summary:         info.summary,
			Metrics:         maps.Clone(info.metrics),
			TileURLTemplate: fetched[i].URLTemplate,
			Attribution:     info.attribution,
			Legend:          layers.Continuous(vis[i], info.unit),
		})
	}

	ev := queryevents.NewEvent(ctx, queryevents.KindDrivers, loc, vp, r)
	if s.mapper != nil {
		if _, cell, err := s.mapper.Snap(vp.CenterLat, vp.CenterLng); err == nil {
			ev.Cell = cell
		}
	}
	ev.TS = s.now().UTC()
	s.events.Publish(ctx, ev)

	s.logger.InfoContext(ctx, "driver tiles built", "label", loc.Label, "range", r.String())
	return Result{LocationLabel: loc.Label, DateRange: r, Tiles: tiles, Viewport: vp}, nil
}
