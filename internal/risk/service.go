package risk

import (
	"context"
	"log/slog"
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

const (
	WindowLast30Days   = "last_30_days"
	WindowLast12Months = "last_12_months"

	// DefaultQueryDays is the lookback when a query omits its date range.
	DefaultQueryDays = 365
)

// Layer ids returned alongside the risk tile.
const (
	LayerRisk        = "risk"
	LayerTemperature = "land_surface_temperature"
	LayerLandCover   = "land_cover"
	LayerPrecip      = "precipitation"
)

// WindowRange maps a named default window to its date range.
func WindowRange(window string, today time.Time) (model.DateRange, error) {
	switch window {
	case WindowLast30Days:
		return model.LastDays(today, 30), nil
	case WindowLast12Months:
		return model.LastDays(today, 365), nil
	case "":
		return model.DateRange{}, model.InvalidDateRange("window is required", nil)
	default:
		return model.DateRange{}, model.InvalidDateRange("window must be one of last_30_days, last_12_months", nil)
	}
}

type Layer struct {
	LayerID         string       `json:"layer_id"`
	Label           string       `json:"label"`
	TileURLTemplate string       `json:"tile_url_template"`
	Attribution     string       `json:"attribution,omitempty"`
	Legend          model.Legend `json:"legend"`
}

type Result struct {
	LocationLabel   string           `json:"location_label"`
	DateRange       model.DateRange  `json:"date_range"`
	TileURLTemplate string           `json:"tile_url_template"`
	Attribution     string           `json:"attribution,omitempty"`
	Legend          []model.RiskBand `json:"legend"`
	Layers          []Layer          `json:"layers"`
	Viewport        *model.Viewport  `json:"viewport,omitempty"`
}

// RegionSource supplies the default region location.
type RegionSource interface {
	Location(ctx context.Context) (model.Location, error)
}

type Service struct {
	geocoder geocode.Geocoder
	platform earthengine.Platform
	region   RegionSource
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

func NewService(g geocode.Geocoder, p earthengine.Platform, region RegionSource, sets layers.ImageSets, opts ...Option) *Service {
	s := &Service{
		geocoder: g,
		platform: p,
		region:   region,
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

// Default serves the risk layer for the default region over a named window.
func (s *Service) Default(ctx context.Context, window string) (Result, error) {
	r, err := WindowRange(window, s.now())
	if err != nil {
		return Result{}, err
	}
	if err := s.platform.Initialize(ctx); err != nil {
		return Result{}, err
	}
	loc, err := s.region.Location(ctx)
	if err != nil {
		return Result{}, err
	}
	res, vp, err := s.build(ctx, loc, r)
	if err != nil {
		return Result{}, err
	}
	s.publish(ctx, queryevents.KindRiskDefault, loc, vp, r, window)
	return res, nil
}

// Query geocodes text and serves the risk layer for it. A nil range means the
// last DefaultQueryDays days. Dates are validated before any remote call.
func (s *Service) Query(ctx context.Context, text string, dr *model.DateRange) (Result, error) {
	today := s.now()
	r := model.LastDays(today, DefaultQueryDays)
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
	res, vp, err := s.build(ctx, loc, r)
	if err != nil {
		return Result{}, err
	}
	s.publish(ctx, queryevents.KindRiskQuery, loc, vp, r, "")
	return res, nil
}

func (s *Service) build(ctx context.Context, loc model.Location, r model.DateRange) (Result, model.Viewport, error) {
	region, vp, err := regions.FromLocation(loc, s.mapper)
	if err != nil {
		return Result{}, model.Viewport{}, err
	}
	comps, err := layers.Build(s.sets, region, r)
	if err != nil {
		return Result{}, model.Viewport{}, err
	}

	precipVis := layers.PrecipVis(r.Days())
	tiles, err := layers.FetchTiles(ctx, s.platform, []layers.TileRequest{
		{Image: Image(comps), Vis: layers.RiskVis},
		{Image: comps.LST(), Vis: layers.LSTVis},
		{Image: comps.NDVI(), Vis: layers.NDVIVis},
		{Image: comps.Precipitation(), Vis: precipVis},
	})
	if err != nil {
		return Result{}, model.Viewport{}, err
	}

	out := Result{
		LocationLabel:   loc.Label,
		DateRange:       r,
		TileURLTemplate: tiles[0].URLTemplate,
		Attribution:     layers.AttributionEE,
		Legend:          model.DefaultRiskBands(),
		Layers: []Layer{
			{LayerID: LayerRisk, Label: "Mosquito risk", TileURLTemplate: tiles[0].URLTemplate, Attribution: layers.AttributionEE, Legend: model.RiskLegend()},
			{LayerID: LayerTemperature, Label: "Land surface temperature (°C)", TileURLTemplate: tiles[1].URLTemplate, Attribution: layers.AttributionMODIS, Legend: layers.Continuous(layers.LSTVis, "°C")},
			{LayerID: LayerLandCover, Label: "Vegetation (NDVI)", TileURLTemplate: tiles[2].URLTemplate, Attribution: layers.AttributionSentinel, Legend: layers.Continuous(layers.NDVIVis, "NDVI")},
			{LayerID: LayerPrecip, Label: "Precipitation (mm)", TileURLTemplate: tiles[3].URLTemplate, Attribution: layers.AttributionCHIRPS, Legend: layers.Continuous(precipVis, "mm")},
		},
		Viewport: &vp,
	}
	s.logger.InfoContext(ctx, "risk layers built",
		"label", loc.Label, "source", string(loc.Source), "range", r.String())
	return out, vp, nil
}

func (s *Service) publish(ctx context.Context, kind queryevents.Kind, loc model.Location, vp model.Viewport, r model.DateRange, window string) {
	ev := queryevents.NewEvent(ctx, kind, loc, vp, r)
	ev.Window = window
	if s.mapper != nil {
		if _, cell, err := s.mapper.Snap(vp.CenterLat, vp.CenterLng); err == nil {
			ev.Cell = cell
		}
	}
	ev.TS = s.now().UTC()
	s.events.Publish(ctx, ev)
}
