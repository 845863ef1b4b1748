// Package layers builds the environmental composites shared by the risk and
// driver endpoints, with their visualization and legend parameters.
package layers

import (
	"strings"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
)

// Image set keys in the sources file.
const (
	SetVegetation             = "vegetation"
	SetLandSurfaceTemperature = "land_surface_temperature"
	SetPrecipitation          = "precipitation"
)

const (
	AttributionEE       = "Google Earth Engine"
	AttributionSentinel = "Sentinel-2 SR Harmonized (Copernicus) via Google Earth Engine"
	AttributionMODIS    = "MODIS LST (MOD11A1) via Google Earth Engine"
	AttributionCHIRPS   = "CHIRPS Daily Precipitation via Google Earth Engine"
)

const (
	cloudBit  = 1 << 10
	cirrusBit = 1 << 11

	// MODIS LST scale factor and Kelvin offset
	lstScale  = 0.02
	kelvinToC = 273.15
)

type ImageSets struct {
	Vegetation             string
	LandSurfaceTemperature string
	Precipitation          string
}

// ImageSetsFrom reads collection ids from the eeimagesets mapping.
func ImageSetsFrom(m map[string]string) ImageSets {
	return ImageSets{
		Vegetation:             m[SetVegetation],
		LandSurfaceTemperature: m[SetLandSurfaceTemperature],
		Precipitation:          m[SetPrecipitation],
	}
}

func (s ImageSets) Validate() error {
	if strings.TrimSpace(s.Vegetation) == "" ||
		strings.TrimSpace(s.LandSurfaceTemperature) == "" ||
		strings.TrimSpace(s.Precipitation) == "" {
		return model.DataUnavailable("Earth Engine image sets are not configured", nil)
	}
	return nil
}

var (
	NDVIVis = earthengine.Vis{Min: 0, Max: 1, Palette: []string{"#f7fcf5", "#74c476", "#00441b"}}
	LSTVis  = earthengine.Vis{Min: 10, Max: 40, Palette: []string{"#2c7bb6", "#ffffbf", "#d7191c"}}
	NDWIVis = earthengine.Vis{Min: -0.3, Max: 0.6, Palette: []string{"#bdbdbd", "#41b6c4", "#0c2c84"}}
	RiskVis = earthengine.Vis{Min: 0, Max: 2, Palette: model.RiskPalette()}
)

// PrecipVis scales the colour ramp to the window: 20 mm per day, clamped to [100, 3000].
func PrecipVis(windowDays int) earthengine.Vis {
	hi := min(3000, max(100, windowDays*20))
	return earthengine.Vis{Min: 0, Max: float64(hi), Palette: []string{"#f7fbff", "#6baed6", "#08306b"}}
}

func Continuous(v earthengine.Vis, unit string) model.Legend {
	return model.Legend{
		Type:    model.LegendContinuous,
		Min:     v.Min,
		Max:     v.Max,
		Palette: append([]string(nil), v.Palette...),
		Unit:    unit,
	}
}

// Composites holds per-driver images for one region and date range. The
// Sentinel-2 median is built once and shared by NDVI and NDWI.
type Composites struct {
	region expr.Geometry
	s2     expr.Image
	lst    expr.Image
	precip expr.Image
}

func Build(sets ImageSets, region expr.Geometry, r model.DateRange) (*Composites, error) {
	if err := sets.Validate(); err != nil {
		return nil, err
	}
	// filterDate is end-exclusive; the range is inclusive
	start, end := r.Start, r.End.AddDate(0, 0, 1)

	s2 := expr.LoadCollection(sets.Vegetation).
		FilterDate(start, end).
		FilterBounds(region).
		Map(maskS2Clouds).
		Median()

	lst := expr.LoadCollection(sets.LandSurfaceTemperature).
		FilterDate(start, end).
		FilterBounds(region).
		Select("LST_Day_1km").
		Mean().
		Multiply(lstScale).
		Subtract(kelvinToC)

	precip := expr.LoadCollection(sets.Precipitation).
		FilterDate(start, end).
		FilterBounds(region).
		Sum()

	return &Composites{region: region, s2: s2, lst: lst, precip: precip}, nil
}

func maskS2Clouds(img expr.Image) expr.Image {
	qa := img.Select("QA60")
	mask := qa.BitwiseAnd(cloudBit).Eq(0).And(qa.BitwiseAnd(cirrusBit).Eq(0))
	return img.UpdateMask(mask)
}

func (c *Composites) Region() expr.Geometry { return c.region }

func (c *Composites) NDVI() expr.Image {
	return c.s2.NormalizedDifference("B8", "B4").Rename("ndvi").Clip(c.region)
}

func (c *Composites) NDWI() expr.Image {
	return c.s2.NormalizedDifference("B3", "B8").Rename("ndwi").Clip(c.region)
}

func (c *Composites) LST() expr.Image {
	return c.lst.Rename("lst_c").Clip(c.region)
}

func (c *Composites) Precipitation() expr.Image {
	return c.precip.Rename("precip_mm").Clip(c.region)
}
