// Package risk scores mosquito habitat suitability and serves risk layers.
package risk

import (
	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
	"github.com/mohammed-shakir/mosquito-risk/internal/earthengine/expr"
	"github.com/mohammed-shakir/mosquito-risk/internal/layers"
)

// Thresholds shared by the scalar and raster rules.
const (
	NDVIMin     = 0.3
	LSTMinC     = 20.0
	LSTMaxC     = 35.0
	PrecipMinMM = 10.0
)

// Score counts satisfied conditions: greener vegetation, a warm temperature
// band, and enough rain to leave standing water.
func Score(ndvi, lstC, precipMM float64) int {
	s := 0
	if ndvi > NDVIMin {
		s++
	}
	if lstC >= LSTMinC && lstC <= LSTMaxC {
		s++
	}
	if precipMM > PrecipMinMM {
		s++
	}
	return s
}

func Classify(ndvi, lstC, precipMM float64) model.RiskBandCode {
	switch Score(ndvi, lstC, precipMM) {
	case 0, 1:
		return model.RiskLow
	case 2:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// Image applies the same rule per pixel and yields class indices 0..2
// (score-1 clamped at 0), matching Classify.
func Image(c *layers.Composites) expr.Image {
	veg := c.NDVI().Gt(NDVIMin)
	lst := c.LST()
	temp := lst.Gte(LSTMinC).And(lst.Lte(LSTMaxC))
	wet := c.Precipitation().Gt(PrecipMinMM)

	score := veg.Add(temp).Add(wet)
	return score.Subtract(1).Max(expr.Constant(0)).ToInt().Rename("risk").Clip(c.Region())
}
