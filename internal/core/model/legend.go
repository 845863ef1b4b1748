package model

type LegendType string

const (
	LegendCategorical LegendType = "categorical"
	LegendContinuous  LegendType = "continuous"
)

type LegendCategory struct {
	Value int    `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

type Legend struct {
	Type       LegendType       `json:"type"`
	Min        float64          `json:"min"`
	Max        float64          `json:"max"`
	Palette    []string         `json:"palette"`
	Unit       string           `json:"unit,omitempty"`
	Categories []LegendCategory `json:"categories,omitempty"`
}

// RiskLegend is the categorical legend for the 0..2 risk raster.
func RiskLegend() Legend {
	bands := DefaultRiskBands()
	cats := make([]LegendCategory, 0, len(bands))
	for _, b := range bands {
		cats = append(cats, LegendCategory{Value: b.Code.Index(), Label: b.Label, Color: b.Color})
	}
	return Legend{
		Type:       LegendCategorical,
		Min:        0,
		Max:        float64(len(bands) - 1),
		Palette:    RiskPalette(),
		Categories: cats,
	}
}
