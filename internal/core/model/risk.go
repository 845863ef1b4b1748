package model

type RiskBandCode string

const (
	RiskLow    RiskBandCode = "low"
	RiskMedium RiskBandCode = "medium"
	RiskHigh   RiskBandCode = "high"
)

// Index is the raster class value for the band (low=0, medium=1, high=2).
func (c RiskBandCode) Index() int {
	switch c {
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	default:
		return 0
	}
}

type RiskBand struct {
	Code  RiskBandCode `json:"code"`
	Label string       `json:"label"`
	Color string       `json:"color"`
}

var riskBands = [...]RiskBand{
	{Code: RiskLow, Label: "Low", Color: "#2E7D32"},
	{Code: RiskMedium, Label: "Medium", Color: "#F9A825"},
	{Code: RiskHigh, Label: "High", Color: "#C62828"},
}

// DefaultRiskBands returns the ordered low, medium, high bands. The slice is a copy.
func DefaultRiskBands() []RiskBand {
	out := make([]RiskBand, len(riskBands))
	copy(out, riskBands[:])
	return out
}

func RiskPalette() []string {
	out := make([]string, 0, len(riskBands))
	for _, b := range riskBands {
		out = append(out, b.Color)
	}
	return out
}
