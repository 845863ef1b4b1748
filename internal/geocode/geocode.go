// Package geocode resolves free-text locations to a label, geometry and bounding box.
package geocode

import (
	"context"
	"strings"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
)

type Geocoder interface {
	Geocode(ctx context.Context, text string) (Result, error)
}

type Result struct {
	Label    string
	Geometry model.Geometry
	BBox     *model.BBox
}

// LocationFromResult builds a geocoded location; the label falls back to the input text.
func LocationFromResult(id, text string, r Result) model.Location {
	label := r.Label
	if strings.TrimSpace(label) == "" {
		label = text
	}
	return model.Location{
		ID:       id,
		Label:    label,
		Source:   model.SourceGeocodedText,
		Geometry: r.Geometry,
		BBox:     r.BBox,
	}
}

// Stub is used when no provider is configured.
type Stub struct{}

func (Stub) Geocode(context.Context, string) (Result, error) {
	return Result{}, model.InvalidLocation("Geocoding is not configured", nil)
}

func requireText(text string) (string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", model.InvalidLocation("Location text is required", nil)
	}
	return t, nil
}
