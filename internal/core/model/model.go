// Package model defines core domain types shared across the service.
package model

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

type LocationSource string

const (
	SourceDefaultState LocationSource = "default_state"
	SourceGeocodedText LocationSource = "geocoded_text"
)

// BBox is minx, miny, maxx, maxy in EPSG:4326 degrees.
type BBox struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

func (b BBox) Center() (lat, lng float64) {
	return (b.MinY + b.MaxY) / 2.0, (b.MinX + b.MaxX) / 2.0
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", b.MinX, b.MinY, b.MaxX, b.MaxY)
}

// Geometry is a GeoJSON geometry; coordinates stay raw until a consumer
// needs them in a typed shape.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func PointGeometry(lng, lat float64) Geometry {
	raw, _ := json.Marshal([]float64{lng, lat})
	return Geometry{Type: "Point", Coordinates: raw}
}

// Point returns lng, lat for Point geometries.
func (g Geometry) Point() (lng, lat float64, ok bool) {
	if g.Type != "Point" {
		return 0, 0, false
	}
	var xy []float64
	if err := json.Unmarshal(g.Coordinates, &xy); err != nil || len(xy) != 2 {
		return 0, 0, false
	}
	return xy[0], xy[1], true
}

func (g Geometry) Validate() error {
	switch g.Type {
	case "Point", "Polygon", "MultiPolygon":
	case "":
		return errors.New("geometry type is empty")
	default:
		return fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	if len(g.Coordinates) == 0 {
		return errors.New("geometry has no coordinates")
	}
	return nil
}

// Location is immutable once built; pass by value.
type Location struct {
	ID       string
	Label    string
	Source   LocationSource
	Geometry Geometry
	BBox     *BBox
}

type Viewport struct {
	CenterLat    float64 `json:"center_lat"`
	CenterLng    float64 `json:"center_lng"`
	RadiusMeters float64 `json:"radius_meters"`
}
