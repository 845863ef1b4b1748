package expr

import (
	"fmt"

	"github.com/goccy/go-json"

	"github.com/mohammed-shakir/mosquito-risk/internal/core/model"
)

type Geometry struct{ n *Node }

func (g Geometry) Node() *Node { return g.n }

func Point(lng, lat float64) Geometry {
	return Geometry{n: Invoke("GeometryConstructors.Point", map[string]*Node{
		"coordinates": Const([]float64{lng, lat}),
	})}
}

// Polygon takes rings of [lng, lat] pairs; the first ring is the shell.
func Polygon(rings [][][]float64) Geometry {
	return Geometry{n: Invoke("GeometryConstructors.Polygon", map[string]*Node{
		"coordinates": Const(rings),
		"geodesic":    Const(false),
	})}
}

func MultiPolygon(polys [][][][]float64) Geometry {
	return Geometry{n: Invoke("GeometryConstructors.MultiPolygon", map[string]*Node{
		"coordinates": Const(polys),
		"geodesic":    Const(false),
	})}
}

// FromGeoJSON converts a Point, Polygon or MultiPolygon.
func FromGeoJSON(g model.Geometry) (Geometry, error) {
	switch g.Type {
	case "Point":
		lng, lat, ok := g.Point()
		if !ok {
			return Geometry{}, fmt.Errorf("malformed point coordinates")
		}
		return Point(lng, lat), nil
	case "Polygon":
		var rings [][][]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return Geometry{}, fmt.Errorf("parse polygon coords: %w", err)
		}
		if len(rings) == 0 {
			return Geometry{}, fmt.Errorf("empty polygon")
		}
		return Polygon(rings), nil
	case "MultiPolygon":
		var polys [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return Geometry{}, fmt.Errorf("parse multipolygon coords: %w", err)
		}
		if len(polys) == 0 {
			return Geometry{}, fmt.Errorf("empty multipolygon")
		}
		return MultiPolygon(polys), nil
	default:
		return Geometry{}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
}

// Buffer grows the geometry by meters.
func (g Geometry) Buffer(meters float64) Geometry {
	return Geometry{n: Invoke("Geometry.buffer", map[string]*Node{
		"geometry": g.n,
		"distance": Const(meters),
	})}
}

func (g Geometry) Bounds() Geometry {
	return Geometry{n: Invoke("Geometry.bounds", map[string]*Node{"geometry": g.n})}
}
