package h3mapper

import (
	"fmt"
	"math"

	h3 "github.com/uber/h3-go/v4"
)

const DefaultRes = 7

type Point struct {
	Lat float64
	Lng float64
}

type Mapper struct {
	res int
}

// New returns a mapper snapping at res; out-of-range values fall back to DefaultRes.
func New(res int) *Mapper {
	if validateRes(res) != nil {
		res = DefaultRes
	}
	return &Mapper{res: res}
}

func (m *Mapper) Res() int { return m.res }

// Snap returns the centre of the cell containing (lat, lng) at the mapper's resolution.
func (m *Mapper) Snap(lat, lng float64) (Point, string, error) {
	return Snap(lat, lng, m.res)
}

// Snap returns the centre of the resolution-res cell containing (lat, lng) and the cell id.
func Snap(lat, lng float64, res int) (Point, string, error) {
	if err := validateRes(res); err != nil {
		return Point{}, "", err
	}
	if math.IsNaN(lat) || math.IsNaN(lng) || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Point{}, "", fmt.Errorf("coordinate out of range: lat=%v lng=%v", lat, lng)
	}
	cell, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lng}, res)
	if err != nil {
		return Point{}, "", fmt.Errorf("h3 cell: %w", err)
	}
	c, err := cell.LatLng()
	if err != nil {
		return Point{}, "", fmt.Errorf("h3 centre: %w", err)
	}
	return Point{Lat: c.Lat, Lng: c.Lng}, cell.String(), nil
}

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}
