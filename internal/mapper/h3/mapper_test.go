package h3mapper

import (
	"math"
	"testing"
)

func TestSnap_IdempotentOnCentre(t *testing.T) {
	p, cell, err := Snap(25.7617, -80.1918, 7)
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	if cell == "" {
		t.Fatalf("expected a cell id")
	}
	p2, cell2, err := Snap(p.Lat, p.Lng, 7)
	if err != nil {
		t.Fatalf("Snap centre: %v", err)
	}
	if cell2 != cell {
		t.Fatalf("centre mapped to %s, want %s", cell2, cell)
	}
	if math.Abs(p2.Lat-p.Lat) > 1e-9 || math.Abs(p2.Lng-p.Lng) > 1e-9 {
		t.Fatalf("centre moved: %+v -> %+v", p, p2)
	}
}

func TestSnap_NearbyPointsShareCentre(t *testing.T) {
	a, ca, err := Snap(25.76170, -80.19180, 7)
	if err != nil {
		t.Fatal(err)
	}
	b, cb, err := Snap(25.76175, -80.19185, 7)
	if err != nil {
		t.Fatal(err)
	}
	if ca != cb || a != b {
		t.Fatalf("expected same cell, got %s %s", ca, cb)
	}
}

func TestSnap_CentreIsClose(t *testing.T) {
	lat, lng := 27.8, -81.7
	p, _, err := Snap(lat, lng, 7)
	if err != nil {
		t.Fatal(err)
	}
	// res 7 edge is ~1.2 km
	if math.Abs(p.Lat-lat) > 0.05 || math.Abs(p.Lng-lng) > 0.05 {
		t.Fatalf("centre too far: %+v", p)
	}
}

func TestSnap_InvalidInput(t *testing.T) {
	if _, _, err := Snap(10, 10, 16); err == nil {
		t.Fatalf("expected error for res 16")
	}
	if _, _, err := Snap(10, 10, -1); err == nil {
		t.Fatalf("expected error for res -1")
	}
	if _, _, err := Snap(91, 10, 7); err == nil {
		t.Fatalf("expected error for lat 91")
	}
	if _, _, err := Snap(math.NaN(), 10, 7); err == nil {
		t.Fatalf("expected error for NaN")
	}
}

func TestNew_FallsBackToDefaultRes(t *testing.T) {
	if got := New(42).Res(); got != DefaultRes {
		t.Fatalf("res=%d want %d", got, DefaultRes)
	}
	if got := New(9).Res(); got != 9 {
		t.Fatalf("res=%d want 9", got)
	}
}
