package helper

import (
	"math"
	"testing"
)

func TestBoundingBoxAround(t *testing.T) {
	box := BoundingBoxAround(48.85, 2.35, 111)
	if math.Abs(box.MinLat-47.85) > 1e-9 || math.Abs(box.MaxLat-49.85) > 1e-9 {
		t.Fatalf("latitude span wrong: %+v", box)
	}
	// The box is square by design: longitude uses the same 111 km/degree
	// approximation as latitude.
	if math.Abs((box.MaxLng-box.MinLng)-2) > 1e-9 {
		t.Fatalf("expected a 2 degree longitude span, got %+v", box)
	}
}

func TestHaversineKm(t *testing.T) {
	if d := HaversineKm(48.85, 2.35, 48.85, 2.35); d != 0 {
		t.Fatalf("zero distance expected, got %f", d)
	}
	// Paris to London is roughly 344 km.
	d := HaversineKm(48.8566, 2.3522, 51.5074, -0.1278)
	if d < 330 || d > 360 {
		t.Fatalf("Paris-London distance out of range: %f", d)
	}
}
