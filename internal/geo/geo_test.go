package geo

import (
	"math"
	"testing"
)

func TestHaversine(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
		tolerance              float64
	}{
		{"same point", -6.8898, 109.3781, -6.8898, 109.3781, 0, 0.001},
		{"one millidegree north", 0, 0, 0.001, 0, 111.19, 0.1},
		{"one degree of longitude at equator", 0, 0, 0, 1, 111194.9, 1},
		{"pemalang to semarang", -6.8898, 109.3781, -6.9667, 110.4167, 115000, 1000},
	}

	for _, test := range tests {
		got := Haversine(test.lat1, test.lon1, test.lat2, test.lon2)
		if math.Abs(got-test.expected) > test.tolerance {
			t.Errorf("%s: expected %.2f m, got %.2f m", test.name, test.expected, got)
		}
	}
}

func TestHaversineSymmetric(t *testing.T) {
	forward := Haversine(-6.8898, 109.3781, -6.9, 109.4)
	backward := Haversine(-6.9, 109.4, -6.8898, 109.3781)
	if math.Abs(forward-backward) > 1e-6 {
		t.Errorf("expected symmetric distance, got %v vs %v", forward, backward)
	}
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		expected               float64
	}{
		{"due north", 0, 0, 1, 0, 0},
		{"due east", 0, 0, 0, 1, 90},
		{"due south", 1, 0, 0, 0, 180},
		{"due west", 0, 1, 0, 0, 270},
	}

	for _, test := range tests {
		got := Bearing(test.lat1, test.lon1, test.lat2, test.lon2)
		if math.Abs(got-test.expected) > 0.01 {
			t.Errorf("%s: expected bearing %.1f, got %.2f", test.name, test.expected, got)
		}
	}
}

func TestDestinationPointRoundTrip(t *testing.T) {
	startLat, startLon := -6.8898, 109.3781
	lat, lon := DestinationPoint(startLat, startLon, 90, 500)

	dist := Haversine(startLat, startLon, lat, lon)
	if math.Abs(dist-500) > 0.5 {
		t.Errorf("expected destination 500 m away, got %.2f m", dist)
	}

	bearing := Bearing(startLat, startLon, lat, lon)
	if math.Abs(bearing-90) > 0.5 {
		t.Errorf("expected bearing 90, got %.2f", bearing)
	}
}
