package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHasLocation(t *testing.T) {
	lat, lon := -6.89, 109.38
	tests := []struct {
		name     string
		reading  Reading
		expected bool
	}{
		{"no location", Reading{Magnitude: 1}, false},
		{"both coordinates", Reading{Lat: &lat, Lon: &lon}, true},
		{"latitude only", Reading{Lat: &lat}, false},
		{"longitude only", Reading{Lon: &lon}, false},
	}

	for _, test := range tests {
		if got := test.reading.HasLocation(); got != test.expected {
			t.Errorf("%s: expected %v, got %v", test.name, test.expected, got)
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to UploadStatus
		allowed  bool
	}{
		{StatusPending, StatusUploading, true},
		{StatusUploading, StatusUploaded, true},
		{StatusUploading, StatusFailed, true},
		{StatusFailed, StatusUploading, true},

		{StatusPending, StatusUploaded, false},
		{StatusPending, StatusFailed, false},
		{StatusUploaded, StatusUploading, false},
		{StatusUploaded, StatusPending, false},
		{StatusFailed, StatusUploaded, false},
		{StatusUploading, StatusPending, false},
	}

	for _, test := range tests {
		if got := test.from.CanTransition(test.to); got != test.allowed {
			t.Errorf("%s -> %s: expected %v, got %v", test.from, test.to, test.allowed, got)
		}
	}
}

func TestReadingJSONOmitsAbsentFields(t *testing.T) {
	raw, err := json.Marshal(Reading{TimestampMS: 1, Magnitude: 1})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "lat") {
		t.Errorf("expected absent location omitted, got %s", raw)
	}

	lat, lon := -6.89, 109.38
	raw, err = json.Marshal(Reading{TimestampMS: 1, Magnitude: 1, Lat: &lat, Lon: &lon})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"lat":-6.89`) {
		t.Errorf("expected latitude in payload, got %s", raw)
	}
}

func TestDefaultSessionConfig(t *testing.T) {
	cfg := DefaultSessionConfig()
	if cfg.SamplingRateHz != 50 {
		t.Errorf("expected 50 Hz, got %d", cfg.SamplingRateHz)
	}
	if cfg.GPSIntervalSec != 1 {
		t.Errorf("expected 1 s interval, got %d", cfg.GPSIntervalSec)
	}
	if cfg.SensitivityG != 2.0 {
		t.Errorf("expected 2.0 g threshold, got %v", cfg.SensitivityG)
	}
}
