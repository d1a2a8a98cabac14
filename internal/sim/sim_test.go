package sim

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pemalang/roadsense/internal/sensors"
)

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile()
	if p.SpeedKPH <= 0 {
		t.Errorf("expected positive speed, got %v", p.SpeedKPH)
	}
	if p.NoiseG <= 0 {
		t.Errorf("expected positive noise, got %v", p.NoiseG)
	}
	if p.StartLat == 0 && p.StartLon == 0 {
		t.Error("expected a real start coordinate")
	}
}

func TestLoadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rough.yaml")
	content := `
name: rough-road
start_lat: -6.9
start_lon: 109.4
heading_deg: 180
speed_kph: 25
noise_g: 0.15
bumps_per_minute: 20
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if p.Name != "rough-road" {
		t.Errorf("expected name rough-road, got %q", p.Name)
	}
	if p.SpeedKPH != 25 {
		t.Errorf("expected speed 25, got %v", p.SpeedKPH)
	}
	if p.BumpsPerMin != 20 {
		t.Errorf("expected 20 bumps per minute, got %v", p.BumpsPerMin)
	}
}

func TestLoadProfileRejectsNegativeSpeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("name: bad\nspeed_kph: -5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadProfile(path); err == nil {
		t.Error("expected error for negative speed")
	}
}

func TestProfilePhases(t *testing.T) {
	p := DefaultProfile()
	p.Phases = []Phase{
		{Name: "smooth", Duration: "1m", NoiseG: 0.02},
		{Name: "potholes", Duration: "30s", NoiseG: 0.2, BumpsPerMin: 30},
	}

	tests := []struct {
		name     string
		elapsed  time.Duration
		noiseG   float64
		bumpsMin float64
	}{
		{"inside first phase", 30 * time.Second, 0.02, p.BumpsPerMin},
		{"inside second phase", 75 * time.Second, 0.2, 30},
		{"past the last phase", 5 * time.Minute, 0.2, 30},
	}

	for _, test := range tests {
		c := p.at(test.elapsed)
		if c.noiseG != test.noiseG {
			t.Errorf("%s: expected noise %v, got %v", test.name, test.noiseG, c.noiseG)
		}
		if c.bumpsPerMin != test.bumpsMin {
			t.Errorf("%s: expected %v bumps/min, got %v", test.name, test.bumpsMin, c.bumpsPerMin)
		}
		// Speed inherits from the profile when a phase leaves it zero.
		if c.speedKPH != p.SpeedKPH {
			t.Errorf("%s: expected inherited speed %v, got %v", test.name, p.SpeedKPH, c.speedKPH)
		}
	}
}

func collectSamples(t *testing.T, d *Drive, n int) []sensors.MotionSample {
	t.Helper()
	ch := make(chan sensors.MotionSample, n)
	ok := d.Register(500, func(x, y, z float32) {
		select {
		case ch <- sensors.MotionSample{X: x, Y: y, Z: z}:
		default:
		}
	})
	if !ok {
		t.Fatal("expected motion registration to succeed")
	}
	defer d.Unregister()

	samples := make([]sensors.MotionSample, 0, n)
	timeout := time.After(5 * time.Second)
	for len(samples) < n {
		select {
		case s := <-ch:
			samples = append(samples, s)
		case <-timeout:
			t.Fatalf("timed out after %d samples", len(samples))
		}
	}
	return samples
}

func TestDriveSameSeedSameSamples(t *testing.T) {
	profile := DefaultProfile()
	first := collectSamples(t, NewDrive(profile, 42), 10)
	second := collectSamples(t, NewDrive(profile, 42), 10)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("sample %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestDriveDifferentSeedsDiffer(t *testing.T) {
	profile := DefaultProfile()
	first := collectSamples(t, NewDrive(profile, 1), 5)
	second := collectSamples(t, NewDrive(profile, 2), 5)

	same := true
	for i := range first {
		if first[i] != second[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("expected different seeds to produce different samples")
	}
}

func TestDriveSamplesHoverAroundGravity(t *testing.T) {
	profile := DefaultProfile()
	profile.BumpsPerMin = 0 // no spikes, just road noise
	samples := collectSamples(t, NewDrive(profile, 7), 50)

	var sum float64
	for _, s := range samples {
		sum += float64(s.Z)
	}
	mean := sum / float64(len(samples))
	if math.Abs(mean-gravityG) > 0.1 {
		t.Errorf("expected mean z near %v g, got %v", gravityG, mean)
	}
}

func TestDriveLocationAdvances(t *testing.T) {
	profile := DefaultProfile()
	profile.HeadingDeg = 90 // due east: longitude grows, latitude holds
	d := NewDrive(profile, 3)

	fixes := make(chan sensors.Fix, 8)
	err := d.Subscribe(context.Background(), 10*time.Millisecond, func(f sensors.Fix) {
		select {
		case fixes <- f:
		default:
		}
	})
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer d.Unsubscribe()

	var first, second sensors.Fix
	select {
	case first = <-fixes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for first fix")
	}
	select {
	case second = <-fixes:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for second fix")
	}

	if second.Lon <= first.Lon {
		t.Errorf("expected longitude to advance east, got %v then %v", first.Lon, second.Lon)
	}
	if math.Abs(second.Lat-first.Lat) > 1e-6 {
		t.Errorf("expected latitude to hold on an eastward drive, got %v then %v", first.Lat, second.Lat)
	}
}

func TestDriveUnregisterStopsDelivery(t *testing.T) {
	d := NewDrive(DefaultProfile(), 5)
	var count int
	d.Register(200, func(x, y, z float32) { count++ })

	time.Sleep(30 * time.Millisecond)
	d.Unregister()
	after := count

	time.Sleep(30 * time.Millisecond)
	if count != after {
		t.Errorf("expected no deliveries after unregister, got %d more", count-after)
	}

	// Unregister without a live registration is a no-op.
	d.Unregister()
}

func TestDriveSubscribeCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDrive(DefaultProfile(), 5)
	err := d.Subscribe(ctx, time.Second, func(sensors.Fix) {})
	if err == nil {
		t.Error("expected error for cancelled context")
	}
}
