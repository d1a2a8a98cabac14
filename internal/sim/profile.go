package sim

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile describes a simulated drive: where it starts, how fast it moves,
// and how rough the road is over time. Phases carve the drive into stages
// with their own roughness.
type Profile struct {
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	StartLat    float64 `yaml:"start_lat"`
	StartLon    float64 `yaml:"start_lon"`
	HeadingDeg  float64 `yaml:"heading_deg"`
	SpeedKPH    float64 `yaml:"speed_kph"`
	NoiseG      float64 `yaml:"noise_g"`
	BumpsPerMin float64 `yaml:"bumps_per_minute"`
	Phases      []Phase `yaml:"phases,omitempty"`
}

// Phase overrides roughness for a stretch of the drive. Zero values
// inherit from the profile.
type Phase struct {
	Name        string  `yaml:"name"`
	Duration    string  `yaml:"duration"`
	SpeedKPH    float64 `yaml:"speed_kph,omitempty"`
	NoiseG      float64 `yaml:"noise_g,omitempty"`
	BumpsPerMin float64 `yaml:"bumps_per_minute,omitempty"`
}

// DefaultProfile is a moderately bumpy suburban drive through Pemalang.
func DefaultProfile() *Profile {
	return &Profile{
		Name:        "default",
		Description: "steady drive with occasional potholes",
		StartLat:    -6.8898,
		StartLon:    109.3781,
		HeadingDeg:  90,
		SpeedKPH:    40,
		NoiseG:      0.05,
		BumpsPerMin: 6,
	}
}

// LoadProfile reads a drive profile from a YAML file.
func LoadProfile(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive profile: %w", err)
	}
	p := DefaultProfile()
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("failed to parse drive profile: %w", err)
	}
	if p.SpeedKPH < 0 {
		return nil, fmt.Errorf("drive profile %s: speed must be non-negative", p.Name)
	}
	return p, nil
}

// conditions are the effective roughness parameters at a point in time.
type conditions struct {
	speedKPH    float64
	noiseG      float64
	bumpsPerMin float64
}

// at resolves the phase covering elapsed and merges it over the profile
// defaults. Past the final phase the last one stays in effect.
func (p *Profile) at(elapsed time.Duration) conditions {
	c := conditions{speedKPH: p.SpeedKPH, noiseG: p.NoiseG, bumpsPerMin: p.BumpsPerMin}
	if len(p.Phases) == 0 {
		return c
	}

	var offset time.Duration
	phase := p.Phases[len(p.Phases)-1]
	for _, ph := range p.Phases {
		d, err := time.ParseDuration(ph.Duration)
		if err != nil {
			continue
		}
		if elapsed < offset+d {
			phase = ph
			break
		}
		offset += d
	}

	if phase.SpeedKPH > 0 {
		c.speedKPH = phase.SpeedKPH
	}
	if phase.NoiseG > 0 {
		c.noiseG = phase.NoiseG
	}
	if phase.BumpsPerMin > 0 {
		c.bumpsPerMin = phase.BumpsPerMin
	}
	return c
}
