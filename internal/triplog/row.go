package triplog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pemalang/roadsense/internal/models"
)

// Header is the first row of every trip log file.
const Header = "timestamp,ax,ay,az,magnitude,lat,lon,alt,speed,accuracy,bearing"

const fieldCount = 11

// FormatRow serializes a reading to one log row (no trailing newline).
// Absent optional fields render as empty, not zero, so a reader can tell
// "no fix" from a legitimate 0.0.
func FormatRow(r models.Reading) string {
	var b strings.Builder
	b.WriteString(strconv.FormatInt(r.TimestampMS, 10))
	b.WriteByte(',')
	b.WriteString(formatF32(r.AccelX))
	b.WriteByte(',')
	b.WriteString(formatF32(r.AccelY))
	b.WriteByte(',')
	b.WriteString(formatF32(r.AccelZ))
	b.WriteByte(',')
	b.WriteString(formatF32(r.Magnitude))
	b.WriteByte(',')
	b.WriteString(formatOpt(r.Lat))
	b.WriteByte(',')
	b.WriteString(formatOpt(r.Lon))
	b.WriteByte(',')
	b.WriteString(formatOpt(r.Alt))
	b.WriteByte(',')
	b.WriteString(formatOpt(r.Speed))
	b.WriteByte(',')
	b.WriteString(formatOpt(r.Accuracy))
	b.WriteByte(',')
	b.WriteString(formatOpt(r.Bearing))
	return b.String()
}

// ParseRow reconstructs a reading from one log row. Empty optional fields
// come back as nil.
func ParseRow(row string) (models.Reading, error) {
	fields := strings.Split(row, ",")
	if len(fields) != fieldCount {
		return models.Reading{}, fmt.Errorf("expected %d fields, got %d", fieldCount, len(fields))
	}

	var r models.Reading
	var err error

	if r.TimestampMS, err = strconv.ParseInt(fields[0], 10, 64); err != nil {
		return models.Reading{}, fmt.Errorf("bad timestamp %q: %w", fields[0], err)
	}
	if r.AccelX, err = parseF32(fields[1]); err != nil {
		return models.Reading{}, fmt.Errorf("bad ax %q: %w", fields[1], err)
	}
	if r.AccelY, err = parseF32(fields[2]); err != nil {
		return models.Reading{}, fmt.Errorf("bad ay %q: %w", fields[2], err)
	}
	if r.AccelZ, err = parseF32(fields[3]); err != nil {
		return models.Reading{}, fmt.Errorf("bad az %q: %w", fields[3], err)
	}
	if r.Magnitude, err = parseF32(fields[4]); err != nil {
		return models.Reading{}, fmt.Errorf("bad magnitude %q: %w", fields[4], err)
	}

	opts := []struct {
		name string
		dst  **float64
		raw  string
	}{
		{"lat", &r.Lat, fields[5]},
		{"lon", &r.Lon, fields[6]},
		{"alt", &r.Alt, fields[7]},
		{"speed", &r.Speed, fields[8]},
		{"accuracy", &r.Accuracy, fields[9]},
		{"bearing", &r.Bearing, fields[10]},
	}
	for _, o := range opts {
		if o.raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(o.raw, 64)
		if err != nil {
			return models.Reading{}, fmt.Errorf("bad %s %q: %w", o.name, o.raw, err)
		}
		*o.dst = &v
	}

	return r, nil
}

func formatF32(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func parseF32(s string) (float32, error) {
	v, err := strconv.ParseFloat(s, 32)
	return float32(v), err
}

func formatOpt(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}
