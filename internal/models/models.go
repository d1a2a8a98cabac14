package models

// Reading is one fused sample: a smoothed accelerometer vector plus the
// fields of the most recent location fix, if one has been seen. Location
// fields are either all taken from the same fix or all nil; optional fix
// measurements the platform did not supply stay nil, never zero.
type Reading struct {
	TimestampMS int64   `json:"ts"`
	AccelX      float32 `json:"ax"`
	AccelY      float32 `json:"ay"`
	AccelZ      float32 `json:"az"`
	Magnitude   float32 `json:"magnitude"`

	Lat      *float64 `json:"lat,omitempty"`
	Lon      *float64 `json:"lon,omitempty"`
	Alt      *float64 `json:"alt,omitempty"`
	Speed    *float64 `json:"speed,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
	Bearing  *float64 `json:"bearing,omitempty"`
}

// HasLocation reports whether the reading carries a coordinate pair.
func (r Reading) HasLocation() bool {
	return r.Lat != nil && r.Lon != nil
}

// Point is a single (lat, lon) coordinate on a trip path.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UploadStatus tracks a trip through the upload pipeline.
type UploadStatus string

const (
	StatusPending   UploadStatus = "pending"
	StatusUploading UploadStatus = "uploading"
	StatusUploaded  UploadStatus = "uploaded"
	StatusFailed    UploadStatus = "failed"
)

// CanTransition reports whether a status change is allowed. The only legal
// moves are pending->uploading, uploading->{uploaded,failed} and
// failed->uploading for retries.
func (s UploadStatus) CanTransition(to UploadStatus) bool {
	switch s {
	case StatusPending, StatusFailed:
		return to == StatusUploading
	case StatusUploading:
		return to == StatusUploaded || to == StatusFailed
	default:
		return false
	}
}

// Trip is one recording session, start to finish. EndTime and Duration stay
// zero while the trip is in progress; Distance is monotonically
// non-decreasing until FinishTrip freezes it.
type Trip struct {
	TripID       string       `json:"trip_id"`
	UserID       string       `json:"user_id"`
	StartTime    int64        `json:"start_time"` // ms since epoch
	EndTime      int64        `json:"end_time"`
	Duration     int64        `json:"duration"` // seconds
	Distance     float64      `json:"distance"` // meters
	DataFilePath string       `json:"data_file_path"`
	UploadStatus UploadStatus `json:"upload_status"`
	CreatedAt    int64        `json:"created_at"`
}

// CameraEvent records a shock that crossed the sensitivity threshold.
// Coordinates are nil when no fix was available at the time of the event.
type CameraEvent struct {
	EventID          string   `json:"event_id"`
	TripID           string   `json:"trip_id"`
	Timestamp        int64    `json:"timestamp"`
	Lat              *float64 `json:"lat,omitempty"`
	Lon              *float64 `json:"lon,omitempty"`
	ImagePath        string   `json:"image_path"`
	TriggerMagnitude float32  `json:"trigger_magnitude"`
}

// SessionConfig is read once at session start; mid-session changes are not
// applied retroactively.
type SessionConfig struct {
	SamplingRateHz int     // accelerometer rate
	GPSIntervalSec int     // location fix interval
	SensitivityG   float64 // shock detection threshold, in g
}

// DefaultSessionConfig returns the stock configuration: 50 Hz sampling,
// 1 s fix interval, 2.0 g shock threshold.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SamplingRateHz: 50,
		GPSIntervalSec: 1,
		SensitivityG:   2.0,
	}
}
