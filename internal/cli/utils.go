package cli

import (
	"path/filepath"
	"time"

	"github.com/pemalang/roadsense/internal/prefs"
	"github.com/pemalang/roadsense/internal/tripstore"
)

func prefsPath() string {
	return filepath.Join(dataDir, "prefs.yaml")
}

func dbPath() string {
	return filepath.Join(dataDir, "trips.db")
}

func tripsDir() string {
	return filepath.Join(dataDir, "trips")
}

func openStores() (*prefs.Store, *tripstore.Store, error) {
	p, err := prefs.Open(prefsPath())
	if err != nil {
		return nil, nil, err
	}
	s, err := tripstore.Open(dbPath())
	if err != nil {
		return nil, nil, err
	}
	return p, s, nil
}

func formatTime(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04:05")
}
