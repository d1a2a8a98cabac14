package receiver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Archive persists uploads accepted by the server.
type Archive interface {
	Save(upload *TripUpload) error
}

// DirArchive stores each trip in its own directory: metadata as JSON, the
// sensor log as CSV, capture images alongside.
type DirArchive struct {
	dir string
	mu  sync.Mutex
}

// NewDirArchive creates the archive root if needed.
func NewDirArchive(dir string) (*DirArchive, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &DirArchive{dir: dir}, nil
}

// Save implements Archive.
func (a *DirArchive) Save(upload *TripUpload) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tripDir := filepath.Join(a.dir, upload.TripID)
	if err := os.MkdirAll(tripDir, 0o755); err != nil {
		return fmt.Errorf("failed to create trip directory: %w", err)
	}

	meta, err := json.MarshalIndent(upload.Trip, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal trip metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tripDir, "trip.json"), meta, 0o644); err != nil {
		return fmt.Errorf("failed to write trip metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tripDir, "data.csv"), upload.Data, 0o644); err != nil {
		return fmt.Errorf("failed to write sensor log: %w", err)
	}

	if len(upload.Images) > 0 {
		imgDir := filepath.Join(tripDir, "images")
		if err := os.MkdirAll(imgDir, 0o755); err != nil {
			return fmt.Errorf("failed to create image directory: %w", err)
		}
		for name, data := range upload.Images {
			if err := os.WriteFile(filepath.Join(imgDir, filepath.Base(name)), data, 0o644); err != nil {
				return fmt.Errorf("failed to write image %s: %w", name, err)
			}
		}
	}
	return nil
}

// MultiArchive saves to several archives in order.
type MultiArchive struct {
	archives []Archive
}

// NewMultiArchive creates an archive that fans out to all given archives.
func NewMultiArchive(archives ...Archive) *MultiArchive {
	return &MultiArchive{archives: archives}
}

// Save implements Archive.
func (a *MultiArchive) Save(upload *TripUpload) error {
	for _, archive := range a.archives {
		if err := archive.Save(upload); err != nil {
			return err
		}
	}
	return nil
}
