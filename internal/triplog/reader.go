package triplog

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pemalang/roadsense/internal/models"
)

// ReadAll parses an entire trip log back into readings. The header row is
// validated and skipped. An empty (header-only) log yields an empty slice.
func ReadAll(path string) ([]models.Reading, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trip log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("error reading trip log: %w", err)
		}
		return nil, fmt.Errorf("trip log %s is empty, missing header", path)
	}
	if scanner.Text() != Header {
		return nil, fmt.Errorf("unrecognized trip log header: %q", scanner.Text())
	}

	var readings []models.Reading
	line := 1
	for scanner.Scan() {
		line++
		if scanner.Text() == "" {
			continue
		}
		r, err := ParseRow(scanner.Text())
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		readings = append(readings, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading trip log: %w", err)
	}
	return readings, nil
}

// CountRows returns the number of data rows currently in the log without
// materializing the readings. Used to observe incremental batch flushes.
func CountRows(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open trip log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	rows := -1 // do not count the header
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		rows++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("error reading trip log: %w", err)
	}
	if rows < 0 {
		rows = 0
	}
	return rows, nil
}
