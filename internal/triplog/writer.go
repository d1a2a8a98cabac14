package triplog

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pemalang/roadsense/internal/models"
)

// BatchSize is the number of buffered rows that triggers an automatic
// flush. Batching amortizes file-system call overhead at the cost of a
// bounded durability window: if the process dies before a flush, at most
// BatchSize-1 rows are lost.
const BatchSize = 50

// Writer appends readings to a per-trip log file. Rows accumulate in an
// in-memory buffer guarded by a mutex; the buffer is swapped out under the
// lock and written outside it, so the lock is never held during disk I/O.
type Writer struct {
	mu   sync.Mutex
	file *os.File
	rows []string
	path string
}

// Create opens a fresh log file at path and writes the header row through
// to disk immediately.
func Create(path string) (*Writer, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create trip log: %w", err)
	}
	if _, err := file.WriteString(Header + "\n"); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write trip log header: %w", err)
	}
	return &Writer{
		file: file,
		rows: make([]string, 0, BatchSize+10),
		path: path,
	}, nil
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Append buffers one reading and flushes the batch once BatchSize rows have
// accumulated. Callers are expected to be serialized (one fusion loop).
func (w *Writer) Append(r models.Reading) error {
	w.mu.Lock()
	w.rows = append(w.rows, FormatRow(r))
	full := len(w.rows) >= BatchSize
	w.mu.Unlock()

	if full {
		return w.Flush()
	}
	return nil
}

// Flush writes all buffered rows to the file in a single I/O operation.
func (w *Writer) Flush() error {
	w.mu.Lock()
	if len(w.rows) == 0 {
		w.mu.Unlock()
		return nil
	}
	chunk := w.rows
	w.rows = make([]string, 0, BatchSize+10)
	w.mu.Unlock()

	if _, err := w.file.WriteString(strings.Join(chunk, "\n") + "\n"); err != nil {
		return fmt.Errorf("failed to write batch of %d rows: %w", len(chunk), err)
	}
	return nil
}

// Close flushes any remaining rows and closes the file. The flush error
// wins over the close error: a silently truncated log is worse than a
// leaked descriptor.
func (w *Writer) Close() error {
	flushErr := w.Flush()
	if err := w.file.Close(); flushErr == nil && err != nil {
		return fmt.Errorf("failed to close trip log: %w", err)
	}
	return flushErr
}
