// Package report persists the cycle's ServiceRecords as the dashboard's
// JSON data file.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/MrSnakeDoc/ollamon/internal/domain"
)

// FileWriter rewrites one JSON file. Readers never observe a partial file:
// the content goes to a temp file in the same directory that is then renamed.
type FileWriter struct {
	path string
}

func NewFileWriter(path string) *FileWriter {
	return &FileWriter{path: path}
}

func (w *FileWriter) Path() string { return w.path }

// Write stores records as an indented JSON array, fastest hosts first.
func (w *FileWriter) Write(records []domain.ServiceRecord) error {
	sorted := Sorted(records)

	data, err := json.MarshalIndent(sorted, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp report: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod report: %w", err)
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return fmt.Errorf("failed to publish report: %w", err)
	}
	return nil
}

// Load reads a report written by Write. A missing file is not an error.
func Load(path string) ([]domain.ServiceRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read report: %w", err)
	}

	var records []domain.ServiceRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse report %s: %w", path, err)
	}
	return records, nil
}

// Sorted returns a copy ordered by TPS desc, then server.
func Sorted(records []domain.ServiceRecord) []domain.ServiceRecord {
	out := make([]domain.ServiceRecord, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TPS != out[j].TPS {
			return out[i].TPS > out[j].TPS
		}
		return out[i].Server < out[j].Server
	})
	return out
}

// Filter keeps only the records with status success.
func Filter(records []domain.ServiceRecord, includeFailures bool) []domain.ServiceRecord {
	if includeFailures {
		return records
	}
	out := make([]domain.ServiceRecord, 0, len(records))
	for _, r := range records {
		if r.Status == domain.StatusSuccess {
			out = append(out, r)
		}
	}
	return out
}
