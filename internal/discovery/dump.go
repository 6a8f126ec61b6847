package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Dump appends discovered hosts to a plain text file, one per line.
type Dump struct {
	mu   sync.Mutex
	path string
}

func NewDump(path string) *Dump {
	return &Dump{path: path}
}

func (d *Dump) Append(hosts []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("failed to create dump directory: %w", err)
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open dump file: %w", err)
	}
	if _, err := f.WriteString(strings.Join(hosts, "\n") + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write dump file: %w", err)
	}
	return f.Close()
}
