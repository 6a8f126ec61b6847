package seed

import (
	"context"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles loading and parsing of the seed hosts file
type Loader struct {
	filePath string
}

// NewLoader creates a new seed file loader
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
	}
}

// Load reads and parses the seed file. ${VAR} references are expanded from
// the environment so private hosts can stay out of the file.
func (l *Loader) Load() (*File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}

	servers := file.Servers[:0]
	for _, s := range file.Servers {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	file.Servers = servers

	return &file, nil
}

func (l *Loader) Name() string { return "seedfile" }

// Hosts re-reads the file on every call so edits apply on the next cycle.
func (l *Loader) Hosts(_ context.Context) ([]string, error) {
	file, err := l.Load()
	if err != nil {
		return nil, err
	}
	return file.Servers, nil
}
