package benchmark

import "strings"

// DefaultDecoyMarkers are substrings of the scripted replies sent by known
// fake-ollama deployments.
var DefaultDecoyMarkers = []string{"fake-ollama", "这是一条来自", "固定回复"}

// DecoyDetector flags generation output that is a canned reply.
type DecoyDetector struct {
	markers []string
}

// NewDecoyDetector uses DefaultDecoyMarkers when markers is empty.
func NewDecoyDetector(markers []string) *DecoyDetector {
	cleaned := make([]string, 0, len(markers))
	for _, m := range markers {
		if m != "" {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		cleaned = append(cleaned, DefaultDecoyMarkers...)
	}
	return &DecoyDetector{markers: cleaned}
}

func (d *DecoyDetector) IsDecoy(text string) bool {
	for _, m := range d.markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func (d *DecoyDetector) Markers() []string {
	return append([]string(nil), d.markers...)
}
