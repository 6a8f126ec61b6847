package discovery

import "strings"

// Markers around each host link on a FOFA result page.
const (
	HostStartMarker = `hsxa-host"><a href="`
	HostEndMarker   = `"`
)

// ExtractHosts scans page once, left to right, collecting the text between
// each start marker and the next end marker. The scan stops at the first
// start marker without a matching end marker. Hosts are returned in document
// order and are not deduplicated.
func ExtractHosts(page string) []string {
	var hosts []string
	cursor := 0
	for {
		start := strings.Index(page[cursor:], HostStartMarker)
		if start == -1 {
			break
		}
		valueStart := cursor + start + len(HostStartMarker)

		end := strings.Index(page[valueStart:], HostEndMarker)
		if end == -1 {
			break
		}
		valueEnd := valueStart + end

		hosts = append(hosts, page[valueStart:valueEnd])
		cursor = valueEnd
	}
	return hosts
}
