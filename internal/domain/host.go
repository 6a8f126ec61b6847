package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidHost is returned when a candidate cannot be turned into a base URL.
var ErrInvalidHost = errors.New("invalid host")

// NormalizeHost turns a raw candidate into its identity form: scheme and host
// lowercased, no path, query, fragment or trailing slash. A missing scheme
// defaults to http.
func NormalizeHost(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidHost)
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidHost, raw, err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidHost, u.Scheme)
	}
	if u.Host == "" || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no address", ErrInvalidHost, raw)
	}

	return scheme + "://" + strings.ToLower(u.Host), nil
}

// MergeHosts unions several candidate lists into one normalized, deduplicated
// list in first-seen order. Invalid entries are returned separately.
func MergeHosts(lists ...[]string) (hosts []string, invalid []string) {
	seen := make(map[string]struct{})
	for _, list := range lists {
		for _, raw := range list {
			h, err := NormalizeHost(raw)
			if err != nil {
				invalid = append(invalid, raw)
				continue
			}
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			hosts = append(hosts, h)
		}
	}
	return hosts, invalid
}

// EncodeHost percent-encodes a host for storage. Only letters, digits and
// -_.!~*'() are left as is, so members written by other writers of the set
// stay comparable.
func EncodeHost(host string) string {
	escaped := url.QueryEscape(host)
	escaped = strings.ReplaceAll(escaped, "+", "%20")
	r := strings.NewReplacer("%21", "!", "%27", "'", "%28", "(", "%29", ")", "%2A", "*")
	return r.Replace(escaped)
}

// DecodeHost reverses EncodeHost. Members that were stored unencoded pass through.
func DecodeHost(member string) (string, error) {
	h, err := url.PathUnescape(member)
	if err != nil {
		return "", fmt.Errorf("failed to decode host %q: %w", member, err)
	}
	return h, nil
}
