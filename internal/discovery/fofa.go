package discovery

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/ollamon/internal/fetch"
	"github.com/MrSnakeDoc/ollamon/internal/logger"
)

// Getter is the subset of fetch.Client used for discovery.
type Getter interface {
	Get(ctx context.Context, url string, header http.Header) (*fetch.Response, error)
}

// Result is the outcome of one search. Err is set and Hosts is empty when
// the search failed.
type Result struct {
	Filter string
	Hosts  []string
	Err    error
}

// ErrorMessage is a printable form of Err, empty on success.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Fofa scrapes the public FOFA result page for Ollama hosts.
type Fofa struct {
	client    Getter
	baseURL   string
	userAgent string
	logger    logger.Logger
	dump      *Dump
}

// NewFofa creates a FOFA adapter. dump may be nil.
func NewFofa(client Getter, baseURL, userAgent string, log logger.Logger, dump *Dump) *Fofa {
	return &Fofa{
		client:    client,
		baseURL:   baseURL,
		userAgent: userAgent,
		logger:    log,
		dump:      dump,
	}
}

// Query builds the search expression for one country.
func (f *Fofa) Query(country string) string {
	return fmt.Sprintf(`app="Ollama" && country="%s"`, country)
}

// SearchURL returns the result page URL for one country. The base64 text is
// passed as-is, the way the site's own search box builds it.
func (f *Fofa) SearchURL(country string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(f.Query(country)))
	return f.baseURL + "/result?qbase64=" + encoded
}

// Search fetches one result page and extracts its hosts. It never panics.
func (f *Fofa) Search(ctx context.Context, country string) (res Result) {
	res.Filter = country
	defer func() {
		if r := recover(); r != nil {
			res = Result{Filter: country, Err: fmt.Errorf("search for %s panicked: %v", country, r)}
		}
	}()

	header := http.Header{}
	header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Get(ctx, f.SearchURL(country), header)
	if err != nil {
		f.logger.Warn("discovery search failed",
			logger.String("country", country),
			logger.String("kind", string(fetch.Classify(err))),
			logger.Error(err))
		return Result{Filter: country, Err: fmt.Errorf("search for %s failed: %w", country, err)}
	}

	res.Hosts = ExtractHosts(string(resp.Body))
	f.logger.Info("discovery search finished",
		logger.String("country", country),
		logger.Int("hosts", len(res.Hosts)))

	if f.dump != nil && len(res.Hosts) > 0 {
		if err := f.dump.Append(res.Hosts); err != nil {
			f.logger.Warn("failed to append discovered hosts", logger.Error(err))
		}
	}

	return res
}

// SearchAll runs one search per country concurrently and concatenates the
// hosts in country order.
func (f *Fofa) SearchAll(ctx context.Context, countries []string) ([]string, []Result) {
	results := make([]Result, len(countries))

	var g errgroup.Group
	for i, country := range countries {
		g.Go(func() error {
			results[i] = f.Search(ctx, country)
			return nil
		})
	}
	_ = g.Wait()

	var hosts []string
	for _, r := range results {
		hosts = append(hosts, r.Hosts...)
	}
	return hosts, results
}

// Source adapts a Fofa adapter and its country list to a host source.
type Source struct {
	fofa      *Fofa
	countries []string
}

func NewSource(fofa *Fofa, countries []string) *Source {
	return &Source{fofa: fofa, countries: countries}
}

func (s *Source) Name() string { return "fofa" }

// Hosts returns every host found. The error joins per-country failures and
// is informational: hosts from successful countries are still returned.
func (s *Source) Hosts(ctx context.Context) ([]string, error) {
	hosts, results := s.fofa.SearchAll(ctx, s.countries)

	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return hosts, errors.Join(errs...)
}
