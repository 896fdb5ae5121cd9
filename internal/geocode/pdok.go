// Package geocode resolves Dutch place names and postcodes to their official
// municipality through the PDOK locatieserver.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"horse.fit/kerkhof/internal/place"
)

const (
	DefaultEndpoint = "https://api.pdok.nl/bzk/locatieserver/search/v3_1/free"
	DefaultRPS      = 10.0
	DefaultTimeout  = 10 * time.Second

	resultFields = "gemeentenaam,provincienaam,woonplaatsnaam"
	maxBodyBytes = 1 << 20
)

// Result is the administrative location of a place name.
type Result struct {
	Municipality string `json:"municipality"`
	Province     string `json:"province"`
	Place        string `json:"place,omitempty"`
}

type Options struct {
	Endpoint          string
	RequestsPerSecond float64
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client queries PDOK. Every request waits on a shared limiter so batch
// lookups stay within the free service's fair-use budget.
type Client struct {
	endpoint string
	http     *http.Client
	limiter  *rate.Limiter
	logger   zerolog.Logger
}

func NewClient(logger zerolog.Logger, opts Options) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("parse geocoder endpoint %q: %w", endpoint, err)
	}

	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRPS
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		limiter:  rate.NewLimiter(rate.Limit(rps), burst),
		logger:   logger,
	}, nil
}

type searchResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			Gemeentenaam   string `json:"gemeentenaam"`
			Provincienaam  string `json:"provincienaam"`
			Woonplaatsnaam string `json:"woonplaatsnaam"`
		} `json:"docs"`
	} `json:"response"`
}

// Lookup resolves a place (woonplaats) name. A name PDOK does not know is
// reported with ok=false and a nil error.
func (c *Client) Lookup(ctx context.Context, placeName string) (Result, bool, error) {
	name := strings.TrimSpace(placeName)
	if name == "" {
		return Result{}, false, nil
	}
	params := url.Values{}
	params.Set("q", name)
	params.Set("fq", "type:woonplaats")
	params.Set("rows", "1")
	params.Set("fl", resultFields)
	return c.search(ctx, params)
}

// LookupPostcode resolves a Dutch postcode by its four digit area.
func (c *Client) LookupPostcode(ctx context.Context, postcode string) (Result, bool, error) {
	key := place.PostalKey(postcode)
	if len(key) != 4 {
		return Result{}, false, nil
	}
	params := url.Values{}
	params.Set("q", "postcode:"+key)
	params.Set("rows", "1")
	params.Set("fl", resultFields)
	return c.search(ctx, params)
}

func (c *Client) search(ctx context.Context, params url.Values) (Result, bool, error) {
	if c == nil {
		return Result{}, false, errors.New("geocoder client is nil")
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, false, fmt.Errorf("wait for geocoder rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return Result{}, false, fmt.Errorf("build geocoder request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, false, fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return Result{}, false, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&decoded); err != nil {
		return Result{}, false, fmt.Errorf("decode geocoder response: %w", err)
	}
	if len(decoded.Response.Docs) == 0 {
		return Result{}, false, nil
	}

	doc := decoded.Response.Docs[0]
	municipality := strings.TrimSpace(doc.Gemeentenaam)
	if municipality == "" {
		return Result{}, false, nil
	}
	return Result{
		Municipality: municipality,
		Province:     place.NormalizeProvince(doc.Provincienaam),
		Place:        strings.TrimSpace(doc.Woonplaatsnaam),
	}, true, nil
}

// VariantReport summarizes a BuildVariants run.
type VariantReport struct {
	Names    int      `json:"names"`
	Mapped   int      `json:"mapped"`
	NotFound []string `json:"not_found"`
	Failed   []string `json:"failed"`
}

// BuildVariants looks up every distinct place and municipality name of the
// canonical records and returns the known-variant map. Individual lookup
// failures are logged and reported; only cancellation aborts the run.
func (c *Client) BuildVariants(ctx context.Context, records []place.CanonicalRecord) (place.Variants, VariantReport, error) {
	names := variantNames(records)
	variants := make(place.Variants, len(names))
	report := VariantReport{
		Names:    len(names),
		NotFound: make([]string, 0),
		Failed:   make([]string, 0),
	}

	for _, name := range names {
		result, ok, err := c.Lookup(ctx, name)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, report, ctxErr
			}
			c.logger.Warn().Err(err).Str("place", name).Msg("geocoder lookup failed")
			report.Failed = append(report.Failed, name)
			continue
		}
		if !ok {
			report.NotFound = append(report.NotFound, name)
			continue
		}
		variants[name] = place.Variant{
			Municipality: result.Municipality,
			Province:     result.Province,
		}
		report.Mapped++
	}
	return variants, report, nil
}

func variantNames(records []place.CanonicalRecord) []string {
	seen := make(map[string]struct{})
	for _, record := range records {
		for _, name := range []string{record.Place, record.Municipality} {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				seen[trimmed] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
