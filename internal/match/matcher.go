package match

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/kerkhof/internal/place"
)

const (
	DefaultCoordinateThresholdMeters = 100.0
	DefaultPostalMinSimilarity       = 0.70
	DefaultMunicipalityMinSimilarity = 0.60
)

type Options struct {
	CoordinateThresholdMeters float64
	PostalMinSimilarity       float64
	MunicipalityMinSimilarity float64
	Workers                   int
	// RefreshFields adds optional refreshable fields on top of
	// AlwaysRefreshFields.
	RefreshFields []Field
	// Strategies overrides the default cascade when non-empty.
	Strategies []Strategy
}

func (o Options) withDefaults() Options {
	if o.CoordinateThresholdMeters <= 0 {
		o.CoordinateThresholdMeters = DefaultCoordinateThresholdMeters
	}
	if o.PostalMinSimilarity <= 0 {
		o.PostalMinSimilarity = DefaultPostalMinSimilarity
	}
	if o.MunicipalityMinSimilarity <= 0 {
		o.MunicipalityMinSimilarity = DefaultMunicipalityMinSimilarity
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if len(o.Strategies) == 0 {
		o.Strategies = DefaultStrategies(o)
	}
	return o
}

// Result records one accepted match.
type Result struct {
	CanonicalSlug   string    `json:"canonical_slug"`
	DiscoveredIndex int       `json:"discovered_index"`
	DiscoveredID    string    `json:"discovered_id"`
	DiscoveredName  string    `json:"discovered_name"`
	MatchType       MatchType `json:"match_type"`
	Confidence      float64   `json:"confidence"`
	DistanceMeters  *float64  `json:"distance_m,omitempty"`
	Similarity      *float64  `json:"similarity,omitempty"`
	TieBreak        bool      `json:"tie_break,omitempty"`
	Candidates      int       `json:"candidates"`
	FieldsFilled    []Field   `json:"fields_filled,omitempty"`
	FieldsRefreshed []Field   `json:"fields_refreshed,omitempty"`
}

// Unmatched is a discovered record no strategy could place. It is a
// candidate for manual creation, never created automatically.
type Unmatched struct {
	DiscoveredIndex int    `json:"discovered_index"`
	ExternalID      string `json:"external_id"`
	Name            string `json:"name"`
	Municipality    string `json:"municipality,omitempty"`
	PostalCode      string `json:"postal_code,omitempty"`
}

// Quarantined is a discovered record rejected before matching.
type Quarantined struct {
	DiscoveredIndex int    `json:"discovered_index"`
	ExternalID      string `json:"external_id,omitempty"`
	Reason          string `json:"reason"`
}

type Stats struct {
	TotalCanonical  int               `json:"total_canonical"`
	TotalDiscovered int               `json:"total_discovered"`
	Quarantined     int               `json:"quarantined"`
	Matched         int               `json:"matched"`
	MatchedByType   map[MatchType]int `json:"matched_by_type"`
	Unmatched       int               `json:"unmatched"`
	TieBreaks       int               `json:"tie_breaks"`
	RepeatMatches   int               `json:"repeat_matches"`
	RecordsUpdated  int               `json:"records_updated"`
	FieldsFilled    map[Field]int     `json:"fields_filled"`
	FieldsRefreshed map[Field]int     `json:"fields_refreshed"`
}

func newStats() Stats {
	return Stats{
		MatchedByType:   make(map[MatchType]int),
		FieldsFilled:    make(map[Field]int),
		FieldsRefreshed: make(map[Field]int),
	}
}

// Outcome is the result of one reconciliation run. Records is a new slice;
// the canonical input is never modified.
type Outcome struct {
	Records     []place.CanonicalRecord `json:"-"`
	Results     []Result                `json:"results"`
	Unmatched   []Unmatched             `json:"unmatched"`
	Quarantined []Quarantined           `json:"quarantined"`
	Stats       Stats                   `json:"stats"`
}

// AddQuarantined records discovered entries rejected before Reconcile saw them.
func (o *Outcome) AddQuarantined(entries ...Quarantined) {
	if o == nil {
		return
	}
	o.Quarantined = append(o.Quarantined, entries...)
	o.Stats.Quarantined += len(entries)
	o.Stats.TotalDiscovered += len(entries)
}

// RemapIndexes rewrites discovered indexes through original, which maps a
// position in the slice handed to Reconcile back to the source document.
// Indexes outside original are left alone.
func (o *Outcome) RemapIndexes(original []int) {
	if o == nil {
		return
	}
	remap := func(i int) int {
		if i >= 0 && i < len(original) {
			return original[i]
		}
		return i
	}
	for i := range o.Results {
		o.Results[i].DiscoveredIndex = remap(o.Results[i].DiscoveredIndex)
	}
	for i := range o.Unmatched {
		o.Unmatched[i].DiscoveredIndex = remap(o.Unmatched[i].DiscoveredIndex)
	}
	for i := range o.Quarantined {
		o.Quarantined[i].DiscoveredIndex = remap(o.Quarantined[i].DiscoveredIndex)
	}
}

type decision struct {
	quarantine string
	matched    bool
	strategy   MatchType
	best       Candidate
	tie        bool
	candidates int
}

type Matcher struct {
	opts   Options
	logger zerolog.Logger
}

func NewMatcher(logger zerolog.Logger, opts Options) *Matcher {
	return &Matcher{
		opts:   opts.withDefaults(),
		logger: logger,
	}
}

// Reconcile matches with default options and no logging.
func Reconcile(ctx context.Context, canonical []place.CanonicalRecord, discovered []place.DiscoveredRecord, opts Options) (*Outcome, error) {
	return NewMatcher(zerolog.Nop(), opts).Reconcile(ctx, canonical, discovered)
}

// Reconcile links every discovered record to at most one canonical record.
// Matching runs on Workers goroutines against a snapshot of the canonical
// set; merging then runs in input order on a single goroutine, so the
// outcome does not depend on the worker count.
func (m *Matcher) Reconcile(ctx context.Context, canonical []place.CanonicalRecord, discovered []place.DiscoveredRecord) (*Outcome, error) {
	if m == nil {
		return nil, fmt.Errorf("matcher is nil")
	}
	pool := NewPool(canonical)
	decisions := make([]decision, len(discovered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Workers)
	for i := range discovered {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decisions[i] = m.decide(pool, discovered[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("match discovered records: %w", err)
	}

	out := &Outcome{
		Records:     make([]place.CanonicalRecord, len(canonical)),
		Results:     make([]Result, 0),
		Unmatched:   make([]Unmatched, 0),
		Quarantined: make([]Quarantined, 0),
		Stats:       newStats(),
	}
	for i := range canonical {
		out.Records[i] = canonical[i].Clone()
	}
	out.Stats.TotalCanonical = len(canonical)
	out.Stats.TotalDiscovered = len(discovered)

	mrg := newMerger(m.opts.RefreshFields)
	matchedOnce := make(map[int]struct{})
	updated := make(map[int]struct{})

	for i, dec := range decisions {
		d := discovered[i]
		switch {
		case dec.quarantine != "":
			out.Quarantined = append(out.Quarantined, Quarantined{
				DiscoveredIndex: i,
				ExternalID:      d.ExternalID,
				Reason:          dec.quarantine,
			})
			out.Stats.Quarantined++
		case !dec.matched:
			out.Unmatched = append(out.Unmatched, Unmatched{
				DiscoveredIndex: i,
				ExternalID:      d.ExternalID,
				Name:            d.Name,
				Municipality:    d.Municipality,
				PostalCode:      d.EffectivePostalCode(),
			})
			out.Stats.Unmatched++
		default:
			target := dec.best.Index
			if _, again := matchedOnce[target]; again {
				out.Stats.RepeatMatches++
			}
			matchedOnce[target] = struct{}{}

			filled, refreshed := mrg.apply(target, &out.Records[target], d)
			if len(filled) > 0 || len(refreshed) > 0 {
				updated[target] = struct{}{}
			}
			for _, f := range filled {
				out.Stats.FieldsFilled[f]++
			}
			for _, f := range refreshed {
				out.Stats.FieldsRefreshed[f]++
			}

			out.Stats.Matched++
			out.Stats.MatchedByType[dec.strategy]++
			if dec.tie {
				out.Stats.TieBreaks++
				m.logger.Debug().
					Str("discovered_id", d.ExternalID).
					Str("canonical_slug", dec.best.Slug).
					Str("match_type", string(dec.strategy)).
					Int("candidates", dec.candidates).
					Msg("tie broken by lowest slug")
			}

			out.Results = append(out.Results, Result{
				CanonicalSlug:   dec.best.Slug,
				DiscoveredIndex: i,
				DiscoveredID:    d.ExternalID,
				DiscoveredName:  d.Name,
				MatchType:       dec.strategy,
				Confidence:      dec.best.Confidence,
				DistanceMeters:  dec.best.DistanceMeters,
				Similarity:      dec.best.Similarity,
				TieBreak:        dec.tie,
				Candidates:      dec.candidates,
				FieldsFilled:    filled,
				FieldsRefreshed: refreshed,
			})
		}
	}
	out.Stats.RecordsUpdated = len(updated)

	return out, nil
}

func (m *Matcher) decide(pool *Pool, d place.DiscoveredRecord) decision {
	if strings.TrimSpace(d.Name) == "" {
		return decision{quarantine: "name must not be empty"}
	}
	for _, strategy := range m.opts.Strategies {
		candidates := strategy.TryMatch(pool, d)
		if len(candidates) == 0 {
			continue
		}
		best, tie := pickBest(candidates)
		return decision{
			matched:    true,
			strategy:   strategy.Type(),
			best:       best,
			tie:        tie,
			candidates: len(candidates),
		}
	}
	return decision{}
}
