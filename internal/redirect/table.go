package redirect

import (
	"sort"
	"strings"
)

// Rule names how a resolution was reached.
type Rule string

const (
	RuleExact   Rule = "exact"
	RuleRewrite Rule = "rewrite"
)

// Resolution is a redirect instruction for one request path. Every
// resolution is permanent.
type Resolution struct {
	Destination string `json:"destination"`
	Rule        Rule   `json:"rule"`
}

// Table is an immutable exact-match redirect map plus the structural rewrites
// of one site. It is safe for concurrent use.
type Table struct {
	site    Site
	targets map[string]string
	dropped int
}

// NewTable indexes entries by source. The first entry for a source wins,
// chains are collapsed to their final destination and sources that take part
// in a cycle are dropped.
func NewTable(entries []Entry, site Site) *Table {
	raw := make(map[string]string, len(entries))
	for _, entry := range entries {
		source := cleanPath(entry.Source)
		destination := cleanPath(entry.Destination)
		if source == "" || destination == "" || source == destination {
			continue
		}
		if _, exists := raw[source]; exists {
			continue
		}
		raw[source] = destination
	}

	targets := make(map[string]string, len(raw))
	dropped := 0
	for source := range raw {
		final, ok := follow(raw, source)
		if !ok {
			dropped++
			continue
		}
		targets[source] = final
	}

	return &Table{
		site:    site,
		targets: targets,
		dropped: dropped,
	}
}

func follow(raw map[string]string, source string) (string, bool) {
	visited := map[string]struct{}{source: {}}
	current := raw[source]
	for {
		next, ok := raw[current]
		if !ok {
			return current, true
		}
		if _, seen := visited[current]; seen {
			return "", false
		}
		visited[current] = struct{}{}
		current = next
	}
}

// Resolve looks up path: exact table entries first, then the site's prefix
// rewrites. A rewritten path is looked up once more so the client only sees
// a single hop. The second return value is false when no redirect applies.
func (t *Table) Resolve(path string) (Resolution, bool) {
	if t == nil {
		return Resolution{}, false
	}
	p := cleanPath(path)
	if p == "" {
		return Resolution{}, false
	}

	if destination, ok := t.targets[p]; ok {
		return Resolution{Destination: destination, Rule: RuleExact}, true
	}

	for _, rw := range t.site.Rewrites {
		var rewritten string
		switch {
		case strings.HasPrefix(p, rw.From):
			rewritten = rw.To + p[len(rw.From):]
		case p == cleanPath(rw.From):
			// The bare plural index, "/gemeenten/" arrives here as "/gemeenten".
			rewritten = cleanPath(rw.To)
		default:
			continue
		}
		if destination, ok := t.targets[rewritten]; ok {
			rewritten = destination
		}
		return Resolution{Destination: rewritten, Rule: RuleRewrite}, true
	}

	return Resolution{}, false
}

func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.targets)
}

// Dropped is the number of sources discarded because they formed a cycle.
func (t *Table) Dropped() int {
	if t == nil {
		return 0
	}
	return t.dropped
}

func (t *Table) Site() Site {
	if t == nil {
		return Site{}
	}
	return t.site
}

// Entries returns the collapsed table sorted by source.
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, 0, len(t.targets))
	for source, destination := range t.targets {
		out = append(out, Entry{Source: source, Destination: destination, Permanent: true})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Source < out[j].Source })
	return out
}

func cleanPath(path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}
