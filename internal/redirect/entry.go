package redirect

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Entry maps a retired path to its current path.
type Entry struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Permanent   bool   `json:"permanent"`
}

// DecodeEntries reads a JSON array of redirect entries.
func DecodeEntries(raw []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, fmt.Errorf("decode redirect entries: %w", err)
	}
	return entries, nil
}

// dedupe keeps the first entry for every source and drops self redirects.
func dedupe(entries []Entry) (out []Entry, duplicates, selfRedirects int) {
	seen := make(map[string]struct{}, len(entries))
	out = make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if entry.Source == entry.Destination {
			selfRedirects++
			continue
		}
		if _, exists := seen[entry.Source]; exists {
			duplicates++
			continue
		}
		seen[entry.Source] = struct{}{}
		out = append(out, entry)
	}
	return out, duplicates, selfRedirects
}
