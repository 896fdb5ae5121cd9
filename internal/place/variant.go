package place

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Variant maps a historical or informal place name to its official
// municipality.
type Variant struct {
	Municipality string `json:"municipality"`
	Province     string `json:"province,omitempty"`
}

// Variants is keyed by place name.
type Variants map[string]Variant

// Names returns the variant place names in a stable order.
func (v Variants) Names() []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DecodeVariants reads a JSON object keyed by place name.
func DecodeVariants(raw []byte) (Variants, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Variants{}, nil
	}
	var out Variants
	if err := json.Unmarshal(trimmed, &out); err != nil {
		return nil, fmt.Errorf("decode variants: %w", err)
	}
	if out == nil {
		out = Variants{}
	}
	return out, nil
}

var provinceNames = map[string]string{
	"noord-holland": "Noord-Holland",
	"zuid-holland":  "Zuid-Holland",
	"noord-brabant": "Noord-Brabant",
	"limburg":       "Limburg",
	"gelderland":    "Gelderland",
	"overijssel":    "Overijssel",
	"flevoland":     "Flevoland",
	"utrecht":       "Utrecht",
	"drenthe":       "Drenthe",
	"groningen":     "Groningen",
	"friesland":     "Friesland",
	"fryslân":       "Friesland",
	"fryslan":       "Friesland",
	"zeeland":       "Zeeland",
}

// NormalizeProvince maps known spellings of Dutch provinces to the name used
// on the site. Unknown values are returned trimmed.
func NormalizeProvince(province string) string {
	trimmed := strings.TrimSpace(province)
	if name, ok := provinceNames[strings.ToLower(trimmed)]; ok {
		return name
	}
	return trimmed
}
