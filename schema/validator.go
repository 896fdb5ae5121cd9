// Package recordschema validates cemetery records read from JSON documents
// before they reach the matcher or the redirect builder.
package recordschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"horse.fit/kerkhof/internal/place"
)

//go:embed discovered_record.schema.json
var discoveredRecordSchemaJSON string

//go:embed canonical_record.schema.json
var canonicalRecordSchemaJSON string

type lazySchema struct {
	name   string
	source string

	once   sync.Once
	schema *jsonschema.Schema
	err    error
}

var (
	discoveredSchema = &lazySchema{name: "discovered_record.schema.json", source: discoveredRecordSchemaJSON}
	canonicalSchema  = &lazySchema{name: "canonical_record.schema.json", source: canonicalRecordSchemaJSON}
)

func (l *lazySchema) load() (*jsonschema.Schema, error) {
	l.once.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(l.name, strings.NewReader(l.source)); err != nil {
			l.err = fmt.Errorf("add schema resource %s: %w", l.name, err)
			return
		}
		schema, err := compiler.Compile(l.name)
		if err != nil {
			l.err = fmt.Errorf("compile schema %s: %w", l.name, err)
			return
		}
		l.schema = schema
	})

	if l.err != nil {
		return nil, l.err
	}
	if l.schema == nil {
		return nil, fmt.Errorf("schema %s not initialized", l.name)
	}
	return l.schema, nil
}

// Rejection is one collection element that failed validation.
type Rejection struct {
	Index int
	Err   error
}

func (r Rejection) Error() string {
	return fmt.Sprintf("record %d: %v", r.Index, r.Err)
}

// DiscoveredBatch holds the valid records of a discovered collection. Indexes
// maps each entry of Records back to its position in the source array.
type DiscoveredBatch struct {
	Records  []place.DiscoveredRecord
	Indexes  []int
	Rejected []Rejection
}

func ValidateDiscoveredRecord(payload json.RawMessage) (*place.DiscoveredRecord, error) {
	var record place.DiscoveredRecord
	if err := validateInto(discoveredSchema, payload, &record); err != nil {
		return nil, err
	}
	if err := validateDiscoveredSemantics(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

func ValidateCanonicalRecord(payload json.RawMessage) (*place.CanonicalRecord, error) {
	var record place.CanonicalRecord
	if err := validateInto(canonicalSchema, payload, &record); err != nil {
		return nil, err
	}
	if err := validateCanonicalSemantics(&record); err != nil {
		return nil, err
	}
	return &record, nil
}

// ValidateDiscoveredCollection validates every element of a JSON array of
// discovered records. Invalid elements are rejected individually; only a
// document that is not an array fails as a whole.
func ValidateDiscoveredCollection(raw []byte) (*DiscoveredBatch, error) {
	elements, err := splitArray(raw)
	if err != nil {
		return nil, err
	}

	batch := &DiscoveredBatch{
		Records: make([]place.DiscoveredRecord, 0, len(elements)),
		Indexes: make([]int, 0, len(elements)),
	}
	for i, element := range elements {
		record, err := ValidateDiscoveredRecord(element)
		if err != nil {
			batch.Rejected = append(batch.Rejected, Rejection{Index: i, Err: err})
			continue
		}
		batch.Records = append(batch.Records, *record)
		batch.Indexes = append(batch.Indexes, i)
	}
	return batch, nil
}

// ValidateCanonicalCollection validates a JSON array of canonical records and
// rejects duplicate slugs.
func ValidateCanonicalCollection(raw []byte) ([]place.CanonicalRecord, []Rejection, error) {
	elements, err := splitArray(raw)
	if err != nil {
		return nil, nil, err
	}

	records := make([]place.CanonicalRecord, 0, len(elements))
	var rejected []Rejection
	seen := make(map[string]int, len(elements))
	for i, element := range elements {
		record, err := ValidateCanonicalRecord(element)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Err: err})
			continue
		}
		if first, dup := seen[record.Slug]; dup {
			rejected = append(rejected, Rejection{
				Index: i,
				Err:   fmt.Errorf("slug %q already used by record %d", record.Slug, first),
			})
			continue
		}
		seen[record.Slug] = i
		records = append(records, *record)
	}
	return records, rejected, nil
}

func validateInto(l *lazySchema, payload []byte, target any) error {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return fmt.Errorf("decode record JSON: %w", err)
	}

	schema, err := l.load()
	if err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("normalize record JSON: %w", err)
	}
	if err := json.Unmarshal(normalized, target); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}
	return nil
}

func splitArray(raw []byte) ([]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("document is empty")
	}
	if trimmed[0] != '[' {
		return nil, errors.New("document must be a JSON array")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	var elements []json.RawMessage
	if err := decoder.Decode(&elements); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("document contains trailing content")
	}
	return elements, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, errors.New("record is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, errors.New("record contains trailing content")
	}
	return value, nil
}

func validateDiscoveredSemantics(record *place.DiscoveredRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(record.ExternalID) == "" {
		return errors.New("external_id must not be empty")
	}
	if strings.TrimSpace(record.Name) == "" {
		return errors.New("name must not be empty")
	}
	if (record.Latitude == nil) != (record.Longitude == nil) {
		return errors.New("latitude and longitude must be given together")
	}
	if strings.TrimSpace(record.PhotoURL) != "" {
		if err := validateURI("photo_url", record.PhotoURL); err != nil {
			return err
		}
	}
	for i, category := range record.Categories {
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("categories[%d] must not be empty", i)
		}
	}
	return nil
}

func validateCanonicalSemantics(record *place.CanonicalRecord) error {
	if record == nil {
		return errors.New("record is nil")
	}
	if strings.TrimSpace(record.Name) == "" {
		return errors.New("name must not be empty")
	}
	if strings.TrimSpace(record.Municipality) == "" {
		return errors.New("municipality must not be empty")
	}
	if record.Coordinates != nil && !record.Coordinates.Valid() {
		return errors.New("coordinates must not be the 0,0 placeholder")
	}
	for i, facility := range record.Facilities {
		if strings.TrimSpace(facility) == "" {
			return fmt.Errorf("facilities[%d] must not be empty", i)
		}
	}
	return nil
}

func validateURI(fieldName, value string) error {
	if _, err := url.ParseRequestURI(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("%s is not a valid URI: %w", fieldName, err)
	}
	return nil
}
