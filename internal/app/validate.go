package app

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	recordschema "horse.fit/kerkhof/schema"
)

const (
	kindDiscovered = "discovered"
	kindCanonical  = "canonical"
)

type validateResult struct {
	Files   int
	Records int
	Valid   int
	Invalid int
	Broken  int
}

func runValidate(args []string) int {
	flags := flag.NewFlagSet("validate", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)

	kind := flags.String("kind", kindDiscovered, "Record kind: discovered or canonical")
	dir := flags.String("dir", "testdata/discovered", "Directory containing .json record collections")
	recursive := flags.Bool("recursive", true, "Recursively scan subdirectories")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	recordKind := strings.ToLower(strings.TrimSpace(*kind))
	if recordKind != kindDiscovered && recordKind != kindCanonical {
		fmt.Fprintln(os.Stderr, "--kind must be discovered or canonical")
		return 2
	}

	files, err := collectJSONFiles(strings.TrimSpace(*dir), *recursive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation setup failed: %v\n", err)
		return 1
	}

	result := validateResult{}
	for _, path := range files {
		result.Files++

		raw, err := os.ReadFile(path)
		if err != nil {
			result.Broken++
			fmt.Fprintf(os.Stderr, "INVALID %s: read failed: %v\n", path, err)
			continue
		}

		valid, rejected, err := validateCollection(recordKind, raw)
		if err != nil {
			result.Broken++
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, err)
			continue
		}
		result.Records += valid + len(rejected)
		result.Valid += valid
		result.Invalid += len(rejected)
		for _, rejection := range rejected {
			fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", path, rejection)
		}
	}

	fmt.Printf(
		"validate kind=%s files=%d records=%d valid=%d invalid=%d broken=%d dir=%s\n",
		recordKind,
		result.Files,
		result.Records,
		result.Valid,
		result.Invalid,
		result.Broken,
		strings.TrimSpace(*dir),
	)

	if result.Files == 0 {
		fmt.Fprintf(os.Stderr, "Validation failed: no .json files found under %s\n", strings.TrimSpace(*dir))
		return 1
	}
	if result.Invalid > 0 || result.Broken > 0 {
		return 1
	}
	return 0
}

// validateCollection validates one JSON array document. The error is only
// set when the document as a whole is unusable.
func validateCollection(kind string, raw []byte) (int, []recordschema.Rejection, error) {
	switch kind {
	case kindCanonical:
		records, rejected, err := recordschema.ValidateCanonicalCollection(raw)
		if err != nil {
			return 0, nil, err
		}
		return len(records), rejected, nil
	case kindDiscovered:
		batch, err := recordschema.ValidateDiscoveredCollection(raw)
		if err != nil {
			return 0, nil, err
		}
		return len(batch.Records), batch.Rejected, nil
	default:
		return 0, nil, fmt.Errorf("unknown record kind %q", kind)
	}
}

func collectJSONFiles(root string, recursive bool) ([]string, error) {
	cleanRoot := strings.TrimSpace(root)
	if cleanRoot == "" {
		return nil, fmt.Errorf("directory path is empty")
	}

	info, err := os.Stat(cleanRoot)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", cleanRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cleanRoot)
	}

	var files []string
	if !recursive {
		entries, err := os.ReadDir(cleanRoot)
		if err != nil {
			return nil, fmt.Errorf("read directory %s: %w", cleanRoot, err)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isVisibleJSON(entry.Name()) {
				continue
			}
			files = append(files, filepath.Join(cleanRoot, entry.Name()))
		}
		sort.Strings(files)
		return files, nil
	}

	err = filepath.WalkDir(cleanRoot, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != cleanRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if isVisibleJSON(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk directory %s: %w", cleanRoot, err)
	}

	sort.Strings(files)
	return files, nil
}

func isVisibleJSON(name string) bool {
	return !strings.HasPrefix(name, ".") && strings.EqualFold(filepath.Ext(name), ".json")
}
