package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/kerkhof/internal/slug"
)

func runSlug(args []string) int {
	fs := flag.NewFlagSet("slug", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	context := fs.String("context", "", "Disambiguating context appended to every name, e.g. the municipality")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "slug requires at least one name")
		return 2
	}

	for _, line := range slugLines(fs.Args(), *context) {
		fmt.Println(line)
	}
	return 0
}

// slugLines returns one "input<TAB>slug" line per input.
func slugLines(inputs []string, context string) []string {
	lines := make([]string, 0, len(inputs))
	for _, input := range inputs {
		var value string
		if strings.TrimSpace(context) != "" {
			value = slug.ForRecord(input, context)
		} else {
			value = slug.Normalize(input)
		}
		lines = append(lines, input+"\t"+value)
	}
	return lines
}
