package app

import (
	"fmt"
	"os"
	"strings"
)

// Run executes the CLI command and returns a process exit code.
func Run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return 2
	}

	switch strings.ToLower(strings.TrimSpace(args[0])) {
	case "help", "--help", "-h":
		printUsage()
		return 0
	case "health":
		return runHealth(args[1:])
	case "slug":
		return runSlug(args[1:])
	case "validate":
		return runValidate(args[1:])
	case "geocode":
		return runGeocode(args[1:])
	case "redirects":
		return runRedirects(args[1:])
	case "reconcile":
		return runReconcile(args[1:])
	case "import":
		return runImport(args[1:])
	case "stats":
		return runStats(args[1:])
	case "serve":
		return runServe(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printUsage()
		return 2
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "kerkhof CLI")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  kerkhof <command> [flags]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  health     Verify database connectivity")
	fmt.Fprintln(os.Stderr, "  slug       Print the normalized slug of each argument")
	fmt.Fprintln(os.Stderr, "  validate   Validate discovered or canonical record files against their schema")
	fmt.Fprintln(os.Stderr, "  geocode    Build the known-variant map from the PDOK locatieserver")
	fmt.Fprintln(os.Stderr, "  redirects  Build the redirect table for a canonical set")
	fmt.Fprintln(os.Stderr, "  reconcile  Match discovered records against the canonical set")
	fmt.Fprintln(os.Stderr, "  import     Upsert canonical records into the database")
	fmt.Fprintln(os.Stderr, "  stats      Show database totals and recent reconcile runs")
	fmt.Fprintln(os.Stderr, "  serve      Start the redirect resolver and read API")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Use \"kerkhof <command> -h\" for command-specific flags.")
}
