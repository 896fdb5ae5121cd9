package cli

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// OverrideVars name environment variables that point at an env file taking
// precedence over the --env flag. They are tried in order.
var OverrideVars = []string{"KERKHOF_ENV_FILE", "HORSE_ENV_FILE"}

// EnvLoader loads .env files with a predictable override order.
type EnvLoader struct {
	value       *string
	defaultPath string
}

// AddEnvFlag registers an --env flag and returns an EnvLoader.
func AddEnvFlag(fs *flag.FlagSet, defaultPath, description string) *EnvLoader {
	if fs == nil {
		fs = flag.CommandLine
	}
	if defaultPath == "" {
		defaultPath = ".env"
	}
	if description == "" {
		description = "Path to the .env file"
	}

	return &EnvLoader{
		value:       fs.String("env", defaultPath, description),
		defaultPath: defaultPath,
	}
}

// Load overlays the first env file that can be read onto the process
// environment and returns its path. Override variables win, then the flag
// value, its basename, and finally the default path.
func (l *EnvLoader) Load() (string, error) {
	if l == nil {
		return "", errors.New("env loader is nil")
	}

	log.SetOutput(os.Stderr)

	for _, envVar := range OverrideVars {
		custom := strings.TrimSpace(os.Getenv(envVar))
		if custom == "" {
			continue
		}
		if err := godotenv.Overload(custom); err != nil {
			log.Printf("Warning: failed to load %s=%s", envVar, custom)
			continue
		}
		log.Printf("Loaded environment from %s: %s", envVar, custom)
		return custom, nil
	}

	requested := l.requested()
	for _, candidate := range l.candidates(requested) {
		if err := godotenv.Overload(candidate); err == nil {
			log.Printf("Loaded environment from: %s", candidate)
			return candidate, nil
		}
	}

	return "", fmt.Errorf("failed to load env file from %s", requested)
}

func (l *EnvLoader) requested() string {
	if l.value != nil {
		if v := strings.TrimSpace(*l.value); v != "" {
			return v
		}
	}
	return l.defaultPath
}

func (l *EnvLoader) candidates(requested string) []string {
	out := []string{requested}
	if base := filepath.Base(requested); base != "" && base != requested {
		out = append(out, base)
	}
	if requested != l.defaultPath {
		out = append(out, l.defaultPath)
	}
	return out
}
