package secrets

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// ValidationError represents a validation failure for required secrets.
type ValidationError struct {
	Missing []string
	Empty   []string
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing required environment variables: %s", strings.Join(e.Missing, ", ")))
	}
	if len(e.Empty) > 0 {
		parts = append(parts, fmt.Sprintf("empty values for required environment variables: %s", strings.Join(e.Empty, ", ")))
	}
	return strings.Join(parts, "; ")
}

// RequireEnv checks that every key is set in the environment to a non-blank
// value. It returns a *ValidationError naming the offenders in sorted order.
func RequireEnv(keys ...string) error {
	var missing, empty []string
	for _, key := range keys {
		val, ok := os.LookupEnv(key)
		switch {
		case !ok:
			missing = append(missing, key)
		case strings.TrimSpace(val) == "":
			empty = append(empty, key)
		}
	}
	if len(missing) == 0 && len(empty) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(empty)
	return &ValidationError{Missing: missing, Empty: empty}
}
