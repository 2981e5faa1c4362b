//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile reads KEY=VALUE pairs from path. An empty path yields an empty map.
func LoadEnvFile(path string) (map[string]string, error) {
	if path == "" {
		return map[string]string{}, nil
	}

	values, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read env file %s: %w", path, err)
	}

	return values, nil
}

// MergeEnv overlays extra onto base (KEY=VALUE entries) and returns a new slice.
// Keys from extra win; the output is sorted by key.
func MergeEnv(base []string, extra map[string]string) []string {
	merged := make(map[string]string, len(base)+len(extra))

	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		merged[key] = value
	}

	maps.Copy(merged, extra)

	result := make([]string, 0, len(merged))
	for _, key := range slices.Sorted(maps.Keys(merged)) {
		result = append(result, key+"="+merged[key])
	}

	return result
}

// Environ is MergeEnv applied to the current process environment.
func Environ(extra map[string]string) []string {
	return MergeEnv(os.Environ(), extra)
}
