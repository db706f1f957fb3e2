package secrets

import "os"

// EnvLoader reads the named environment variables on every load.
// Unset or empty variables are left out of the snapshot, so Lookup
// distinguishes a missing key from an empty one.
func EnvLoader(names ...string) Loader {
	return func() (map[string]string, error) {
		snap := make(map[string]string, len(names))
		for _, name := range names {
			if val := os.Getenv(name); val != "" {
				snap[name] = val
			}
		}
		return snap, nil
	}
}
