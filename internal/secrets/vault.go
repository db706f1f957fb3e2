// Package secrets holds credentials such as the LLM gateway master key,
// with hot reload so a rotated key is picked up without a restart.
package secrets

import (
	"fmt"
	"strings"
	"sync"
)

// Loader fetches the current secret values from their source, such as
// environment variables or a mounted secrets file.
type Loader func() (map[string]string, error)

// Vault is an in-memory snapshot of secrets. Reload swaps the whole
// snapshot at once, so readers never observe a half-rotated set.
type Vault struct {
	mu       sync.RWMutex
	snapshot map[string]string
	load     Loader
}

// NewVault builds a Vault and performs the initial load. A failing
// initial load is fatal since the process cannot call the gateway
// without its key.
func NewVault(load Loader) (*Vault, error) {
	snap, err := load()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{snapshot: snap, load: load}, nil
}

// Get returns the secret for key, or an empty string if absent.
func (v *Vault) Get(key string) string {
	val, _ := v.Lookup(key)
	return val
}

// Lookup returns the secret for key and whether it is present.
func (v *Vault) Lookup(key string) (string, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.snapshot[key]
	return val, ok
}

// Keys lists the names of the secrets currently held.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.snapshot))
	for k := range v.snapshot {
		keys = append(keys, k)
	}
	return keys
}

// Redacted returns a masked form of the secret for key, safe for log
// output. Only the first two characters survive, and secrets of four
// characters or fewer are masked entirely.
func (v *Vault) Redacted(key string) string {
	val, ok := v.Lookup(key)
	if !ok {
		return ""
	}
	return mask(val)
}

// RedactString replaces every known secret value appearing in s with its
// masked form. Values shorter than four characters are skipped so that
// incidental substrings are not mangled.
func (v *Vault) RedactString(s string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	for _, val := range v.snapshot {
		if len(val) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, val, mask(val))
	}
	return s
}

func mask(val string) string {
	if len(val) <= 4 {
		return "****"
	}
	return val[:2] + "****"
}

// Reload re-runs the loader and swaps in the fresh snapshot. On loader
// failure the previous snapshot stays in place, so a transient source
// outage during rotation does not wipe working credentials.
func (v *Vault) Reload() error {
	snap, err := v.load()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.snapshot = snap
	v.mu.Unlock()
	return nil
}
