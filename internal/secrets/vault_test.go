package secrets_test

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/forensiq/tribunal/internal/secrets"
)

func fixedLoader(vals map[string]string) secrets.Loader {
	return func() (map[string]string, error) {
		return vals, nil
	}
}

func TestNewVaultInitialLoad(t *testing.T) {
	v, err := secrets.NewVault(fixedLoader(map[string]string{
		"GATEWAY_KEY": "sk-gw",
		"WEBHOOK_KEY": "wh-1",
	}))
	if err != nil {
		t.Fatalf("NewVault failed: %v", err)
	}

	if got := v.Get("GATEWAY_KEY"); got != "sk-gw" {
		t.Fatalf("expected sk-gw, got %q", got)
	}
	if _, ok := v.Lookup("WEBHOOK_KEY"); !ok {
		t.Fatal("expected WEBHOOK_KEY to be present")
	}
}

func TestNewVaultLoaderError(t *testing.T) {
	_, err := secrets.NewVault(func() (map[string]string, error) {
		return nil, errors.New("connection refused")
	})
	if err == nil {
		t.Fatal("expected error from failing loader")
	}
}

func TestVaultMissingKey(t *testing.T) {
	v, _ := secrets.NewVault(fixedLoader(map[string]string{"EXIST": "yes"}))

	if got := v.Get("MISSING"); got != "" {
		t.Fatalf("expected empty string for missing key, got %q", got)
	}
	if _, ok := v.Lookup("MISSING"); ok {
		t.Fatal("expected Lookup to report key as absent")
	}
}

func TestVaultReload(t *testing.T) {
	calls := 0
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		calls++
		if calls == 1 {
			return map[string]string{"TOKEN": "old"}, nil
		}
		return map[string]string{"TOKEN": "new"}, nil
	})

	if got := v.Get("TOKEN"); got != "old" {
		t.Fatalf("expected old, got %q", got)
	}
	if err := v.Reload(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if got := v.Get("TOKEN"); got != "new" {
		t.Fatalf("expected new after reload, got %q", got)
	}
}

func TestVaultReloadErrorKeepsSnapshot(t *testing.T) {
	calls := 0
	v, _ := secrets.NewVault(func() (map[string]string, error) {
		calls++
		if calls == 1 {
			return map[string]string{"KEY": "original"}, nil
		}
		return nil, errors.New("vault unavailable")
	})

	if err := v.Reload(); err == nil {
		t.Fatal("expected reload error")
	}
	if got := v.Get("KEY"); got != "original" {
		t.Fatalf("expected original after failed reload, got %q", got)
	}
}

func TestVaultConcurrentAccess(t *testing.T) {
	v, _ := secrets.NewVault(fixedLoader(map[string]string{"K": "V"}))

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = v.Get("K")
		}()
		go func() {
			defer wg.Done()
			_ = v.Reload()
		}()
	}
	wg.Wait()
}

func TestVaultRedacted(t *testing.T) {
	v, _ := secrets.NewVault(fixedLoader(map[string]string{
		"API_KEY": "sk-abcdef123456",
		"SHORT":   "ab",
	}))

	if got := v.Redacted("API_KEY"); got != "sk****" {
		t.Errorf("expected sk****, got %q", got)
	}
	if got := v.Redacted("SHORT"); got != "****" {
		t.Errorf("expected **** for short secret, got %q", got)
	}
	if got := v.Redacted("MISSING"); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
}

func TestVaultRedactString(t *testing.T) {
	v, _ := secrets.NewVault(fixedLoader(map[string]string{
		"MASTER_KEY": "sk-master-9876",
		"TINY":       "ab",
	}))

	in := "calling gateway with key sk-master-9876 and suffix ab"
	got := v.RedactString(in)

	if strings.Contains(got, "sk-master-9876") {
		t.Errorf("master key not redacted in %q", got)
	}
	if !strings.Contains(got, "sk****") {
		t.Errorf("expected masked master key, got %q", got)
	}
	// Two-character values stay untouched so ordinary words survive.
	if !strings.Contains(got, "suffix ab") {
		t.Errorf("short value should not be redacted, got %q", got)
	}
}

func TestVaultRedactStringNoMatches(t *testing.T) {
	v, _ := secrets.NewVault(fixedLoader(map[string]string{"KEY": "value123"}))

	in := "nothing sensitive here"
	if got := v.RedactString(in); got != in {
		t.Errorf("expected unchanged string, got %q", got)
	}
}

func TestVaultKeys(t *testing.T) {
	v, _ := secrets.NewVault(fixedLoader(map[string]string{"A": "1", "B": "2"}))

	keys := v.Keys()
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %d", len(keys))
	}
	seen := map[string]bool{}
	for _, k := range keys {
		seen[k] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("expected keys A and B, got %v", keys)
	}
}

func TestEnvLoader(t *testing.T) {
	t.Setenv("TRIBUNAL_TEST_SECRET", "mysecret")
	load := secrets.EnvLoader("TRIBUNAL_TEST_SECRET", "TRIBUNAL_MISSING_SECRET")

	vals, err := load()
	if err != nil {
		t.Fatalf("EnvLoader failed: %v", err)
	}
	if vals["TRIBUNAL_TEST_SECRET"] != "mysecret" {
		t.Fatalf("expected mysecret, got %q", vals["TRIBUNAL_TEST_SECRET"])
	}
	if _, ok := vals["TRIBUNAL_MISSING_SECRET"]; ok {
		t.Fatal("expected missing env var to be omitted")
	}
}
