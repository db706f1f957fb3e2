// Package rubric loads the static criteria list that drives an audit.
// The rubric is read-only configuration: loaded once at run start and
// treated as immutable by every pipeline stage.
package rubric

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultRubric []byte

// Criterion is one scored dimension of the audit.
type Criterion struct {
	Key            string `yaml:"key" json:"key"`
	Label          string `yaml:"label" json:"label"`
	TargetArtifact string `yaml:"target_artifact" json:"target_artifact"`
	Description    string `yaml:"description" json:"description"`
	Critical       bool   `yaml:"critical" json:"critical"`
}

// Rubric is the full ordered criteria list.
type Rubric struct {
	Criteria []Criterion `yaml:"criteria"`
}

// Load reads a rubric from the given YAML path. An empty path loads the
// embedded default rubric.
func Load(path string) (*Rubric, error) {
	data := defaultRubric
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read rubric %s: %w", path, err)
		}
	}

	var r Rubric
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rubric: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("validate rubric: %w", err)
	}
	return &r, nil
}

// Validate checks structural integrity: at least one criterion, unique
// non-empty keys.
func (r *Rubric) Validate() error {
	if len(r.Criteria) == 0 {
		return fmt.Errorf("rubric has no criteria")
	}
	seen := make(map[string]bool, len(r.Criteria))
	for i, c := range r.Criteria {
		if c.Key == "" {
			return fmt.Errorf("criterion %d has empty key", i)
		}
		if seen[c.Key] {
			return fmt.Errorf("duplicate criterion key %q", c.Key)
		}
		seen[c.Key] = true
		if c.Label == "" {
			return fmt.Errorf("criterion %q has empty label", c.Key)
		}
	}
	return nil
}

// Keys returns criterion keys in rubric order.
func (r *Rubric) Keys() []string {
	keys := make([]string, len(r.Criteria))
	for i, c := range r.Criteria {
		keys[i] = c.Key
	}
	return keys
}

// ByKey returns the criterion with the given key.
func (r *Rubric) ByKey(key string) (Criterion, bool) {
	for _, c := range r.Criteria {
		if c.Key == key {
			return c, true
		}
	}
	return Criterion{}, false
}
