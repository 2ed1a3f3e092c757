package catalog

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Static is an in-memory catalog, typically loaded from a YAML file for local development.
type Static struct {
	mu       sync.RWMutex
	profiles []Profile
}

type staticFile struct {
	Products []Profile `yaml:"products"`
}

// NewStatic constructs a catalog holding the provided profiles.
func NewStatic(profiles ...Profile) *Static {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return &Static{profiles: out}
}

// LoadFile reads a YAML document of the form `products: [...]`.
// JSON input works as well since YAML is a superset.
func LoadFile(path string) (*Static, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	profiles, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return NewStatic(profiles...), nil
}

// ParseYAML decodes a catalog document.
func ParseYAML(data []byte) ([]Profile, error) {
	var doc staticFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog file: %w", err)
	}
	for i, p := range doc.Products {
		if p.ID == "" && p.SKU == "" && p.Title == "" {
			return nil, fmt.Errorf("catalog product %d has no id, sku or title", i)
		}
	}
	return doc.Products, nil
}

// Resolve returns every profile matching one of the supplied identifiers.
func (s *Static) Resolve(ctx context.Context, skus, ids, titles []string) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	skuSet := toSet(skus)
	idSet := toSet(ids)
	titleSet := toSet(titles)

	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Profile
	for _, p := range s.profiles {
		if matches(skuSet, p.SKU) || matches(idSet, p.ID) || matches(titleSet, p.Title) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Put adds or replaces a profile keyed by ID.
func (s *Static) Put(p Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.profiles {
		if p.ID != "" && s.profiles[i].ID == p.ID {
			s.profiles[i] = p
			return
		}
	}
	s.profiles = append(s.profiles, p)
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func matches(set map[string]struct{}, value string) bool {
	if value == "" {
		return false
	}
	_, ok := set[value]
	return ok
}
