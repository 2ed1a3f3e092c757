package quote

import (
	"math"
	"strings"

	"github.com/noah-isme/shipquote/internal/catalog"
)

// Defaults are the configured fallbacks for unknown weight and size.
type Defaults struct {
	WeightLbs  float64
	Dimensions catalog.Dimensions
}

// ShippableLine is a cart line resolved to physical shipping attributes.
type ShippableLine struct {
	Identifier    string
	SKU           string
	Title         string
	Quantity      int
	WeightLbs     float64
	Dimensions    catalog.Dimensions
	ShippingClass string
	ShipsAlone    bool
}

// Classification buckets cart lines. Missing and InstallOnly are de-duplicated
// and keep first-seen order.
type Classification struct {
	Shippable   []ShippableLine
	InstallOnly []string
	Missing     []string
	Resolved    int
}

// LookupKeys collects the distinct identifiers to send in one catalog batch.
func LookupKeys(lines []CartLine) (skus, ids, titles []string) {
	skus = distinct(lines, func(l CartLine) []string { return []string{l.SKU} })
	ids = distinct(lines, func(l CartLine) []string { return []string{l.ProductID, l.ID} })
	titles = distinct(lines, func(l CartLine) []string { return []string{l.Title} })
	return skus, ids, titles
}

func distinct(lines []CartLine, pick func(CartLine) []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, l := range lines {
		for _, v := range pick(l) {
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

type profileIndex struct {
	bySKU   map[string]catalog.Profile
	byID    map[string]catalog.Profile
	byTitle map[string]catalog.Profile
}

func indexProfiles(profiles []catalog.Profile) profileIndex {
	idx := profileIndex{
		bySKU:   make(map[string]catalog.Profile, len(profiles)),
		byID:    make(map[string]catalog.Profile, len(profiles)),
		byTitle: make(map[string]catalog.Profile, len(profiles)),
	}
	for _, p := range profiles {
		putFirst(idx.bySKU, p.SKU, p)
		putFirst(idx.byID, p.ID, p)
		putFirst(idx.byTitle, p.Title, p)
	}
	return idx
}

func putFirst(m map[string]catalog.Profile, key string, p catalog.Profile) {
	if key == "" {
		return
	}
	if _, ok := m[key]; !ok {
		m[key] = p
	}
}

// lookup tries SKU, product reference id, internal id, then title.
func (idx profileIndex) lookup(line CartLine) (catalog.Profile, bool) {
	candidates := []struct {
		m   map[string]catalog.Profile
		key string
	}{
		{idx.bySKU, line.SKU},
		{idx.byID, line.ProductID},
		{idx.byID, line.ID},
		{idx.byTitle, line.Title},
	}
	for _, c := range candidates {
		if c.key == "" {
			continue
		}
		if p, ok := c.m[c.key]; ok {
			return p, true
		}
	}
	return catalog.Profile{}, false
}

// Classify resolves each line against the batch of catalog profiles.
func Classify(lines []CartLine, profiles []catalog.Profile, defaults Defaults) Classification {
	idx := indexProfiles(profiles)
	var out Classification
	installSeen := make(map[string]struct{})
	missingSeen := make(map[string]struct{})

	for _, line := range lines {
		profile, ok := idx.lookup(line)
		if !ok {
			appendOnce(&out.Missing, missingSeen, line.Identifier)
			continue
		}
		out.Resolved++
		switch {
		case !profile.NeedsShipping() || strings.EqualFold(strings.TrimSpace(profile.ProductType), "service"):
			appendOnce(&out.InstallOnly, installSeen, line.Identifier)
		case strings.HasPrefix(strings.ToLower(strings.TrimSpace(profile.ShippingClass)), "install"):
			appendOnce(&out.InstallOnly, installSeen, installKey(profile, line))
		default:
			out.Shippable = append(out.Shippable, ShippableLine{
				Identifier:    line.Identifier,
				SKU:           profile.SKU,
				Title:         firstNonEmpty(profile.Title, line.Title),
				Quantity:      line.Quantity,
				WeightLbs:     resolveWeight(profile),
				Dimensions:    resolveDimensions(profile, defaults),
				ShippingClass: profile.ShippingClass,
				ShipsAlone:    profile.ShipsAlone,
			})
		}
	}
	return out
}

func installKey(p catalog.Profile, line CartLine) string {
	return firstNonEmpty(p.SKU, p.ID, line.Identifier)
}

// resolveWeight returns the catalog unit weight, or 0 when it is absent or unusable.
func resolveWeight(p catalog.Profile) float64 {
	w := p.WeightLbs
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0
	}
	return w
}

// resolveDimensions prefers structured dimensions, then the free-text box
// description, then the configured default.
func resolveDimensions(p catalog.Profile, defaults Defaults) catalog.Dimensions {
	if p.Dimensions != nil && p.Dimensions.Valid() {
		return *p.Dimensions
	}
	if d, ok := ParseDimensions(p.BoxDimensions); ok {
		return d
	}
	return defaults.Dimensions
}

func appendOnce(dst *[]string, seen map[string]struct{}, v string) {
	if _, ok := seen[v]; ok {
		return
	}
	seen[v] = struct{}{}
	*dst = append(*dst, v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
