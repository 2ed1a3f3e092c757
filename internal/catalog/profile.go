package catalog

import (
	"context"
	"math"
)

// Dimensions describes a box in inches.
type Dimensions struct {
	Length float64 `json:"length" yaml:"length"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
}

// Valid reports whether every side is a positive, finite number.
func (d Dimensions) Valid() bool {
	for _, side := range [...]float64{d.Length, d.Width, d.Height} {
		if side <= 0 || math.IsNaN(side) || math.IsInf(side, 0) {
			return false
		}
	}
	return true
}

// Longest returns the largest of the three sides.
func (d Dimensions) Longest() float64 {
	return math.Max(d.Length, math.Max(d.Width, d.Height))
}

// Sum returns length + width + height.
func (d Dimensions) Sum() float64 {
	return d.Length + d.Width + d.Height
}

// Envelope returns the component-wise maximum of d and other.
func (d Dimensions) Envelope(other Dimensions) Dimensions {
	return Dimensions{
		Length: math.Max(d.Length, other.Length),
		Width:  math.Max(d.Width, other.Width),
		Height: math.Max(d.Height, other.Height),
	}
}

// Profile carries the shipping attributes of a catalog product.
type Profile struct {
	ID               string      `json:"id" yaml:"id"`
	SKU              string      `json:"sku,omitempty" yaml:"sku"`
	Title            string      `json:"title,omitempty" yaml:"title"`
	RequiresShipping *bool       `json:"requiresShipping,omitempty" yaml:"requiresShipping"`
	ProductType      string      `json:"productType,omitempty" yaml:"productType"`
	WeightLbs        float64     `json:"weight" yaml:"weight"`
	Dimensions       *Dimensions `json:"dimensions,omitempty" yaml:"dimensions"`
	BoxDimensions    string      `json:"boxDimensions,omitempty" yaml:"boxDimensions"`
	ShippingClass    string      `json:"shippingClass,omitempty" yaml:"shippingClass"`
	ShipsAlone       bool        `json:"shipsAlone,omitempty" yaml:"shipsAlone"`
}

// NeedsShipping treats an absent requiresShipping flag as shippable.
func (p Profile) NeedsShipping() bool {
	return p.RequiresShipping == nil || *p.RequiresShipping
}

// Catalog resolves cart identifiers to shipping profiles in a single batch.
type Catalog interface {
	Resolve(ctx context.Context, skus, ids, titles []string) ([]Profile, error)
}

// Bool is a helper for building profiles with an explicit requiresShipping flag.
func Bool(v bool) *bool {
	return &v
}
