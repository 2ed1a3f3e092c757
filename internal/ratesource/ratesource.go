package ratesource

import (
	"context"
	"math"
	"strings"

	"github.com/noah-isme/shipquote/internal/catalog"
)

// Address is the subset of a destination carriers price on.
type Address struct {
	City       string
	State      string
	PostalCode string
	Country    string
}

// Parcel is one physical package handed to a carrier.
type Parcel struct {
	WeightLbs  float64
	Dimensions catalog.Dimensions
}

// RateRequest describes a shipping rate request.
type RateRequest struct {
	Destination Address
	Parcels     []Parcel
	Courier     string
}

// Rate describes a returned shipping rate option. Price is in cents.
type Rate struct {
	Service string `json:"service"`
	Price   int64  `json:"cost"`
	ETD     string `json:"etd"`
	Courier string `json:"courier,omitempty"`
}

// RateShopper quotes carrier rates for consolidated parcels.
type RateShopper interface {
	Rates(ctx context.Context, r RateRequest) ([]Rate, error)
}

// MockClient returns static rates scaled by billable weight and is useful for
// testing and development.
type MockClient struct{}

// Rates returns two canned services priced from the total parcel weight.
func (MockClient) Rates(ctx context.Context, r RateRequest) ([]Rate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	courier := strings.TrimSpace(r.Courier)
	if courier == "" {
		courier = "mock"
	}
	var weight float64
	for _, p := range r.Parcels {
		weight += math.Max(p.WeightLbs, DimensionalWeight(p.Dimensions))
	}
	billable := int64(math.Ceil(weight))
	if billable < 1 {
		billable = 1
	}
	return []Rate{
		{Service: "GROUND", Price: 899 + 125*billable, ETD: "3-5", Courier: courier},
		{Service: "EXPRESS", Price: 1999 + 310*billable, ETD: "1-2", Courier: courier},
	}, nil
}

// DimensionalWeight applies the common 139 cubic inch per pound divisor.
func DimensionalWeight(d catalog.Dimensions) float64 {
	if !d.Valid() {
		return 0
	}
	return d.Length * d.Width * d.Height / 139
}
