package quote

import (
	"time"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/ratesource"
)

// Source tags where a standard quote came from.
type Source string

const (
	SourceFresh Source = "fresh"
	SourceCache Source = "cache"
)

// Fallback identifiers for cart entries that carry nothing resolvable.
const (
	CustomItemIdentifier = "custom_item"
	UnknownIdentifier    = "unknown"
)

// CartLine is a normalized cart entry. Identifier is the first non-empty of
// SKU, ProductID, ID and Title; the individual fields are kept for lookup.
type CartLine struct {
	Identifier string `json:"identifier"`
	SKU        string `json:"-"`
	ProductID  string `json:"-"`
	ID         string `json:"-"`
	Title      string `json:"-"`
	Quantity   int    `json:"quantity"`
}

// Destination is a normalized ship-to address.
type Destination struct {
	AddressLine1 string `json:"addressLine1" validate:"required"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode" validate:"required"`
	Country      string `json:"country" validate:"required"`
}

// Package is a physical parcel produced by consolidation.
type Package struct {
	WeightLbs  float64            `json:"weightLbs"`
	Dimensions catalog.Dimensions `json:"dimensions"`
	SKU        string             `json:"sku,omitempty"`
	Title      string             `json:"title,omitempty"`
}

// Entry is the persisted quote cache record.
type Entry struct {
	QuoteKey        string            `json:"quoteKey"`
	QuoteRequestID  string            `json:"quoteRequestId"`
	Destination     Destination       `json:"destination"`
	Packages        []Package         `json:"packages"`
	MissingProducts []string          `json:"missingProducts"`
	InstallOnlySKUs []string          `json:"installOnlySkus"`
	Rates           []ratesource.Rate `json:"rates,omitempty"`
	CartSummary     string            `json:"cartSummary"`
	RateCount       int               `json:"rateCount"`
	Source          Source            `json:"source"`
	CreatedAt       time.Time         `json:"createdAt"`
	ExpiresAt       *time.Time        `json:"expiresAt,omitempty"`
}

// ValidAt reports whether the entry can be served at now. Entries without an
// expiry never expire; entries with neither rates nor packages are unusable.
func (e Entry) ValidAt(now time.Time) bool {
	if len(e.Rates) == 0 && len(e.Packages) == 0 {
		return false
	}
	if e.ExpiresAt == nil {
		return true
	}
	return now.Before(*e.ExpiresAt)
}

// Outcome identifies which response variant a quote produced.
type Outcome string

const (
	OutcomeStandard    Outcome = "standard"
	OutcomeFreight     Outcome = "freight"
	OutcomeInstallOnly Outcome = "install_only"
)

// Result is the orchestrator output. Entry is populated for the standard
// outcome; Packages and Message for the freight and install-only outcomes.
type Result struct {
	Outcome         Outcome
	Message         string
	Packages        []Package
	MissingProducts []string
	InstallOnlySKUs []string
	FreightTriggers []string
	Entry           Entry
}
