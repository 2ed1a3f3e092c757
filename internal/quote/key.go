package quote

import (
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/shipquote/internal/common"
)

type keyItem struct {
	Identifier string `json:"identifier"`
	Quantity   int    `json:"quantity"`
}

type keyDestination struct {
	AddressLine1 string `json:"addressLine1"`
	City         string `json:"city"`
	State        string `json:"state"`
	PostalCode   string `json:"postalCode"`
	Country      string `json:"country"`
}

type keyPayload struct {
	Items       []keyItem      `json:"items"`
	Destination keyDestination `json:"destination"`
}

// DeriveKey hashes the normalized cart and destination into the quote key.
// Line order does not affect the result; free-text address fields are
// compared case-insensitively.
func DeriveKey(lines []CartLine, dest Destination) string {
	items := make([]keyItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, keyItem{Identifier: l.Identifier, Quantity: l.Quantity})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Identifier != items[j].Identifier {
			return items[i].Identifier < items[j].Identifier
		}
		return items[i].Quantity < items[j].Quantity
	})
	payload := keyPayload{
		Items: items,
		Destination: keyDestination{
			AddressLine1: strings.ToLower(dest.AddressLine1),
			City:         strings.ToLower(dest.City),
			State:        dest.State,
			PostalCode:   dest.PostalCode,
			Country:      dest.Country,
		},
	}
	// Struct fields marshal in declaration order, so the encoding is stable.
	// The payload holds only strings and ints, so encoding cannot fail.
	sum, _ := common.HashJSON(payload)
	return sum
}

// CartSummary renders "<identifier> x<qty>" for each line in cart order.
func CartSummary(lines []CartLine) string {
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, l.Identifier+" x"+strconv.Itoa(l.Quantity))
	}
	return strings.Join(parts, ", ")
}
