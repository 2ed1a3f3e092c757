package quote

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const maxQuantity = 100000

// Request is the raw quote request body. Cart entries and destination fields
// are loosely typed and normalized by NormalizeCart / NormalizeDestination.
type Request struct {
	Cart           []json.RawMessage `json:"cart"`
	Destination    map[string]any    `json:"destination"`
	QuoteKey       string            `json:"quoteKey,omitempty"`
	QuoteRequestID string            `json:"quoteRequestId,omitempty"`
}

var (
	skuFields       = []string{"sku"}
	productIDFields = []string{"productId", "product_id"}
	idFields        = []string{"id", "_id"}
	titleFields     = []string{"title", "name"}

	addressFields = []string{"addressLine1", "address_line1", "line1", "address1", "street1"}
	cityFields    = []string{"city"}
	stateFields   = []string{"state", "province", "region"}
	postalFields  = []string{"postalCode", "postal_code", "zip", "zipCode", "postcode"}
	countryFields = []string{"country", "country_code", "countryCode"}
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NormalizeCart canonicalizes raw cart entries. Individual malformed lines are
// never rejected; only an empty cart is.
func NormalizeCart(raw []json.RawMessage) ([]CartLine, error) {
	if len(raw) == 0 {
		verr := &ValidationError{}
		verr.add("cart", "cart must contain at least one item")
		return nil, verr
	}
	lines := make([]CartLine, 0, len(raw))
	for _, item := range raw {
		lines = append(lines, normalizeLine(item))
	}
	return lines, nil
}

func normalizeLine(raw json.RawMessage) CartLine {
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return CartLine{Identifier: UnknownIdentifier, Quantity: 1}
	}
	line := CartLine{
		SKU:       firstString(fields, skuFields),
		ProductID: firstString(fields, productIDFields),
		ID:        firstString(fields, idFields),
		Title:     firstString(fields, titleFields),
		Quantity:  normalizeQuantity(fields["quantity"]),
	}
	for _, candidate := range []string{line.SKU, line.ProductID, line.ID, line.Title} {
		if candidate != "" {
			line.Identifier = candidate
			break
		}
	}
	if line.Identifier == "" {
		line.Identifier = CustomItemIdentifier
	}
	return line
}

func normalizeQuantity(v any) int {
	var q float64
	switch t := v.(type) {
	case float64:
		q = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 1
		}
		q = parsed
	default:
		return 1
	}
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return 1
	}
	q = math.Floor(q)
	if q < 1 {
		return 1
	}
	if q > maxQuantity {
		return maxQuantity
	}
	return int(q)
}

// NormalizeDestination resolves field aliases, canonicalizes casing and
// validates the required fields.
func NormalizeDestination(raw map[string]any) (Destination, error) {
	if raw == nil {
		verr := &ValidationError{}
		verr.add("destination", "destination is required")
		return Destination{}, verr
	}
	dest := Destination{
		AddressLine1: firstString(raw, addressFields),
		City:         firstString(raw, cityFields),
		State:        strings.ToUpper(firstString(raw, stateFields)),
		PostalCode:   strings.ToUpper(stripSpaces(firstString(raw, postalFields))),
		Country:      strings.ToUpper(firstString(raw, countryFields)),
	}
	if dest.Country == "" {
		dest.Country = "US"
	}
	if err := validate.Struct(dest); err != nil {
		verr := &ValidationError{}
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				verr.add("destination."+fe.Field(), fmt.Sprintf("destination.%s is required", fe.Field()))
			}
		} else {
			verr.add("destination", err.Error())
		}
		return Destination{}, verr
	}
	return dest, nil
}

func firstString(fields map[string]any, keys []string) string {
	for _, key := range keys {
		if s := stringValue(fields[key]); s != "" {
			return s
		}
	}
	return ""
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	default:
		return ""
	}
}

func stripSpaces(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
