package quote

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/noah-isme/shipquote/internal/catalog"
)

var boxDimensionsPattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:in|")?\s*[x×*]\s*(\d+(?:\.\d+)?)\s*(?:in|")?\s*[x×*]\s*(\d+(?:\.\d+)?)`)

// ParseDimensions reads a free-text "LxWxH" box description such as
// "12 x 8 x 4" or "12in x 8in x 4in". Anything it cannot read yields false.
func ParseDimensions(text string) (catalog.Dimensions, bool) {
	m := boxDimensionsPattern.FindStringSubmatch(text)
	if m == nil {
		return catalog.Dimensions{}, false
	}
	var sides [3]float64
	for i := range sides {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return catalog.Dimensions{}, false
		}
		sides[i] = v
	}
	d := catalog.Dimensions{Length: sides[0], Width: sides[1], Height: sides[2]}
	if !d.Valid() {
		return catalog.Dimensions{}, false
	}
	return d, true
}

// ParseDefaultDimensions is ParseDimensions for configuration values.
func ParseDefaultDimensions(text string) (catalog.Dimensions, error) {
	d, ok := ParseDimensions(text)
	if !ok {
		return catalog.Dimensions{}, fmt.Errorf("dimensions must look like LxWxH, got %q", text)
	}
	return d, nil
}
