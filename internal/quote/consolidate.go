package quote

import "math"

// Consolidate merges shippable lines into packages: one combined package for
// everything that may share a box, followed by one package per unit of each
// ships-alone line in cart order.
func Consolidate(lines []ShippableLine, defaults Defaults) []Package {
	var (
		combinedWeight float64
		envelope       = defaults.Dimensions
		combinedLines  []ShippableLine
		solos          []Package
	)
	for _, line := range lines {
		if line.ShipsAlone {
			solos = append(solos, soloPackages(line, defaults)...)
			continue
		}
		combinedWeight += line.WeightLbs * float64(line.Quantity)
		envelope = envelope.Envelope(line.Dimensions)
		combinedLines = append(combinedLines, line)
	}
	if combinedWeight <= 0 && len(solos) == 0 {
		combinedWeight = defaults.WeightLbs
	}

	packages := make([]Package, 0, len(solos)+1)
	if combinedWeight > 0 {
		combined := Package{WeightLbs: packageWeight(combinedWeight), Dimensions: envelope}
		if len(combinedLines) == 1 {
			combined.SKU = combinedLines[0].SKU
			combined.Title = combinedLines[0].Title
		}
		packages = append(packages, combined)
	}
	return append(packages, solos...)
}

func soloPackages(line ShippableLine, defaults Defaults) []Package {
	weight := line.WeightLbs
	if weight <= 0 {
		weight = defaults.WeightLbs
	}
	dims := line.Dimensions
	if !dims.Valid() {
		dims = defaults.Dimensions
	}
	out := make([]Package, 0, line.Quantity)
	for i := 0; i < line.Quantity; i++ {
		out = append(out, Package{
			WeightLbs:  packageWeight(weight),
			Dimensions: dims,
			SKU:        line.SKU,
			Title:      line.Title,
		})
	}
	return out
}

// minPackageWeight keeps a positive weight from rendering as 0 after rounding.
const minPackageWeight = 0.01

// packageWeight rounds w to hundredths of a pound. Callers pass w > 0.
func packageWeight(w float64) float64 {
	return math.Max(math.Round(w*100)/100, minPackageWeight)
}
