package quote

import (
	"fmt"
	"strings"
)

// Small-parcel carrier limits. A line at or over the weight limits, or over
// either dimension limit, must move as freight.
const (
	FreightUnitWeightLbs   = 150.0
	FreightLineWeightLbs   = 150.0
	FreightMaxLongestSide  = 108.0
	FreightMaxDimensionSum = 165.0
	freightShippingClass   = "freight"
)

// FreightDecision is the outcome of EvaluateFreight. Triggers names each line
// and limit that forced freight, for logging.
type FreightDecision struct {
	Required bool
	Triggers []string
}

// EvaluateFreight checks every shippable line against the carrier limits.
// Thresholds apply to unit and line characteristics, never to the
// consolidated package.
func EvaluateFreight(lines []ShippableLine) FreightDecision {
	var d FreightDecision
	for _, line := range lines {
		for _, reason := range freightReasons(line) {
			d.Triggers = append(d.Triggers, line.Identifier+": "+reason)
		}
	}
	d.Required = len(d.Triggers) > 0
	return d
}

func freightReasons(line ShippableLine) []string {
	var reasons []string
	if strings.EqualFold(strings.TrimSpace(line.ShippingClass), freightShippingClass) {
		reasons = append(reasons, "shipping class freight")
	}
	if line.WeightLbs >= FreightUnitWeightLbs {
		reasons = append(reasons, fmt.Sprintf("unit weight %.2f lbs", line.WeightLbs))
	} else if total := line.WeightLbs * float64(line.Quantity); total >= FreightLineWeightLbs {
		reasons = append(reasons, fmt.Sprintf("line weight %.2f lbs", total))
	}
	if longest := line.Dimensions.Longest(); longest > FreightMaxLongestSide {
		reasons = append(reasons, fmt.Sprintf("longest side %.2f in", longest))
	}
	if sum := line.Dimensions.Sum(); sum > FreightMaxDimensionSum {
		reasons = append(reasons, fmt.Sprintf("dimension sum %.2f in", sum))
	}
	return reasons
}
