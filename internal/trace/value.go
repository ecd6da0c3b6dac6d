package trace

import (
	"math"
	"strconv"
	"strings"
)

// Undefined is the text form of an undefined state value.
const Undefined = "undefined"

// FormatValue renders a state value as the shortest decimal that parses
// back to the same float64, or Undefined for NaN.
func FormatValue(v float64) string {
	if math.IsNaN(v) {
		return Undefined
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseValue is the inverse of FormatValue. "nan" is accepted as Undefined.
func ParseValue(s string) (float64, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case Undefined, "nan":
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FormatValues renders a slice with FormatValue.
func FormatValues(vs []float64) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = FormatValue(v)
	}
	return out
}
