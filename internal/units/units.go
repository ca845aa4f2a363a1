// Package units provides shared constants and validation for the physical
// units of controlled-variable axes.
package units

import "fmt"

// Unit constants
const (
	Second = "s"
	Hertz  = "Hz"
	Degree = "deg"
	Volt   = "V"
	Tesla  = "T"
)

// ValidUnits contains all valid controlled-variable base units
var ValidUnits = []string{Second, Hertz, Degree, Volt, Tesla}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "s, Hz, deg, V, T"
}

// siPrefixes from the largest sensible scale downwards. Values are stored
// in base SI units; scaling happens only for display.
var siPrefixes = []struct {
	factor float64
	prefix string
}{
	{1e9, "G"},
	{1e6, "M"},
	{1e3, "k"},
	{1, ""},
	{1e-3, "m"},
	{1e-6, "u"},
	{1e-9, "n"},
	{1e-12, "p"},
}

// Format renders a base-SI value with an auto-selected SI prefix, e.g.
// 2.5e-6 s as "2.5 us" or 1.4e9 Hz as "1.4 GHz".
func Format(value float64, unit string) string {
	if value == 0 {
		return fmt.Sprintf("0 %s", unit)
	}
	abs := value
	if abs < 0 {
		abs = -abs
	}
	for _, p := range siPrefixes {
		if abs >= p.factor {
			return fmt.Sprintf("%.4g %s%s", value/p.factor, p.prefix, unit)
		}
	}
	last := siPrefixes[len(siPrefixes)-1]
	return fmt.Sprintf("%.4g %s%s", value/last.factor, last.prefix, unit)
}
