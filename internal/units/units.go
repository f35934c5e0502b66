// Package units provides shared constants, conversion and formatting for
// length units
package units

import (
	"fmt"
	"math"
)

// Unit constants
const (
	Feet   = "ft"
	Inches = "in"
	Meters = "m"
)

const (
	InchesPerFoot = 12
	MetersPerFoot = 0.3048

	// sixteenthsPerInch is the resolution of architectural labels.
	sixteenthsPerInch = 16
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{Feet, Inches, Meters}

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
	return "ft, in, m"
}

// ConvertLength converts a length in feet to the target units.
// Wall lengths are stored in feet.
func ConvertLength(feet float64, targetUnits string) float64 {
	switch targetUnits {
	case Inches:
		return feet * InchesPerFoot
	case Meters:
		return feet * MetersPerFoot
	case Feet:
		return feet
	default:
		return feet // default to feet if unknown unit
	}
}

// FeetToFeetInches formats decimal feet the way architectural drawings
// label dimensions: whole feet, whole inches and a reduced fraction of
// sixteenths, e.g. 12.515625 → 12' 6 3/16".
//
// Sixteenths that round up to a full inch carry into the inches, and twelve
// inches carry into the feet. Negative lengths are prefixed with '-'.
func FeetToFeetInches(feet float64) string {
	sign := ""
	if feet < 0 {
		sign = "-"
		feet = -feet
	}

	whole := math.Floor(feet)
	inches := (feet - whole) * InchesPerFoot
	wholeInches := math.Floor(inches)
	sixteenths := int(math.Round((inches - wholeInches) * sixteenthsPerInch))

	ft, in := int(whole), int(wholeInches)
	if sixteenths == sixteenthsPerInch {
		sixteenths = 0
		in++
	}
	if in == InchesPerFoot {
		in = 0
		ft++
	}
	if ft == 0 && in == 0 && sixteenths == 0 {
		sign = ""
	}

	if sixteenths == 0 {
		return fmt.Sprintf(`%s%d' %d"`, sign, ft, in)
	}
	num, den := reduceFraction(sixteenths, sixteenthsPerInch)
	return fmt.Sprintf(`%s%d' %d %d/%d"`, sign, ft, in, num, den)
}

// reduceFraction halves num/den while both stay whole.
func reduceFraction(num, den int) (int, int) {
	for num > 0 && num%2 == 0 && den%2 == 0 {
		num /= 2
		den /= 2
	}
	return num, den
}
