// pkg/converter/values.go
package converter

import (
	"strings"

	"github.com/brightpath-lca/brightpath/pkg/model"
	"github.com/brightpath-lca/brightpath/pkg/simapro"
)

// Unspecified is written for descriptive SimaPro fields with no value
const Unspecified = "Unspecified"

// Units carried by the Electricity/heat section
var energyUnits = map[string]bool{
	"megajoule":     true,
	"kilowatt hour": true,
}

// negate flips the sign of an exchange, keeping its uncertainty consistent
func negate(e *model.Exchange) {
	e.Amount = -e.Amount
	u := &e.Uncertainty
	u.Negative = e.Amount < 0
	switch u.Type {
	case model.UncertaintyLognormal:
		// Loc is the log of the absolute amount
	case model.UncertaintyUniform, model.UncertaintyTriangular:
		u.Loc = -u.Loc
		u.Minimum, u.Maximum = -u.Maximum, -u.Minimum
	default:
		u.Loc = -u.Loc
	}
}

// positive returns an amount and its distribution as a positive SimaPro input
func positive(amount float64, d simapro.Distribution) (float64, simapro.Distribution) {
	if amount >= 0 {
		return amount, d
	}
	if d.Min != 0 || d.Max != 0 {
		d.Min, d.Max = -d.Max, -d.Min
	}
	return -amount, d
}

// scaled multiplies the absolute spread of a distribution. The lognormal
// SD2 is relative and stays as is.
func scaled(d simapro.Distribution, factor float64) simapro.Distribution {
	if d.Name == simapro.DistributionNormal {
		d.SD2 *= factor
	}
	d.Min *= factor
	d.Max *= factor
	return d
}

// isWater reports whether a biosphere exchange is a water emission in cubic
// meters, which SimaPro expects in kilograms
func isWater(e *model.Exchange) bool {
	return strings.EqualFold(e.Name, "water") && e.Unit == "cubic meter" &&
		e.Compartment() != "natural resource"
}

// flowKey identifies a biosphere flow by name, compartment and
// subcompartment, an empty subcompartment being "unspecified"
func flowKey(name string, categories []string) model.Key {
	compartment, sub := "", "unspecified"
	if len(categories) > 0 {
		compartment = categories[0]
	}
	if len(categories) > 1 && categories[1] != "" {
		sub = categories[1]
	}
	return model.NewKey(name, compartment, sub)
}

// subcategory returns the part of a "Type/Sub/Category" path below the
// category type, in SimaPro's backslash notation
func subcategory(path, fallback string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return fallback
	}
	return strings.Join(parts[1:], `\`)
}

// categoryType returns the top level of a "Type/Sub/Category" path
func categoryType(path string) string {
	return strings.TrimSpace(strings.Split(path, "/")[0])
}
