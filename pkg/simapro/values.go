// pkg/simapro/values.go
package simapro

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/brightpath-lca/brightpath/pkg/model"
)

// Uncertainty distribution names used in SimaPro files
const (
	DistributionUndefined  = "Undefined"
	DistributionLognormal  = "Lognormal"
	DistributionNormal     = "Normal"
	DistributionUniform    = "Uniform"
	DistributionTriangular = "Triangular"
)

// FormatAmount renders a number the way SimaPro exports expect (1.234E+00)
func FormatAmount(v float64) string {
	return fmt.Sprintf("%.3E", v)
}

// ParseAmount reads a SimaPro number. Either separator may mark decimals;
// when both appear the last one does and the other groups thousands.
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("cannot convert empty string to numeric")
	}
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot < 0:
		s = strings.ReplaceAll(s, ",", ".")
	case comma > dot:
		s = strings.ReplaceAll(strings.ReplaceAll(s, ".", ""), ",", ".")
	case comma >= 0:
		s = strings.ReplaceAll(s, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("cannot convert string '%s' to numeric", s)
	}
	return v, nil
}

// parseOptionalAmount reads a number, treating an empty cell as zero
func parseOptionalAmount(s string) (float64, error) {
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	return ParseAmount(s)
}

// DistributionName maps a Brightway uncertainty type to its SimaPro name
func DistributionName(t model.UncertaintyType) string {
	switch t {
	case model.UncertaintyLognormal:
		return DistributionLognormal
	case model.UncertaintyNormal:
		return DistributionNormal
	case model.UncertaintyUniform:
		return DistributionUniform
	case model.UncertaintyTriangular:
		return DistributionTriangular
	default:
		return DistributionUndefined
	}
}

// ParseDistribution maps a SimaPro distribution name to a Brightway type
func ParseDistribution(name string) model.UncertaintyType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "lognormal":
		return model.UncertaintyLognormal
	case "normal":
		return model.UncertaintyNormal
	case "uniform":
		return model.UncertaintyUniform
	case "triangular":
		return model.UncertaintyTriangular
	default:
		return model.UncertaintyUndefined
	}
}

// Distribution is the uncertainty block of a SimaPro exchange row
type Distribution struct {
	Name string
	SD2  float64 // Squared geometric SD for lognormal, 2 SD for normal
	Min  float64
	Max  float64
}

// ToDistribution converts a Brightway uncertainty to its SimaPro columns
func ToDistribution(u model.Uncertainty) Distribution {
	d := Distribution{Name: DistributionName(u.Type)}
	switch u.Type {
	case model.UncertaintyLognormal:
		d.SD2 = math.Exp(u.Scale) * math.Exp(u.Scale)
	case model.UncertaintyNormal:
		d.SD2 = 2 * u.Scale
	case model.UncertaintyUniform, model.UncertaintyTriangular:
		d.Min = u.Minimum
		d.Max = u.Maximum
	}
	return d
}

// FromDistribution converts SimaPro uncertainty columns for an exchange of
// the given amount back to a Brightway uncertainty
func FromDistribution(d Distribution, amount float64) model.Uncertainty {
	u := model.Uncertainty{Type: ParseDistribution(d.Name), Negative: amount < 0}
	switch u.Type {
	case model.UncertaintyLognormal:
		if d.SD2 <= 0 || amount == 0 {
			return model.Uncertainty{Type: model.UncertaintyUndefined, Loc: amount}
		}
		u.Scale = math.Log(math.Sqrt(d.SD2))
		u.Loc = math.Log(math.Abs(amount))
	case model.UncertaintyNormal:
		u.Scale = d.SD2 / 2
		u.Loc = amount
	case model.UncertaintyUniform, model.UncertaintyTriangular:
		u.Loc = amount
		u.Minimum = d.Min
		u.Maximum = d.Max
	default:
		u.Loc = amount
	}
	return u
}
