// pkg/model/uncertainty.go
package model

// UncertaintyType identifies a probability distribution
type UncertaintyType int

const (
	UncertaintyUndefined  UncertaintyType = 0
	UncertaintyNone       UncertaintyType = 1
	UncertaintyLognormal  UncertaintyType = 2
	UncertaintyNormal     UncertaintyType = 3
	UncertaintyUniform    UncertaintyType = 4
	UncertaintyTriangular UncertaintyType = 5
)

// Uncertainty describes the distribution around an exchange amount.
// Loc and Scale follow the stats_arrays convention; Scale is the
// standard deviation of the underlying normal for lognormal.
type Uncertainty struct {
	Type     UncertaintyType
	Loc      float64
	Scale    float64
	Minimum  float64
	Maximum  float64
	Negative bool
}

// Defined reports whether the uncertainty carries a usable distribution
func (u Uncertainty) Defined() bool {
	return u.Type > UncertaintyNone
}
