// Package scoring computes the fit score of a vendor for a project.
//
// The calculator is pure: no I/O, no clock, no global configuration. Weights
// are handed in at construction so callers can pin them in tests.
package scoring

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Default weights used when the configuration does not override them.
const (
	DefaultServiceWeight     = 2.0
	DefaultSLAWeight         = 1.0
	DefaultSLAThresholdHours = 24
	scorePrecision           = 2
)

// ErrInvalidWeights is returned by NewCalculator for unusable weights.
var ErrInvalidWeights = errors.New("invalid scoring weights")

// Weights holds the tunable parts of the score formula.
type Weights struct {
	// ServiceWeight is added once per overlapping service tag.
	ServiceWeight float64
	// SLAWeight is the flat bonus for vendors meeting the SLA threshold.
	SLAWeight float64
	// SLAThresholdHours is the inclusive cutoff for "meets SLA".
	SLAThresholdHours int
}

// DefaultWeights returns the stock weights (2, 1, 24h).
func DefaultWeights() Weights {
	return Weights{
		ServiceWeight:     DefaultServiceWeight,
		SLAWeight:         DefaultSLAWeight,
		SLAThresholdHours: DefaultSLAThresholdHours,
	}
}

// Validate rejects negative weights and thresholds.
func (w Weights) Validate() error {
	switch {
	case w.ServiceWeight < 0:
		return fmt.Errorf("%w: service weight %v", ErrInvalidWeights, w.ServiceWeight)
	case w.SLAWeight < 0:
		return fmt.Errorf("%w: sla weight %v", ErrInvalidWeights, w.SLAWeight)
	case w.SLAThresholdHours < 0:
		return fmt.Errorf("%w: sla threshold %d", ErrInvalidWeights, w.SLAThresholdHours)
	}
	return nil
}

// Input abstracts the project/vendor facts needed for scoring.
type Input struct {
	ServicesOverlap  int
	Rating           int
	ResponseSLAHours int
}

// Breakdown decomposes a score into its terms.
type Breakdown struct {
	ServicesOverlap int     `json:"services_overlap"`
	ServiceWeight   float64 `json:"service_weight"`
	ServiceTerm     float64 `json:"service_term"`
	Rating          float64 `json:"rating"`
	MeetsSLA        bool    `json:"meets_sla"`
	SLABonus        float64 `json:"sla_bonus"`
	Total           float64 `json:"total"`
}

// Calculator applies the score formula with fixed weights.
type Calculator struct {
	weights Weights
}

// NewCalculator creates a calculator bound to w.
func NewCalculator(w Weights) (*Calculator, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{weights: w}, nil
}

// Weights returns the weights the calculator was built with.
func (c *Calculator) Weights() Weights {
	return c.weights
}

// Score returns overlap*serviceWeight + rating + slaBonus rounded to 2 decimals.
func (c *Calculator) Score(in Input) float64 {
	return c.Breakdown(in).Total
}

// Breakdown returns the individual terms of the score.
func (c *Calculator) Breakdown(in Input) Breakdown {
	serviceTerm := decimal.NewFromInt(int64(in.ServicesOverlap)).
		Mul(decimal.NewFromFloat(c.weights.ServiceWeight))
	rating := decimal.NewFromInt(int64(in.Rating))

	meets := in.ResponseSLAHours <= c.weights.SLAThresholdHours
	bonus := decimal.Zero
	if meets {
		bonus = decimal.NewFromFloat(c.weights.SLAWeight)
	}

	total := serviceTerm.Add(rating).Add(bonus).Round(scorePrecision)
	return Breakdown{
		ServicesOverlap: in.ServicesOverlap,
		ServiceWeight:   c.weights.ServiceWeight,
		ServiceTerm:     serviceTerm.InexactFloat64(),
		Rating:          rating.InexactFloat64(),
		MeetsSLA:        meets,
		SLABonus:        bonus.InexactFloat64(),
		Total:           total.InexactFloat64(),
	}
}

// Round2 rounds x to the persisted score precision.
func Round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(scorePrecision).InexactFloat64()
}

// Equal reports whether two scores are equal at persisted precision.
func Equal(a, b float64) bool {
	return decimal.NewFromFloat(a).Round(scorePrecision).Equal(decimal.NewFromFloat(b).Round(scorePrecision))
}
