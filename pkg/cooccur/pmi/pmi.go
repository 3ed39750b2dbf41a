package pmi

import (
	"fmt"
	"math"

	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
)

// Config controls how scores are derived from cooccurrence counts.
type Config struct {
	// Positive drops every cell whose score is not strictly positive.
	Positive bool
	// UseNPMI normalizes scores to [-1, 1].
	UseNPMI bool
}

// DefaultConfig returns plain, unclamped PMI.
func DefaultConfig() Config {
	return Config{}
}

// Calculator handles PMI (Pointwise Mutual Information) calculations
type Calculator struct {
	cfg Config
}

// NewCalculator creates a calculator for plain PMI.
func NewCalculator() *Calculator {
	return NewCalculatorFromConfig(DefaultConfig())
}

// NewCalculatorFromConfig creates a calculator with the given settings.
func NewCalculatorFromConfig(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Config returns the calculator settings.
func (c *Calculator) Config() Config { return c.cfg }

// PMI calculates the pointwise mutual information of a cell
//
// PMI(i,j) = log(M_ij * T / (r_i * r_j))
//
// Where:
//   - M_ij = weighted cooccurrence of i and j
//   - r_i, r_j = row marginals of i and j
//   - T = total mass of the matrix
func (c *Calculator) PMI(mij, ri, rj, total float64) float64 {
	return math.Log(mij * total / (ri * rj))
}

// NPMI calculates normalized PMI (range: -1 to 1)
// NPMI(i,j) = PMI(i,j) / -log(M_ij / T)
//
// T counts every pair twice, so M_ij/T <= 1/2 and the denominator is at
// least log 2. A pair alone in its rows scores exactly 1.
func (c *Calculator) NPMI(mij, ri, rj, total float64) float64 {
	return c.PMI(mij, ri, rj, total) / -math.Log(mij/total)
}

// Score returns PMI or NPMI depending on the configuration.
func (c *Calculator) Score(mij, ri, rj, total float64) float64 {
	if c.cfg.UseNPMI {
		return c.NPMI(mij, ri, rj, total)
	}
	return c.PMI(mij, ri, rj, total)
}

// Keep reports whether a score survives the configured clamping.
func (c *Calculator) Keep(score float64) bool {
	return !c.cfg.Positive || score > 0
}

// Build derives the PMI matrix of m. The result has the support of m, minus
// the cells dropped by positive mode.
//
// Every cell of m has a nonzero marginal on both axes, so a non-finite score
// means the marginals are inconsistent with m; Build panics in that case.
func (c *Calculator) Build(m *matrix.Matrix) (*matrix.Matrix, Marginals) {
	mg := ComputeMarginals(m)
	out := matrix.FromFunc(m, func(i, j int, v float64) (float64, bool) {
		score := c.Score(v, mg.Row[i], mg.Row[j], mg.Total)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			panic(fmt.Sprintf("pmi: non-finite score %v at (%d, %d): M=%v r=(%v, %v) T=%v",
				score, i, j, v, mg.Row[i], mg.Row[j], mg.Total))
		}
		return score, c.Keep(score)
	})
	return out, mg
}

// Build derives the PMI matrix of m with cfg.
func Build(m *matrix.Matrix, cfg Config) (*matrix.Matrix, Marginals) {
	return NewCalculatorFromConfig(cfg).Build(m)
}
