package pmi

import (
	"gonum.org/v1/gonum/floats"

	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
)

// Marginals holds the per-token cooccurrence mass of a matrix and its total.
//
// Row[i] is the sum of row i over the full symmetric matrix, so Total counts
// every unordered pair twice.
type Marginals struct {
	Row   []float64
	Total float64
}

// ComputeMarginals sums each row of m.
func ComputeMarginals(m *matrix.Matrix) Marginals {
	row := make([]float64, m.N())
	m.DoNonZero(func(i, _ int, v float64) {
		row[i] += v
	})
	return Marginals{
		Row:   row,
		Total: floats.Sum(row),
	}
}

// Of returns the marginal of id i, or zero when i is out of range.
func (mg Marginals) Of(i int) float64 {
	if i < 0 || i >= len(mg.Row) {
		return 0
	}
	return mg.Row[i]
}

// Active returns how many ids have nonzero mass.
func (mg Marginals) Active() int {
	n := 0
	for _, v := range mg.Row {
		if v != 0 {
			n++
		}
	}
	return n
}
