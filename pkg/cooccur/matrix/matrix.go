// Package matrix holds the immutable symmetric sparse matrices produced by a
// corpus pass: the cooccurrence matrix and the PMI matrix derived from it.
package matrix

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/james-bowman/sparse"

	"github.com/cognicore/cooccur/pkg/cooccur/accum"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
)

// Matrix is a symmetric n×n sparse matrix in CSR form. Every unordered pair
// (i, j), i != j, is stored under both orderings; the diagonal is empty.
type Matrix struct {
	n     int
	csr   *sparse.CSR
	pairs int
}

// Triplets is the upper-triangle coordinate form of a Matrix, one entry per
// unordered pair with Rows[k] < Cols[k].
type Triplets struct {
	N    int       `msgpack:"n"`
	Rows []int     `msgpack:"rows"`
	Cols []int     `msgpack:"cols"`
	Vals []float64 `msgpack:"vals"`
}

// Len returns the number of entries.
func (t Triplets) Len() int { return len(t.Rows) }

type entry struct {
	r, c int
	v    float64
}

// Empty returns an n×n matrix with no entries.
func Empty(n int) *Matrix {
	m, _ := build(n, nil)
	return m
}

// FromAccumulator materializes the pairs of acc. n is raised to cover every
// id seen by acc.
func FromAccumulator(n int, acc *accum.Accumulator) *Matrix {
	n = max(n, acc.MaxID()+1)
	entries := make([]entry, 0, acc.Len())
	acc.Range(func(i, j int, w float64) {
		entries = append(entries, entry{r: i, c: j, v: w})
	})
	m, err := build(n, entries)
	if err != nil {
		// acc only holds canonical, in-range, non-diagonal keys.
		panic(err)
	}
	return m
}

// FromTriplets builds a matrix from coordinate triplets. Each triplet
// describes an unordered pair; either orientation is accepted and repeated
// pairs are summed. Diagonal and out-of-range coordinates are rejected.
func FromTriplets(t Triplets) (*Matrix, error) {
	if len(t.Cols) != len(t.Rows) || len(t.Vals) != len(t.Rows) {
		return nil, fmt.Errorf("triplet lengths differ (%d, %d, %d): %w", len(t.Rows), len(t.Cols), len(t.Vals), internalerr.ErrInvalidInput)
	}
	entries := make([]entry, len(t.Rows))
	for k := range t.Rows {
		entries[k] = entry{r: t.Rows[k], c: t.Cols[k], v: t.Vals[k]}
	}
	return build(t.N, entries)
}

// FromFunc builds a matrix with the same support as src, mapping every
// stored pair through fn. Pairs for which fn returns keep=false are left
// out.
func FromFunc(src *Matrix, fn func(i, j int, v float64) (out float64, keep bool)) *Matrix {
	entries := make([]entry, 0, src.pairs)
	src.doUpper(func(i, j int, v float64) {
		if out, keep := fn(i, j, v); keep {
			entries = append(entries, entry{r: i, c: j, v: out})
		}
	})
	m, err := build(src.n, entries)
	if err != nil {
		panic(err)
	}
	return m
}

func build(n int, entries []entry) (*Matrix, error) {
	if n < 0 {
		return nil, fmt.Errorf("negative dimension %d: %w", n, internalerr.ErrInvalidInput)
	}
	for k, e := range entries {
		if e.r < 0 || e.c < 0 || e.r >= n || e.c >= n {
			return nil, fmt.Errorf("entry (%d, %d) outside %d×%d: %w", e.r, e.c, n, n, internalerr.ErrInvalidInput)
		}
		if e.r == e.c {
			return nil, fmt.Errorf("diagonal entry (%d, %d): %w", e.r, e.c, internalerr.ErrInvalidInput)
		}
		if e.r > e.c {
			entries[k].r, entries[k].c = e.c, e.r
		}
	}

	slices.SortFunc(entries, func(a, b entry) int {
		if c := cmp.Compare(a.r, b.r); c != 0 {
			return c
		}
		return cmp.Compare(a.c, b.c)
	})
	entries = mergeDuplicates(entries)

	m := &Matrix{n: n, pairs: len(entries)}
	if n == 0 {
		return m, nil
	}

	// With upper-triangle entries sorted by (row, col), the mirrored entries
	// of row i (columns < i) are all placed before its own (columns > i),
	// each group in ascending column order, so rows come out sorted.
	indptr := make([]int, n+1)
	for _, e := range entries {
		indptr[e.r+1]++
		indptr[e.c+1]++
	}
	for i := 0; i < n; i++ {
		indptr[i+1] += indptr[i]
	}

	ind := make([]int, 2*len(entries))
	data := make([]float64, 2*len(entries))
	next := make([]int, n)
	copy(next, indptr[:n])
	for _, e := range entries {
		ind[next[e.c]], data[next[e.c]] = e.r, e.v
		next[e.c]++
		ind[next[e.r]], data[next[e.r]] = e.c, e.v
		next[e.r]++
	}

	m.csr = sparse.NewCSR(n, n, indptr, ind, data)
	return m, nil
}

func mergeDuplicates(entries []entry) []entry {
	if len(entries) < 2 {
		return entries
	}
	out := entries[:1]
	for _, e := range entries[1:] {
		last := &out[len(out)-1]
		if last.r == e.r && last.c == e.c {
			last.v += e.v
			continue
		}
		out = append(out, e)
	}
	return out
}

// Dims returns the matrix dimensions.
func (m *Matrix) Dims() (int, int) { return m.n, m.n }

// N returns the number of rows (and columns).
func (m *Matrix) N() int { return m.n }

// At returns the value at (i, j), or zero when the cell is empty.
func (m *Matrix) At(i, j int) float64 {
	if m.csr == nil || i < 0 || j < 0 || i >= m.n || j >= m.n {
		return 0
	}
	return m.csr.At(i, j)
}

// Has reports whether (i, j) is stored.
func (m *Matrix) Has(i, j int) bool {
	if m.csr == nil || i < 0 || i >= m.n {
		return false
	}
	found := false
	m.csr.DoRowNonZero(i, func(_, col int, _ float64) {
		if col == j {
			found = true
		}
	})
	return found
}

// NNZ returns the number of stored cells, counting both orderings.
func (m *Matrix) NNZ() int { return 2 * m.pairs }

// Pairs returns the number of distinct unordered pairs.
func (m *Matrix) Pairs() int { return m.pairs }

// IsEmpty reports whether the matrix has no entries.
func (m *Matrix) IsEmpty() bool { return m.pairs == 0 }

// DoNonZero calls fn for every stored cell in row-major order.
func (m *Matrix) DoNonZero(fn func(i, j int, v float64)) {
	if m.csr == nil {
		return
	}
	m.csr.DoNonZero(fn)
}

// DoRowNonZero calls fn for every stored cell of row i in column order.
func (m *Matrix) DoRowNonZero(i int, fn func(i, j int, v float64)) {
	if m.csr == nil || i < 0 || i >= m.n {
		return
	}
	m.csr.DoRowNonZero(i, fn)
}

func (m *Matrix) doUpper(fn func(i, j int, v float64)) {
	m.DoNonZero(func(i, j int, v float64) {
		if i < j {
			fn(i, j, v)
		}
	})
}

// Triplets returns the upper triangle in (row, col) order.
func (m *Matrix) Triplets() Triplets {
	t := Triplets{
		N:    m.n,
		Rows: make([]int, 0, m.pairs),
		Cols: make([]int, 0, m.pairs),
		Vals: make([]float64, 0, m.pairs),
	}
	m.doUpper(func(i, j int, v float64) {
		t.Rows = append(t.Rows, i)
		t.Cols = append(t.Cols, j)
		t.Vals = append(t.Vals, v)
	})
	return t
}

// CSR exposes the underlying compressed matrix for numeric consumers. It is
// nil for a 0×0 matrix and must not be modified.
func (m *Matrix) CSR() *sparse.CSR { return m.csr }
