// Package store persists fitted runs so they can be queried later without
// rescanning the corpus.
package store

import (
	"cmp"
	"context"
	"crypto/rand"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/cooccur/pkg/cooccur/corpus"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
)

// DefaultNeighbors is the neighbor count used when k <= 0.
const DefaultNeighbors = 10

// Store is the interface for persisting and querying fitted runs.
type Store interface {
	Close() error

	// SaveRun stores r and returns its id. An empty r.ID gets a fresh one.
	SaveRun(ctx context.Context, r Run) (string, error)
	// LoadRun returns the run with the given id or ErrNotFound.
	LoadRun(ctx context.Context, id string) (Run, error)
	// LatestRun returns the most recently created run or ErrNotFound.
	LatestRun(ctx context.Context) (Run, error)
	// TopNeighbors returns the k tokens with the highest PMI against token.
	TopNeighbors(ctx context.Context, runID, token string, k int) ([]Neighbor, error)
}

// Run is one fitted pass: its settings, dictionary and both matrices.
type Run struct {
	ID            string
	Window        int
	IgnoreMissing bool
	Positive      bool
	UseNPMI       bool
	CreatedAt     time.Time
	// Tokens[i] is the token with id i.
	Tokens []string
	Cooc   matrix.Triplets
	PMI    matrix.Triplets
}

// Neighbor is a token paired with the queried one.
type Neighbor struct {
	Token  string
	PMI    float64
	Weight float64
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewRunID returns a ULID for time t. Ids from one process sort in creation
// order.
func NewRunID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// FromCorpus captures a fitted corpus as a run. window and ignoreMissing are
// the options the corpus was fitted with.
func FromCorpus(c *corpus.Corpus, window int, ignoreMissing bool) (Run, error) {
	if !c.Fitted() {
		return Run{}, internalerr.ErrNotFitted
	}
	r := Run{
		Window:        window,
		IgnoreMissing: ignoreMissing,
		Positive:      c.PMIConfig().Positive,
		UseNPMI:       c.PMIConfig().UseNPMI,
		CreatedAt:     time.Now().UTC(),
		Tokens:        c.Dictionary().Tokens(),
		Cooc:          c.Matrix().Triplets(),
		PMI:           matrix.Triplets{N: c.Matrix().N()},
	}
	if c.PMI() != nil {
		r.PMI = c.PMI().Triplets()
	}
	return r, nil
}

// Validate checks that both matrices match the dictionary size and hold only
// upper-triangle cells.
func (r Run) Validate() error {
	n := len(r.Tokens)
	for name, t := range map[string]matrix.Triplets{"cooc": r.Cooc, "pmi": r.PMI} {
		if t.N != n {
			return fmt.Errorf("run %s: %s matrix is %d wide, dictionary has %d tokens: %w", r.ID, name, t.N, n, internalerr.ErrInvalidInput)
		}
		if len(t.Cols) != t.Len() || len(t.Vals) != t.Len() {
			return fmt.Errorf("run %s: %s triplet lengths differ: %w", r.ID, name, internalerr.ErrInvalidInput)
		}
		for k := range t.Rows {
			i, j := t.Rows[k], t.Cols[k]
			if i < 0 || i >= j || j >= n {
				return fmt.Errorf("run %s: %s cell (%d, %d) outside upper triangle: %w", r.ID, name, i, j, internalerr.ErrInvalidInput)
			}
		}
	}
	return nil
}

// Neighbors ranks the PMI partners of token within the run.
func (r Run) Neighbors(token string, k int) ([]Neighbor, error) {
	if k <= 0 {
		k = DefaultNeighbors
	}
	id := slices.Index(r.Tokens, token)
	if id < 0 {
		return nil, fmt.Errorf("token %q in run %s: %w", token, r.ID, internalerr.ErrNotFound)
	}

	weights := make(map[int]float64)
	for n := range r.Cooc.Rows {
		if other, ok := partner(r.Cooc.Rows[n], r.Cooc.Cols[n], id); ok {
			weights[other] = r.Cooc.Vals[n]
		}
	}

	var out []Neighbor
	for n := range r.PMI.Rows {
		if other, ok := partner(r.PMI.Rows[n], r.PMI.Cols[n], id); ok {
			out = append(out, Neighbor{Token: r.Tokens[other], PMI: r.PMI.Vals[n], Weight: weights[other]})
		}
	}
	SortNeighbors(out)
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// Marginals returns each token's total cooccurrence weight.
func (r Run) Marginals() []float64 {
	row := make([]float64, len(r.Tokens))
	for n := range r.Cooc.Rows {
		row[r.Cooc.Rows[n]] += r.Cooc.Vals[n]
		row[r.Cooc.Cols[n]] += r.Cooc.Vals[n]
	}
	return row
}

func partner(i, j, id int) (int, bool) {
	switch id {
	case i:
		return j, true
	case j:
		return i, true
	}
	return 0, false
}

// SortNeighbors orders by descending PMI, then by token.
func SortNeighbors(ns []Neighbor) {
	slices.SortFunc(ns, func(a, b Neighbor) int {
		if c := cmp.Compare(b.PMI, a.PMI); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
}
