package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/pmi"
	"github.com/cognicore/cooccur/pkg/cooccur/source"
)

func fit(t *testing.T, c *Corpus, docs [][]string, opts FitOptions) {
	t.Helper()
	require.NoError(t, c.Fit(context.Background(), source.FromSlices(docs), opts))
}

func withWindow(w int) FitOptions {
	opts := DefaultFitOptions()
	opts.Window = w
	return opts
}

func TestFitCatSatDogRan(t *testing.T) {
	c := New()
	fit(t, c, [][]string{{"the", "cat", "sat"}, {"the", "dog", "ran"}}, withWindow(1))

	assert.True(t, c.Fitted())
	assert.Equal(t, []string{"the", "cat", "sat", "dog", "ran"}, c.Dictionary().Tokens())

	m := c.Matrix()
	require.NotNil(t, m)
	assert.Equal(t, 5, m.N())
	assert.Equal(t, 4, m.Pairs())

	for _, p := range [][2]string{{"the", "cat"}, {"cat", "sat"}, {"the", "dog"}, {"dog", "ran"}} {
		v, ok := c.Cooccurrence(p[0], p[1])
		assert.True(t, ok, "%v", p)
		assert.InDelta(t, 1.0, v, 1e-12, "%v", p)
	}
	for _, p := range [][2]string{{"the", "sat"}, {"cat", "dog"}, {"sat", "ran"}, {"the", "ran"}} {
		_, ok := c.Cooccurrence(p[0], p[1])
		assert.False(t, ok, "%v", p)
	}

	// Rows: the=2 cat=2 sat=1 dog=2 ran=1, total=8.
	mg := c.Marginals()
	assert.InDelta(t, 8.0, mg.Total, 1e-12)
	score, ok := c.Score("the", "cat")
	require.True(t, ok)
	assert.InDelta(t, math.Log(2), score, 1e-12)
	score, ok = c.Score("cat", "sat")
	require.True(t, ok)
	assert.InDelta(t, math.Log(4), score, 1e-12)

	st := c.Stats()
	assert.EqualValues(t, 2, st.Documents)
	assert.EqualValues(t, 6, st.Positions)
	assert.EqualValues(t, 4, st.Contributions)
	assert.Equal(t, 5, st.Vocabulary)
}

func TestFitSymmetricWithoutDiagonal(t *testing.T) {
	c := New()
	fit(t, c, [][]string{
		{"a", "b", "a", "c", "a", "a", "b"},
		{"c", "c", "d", "a"},
	}, withWindow(3))

	m := c.Matrix()
	n := m.N()
	for i := range n {
		assert.Zero(t, m.At(i, i))
		assert.False(t, m.Has(i, i))
		for j := range n {
			assert.Equal(t, m.At(i, j), m.At(j, i))
			assert.Equal(t, c.PMI().At(i, j), c.PMI().At(j, i))
		}
	}
}

func TestFitNonPositiveWindow(t *testing.T) {
	for _, w := range []int{0, -3} {
		t.Run(fmt.Sprint(w), func(t *testing.T) {
			c := New()
			fit(t, c, [][]string{{"a", "b", "c"}, {"b", "d"}}, withWindow(w))

			assert.Equal(t, 4, c.Dictionary().Len())
			assert.True(t, c.Matrix().IsEmpty())
			assert.True(t, c.PMI().IsEmpty())
			assert.Equal(t, 4, c.Matrix().N())
		})
	}
}

func TestFitUnboundedWindow(t *testing.T) {
	docs := [][]string{{"a", "b", "c"}, {"c", "d"}}
	for _, workers := range []int{1, 3} {
		t.Run(fmt.Sprint(workers), func(t *testing.T) {
			opts := withWindow(math.MaxInt)
			opts.Workers = workers
			c := New()
			fit(t, c, docs, opts)

			// Every pair within a document counts, at its textual distance.
			assert.Equal(t, 4, c.Matrix().Pairs())
			v, ok := c.Cooccurrence("a", "c")
			require.True(t, ok)
			assert.InDelta(t, 0.5, v, 1e-12)
			_, ok = c.Cooccurrence("a", "d")
			assert.False(t, ok)
		})
	}
}

func TestFitEmptyCorpus(t *testing.T) {
	c := New()
	fit(t, c, nil, withWindow(5))

	assert.True(t, c.Fitted())
	assert.Equal(t, 0, c.Matrix().N())
	assert.True(t, c.PMI().IsEmpty())
	assert.Zero(t, c.Marginals().Total)
}

func TestFitRepeatedDocumentDoubles(t *testing.T) {
	doc := []string{"x", "y", "z", "x", "w"}

	once := New()
	fit(t, once, [][]string{doc}, withWindow(3))
	twice := New()
	fit(t, twice, [][]string{doc, doc}, withWindow(3))

	require.Equal(t, once.Matrix().Pairs(), twice.Matrix().Pairs())
	once.Matrix().DoNonZero(func(i, j int, v float64) {
		assert.InDelta(t, 2*v, twice.Matrix().At(i, j), 1e-12)
	})
}

func TestFitIgnoreMissingKeepsDistance(t *testing.T) {
	c, err := NewWithDictionary(map[string]int{"a": 0, "b": 1})
	require.NoError(t, err)

	opts := withWindow(2)
	opts.IgnoreMissing = true
	fit(t, c, [][]string{{"a", "x", "b"}}, opts)

	v, ok := c.Cooccurrence("a", "b")
	require.True(t, ok)
	assert.InDelta(t, 0.5, v, 1e-12)
	assert.Equal(t, 2, c.Dictionary().Len())
	assert.EqualValues(t, 1, c.Stats().Missing)
	assert.EqualValues(t, 3, c.Stats().Positions)
}

func TestFitMissingTokenFails(t *testing.T) {
	c, err := NewWithDictionary(map[string]int{"a": 0, "b": 1})
	require.NoError(t, err)
	fit(t, c, [][]string{{"a", "b"}}, withWindow(2))
	require.True(t, c.Fitted())

	err = c.Fit(context.Background(), source.FromSlices([][]string{{"a", "x", "b"}}), withWindow(2))
	require.ErrorIs(t, err, internalerr.ErrMissingToken)
	assert.Contains(t, err.Error(), `"x"`)
	assert.False(t, c.Fitted())
	assert.Nil(t, c.Matrix())
	assert.Nil(t, c.PMI())
}

func TestNewWithDictionaryRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		dict map[string]int
	}{
		{"gap", map[string]int{"a": 0, "b": 2}},
		{"not zero based", map[string]int{"a": 1, "b": 2}},
		{"duplicate id", map[string]int{"a": 0, "b": 0}},
		{"negative", map[string]int{"a": -1, "b": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithDictionary(tt.dict)
			assert.ErrorIs(t, err, internalerr.ErrInvalidDictionary)
		})
	}

	c, err := NewWithDictionary(map[string]int{})
	require.NoError(t, err)
	assert.Equal(t, 0, c.Dictionary().Len())
}

func TestFitPMISupport(t *testing.T) {
	c := New()
	fit(t, c, [][]string{
		{"a", "b", "c", "a", "d"},
		{"b", "b", "e", "c"},
		{"d", "a"},
	}, withWindow(2))

	m, p := c.Matrix(), c.PMI()
	assert.Equal(t, m.Pairs(), p.Pairs())
	m.DoNonZero(func(i, j int, _ float64) {
		assert.True(t, p.Has(i, j), "(%d,%d)", i, j)
	})
	p.DoNonZero(func(i, j int, v float64) {
		assert.True(t, m.Has(i, j), "(%d,%d)", i, j)
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	})
}

func TestFitPositivePMI(t *testing.T) {
	docs := [][]string{
		{"a", "b", "a", "b", "c"},
		{"c", "d", "e", "a"},
		{"a", "b", "e"},
	}

	plain := New()
	fit(t, plain, docs, withWindow(2))

	opts := withWindow(2)
	opts.Positive = true
	pos := New()
	fit(t, pos, docs, opts)

	plain.PMI().DoNonZero(func(i, j int, v float64) {
		if v > 0 {
			assert.InDelta(t, v, pos.PMI().At(i, j), 1e-12)
		} else {
			assert.False(t, pos.PMI().Has(i, j), "(%d,%d)=%v kept", i, j, v)
		}
	})
	pos.PMI().DoNonZero(func(_, _ int, v float64) {
		assert.Greater(t, v, 0.0)
	})
	assert.True(t, pos.PMIConfig().Positive)
}

func randomDocs(seed uint64, docs, length, vocab int) [][]string {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([][]string, docs)
	for d := range out {
		n := 1 + r.IntN(length)
		out[d] = make([]string, n)
		for k := range out[d] {
			out[d][k] = fmt.Sprintf("w%d", r.IntN(vocab))
		}
	}
	return out
}

func TestFitParallelMatchesSequential(t *testing.T) {
	docs := randomDocs(7, 300, 40, 60)

	seq := New()
	fit(t, seq, docs, withWindow(4))

	for _, workers := range []int{2, 3, 8} {
		t.Run(fmt.Sprint(workers), func(t *testing.T) {
			opts := withWindow(4)
			opts.Workers = workers
			opts.BatchSize = 7
			par := New()
			fit(t, par, docs, opts)

			assert.Equal(t, seq.Dictionary().Tokens(), par.Dictionary().Tokens())
			assert.Equal(t, seq.Stats().Contributions, par.Stats().Contributions)
			assertSameMatrix(t, seq.Matrix(), par.Matrix())
			assertSameMatrix(t, seq.PMI(), par.PMI())
		})
	}
}

func TestFitParallelMissingTokenFails(t *testing.T) {
	c, err := NewWithDictionary(map[string]int{"a": 0, "b": 1})
	require.NoError(t, err)

	docs := [][]string{{"a", "b"}, {"b", "a"}, {"a", "zz"}}
	opts := withWindow(2)
	opts.Workers = 4
	opts.BatchSize = 1
	err = c.Fit(context.Background(), source.FromSlices(docs), opts)
	require.ErrorIs(t, err, internalerr.ErrMissingToken)
	assert.False(t, c.Fitted())
	assert.Nil(t, c.Matrix())
}

func assertSameMatrix(t *testing.T, want, got *matrix.Matrix) {
	t.Helper()
	require.Equal(t, want.N(), got.N())
	require.Equal(t, want.Pairs(), got.Pairs())
	want.DoNonZero(func(i, j int, v float64) {
		assert.InDelta(t, v, got.At(i, j), 1e-9, "(%d,%d)", i, j)
	})
}

func TestFitSourceError(t *testing.T) {
	boom := errors.New("disk on fire")
	served := 0
	src := source.Func(func(ctx context.Context) (source.Document, error) {
		if served == 2 {
			return nil, boom
		}
		served++
		return slices.Values([]string{"p", "q", "r"}), nil
	})

	for _, workers := range []int{1, 3} {
		served = 0
		opts := withWindow(2)
		opts.Workers = workers
		c := New()
		err := c.Fit(context.Background(), src, opts)
		require.ErrorIs(t, err, boom)
		assert.False(t, c.Fitted())
	}
}

func TestFitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := source.Func(func(ctx context.Context) (source.Document, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	})
	c := New()
	err := c.Fit(ctx, src, withWindow(2))
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, c.Fitted())
}

func TestFitReplacesPreviousResults(t *testing.T) {
	c := New()
	fit(t, c, [][]string{{"a", "b"}}, withWindow(1))
	fit(t, c, [][]string{{"a", "c"}}, withWindow(1))

	_, ok := c.Cooccurrence("a", "b")
	assert.False(t, ok)
	v, ok := c.Cooccurrence("a", "c")
	assert.True(t, ok)
	assert.InDelta(t, 1.0, v, 1e-12)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	model := filepath.Join(dir, "model.msgpack")
	scores := filepath.Join(dir, "pmi.msgpack")

	c := New()
	fit(t, c, randomDocs(3, 50, 20, 25), withWindow(3))
	require.NoError(t, c.Save(model, scores))

	loaded, err := Load(model, scores)
	require.NoError(t, err)
	assert.True(t, loaded.Fitted())
	assert.Equal(t, c.Dictionary().Map(), loaded.Dictionary().Map())
	assertSameMatrix(t, c.Matrix(), loaded.Matrix())
	assertSameMatrix(t, c.PMI(), loaded.PMI())
	assert.InDelta(t, c.Marginals().Total, loaded.Marginals().Total, 1e-9)

	// A loaded dictionary no longer grows.
	err = loaded.Fit(context.Background(), source.FromSlices([][]string{{"never-seen"}}), withWindow(3))
	assert.ErrorIs(t, err, internalerr.ErrMissingToken)
}

func TestLoadWithoutPMI(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.msgpack")

	c := New()
	fit(t, c, [][]string{{"a", "b", "c"}, {"c", "a"}}, withWindow(2))
	require.NoError(t, c.Save(model, ""))

	loaded, err := Load(model, "")
	require.NoError(t, err)
	assert.Nil(t, loaded.PMI())

	require.NoError(t, loaded.ComputePMI(pmi.DefaultConfig()))
	assertSameMatrix(t, c.PMI(), loaded.PMI())
}

func TestSaveBeforeFit(t *testing.T) {
	err := New().Save(filepath.Join(t.TempDir(), "m"), "")
	assert.ErrorIs(t, err, internalerr.ErrNotFitted)
	assert.ErrorIs(t, New().ComputePMI(pmi.DefaultConfig()), internalerr.ErrNotFitted)
}
