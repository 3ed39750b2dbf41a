package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/cooccur/pkg/cooccur/corpus"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/source"
	"github.com/cognicore/cooccur/pkg/cooccur/store"
)

func run(created time.Time) store.Run {
	return store.Run{
		Window:    3,
		CreatedAt: created,
		Tokens:    []string{"x", "y", "z"},
		Cooc:      matrix.Triplets{N: 3, Rows: []int{0, 1}, Cols: []int{1, 2}, Vals: []float64{1, 0.5}},
		PMI:       matrix.Triplets{N: 3, Rows: []int{0, 1}, Cols: []int{1, 2}, Vals: []float64{0.4, 0.9}},
	}
}

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()
	defer s.Close()

	id, err := s.SaveRun(ctx, run(time.Now()))
	require.NoError(t, err)
	require.NotEmpty(t, id, "expected a generated run id")

	got, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, 3, got.Window)
	assert.Len(t, got.Tokens, 3)

	// Callers cannot mutate stored state through the returned copy.
	got.Tokens[0] = "mutated"
	got.PMI.Vals[0] = 99
	again, err := s.LoadRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "x", again.Tokens[0])
	assert.Equal(t, 0.4, again.PMI.Vals[0])
}

func TestMemStoreLatest(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.LatestRun(ctx)
	require.ErrorIs(t, err, internalerr.ErrNotFound)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	newest, err := s.SaveRun(ctx, run(base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, run(base))
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, newest, latest.ID)
}

func TestMemStoreTopNeighbors(t *testing.T) {
	ctx := context.Background()
	s := New()
	id, err := s.SaveRun(ctx, run(time.Now()))
	require.NoError(t, err)

	ns, err := s.TopNeighbors(ctx, id, "y", 5)
	require.NoError(t, err)
	require.Len(t, ns, 2)
	assert.Equal(t, "z", ns[0].Token)
	assert.Equal(t, "x", ns[1].Token)
	assert.Equal(t, 0.5, ns[0].Weight)

	_, err = s.TopNeighbors(ctx, "missing", "y", 5)
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	_, err = s.TopNeighbors(ctx, id, "nope", 5)
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func TestMemStoreRejectsInvalidAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := New()

	bad := run(time.Now())
	bad.Cooc.N = 7
	_, err := s.SaveRun(ctx, bad)
	require.ErrorIs(t, err, internalerr.ErrInvalidInput)

	r := run(time.Now())
	r.ID = "fixed"
	_, err = s.SaveRun(ctx, r)
	require.NoError(t, err)
	_, err = s.SaveRun(ctx, r)
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}

func TestMemStoreFittedCorpus(t *testing.T) {
	ctx := context.Background()
	c := corpus.New()
	opts := corpus.DefaultFitOptions()
	opts.Window = 2
	docs := [][]string{
		{"the", "cat", "sat", "on", "the", "mat"},
		{"the", "dog", "sat", "on", "the", "log"},
		{"a", "cat", "and", "a", "dog"},
	}
	require.NoError(t, c.Fit(ctx, source.FromSlices(docs), opts))

	r, err := store.FromCorpus(c, opts.Window, opts.IgnoreMissing)
	require.NoError(t, err)

	var s store.Store = New()
	defer s.Close()
	id, err := s.SaveRun(ctx, r)
	require.NoError(t, err)

	latest, err := s.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, c.Dictionary().Tokens(), latest.Tokens)

	for _, tok := range []string{"the", "cat", "sat", "a"} {
		want, err := r.Neighbors(tok, 3)
		require.NoError(t, err)
		got, err := s.TopNeighbors(ctx, id, tok, 3)
		require.NoError(t, err)
		assert.Equal(t, want, got, tok)

		// Scores agree with the corpus they came from.
		for _, n := range got {
			score, ok := c.Score(tok, n.Token)
			require.True(t, ok, "%s-%s", tok, n.Token)
			assert.InDelta(t, score, n.PMI, 1e-12)
			weight, _ := c.Cooccurrence(tok, n.Token)
			assert.InDelta(t, weight, n.Weight, 1e-12)
		}
	}
}
