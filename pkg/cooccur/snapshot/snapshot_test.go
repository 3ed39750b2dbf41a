package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/cognicore/cooccur/pkg/cooccur/dictionary"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/pmi"
)

func sample(t *testing.T) (*dictionary.Dictionary, *matrix.Matrix) {
	t.Helper()
	dict, err := dictionary.FromTokens([]string{"alpha", "beta", "gamma", "delta"})
	require.NoError(t, err)
	m, err := matrix.FromTriplets(matrix.Triplets{
		N:    4,
		Rows: []int{0, 0, 1, 2},
		Cols: []int{1, 3, 2, 3},
		Vals: []float64{1.5, 0.25, 2, 1.0 / 3},
	})
	require.NoError(t, err)
	return dict, m
}

func TestModelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.msgpack")
	dict, m := sample(t)

	require.NoError(t, SaveModel(path, dict, m))

	gotDict, gotM, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, dict.Map(), gotDict.Map())
	assert.True(t, gotDict.Supplied())
	assert.Equal(t, m.Triplets(), gotM.Triplets())
	assert.Equal(t, m.At(3, 0), gotM.At(0, 3))

	// No temp files are left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestScoresRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pmi.msgpack")
	_, m := sample(t)
	cfg := pmi.Config{Positive: true}
	scores, _ := pmi.Build(m, cfg)

	require.NoError(t, SaveScores(path, scores, cfg))

	got, gotCfg, err := LoadScores(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, gotCfg)
	assert.Equal(t, scores.Triplets(), got.Triplets())
}

func TestEmptyModelRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.msgpack")
	require.NoError(t, SaveModel(path, dictionary.New(0), matrix.Empty(0)))

	dict, m, err := LoadModel(path)
	require.NoError(t, err)
	assert.Equal(t, 0, dict.Len())
	assert.Equal(t, 0, m.N())
}

func writeRaw(t *testing.T, v any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "raw.msgpack")
	b, err := msgpack.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o644))
	return path
}

func TestLoadModelRejectsCorruptBlobs(t *testing.T) {
	tests := []struct {
		name  string
		model Model
		want  error
	}{
		{
			name:  "version",
			model: Model{Version: 99, Dictionary: map[string]int{"a": 0}, Matrix: matrix.Triplets{N: 1}},
			want:  internalerr.ErrInvalidInput,
		},
		{
			name:  "dictionary gap",
			model: Model{Version: Version, Dictionary: map[string]int{"a": 0, "b": 2}, Matrix: matrix.Triplets{N: 2}},
			want:  internalerr.ErrInvalidDictionary,
		},
		{
			name:  "size mismatch",
			model: Model{Version: Version, Dictionary: map[string]int{"a": 0, "b": 1}, Matrix: matrix.Triplets{N: 3}},
			want:  internalerr.ErrInvalidInput,
		},
		{
			name: "zero weight",
			model: Model{Version: Version, Dictionary: map[string]int{"a": 0, "b": 1}, Matrix: matrix.Triplets{
				N: 2, Rows: []int{0}, Cols: []int{1}, Vals: []float64{0},
			}},
			want: internalerr.ErrInvalidInput,
		},
		{
			name: "diagonal",
			model: Model{Version: Version, Dictionary: map[string]int{"a": 0, "b": 1}, Matrix: matrix.Triplets{
				N: 2, Rows: []int{1}, Cols: []int{1}, Vals: []float64{1},
			}},
			want: internalerr.ErrInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := LoadModel(writeRaw(t, tt.model))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := LoadModel(filepath.Join(t.TempDir(), "nope"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack at all"), 0o644))
	_, _, err := LoadScores(path)
	assert.Error(t, err)
}
