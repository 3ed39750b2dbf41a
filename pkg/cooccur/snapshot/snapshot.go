// Package snapshot persists a dictionary and its matrices as msgpack blobs.
//
// A model file holds the dictionary together with the cooccurrence matrix;
// the PMI matrix goes to a separate, optional file. Matrices are stored as
// upper-triangle triplets.
package snapshot

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cognicore/cooccur/pkg/cooccur/dictionary"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/pmi"
)

// Version is written into every blob and checked on load.
const Version = 1

// Model is the on-disk form of a dictionary and its cooccurrence matrix.
type Model struct {
	Version    int             `msgpack:"version"`
	Dictionary map[string]int  `msgpack:"dictionary"`
	Matrix     matrix.Triplets `msgpack:"matrix"`
}

// Scores is the on-disk form of a PMI matrix.
type Scores struct {
	Version  int             `msgpack:"version"`
	Positive bool            `msgpack:"positive"`
	UseNPMI  bool            `msgpack:"npmi"`
	Matrix   matrix.Triplets `msgpack:"matrix"`
}

// SaveModel writes dict and m to path.
func SaveModel(path string, dict *dictionary.Dictionary, m *matrix.Matrix) error {
	return writeBlob(path, Model{
		Version:    Version,
		Dictionary: dict.Map(),
		Matrix:     m.Triplets(),
	})
}

// SaveScores writes a PMI matrix and the settings it was built with to path.
func SaveScores(path string, scores *matrix.Matrix, cfg pmi.Config) error {
	return writeBlob(path, Scores{
		Version:  Version,
		Positive: cfg.Positive,
		UseNPMI:  cfg.UseNPMI,
		Matrix:   scores.Triplets(),
	})
}

// LoadModel reads a model written by SaveModel. The dictionary is validated
// and the matrix must match its size and hold only positive weights.
func LoadModel(path string) (*dictionary.Dictionary, *matrix.Matrix, error) {
	var blob Model
	if err := readBlob(path, &blob); err != nil {
		return nil, nil, err
	}
	if blob.Version != Version {
		return nil, nil, fmt.Errorf("%s: unsupported version %d: %w", path, blob.Version, internalerr.ErrInvalidInput)
	}

	dict, err := dictionary.FromMap(blob.Dictionary)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if blob.Matrix.N != dict.Len() {
		return nil, nil, fmt.Errorf("%s: matrix is %d wide but dictionary has %d tokens: %w",
			path, blob.Matrix.N, dict.Len(), internalerr.ErrInvalidInput)
	}
	for k, v := range blob.Matrix.Vals {
		if !(v > 0) {
			return nil, nil, fmt.Errorf("%s: non-positive weight %v at (%d, %d): %w",
				path, v, blob.Matrix.Rows[k], blob.Matrix.Cols[k], internalerr.ErrInvalidInput)
		}
	}

	m, err := matrix.FromTriplets(blob.Matrix)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return dict, m, nil
}

// LoadScores reads a PMI matrix written by SaveScores.
func LoadScores(path string) (*matrix.Matrix, pmi.Config, error) {
	var blob Scores
	if err := readBlob(path, &blob); err != nil {
		return nil, pmi.Config{}, err
	}
	if blob.Version != Version {
		return nil, pmi.Config{}, fmt.Errorf("%s: unsupported version %d: %w", path, blob.Version, internalerr.ErrInvalidInput)
	}
	m, err := matrix.FromTriplets(blob.Matrix)
	if err != nil {
		return nil, pmi.Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return m, pmi.Config{Positive: blob.Positive, UseNPMI: blob.UseNPMI}, nil
}

// writeBlob encodes v into a temporary file next to path and renames it into
// place, so readers never observe a partial blob.
func writeBlob(path string, v any) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	w := bufio.NewWriter(tmp)
	if err := msgpack.NewEncoder(w).Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func readBlob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := msgpack.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
