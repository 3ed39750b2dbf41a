package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/store"
)

// Store is an in-memory implementation of store.Store for tests.
type Store struct {
	mu     sync.RWMutex
	runs   map[string]store.Run
	latest string
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{runs: make(map[string]store.Run)}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// SaveRun stores a copy of r.
func (s *Store) SaveRun(ctx context.Context, r store.Run) (string, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.ID == "" {
		r.ID = store.NewRunID(r.CreatedAt)
	}
	if err := r.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.runs[r.ID]; dup {
		return "", fmt.Errorf("run %s already stored: %w", r.ID, internalerr.ErrInvalidInput)
	}
	s.runs[r.ID] = copyRun(r)
	if prev, ok := s.runs[s.latest]; !ok || newer(r, prev) {
		s.latest = r.ID
	}
	return r.ID, nil
}

func newer(a, b store.Run) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// LoadRun returns a copy of the stored run.
func (s *Store) LoadRun(ctx context.Context, id string) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[id]
	if !ok {
		return store.Run{}, fmt.Errorf("run %s: %w", id, internalerr.ErrNotFound)
	}
	return copyRun(r), nil
}

// LatestRun returns the newest run.
func (s *Store) LatestRun(ctx context.Context) (store.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[s.latest]
	if !ok {
		return store.Run{}, fmt.Errorf("latest run: %w", internalerr.ErrNotFound)
	}
	return copyRun(r), nil
}

// TopNeighbors ranks the PMI partners of token in the run.
func (s *Store) TopNeighbors(ctx context.Context, runID, token string, k int) ([]store.Neighbor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.runs[runID]
	if !ok {
		return nil, fmt.Errorf("run %s: %w", runID, internalerr.ErrNotFound)
	}
	return r.Neighbors(token, k)
}

func copyRun(r store.Run) store.Run {
	r.Tokens = slices.Clone(r.Tokens)
	r.Cooc = copyTriplets(r.Cooc)
	r.PMI = copyTriplets(r.PMI)
	return r
}

func copyTriplets(t matrix.Triplets) matrix.Triplets {
	return matrix.Triplets{
		N:    t.N,
		Rows: slices.Clone(t.Rows),
		Cols: slices.Clone(t.Cols),
		Vals: slices.Clone(t.Vals),
	}
}
