// Package corpus drives a full pass over a tokenized corpus and holds the
// resulting dictionary, cooccurrence matrix and PMI matrix.
package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/cognicore/cooccur/internal/logger"
	"github.com/cognicore/cooccur/pkg/cooccur/accum"
	"github.com/cognicore/cooccur/pkg/cooccur/dictionary"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/matrix"
	"github.com/cognicore/cooccur/pkg/cooccur/pmi"
	"github.com/cognicore/cooccur/pkg/cooccur/source"
	"github.com/cognicore/cooccur/pkg/cooccur/window"
)

// DefaultWindow is the context window used when none is configured.
const DefaultWindow = 10

// Corpus owns the dictionary and the matrices built from one fit pass.
//
// After a failed Fit the matrices are cleared and, for a grown dictionary,
// the dictionary may hold tokens from the aborted pass; discard the Corpus.
type Corpus struct {
	dict      *dictionary.Dictionary
	cooc      *matrix.Matrix
	pmi       *matrix.Matrix
	marginals pmi.Marginals
	pmiCfg    pmi.Config
	stats     Stats
	fitted    bool
	log       *log.Logger
}

// Option configures a Corpus.
type Option func(*Corpus)

// WithLogger sets the logger used for pass progress.
func WithLogger(l *log.Logger) Option {
	return func(c *Corpus) {
		if l != nil {
			c.log = l
		}
	}
}

// FitOptions configures one pass.
type FitOptions struct {
	// Window is the maximum token distance counted as cooccurring.
	Window int
	// IgnoreMissing skips tokens absent from a supplied dictionary instead
	// of failing. Skipped tokens still occupy a position.
	IgnoreMissing bool
	// Positive drops PMI cells that are not strictly positive.
	Positive bool
	// UseNPMI stores normalized PMI instead of plain PMI.
	UseNPMI bool
	// Workers > 1 scans documents on that many goroutines.
	Workers int
	// BatchSize is the number of documents handed to a worker at once.
	BatchSize int
	// ProgressEvery logs progress every that many documents; 0 disables.
	ProgressEvery int
}

// DefaultFitOptions returns a single-threaded pass with the default window.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Window:    DefaultWindow,
		Workers:   1,
		BatchSize: 256,
	}
}

// Stats summarizes the last pass.
type Stats struct {
	Documents     int64
	Positions     int64
	Missing       int64
	Contributions int64
	Pairs         int
	Vocabulary    int
	Elapsed       time.Duration
}

// New creates a corpus that grows its dictionary from the data.
func New(opts ...Option) *Corpus {
	c := &Corpus{
		dict: dictionary.New(1024),
		log:  logger.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithDictionary creates a corpus over a supplied dictionary, which is
// validated immediately.
func NewWithDictionary(dict map[string]int, opts ...Option) (*Corpus, error) {
	d, err := dictionary.FromMap(dict)
	if err != nil {
		return nil, err
	}
	c := New(opts...)
	c.dict = d
	return c, nil
}

// Fit performs one pass over src and builds both matrices. Calling Fit again
// replaces the previous results.
func (c *Corpus) Fit(ctx context.Context, src source.Source, opts FitOptions) error {
	c.clear()
	start := time.Now()

	c.log.Info("fit started",
		"window", opts.Window,
		"ignore_missing", opts.IgnoreMissing,
		"supplied_dictionary", c.dict.Supplied(),
		"workers", max(opts.Workers, 1))

	var (
		acc *accum.Accumulator
		st  Stats
		err error
	)
	if opts.Workers > 1 {
		acc, st, err = c.scanParallel(ctx, src, opts)
	} else {
		acc, st, err = c.scan(ctx, src, opts)
	}
	if err != nil {
		c.log.Error("fit aborted", "documents", st.Documents, "err", err)
		return fmt.Errorf("fit: %w", err)
	}

	cooc := matrix.FromAccumulator(c.dict.Len(), acc)
	cfg := pmi.Config{Positive: opts.Positive, UseNPMI: opts.UseNPMI}
	scores, mg := pmi.Build(cooc, cfg)

	st.Contributions = acc.Contributions()
	st.Pairs = cooc.Pairs()
	st.Vocabulary = c.dict.Len()
	st.Elapsed = time.Since(start)

	c.cooc, c.pmi, c.marginals, c.pmiCfg, c.stats = cooc, scores, mg, cfg, st
	c.fitted = true

	c.log.Info("fit finished",
		"documents", st.Documents,
		"vocabulary", st.Vocabulary,
		"pairs", st.Pairs,
		"pmi_cells", scores.Pairs(),
		"elapsed", st.Elapsed)
	return nil
}

func (c *Corpus) scan(ctx context.Context, src source.Source, opts FitOptions) (*accum.Accumulator, Stats, error) {
	var st Stats
	acc := accum.New(0)
	sc := window.NewScanner(opts.Window)
	emit := window.EmitFunc(acc.Add)

	for {
		doc, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return acc, st, nil
		}
		if err != nil {
			return nil, st, fmt.Errorf("read document %d: %w", st.Documents, err)
		}

		sc.Reset()
		for tok := range doc {
			id, ok, err := c.dict.Resolve(tok, opts.IgnoreMissing)
			if err != nil {
				return nil, st, fmt.Errorf("document %d, position %d: %w", st.Documents, sc.Position(), err)
			}
			if !ok {
				st.Missing++
			}
			sc.Push(id, ok, emit)
			st.Positions++
		}
		st.Documents++
		c.progress(opts, st)
	}
}

// ComputePMI rebuilds the PMI matrix from the cooccurrence matrix, e.g.
// after loading a model saved without one.
func (c *Corpus) ComputePMI(cfg pmi.Config) error {
	if c.cooc == nil {
		return internalerr.ErrNotFitted
	}
	c.pmi, c.marginals = pmi.Build(c.cooc, cfg)
	c.pmiCfg = cfg
	return nil
}

func (c *Corpus) progress(opts FitOptions, st Stats) {
	if opts.ProgressEvery > 0 && st.Documents%int64(opts.ProgressEvery) == 0 {
		c.log.Debug("fit progress", "documents", st.Documents, "positions", st.Positions, "vocabulary", c.dict.Len())
	}
}

func (c *Corpus) clear() {
	c.cooc, c.pmi = nil, nil
	c.marginals = pmi.Marginals{}
	c.stats = Stats{}
	c.fitted = false
}

// Fitted reports whether the last Fit completed.
func (c *Corpus) Fitted() bool { return c.fitted }

// Dictionary returns the token dictionary.
func (c *Corpus) Dictionary() *dictionary.Dictionary { return c.dict }

// Matrix returns the cooccurrence matrix, or nil before a successful Fit.
func (c *Corpus) Matrix() *matrix.Matrix { return c.cooc }

// PMI returns the PMI matrix, or nil when it has not been computed.
func (c *Corpus) PMI() *matrix.Matrix { return c.pmi }

// PMIConfig returns the settings the PMI matrix was built with.
func (c *Corpus) PMIConfig() pmi.Config { return c.pmiCfg }

// Marginals returns the row marginals of the cooccurrence matrix.
func (c *Corpus) Marginals() pmi.Marginals { return c.marginals }

// Stats returns counters from the last pass.
func (c *Corpus) Stats() Stats { return c.stats }

// Cooccurrence returns the weighted cooccurrence of two tokens.
func (c *Corpus) Cooccurrence(a, b string) (float64, bool) {
	i, j, ok := c.pair(a, b)
	if !ok || c.cooc == nil {
		return 0, false
	}
	return c.cooc.At(i, j), c.cooc.Has(i, j)
}

// Score returns the PMI of two tokens if the pair is in the PMI matrix.
func (c *Corpus) Score(a, b string) (float64, bool) {
	i, j, ok := c.pair(a, b)
	if !ok || c.pmi == nil {
		return 0, false
	}
	return c.pmi.At(i, j), c.pmi.Has(i, j)
}

func (c *Corpus) pair(a, b string) (int, int, bool) {
	i, ok := c.dict.Lookup(a)
	if !ok {
		return 0, 0, false
	}
	j, ok := c.dict.Lookup(b)
	return i, j, ok
}
