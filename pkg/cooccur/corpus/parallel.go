package corpus

import (
	"context"
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/cooccur/pkg/cooccur/accum"
	"github.com/cognicore/cooccur/pkg/cooccur/source"
	"github.com/cognicore/cooccur/pkg/cooccur/window"
)

// scanParallel splits the pass into one resolver and opts.Workers scanners.
//
// The resolver is the only goroutine touching the dictionary, so ids are
// assigned in document order exactly as in a sequential pass. Resolved
// documents travel in batches; each worker owns a scanner and a partial
// accumulator, and the partials are merged once every worker is done.
func (c *Corpus) scanParallel(ctx context.Context, src source.Source, opts FitOptions) (*accum.Accumulator, Stats, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultFitOptions().BatchSize
	}

	g, gctx := errgroup.WithContext(ctx)
	batches := make(chan [][]int, opts.Workers)

	var st Stats
	g.Go(func() error {
		defer close(batches)
		batch := make([][]int, 0, batchSize)
		for {
			doc, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read document %d: %w", st.Documents, err)
			}

			var ids []int
			for tok := range doc {
				id, ok, err := c.dict.Resolve(tok, opts.IgnoreMissing)
				if err != nil {
					return fmt.Errorf("document %d, position %d: %w", st.Documents, len(ids), err)
				}
				if !ok {
					id = -1
					st.Missing++
				}
				ids = append(ids, id)
			}
			st.Positions += int64(len(ids))
			st.Documents++
			c.progress(opts, st)

			batch = append(batch, ids)
			if len(batch) == batchSize {
				select {
				case batches <- batch:
				case <-gctx.Done():
					return gctx.Err()
				}
				batch = make([][]int, 0, batchSize)
			}
		}
		if len(batch) > 0 {
			select {
			case batches <- batch:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	partials := make([]*accum.Accumulator, opts.Workers)
	for w := range partials {
		acc := accum.New(0)
		partials[w] = acc
		g.Go(func() error {
			sc := window.NewScanner(opts.Window)
			emit := window.EmitFunc(acc.Add)
			for batch := range batches {
				for _, ids := range batch {
					sc.ScanIDs(ids, emit)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, st, err
	}

	total := partials[0]
	for _, p := range partials[1:] {
		total.Merge(p)
	}
	return total, st, nil
}
