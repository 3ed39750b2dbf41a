package main

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/cognicore/cooccur/pkg/cooccur/corpus"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	var (
		pmiPath string
		top     int
		pairs   []string
	)
	cmd := &cobra.Command{
		Use:   "inspect <model snapshot>",
		Short: "Summarize a saved model and list its heaviest pairs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.newLogger(quietJob())
			c, err := corpus.Load(args[0], pmiPath, corpus.WithLogger(logger))
			if err != nil {
				return err
			}
			if err := printSummary(cmd.OutOrStdout(), args[0], pmiPath, c, top); err != nil {
				return err
			}
			if len(pairs) == 0 {
				return nil
			}
			return printPairs(cmd.OutOrStdout(), c, pairs)
		},
	}
	cmd.Flags().StringVar(&pmiPath, "pmi", "", "PMI snapshot saved with the model")
	cmd.Flags().IntVarP(&top, "top", "n", 10, "number of pairs to list")
	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "token pairs to look up, as a:b (repeatable)")
	return cmd
}

type pairRow struct {
	a, b   string
	weight float64
	score  float64
	scored bool
}

func printSummary(w io.Writer, modelPath, pmiPath string, c *corpus.Corpus, top int) error {
	m := c.Matrix()
	mg := c.Marginals()

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "model\t%s\t%s\n", modelPath, fileSize(modelPath))
	if pmiPath != "" {
		cfg := c.PMIConfig()
		fmt.Fprintf(tw, "pmi\t%s\t%s (positive=%t npmi=%t)\n", pmiPath, fileSize(pmiPath), cfg.Positive, cfg.UseNPMI)
	}
	fmt.Fprintf(tw, "vocabulary\t%s\t%s with pairs\n", humanize.Comma(int64(c.Dictionary().Len())), humanize.Comma(int64(mg.Active())))
	fmt.Fprintf(tw, "pairs\t%s\t%s stored cells\n", humanize.Comma(int64(m.Pairs())), humanize.Comma(int64(m.NNZ())))
	if n, _ := m.Dims(); n > 1 {
		density := float64(m.NNZ()) / (float64(n) * float64(n-1))
		fmt.Fprintf(tw, "density\t%.3g%%\t\n", 100*density)
	}
	fmt.Fprintf(tw, "total weight\t%s\t\n", humanize.Commaf(mg.Total/2))
	if err := tw.Flush(); err != nil {
		return err
	}

	if top <= 0 || m.IsEmpty() {
		return nil
	}

	tokens := c.Dictionary().Tokens()
	var rows []pairRow
	m.DoNonZero(func(i, j int, v float64) {
		if i >= j {
			return
		}
		r := pairRow{a: tokens[i], b: tokens[j], weight: v}
		if p := c.PMI(); p != nil && p.Has(i, j) {
			r.score, r.scored = p.At(i, j), true
		}
		rows = append(rows, r)
	})
	slices.SortFunc(rows, func(x, y pairRow) int {
		if d := cmp.Compare(y.weight, x.weight); d != 0 {
			return d
		}
		if d := cmp.Compare(x.a, y.a); d != 0 {
			return d
		}
		return cmp.Compare(x.b, y.b)
	})
	rows = rows[:min(top, len(rows))]

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "token\ttoken\tweight\tpmi\t")
	for _, r := range rows {
		score := "-"
		if r.scored {
			score = fmt.Sprintf("%.4f", r.score)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t\n", r.a, r.b, r.weight, score)
	}
	return tw.Flush()
}

func fileSize(path string) string {
	fi, err := os.Stat(path)
	if err != nil {
		return "?"
	}
	return humanize.Bytes(uint64(fi.Size()))
}

// printPairs looks up each a:b pair. Pairs that never cooccur show zero
// weight and no score.
func printPairs(w io.Writer, c *corpus.Corpus, pairs []string) error {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "token\ttoken\tweight\tpmi\t")
	for _, p := range pairs {
		a, b, ok := strings.Cut(p, ":")
		if !ok || a == "" || b == "" {
			return fmt.Errorf("pair %q: want a:b: %w", p, internalerr.ErrInvalidInput)
		}
		for _, tok := range []string{a, b} {
			if _, known := c.Dictionary().Lookup(tok); !known {
				return fmt.Errorf("token %q: %w", tok, internalerr.ErrNotFound)
			}
		}
		weight, _ := c.Cooccurrence(a, b)
		score := "-"
		if v, ok := c.Score(a, b); ok {
			score = fmt.Sprintf("%.4f", v)
		}
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%s\t\n", a, b, weight, score)
	}
	return tw.Flush()
}
