package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cognicore/cooccur/pkg/cooccur/corpus"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
	"github.com/cognicore/cooccur/pkg/cooccur/store"
	"github.com/cognicore/cooccur/pkg/cooccur/store/memstore"
	"github.com/cognicore/cooccur/pkg/cooccur/store/sqlite"
	"github.com/cognicore/cooccur/pkg/cooccur/suggest"
)

func newNeighborsCmd(g *globalFlags) *cobra.Command {
	var (
		dbPath    string
		runID     string
		modelPath string
		pmiPath   string
		k         int
	)
	cmd := &cobra.Command{
		Use:   "neighbors <token>",
		Short: "List the tokens with the highest PMI against a token",
		Long: `neighbors reads either a SQLite run database (--sqlite, optionally
--run; defaults to the latest run) or a model and PMI snapshot pair
(--model and --pmi).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			token := args[0]

			st, err := openRunStore(ctx, g, dbPath, modelPath, pmiPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if runID == "" {
				latest, err := st.LatestRun(ctx)
				if err != nil {
					return err
				}
				runID = latest.ID
			}
			ns, err := st.TopNeighbors(ctx, runID, token, k)
			if errors.Is(err, internalerr.ErrNotFound) {
				if run, lerr := st.LoadRun(ctx, runID); lerr == nil {
					return withSuggestions(err, run, token)
				}
			}
			if err != nil {
				return err
			}
			return printNeighbors(cmd.OutOrStdout(), ns)
		},
	}
	f := cmd.Flags()
	f.StringVar(&dbPath, "sqlite", "", "SQLite run database")
	f.StringVar(&runID, "run", "", "run id (default: latest run)")
	f.StringVar(&modelPath, "model", "", "model snapshot")
	f.StringVar(&pmiPath, "pmi", "", "PMI snapshot")
	f.IntVarP(&k, "top", "k", store.DefaultNeighbors, "number of neighbors")
	return cmd
}

// openRunStore opens the SQLite database, or loads a snapshot pair into an
// in-memory store holding that single run.
func openRunStore(ctx context.Context, g *globalFlags, dbPath, modelPath, pmiPath string) (store.Store, error) {
	switch {
	case dbPath != "":
		return sqlite.OpenSQLite(ctx, dbPath)
	case modelPath != "":
		if pmiPath == "" {
			return nil, fmt.Errorf("--model needs --pmi: %w", internalerr.ErrInvalidInput)
		}
		c, err := corpus.Load(modelPath, pmiPath, corpus.WithLogger(g.newLogger(quietJob())))
		if err != nil {
			return nil, err
		}
		// Window and ignore-missing are not part of a snapshot.
		run, err := store.FromCorpus(c, 0, false)
		if err != nil {
			return nil, err
		}
		st := memstore.New()
		if _, err := st.SaveRun(ctx, run); err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("set --sqlite or --model: %w", internalerr.ErrInvalidInput)
	}
}

// withSuggestions names the closest dictionary tokens when token is unknown.
func withSuggestions(err error, run store.Run, token string) error {
	similar := suggest.New(run.Tokens, run.Marginals()).Similar(token, 2, 5)
	if len(similar) == 0 {
		return err
	}
	names := make([]string, len(similar))
	for i, s := range similar {
		names[i] = s.Token
	}
	return fmt.Errorf("%w (did you mean %s?)", err, strings.Join(names, ", "))
}

func printNeighbors(w io.Writer, ns []store.Neighbor) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "token\tpmi\tweight\t")
	for _, n := range ns {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\t\n", n.Token, n.PMI, n.Weight)
	}
	return tw.Flush()
}
