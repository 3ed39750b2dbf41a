package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cognicore/cooccur/pkg/cooccur/config"
	"github.com/cognicore/cooccur/pkg/cooccur/corpus"
	"github.com/cognicore/cooccur/pkg/cooccur/store"
	"github.com/cognicore/cooccur/pkg/cooccur/store/sqlite"
)

const defaultConfigPath = "cooccur.yaml"

func newFitCmd(g *globalFlags) *cobra.Command {
	var (
		cfgPath string
		over    config.Job
	)
	cmd := &cobra.Command{
		Use:   "fit [corpus files... | -]",
		Short: "Scan a corpus and write the dictionary, cooccurrence and PMI matrices",
		Long: `fit runs one pass over the corpus and stores the result as msgpack
snapshots, in a SQLite run database, or both.

A corpus path of "-" reads standard input.

Settings come from the YAML job file, then COOCCUR_* environment variables,
then flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfgPath == "" && config.Exists(defaultConfigPath) {
				cfgPath = defaultConfigPath
			}
			job, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			applyFitFlags(cmd, job, &over, args)
			if err := job.Validate(); err != nil {
				return err
			}
			return runFit(cmd, g, job)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfgPath, "config", "c", "", "job file (default ./"+defaultConfigPath+" when present)")
	f.StringVar(&over.Input.Format, "format", "", "input format: lines, jsonl or html")
	f.StringVar(&over.Input.Field, "field", "", "token array field for jsonl input")
	f.StringVar(&over.Input.Dictionary, "dictionary", "", `supplied "token id" dictionary file`)
	f.IntVarP(&over.Fit.Window, "window", "w", 0, "context window")
	f.BoolVar(&over.Fit.IgnoreMissing, "ignore-missing", false, "skip tokens missing from the supplied dictionary")
	f.BoolVar(&over.Fit.Positive, "positive", false, "keep only positive PMI")
	f.BoolVar(&over.Fit.NPMI, "npmi", false, "store normalized PMI")
	f.IntVarP(&over.Fit.Workers, "workers", "j", 0, "scanner goroutines")
	f.IntVar(&over.Fit.BatchSize, "batch-size", 0, "documents per worker batch")
	f.IntVar(&over.Fit.ProgressEvery, "progress-every", 0, "log progress every N documents (0 disables)")
	f.StringVarP(&over.Output.Model, "model", "o", "", "model snapshot path")
	f.StringVar(&over.Output.PMI, "pmi", "", "PMI snapshot path")
	f.StringVar(&over.Output.SQLite, "sqlite", "", "SQLite run database path")
	f.StringVar(&over.Output.Dictionary, "dictionary-out", "", `write the fitted vocabulary as a "token id" file`)
	return cmd
}

// applyFitFlags copies every flag the user set onto job.
func applyFitFlags(cmd *cobra.Command, job *config.Job, over *config.Job, args []string) {
	if len(args) > 0 {
		job.Input.Paths = args
	}
	set := cmd.Flags().Changed
	if set("format") {
		job.Input.Format = over.Input.Format
	}
	if set("field") {
		job.Input.Field = over.Input.Field
	}
	if set("dictionary") {
		job.Input.Dictionary = over.Input.Dictionary
	}
	if set("window") {
		job.Fit.Window = over.Fit.Window
	}
	if set("ignore-missing") {
		job.Fit.IgnoreMissing = over.Fit.IgnoreMissing
	}
	if set("positive") {
		job.Fit.Positive = over.Fit.Positive
	}
	if set("npmi") {
		job.Fit.NPMI = over.Fit.NPMI
	}
	if set("workers") {
		job.Fit.Workers = over.Fit.Workers
	}
	if set("batch-size") {
		job.Fit.BatchSize = over.Fit.BatchSize
	}
	if set("progress-every") {
		job.Fit.ProgressEvery = over.Fit.ProgressEvery
	}
	if set("model") {
		job.Output.Model = over.Output.Model
	}
	if set("pmi") {
		job.Output.PMI = over.Output.PMI
	}
	if set("sqlite") {
		job.Output.SQLite = over.Output.SQLite
	}
	if set("dictionary-out") {
		job.Output.Dictionary = over.Output.Dictionary
	}
}

func runFit(cmd *cobra.Command, g *globalFlags, job *config.Job) error {
	ctx := cmd.Context()
	logger := g.newLogger(*job)

	var (
		c   *corpus.Corpus
		err error
	)
	if job.Input.Dictionary != "" {
		dict, err := config.LoadDictionary(job.Input.Dictionary)
		if err != nil {
			return fmt.Errorf("load dictionary: %w", err)
		}
		if c, err = corpus.NewWithDictionary(dict, corpus.WithLogger(logger)); err != nil {
			return fmt.Errorf("dictionary %s: %w", job.Input.Dictionary, err)
		}
	} else {
		c = corpus.New(corpus.WithLogger(logger))
	}

	src, closeInput, err := job.Input.Open()
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer closeInput()

	opts := job.FitOptions()
	if err := c.Fit(ctx, src, opts); err != nil {
		return err
	}

	if job.Output.Model != "" {
		if err := c.Save(job.Output.Model, job.Output.PMI); err != nil {
			return fmt.Errorf("save snapshot: %w", err)
		}
		logger.Info("snapshot written", "model", job.Output.Model, "pmi", job.Output.PMI)
	}

	if job.Output.Dictionary != "" {
		if err := config.WriteDictionary(job.Output.Dictionary, c.Dictionary().Tokens()); err != nil {
			return fmt.Errorf("write dictionary: %w", err)
		}
		logger.Info("dictionary written", "path", job.Output.Dictionary, "tokens", c.Dictionary().Len())
	}

	if job.Output.SQLite != "" {
		run, err := store.FromCorpus(c, opts.Window, opts.IgnoreMissing)
		if err != nil {
			return err
		}
		st, err := sqlite.OpenSQLite(ctx, job.Output.SQLite)
		if err != nil {
			return fmt.Errorf("open %s: %w", job.Output.SQLite, err)
		}
		defer st.Close()

		id, err := st.SaveRun(ctx, run)
		if err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		logger.Info("run stored", "db", job.Output.SQLite, "run", id)
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}
