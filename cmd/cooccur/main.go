// Command cooccur builds cooccurrence and PMI matrices from a tokenized
// corpus and queries the results.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/cognicore/cooccur/internal/logger"
	"github.com/cognicore/cooccur/pkg/cooccur/config"
)

type globalFlags struct {
	level  string
	format string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// cobra has already printed the error.
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var g globalFlags
	root := &cobra.Command{
		Use:          "cooccur",
		Short:        "Build and query cooccurrence/PMI matrices",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&g.level, "log-level", "", "log level (debug, info, warn, error); overrides config")
	root.PersistentFlags().StringVar(&g.format, "log-format", "", "log format (text, json, logfmt); overrides config")

	root.AddCommand(newFitCmd(&g), newInspectCmd(&g), newNeighborsCmd(&g))
	return root
}

// newLogger builds the process logger from the job's log section. Flags win
// over the configured values.
func (g *globalFlags) newLogger(job config.Job) *log.Logger {
	if g.level != "" {
		job.Log.Level = g.level
	}
	if g.format != "" {
		job.Log.Format = g.format
	}
	return logger.NewWithConfig(os.Stderr, "cooccur", job.Level(), logger.ParseFormatter(job.Log.Format))
}

// quietJob is the log setup of the read-only commands, which have no job file.
func quietJob() config.Job {
	return config.Job{Log: config.Log{Level: "warn", Format: "text"}}
}
