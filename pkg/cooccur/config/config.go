// Package config loads fit jobs from YAML or TOML with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/cooccur/pkg/cooccur/corpus"
	"github.com/cognicore/cooccur/pkg/cooccur/internalerr"
)

// EnvPrefix prefixes every environment override, e.g. COOCCUR_FIT_WINDOW.
const EnvPrefix = "COOCCUR_"

// Input formats.
const (
	FormatLines = "lines"
	FormatJSONL = "jsonl"
	FormatHTML  = "html"
)

// Job describes one fit: where the corpus comes from, how to scan it and
// where results go.
type Job struct {
	Input  Input  `yaml:"input" toml:"input" envPrefix:"INPUT_"`
	Fit    Fit    `yaml:"fit" toml:"fit" envPrefix:"FIT_"`
	Output Output `yaml:"output" toml:"output" envPrefix:"OUTPUT_"`
	Log    Log    `yaml:"log" toml:"log" envPrefix:"LOG_"`
}

// Input selects the corpus files and how to read them.
type Input struct {
	Paths  []string `yaml:"paths" toml:"paths" env:"PATHS" envSeparator:","`
	Format string   `yaml:"format" toml:"format" env:"FORMAT"`
	// Field names the token array in JSONL records.
	Field string `yaml:"field" toml:"field" env:"FIELD"`
	// Dictionary is an optional "token id" file; when set the pass runs in
	// lookup mode.
	Dictionary string `yaml:"dictionary" toml:"dictionary" env:"DICTIONARY"`
}

// Fit mirrors corpus.FitOptions.
type Fit struct {
	Window        int  `yaml:"window" toml:"window" env:"WINDOW"`
	IgnoreMissing bool `yaml:"ignore_missing" toml:"ignore_missing" env:"IGNORE_MISSING"`
	Positive      bool `yaml:"positive" toml:"positive" env:"POSITIVE"`
	NPMI          bool `yaml:"npmi" toml:"npmi" env:"NPMI"`
	Workers       int  `yaml:"workers" toml:"workers" env:"WORKERS"`
	BatchSize     int  `yaml:"batch_size" toml:"batch_size" env:"BATCH_SIZE"`
	ProgressEvery int  `yaml:"progress_every" toml:"progress_every" env:"PROGRESS_EVERY"`
}

// Output lists the destinations. Empty paths are skipped.
type Output struct {
	Model  string `yaml:"model" toml:"model" env:"MODEL"`
	PMI    string `yaml:"pmi" toml:"pmi" env:"PMI"`
	SQLite string `yaml:"sqlite" toml:"sqlite" env:"SQLITE"`
	// Dictionary receives the fitted vocabulary as "token id" lines, ready to
	// be supplied to a later lookup-mode pass.
	Dictionary string `yaml:"dictionary" toml:"dictionary" env:"DICTIONARY"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level" toml:"level" env:"LEVEL"`
	Format string `yaml:"format" toml:"format" env:"FORMAT"`
}

// Default returns a job with the default fit options and no input.
func Default() Job {
	opts := corpus.DefaultFitOptions()
	return Job{
		Input: Input{Format: FormatLines, Field: "tokens"},
		Fit: Fit{
			Window:        opts.Window,
			Workers:       opts.Workers,
			BatchSize:     opts.BatchSize,
			ProgressEvery: 10000,
		},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads a job from path on top of Default, then applies environment
// overrides. Files ending in .toml are read as TOML, anything else as YAML.
// An empty path uses the defaults and the environment only. The result is
// not validated; call Validate once flags are applied.
func Load(path string) (*Job, error) {
	job := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			err = toml.Unmarshal(data, &job)
		} else {
			err = yaml.Unmarshal(data, &job)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&job, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("environment: %w", err)
	}
	return &job, nil
}

// Validate reports every problem with the job, wrapped in ErrInvalidConfig.
func (j *Job) Validate() error {
	var errs []error
	if len(j.Input.Paths) == 0 {
		errs = append(errs, errors.New("input.paths is empty"))
	}
	switch j.Input.Format {
	case FormatLines, FormatHTML:
	case FormatJSONL:
		if j.Input.Field == "" {
			errs = append(errs, errors.New("input.field is required for jsonl"))
		}
	default:
		errs = append(errs, fmt.Errorf("input.format %q is not one of lines, jsonl, html", j.Input.Format))
	}
	if j.Fit.IgnoreMissing && j.Input.Dictionary == "" {
		errs = append(errs, errors.New("fit.ignore_missing needs input.dictionary"))
	}
	if j.Fit.Workers < 1 {
		errs = append(errs, fmt.Errorf("fit.workers must be at least 1, got %d", j.Fit.Workers))
	}
	if j.Fit.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("fit.batch_size must be at least 1, got %d", j.Fit.BatchSize))
	}
	if j.Fit.ProgressEvery < 0 {
		errs = append(errs, fmt.Errorf("fit.progress_every must not be negative, got %d", j.Fit.ProgressEvery))
	}
	if j.Output.Model == "" && j.Output.SQLite == "" {
		errs = append(errs, errors.New("set output.model or output.sqlite"))
	}
	if j.Output.PMI != "" && j.Output.Model == "" {
		errs = append(errs, errors.New("output.pmi needs output.model"))
	}
	if _, err := log.ParseLevel(j.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	switch strings.ToLower(j.Log.Format) {
	case "text", "json", "logfmt":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json, logfmt", j.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", internalerr.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// FitOptions converts the fit section for corpus.Fit.
func (j *Job) FitOptions() corpus.FitOptions {
	return corpus.FitOptions{
		Window:        j.Fit.Window,
		IgnoreMissing: j.Fit.IgnoreMissing,
		Positive:      j.Fit.Positive,
		UseNPMI:       j.Fit.NPMI,
		Workers:       j.Fit.Workers,
		BatchSize:     j.Fit.BatchSize,
		ProgressEvery: j.Fit.ProgressEvery,
	}
}

// Level returns the parsed log level, falling back to info.
func (j *Job) Level() log.Level {
	lvl, err := log.ParseLevel(j.Log.Level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Exists reports whether path can be stat'ed. Any stat error, not only a
// missing file, counts as absent.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
