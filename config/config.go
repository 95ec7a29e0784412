// Package config resolves the options of a loso run from defaults, an
// optional YAML file and command-line flags, in that order of precedence.
package config

import (
	"bytes"
	"flag"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/losocv/evaluation"
	"github.com/YuminosukeSato/losocv/pkg/errors"
	"github.com/YuminosukeSato/losocv/pkg/log"
	"github.com/YuminosukeSato/losocv/preprocessing"
)

// Config holds every option of the command.
type Config struct {
	Input       string `yaml:"input"`
	Norm        string `yaml:"norm"`
	Balanced    string `yaml:"balanced"`
	NEstimators int    `yaml:"n_estimators"`
	RandomState int64  `yaml:"random_state"`
	OutputDir   string `yaml:"output_dir"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	NJobs       int    `yaml:"n_jobs"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		Input:       "features_raw.csv",
		Norm:        "global",
		Balanced:    "yes",
		NEstimators: 300,
		RandomState: 42,
		OutputDir:   ".",
		LogLevel:    "info",
		LogFormat:   log.FormatConsole,
		NJobs:       0,
	}
}

// Load reads a YAML file over the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "reading config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parsing config")
	}
	return cfg, nil
}

// FromArgs parses command-line arguments. When -config names a file its
// values replace the defaults, and flags given explicitly replace both.
// The result is validated. flag.ErrHelp is returned unchanged for -h.
func FromArgs(args []string, output io.Writer) (Config, error) {
	var configPath string
	flags := Default()

	fs := flag.NewFlagSet("loso", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&configPath, "config", "", "YAML file with default options")
	fs.StringVar(&flags.Input, "input", flags.Input, "feature table (CSV with subject, label and feature columns)")
	fs.StringVar(&flags.Norm, "norm", flags.Norm, "normalization inside each fold: "+strings.Join(preprocessing.NormModeNames, ", "))
	fs.StringVar(&flags.Balanced, "balanced", flags.Balanced, "use balanced class weights: yes or no")
	fs.IntVar(&flags.NEstimators, "n_estimators", flags.NEstimators, "trees in the random forest")
	fs.Int64Var(&flags.RandomState, "random_state", flags.RandomState, "random seed")
	fs.StringVar(&flags.OutputDir, "out", flags.OutputDir, "directory for the output files")
	fs.StringVar(&flags.LogLevel, "log-level", flags.LogLevel, "debug, info, warn or error")
	fs.StringVar(&flags.LogFormat, "log-format", flags.LogFormat, "console or json")
	fs.IntVar(&flags.NJobs, "n_jobs", flags.NJobs, "goroutines per forest, 0 for all CPUs")

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return Config{}, err
		}
		return Config{}, errors.Wrap(err, "parsing flags")
	}
	if fs.NArg() > 0 {
		return Config{}, errors.NewValidationError("args", "unexpected positional arguments", fs.Args())
	}

	cfg := Default()
	if configPath != "" {
		var err error
		if cfg, err = Load(configPath); err != nil {
			return Config{}, err
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.Input = flags.Input
		case "norm":
			cfg.Norm = flags.Norm
		case "balanced":
			cfg.Balanced = flags.Balanced
		case "n_estimators":
			cfg.NEstimators = flags.NEstimators
		case "random_state":
			cfg.RandomState = flags.RandomState
		case "out":
			cfg.OutputDir = flags.OutputDir
		case "log-level":
			cfg.LogLevel = flags.LogLevel
		case "log-format":
			cfg.LogFormat = flags.LogFormat
		case "n_jobs":
			cfg.NJobs = flags.NJobs
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid option.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Input) == "" {
		return errors.NewValidationError("input", "must not be empty", c.Input)
	}
	if _, err := preprocessing.ParseNormMode(c.Norm); err != nil {
		return err
	}
	if _, err := c.balanced(); err != nil {
		return err
	}
	if c.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be a positive integer", c.NEstimators)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case log.FormatConsole, log.FormatJSON:
	default:
		return errors.NewValidationError("log_format", "must be console or json", c.LogFormat)
	}
	return nil
}

func (c Config) balanced() (bool, error) {
	switch strings.ToLower(strings.TrimSpace(c.Balanced)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	default:
		return false, errors.NewValidationError("balanced", "must be yes or no", c.Balanced)
	}
}

// ToRunConfig converts the options into an evaluation.Config.
func (c Config) ToRunConfig() (evaluation.Config, error) {
	mode, err := preprocessing.ParseNormMode(c.Norm)
	if err != nil {
		return evaluation.Config{}, err
	}
	balanced, err := c.balanced()
	if err != nil {
		return evaluation.Config{}, err
	}
	rc := evaluation.Config{
		Norm:        mode,
		Balanced:    balanced,
		NEstimators: c.NEstimators,
		RandomState: c.RandomState,
		NJobs:       c.NJobs,
	}
	return rc, rc.Validate()
}

// Level returns the parsed log level.
func (c Config) Level() (log.Level, error) {
	return log.ParseLevel(c.LogLevel)
}
