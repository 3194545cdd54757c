// Package config loads boundary-prep settings from a YAML file, a .env file
// and the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/bsaid97/go-boundary-prep/utils"
)

// Environment variables read by Load.
const (
	EnvConfigFile     = "BOUNDARY_PREP_CONFIG"
	EnvReservedWords  = "BOUNDARY_PREP_RESERVED_WORDS"
	EnvReviewTemplate = "BOUNDARY_PREP_REVIEW_TEMPLATE"
	EnvMongoURI       = "BOUNDARY_PREP_MONGO_URI"
	EnvWorkers        = "BOUNDARY_PREP_WORKERS"
)

// DefaultConfigFile is looked up in the working directory when no path is given.
const DefaultConfigFile = "boundary-prep.yaml"

const (
	defaultReservedWordsFile = "//dataserver1/GPW/GPW5/Scripts/Ingest/reference_data/reserved_words.txt"
	defaultReviewTemplate    = "//dataserver1/GPW/GPW5/Scripts/Ingest/reference_data/gaps_overlaps_template.toml"
)

type Config struct {
	// ReservedWordsFile is the newline-delimited list of unsupported field names.
	ReservedWordsFile string `yaml:"reserved_words_file"`
	// ReviewTemplate is the TOML project template used by the review command.
	ReviewTemplate string `yaml:"review_template"`
	// ISOOverrides maps unsupported ISO codes to the codes used instead.
	ISOOverrides map[string]string `yaml:"iso_overrides"`
	// Precision is the number of decimals kept after reprojection.
	Precision int `yaml:"precision"`
	// Workers bounds the geometry worker pool; 0 means one per CPU.
	Workers int          `yaml:"workers"`
	Ledger  LedgerConfig `yaml:"ledger"`
}

// LedgerConfig configures the optional MongoDB run ledger.
type LedgerConfig struct {
	MongoURI   string `yaml:"mongo_uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// Enabled reports whether a ledger connection is configured.
func (l LedgerConfig) Enabled() bool {
	return l.MongoURI != ""
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ReservedWordsFile: defaultReservedWordsFile,
		ReviewTemplate:    defaultReviewTemplate,
		ISOOverrides: map[string]string{
			"and": "adr",
			"vat": "vcs",
		},
		Precision: utils.DefaultPrecision,
		Ledger: LedgerConfig{
			Database:   "gpw_ingest",
			Collection: "boundary_runs",
		},
	}
}

// Load builds the configuration. path may be empty, in which case
// $BOUNDARY_PREP_CONFIG and then ./boundary-prep.yaml are tried; a missing
// default file is not an error but a missing explicit one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, utils.WrapError(utils.ErrCodeInvalidInput, err, "failed to load .env")
	}

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfigFile)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, utils.WrapError(utils.ErrCodeInvalidInput, err, "invalid config file %s", path)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, utils.WrapError(utils.ErrCodeFileNotFound, err, "cannot read config file %s", path)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvReservedWords); v != "" {
		c.ReservedWordsFile = v
	}
	if v := os.Getenv(EnvReviewTemplate); v != "" {
		c.ReviewTemplate = v
	}
	if v := os.Getenv(EnvMongoURI); v != "" {
		c.Ledger.MongoURI = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return utils.WrapError(utils.ErrCodeInvalidInput, err, "%s must be an integer", EnvWorkers)
		}
		c.Workers = n
	}
	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Precision < 0 || c.Precision > 15 {
		return utils.NewError(utils.ErrCodeInvalidInput, "precision must be between 0 and 15, got %d", c.Precision)
	}
	if c.Workers < 0 {
		return utils.NewError(utils.ErrCodeInvalidInput, "workers cannot be negative")
	}
	if c.Ledger.Enabled() && (c.Ledger.Database == "" || c.Ledger.Collection == "") {
		return utils.NewError(utils.ErrCodeInvalidInput, "ledger needs a database and a collection")
	}
	return nil
}
