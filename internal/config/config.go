package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Config holds training configuration
type Config struct {
	Data struct {
		Table string `yaml:"table"`
	} `yaml:"data"`

	Split struct {
		TestSize float64 `yaml:"test_size"`
		Seed     *uint64 `yaml:"seed"`
	} `yaml:"split"`

	Search struct {
		Folds   int     `yaml:"folds"`
		Workers int     `yaml:"workers"` // 0 means GOMAXPROCS
		Scoring string  `yaml:"scoring"`
		Seed    *uint64 `yaml:"seed"`
		Grid    struct {
			Smoothing      []bool    `yaml:"smoothing"`
			Regularization []float64 `yaml:"regularization"`
		} `yaml:"grid"`
	} `yaml:"search"`

	SVM struct {
		Tol     float64 `yaml:"tol"`
		MaxIter int     `yaml:"max_iter"`
	} `yaml:"svm"`

	Features struct {
		Lowercase *bool `yaml:"lowercase"`
	} `yaml:"features"`

	Lexicon struct {
		LemmaFile string `yaml:"lemma_file"` // empty selects the built-in English dictionary
	} `yaml:"lexicon"`

	Evaluation struct {
		ExcludeCategory string `yaml:"exclude_category"`
	} `yaml:"evaluation"`

	Log struct {
		Level       string `yaml:"level"`
		Development *bool  `yaml:"development"`
	} `yaml:"log"`
}

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var scorings = map[string]struct{}{
	"subset_accuracy": {},
	"f1_micro":        {},
	"f1_macro":        {},
}

var levels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Default returns a configuration with every default applied
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

// LoadConfig loads configuration from YAML file.
// A missing file yields an error wrapping os.ErrNotExist.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	config.applyDefaults()

	config.Data.Table = os.ExpandEnv(config.Data.Table)
	config.Lexicon.LemmaFile = os.ExpandEnv(config.Lexicon.LemmaFile)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Data.Table == "" {
		c.Data.Table = "DisasterResponse"
	}

	if c.Split.TestSize == 0 {
		c.Split.TestSize = 0.2
	}
	if c.Split.Seed == nil {
		c.Split.Seed = uint64Ptr(42)
	}

	if c.Search.Folds == 0 {
		c.Search.Folds = 5
	}
	if c.Search.Scoring == "" {
		c.Search.Scoring = "subset_accuracy"
	}
	if c.Search.Seed == nil {
		c.Search.Seed = uint64Ptr(42)
	}
	if len(c.Search.Grid.Smoothing) == 0 {
		c.Search.Grid.Smoothing = []bool{true, false}
	}
	if len(c.Search.Grid.Regularization) == 0 {
		c.Search.Grid.Regularization = []float64{1, 2, 5}
	}

	if c.SVM.Tol == 0 {
		c.SVM.Tol = 1e-4
	}
	if c.SVM.MaxIter == 0 {
		c.SVM.MaxIter = 1000
	}

	if c.Features.Lowercase == nil {
		c.Features.Lowercase = boolPtr(true)
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Development == nil {
		c.Log.Development = boolPtr(true)
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }

func boolPtr(v bool) *bool { return &v }

// Validate rejects out-of-range values
func (c *Config) Validate() error {
	if !identifier.MatchString(c.Data.Table) {
		return fmt.Errorf("data.table %q is not a valid table name", c.Data.Table)
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return fmt.Errorf("split.test_size must be in (0, 1), got %v", c.Split.TestSize)
	}
	if c.Search.Folds < 2 {
		return fmt.Errorf("search.folds must be at least 2, got %d", c.Search.Folds)
	}
	if c.Search.Workers < 0 {
		return fmt.Errorf("search.workers must not be negative, got %d", c.Search.Workers)
	}
	if _, ok := scorings[c.Search.Scoring]; !ok {
		return fmt.Errorf("search.scoring %q is not supported", c.Search.Scoring)
	}
	for _, v := range c.Search.Grid.Regularization {
		if v != 1 && v != 2 && v != 5 {
			return fmt.Errorf("search.grid.regularization value %v must be one of 1, 2, 5", v)
		}
	}
	if c.SVM.Tol <= 0 {
		return fmt.Errorf("svm.tol must be positive, got %v", c.SVM.Tol)
	}
	if c.SVM.MaxIter < 1 {
		return fmt.Errorf("svm.max_iter must be positive, got %d", c.SVM.MaxIter)
	}
	if _, ok := levels[c.Log.Level]; !ok {
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	return nil
}

// Lowercase reports whether documents are lowercased before tokenization
func (c *Config) Lowercase() bool {
	return c.Features.Lowercase == nil || *c.Features.Lowercase
}

// SplitSeed returns the seed of the train/test shuffle
func (c *Config) SplitSeed() uint64 {
	if c.Split.Seed == nil {
		return 42
	}
	return *c.Split.Seed
}

// SearchSeed returns the seed handed to every classifier of the search
func (c *Config) SearchSeed() uint64 {
	if c.Search.Seed == nil {
		return 42
	}
	return *c.Search.Seed
}

// Development reports whether the human-readable development logger is used
func (c *Config) Development() bool {
	return c.Log.Development == nil || *c.Log.Development
}
