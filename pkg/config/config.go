// Package config loads redline settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coolbeans/redline/pkg/align"
	"github.com/coolbeans/redline/pkg/integrity"
	"github.com/coolbeans/redline/pkg/logging"
	"github.com/coolbeans/redline/pkg/risk"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultWorkers is the default per-pair analysis parallelism.
const DefaultWorkers = 4

// Config is the top-level configuration file.
type Config struct {
	Alignment AlignmentConfig `yaml:"alignment"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Integrity IntegrityConfig `yaml:"integrity"`
	Rules     RulesConfig     `yaml:"rules"`
	Logging   logging.Config  `yaml:"logging"`
}

// AlignmentConfig configures clause matching.
type AlignmentConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	ShingleSize         int     `yaml:"shingle_size"`
	MaxFuzzyPairs       int     `yaml:"max_fuzzy_pairs"`
}

// AnalysisConfig configures per-pair analysis.
type AnalysisConfig struct {
	Workers int `yaml:"workers"`
}

// IntegrityConfig configures the ghost change check.
type IntegrityConfig struct {
	Marker string `yaml:"marker"`
}

// RulesConfig selects the risk rule set.
type RulesConfig struct {
	Directory string `yaml:"directory"`
	RuleSet   string `yaml:"rule_set"`
}

// Default returns the built-in configuration.
func Default() Config {
	alignment := align.DefaultOptions()
	return Config{
		Alignment: AlignmentConfig{
			SimilarityThreshold: alignment.SimilarityThreshold,
			ShingleSize:         alignment.ShingleSize,
			MaxFuzzyPairs:       alignment.MaxFuzzyPairs,
		},
		Analysis:  AnalysisConfig{Workers: DefaultWorkers},
		Integrity: IntegrityConfig{Marker: integrity.DefaultMarker},
		Rules:     RulesConfig{RuleSet: risk.DefaultRuleSetName},
		Logging:   logging.DefaultConfig(),
	}
}

// Load reads a YAML configuration file. Fields missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every section of the configuration.
func (c Config) Validate() error {
	if err := c.AlignmentOptions().Validate(); err != nil {
		return fmt.Errorf("%w: alignment: %v", ErrInvalid, err)
	}
	if c.Analysis.Workers < 1 {
		return fmt.Errorf("%w: analysis: workers must be at least 1, got %d", ErrInvalid, c.Analysis.Workers)
	}
	if c.Integrity.Marker == "" {
		return fmt.Errorf("%w: integrity: marker must not be empty", ErrInvalid)
	}
	if c.Rules.RuleSet == "" {
		return fmt.Errorf("%w: rules: rule_set must not be empty", ErrInvalid)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("%w: logging: %v", ErrInvalid, err)
	}
	return nil
}

// AlignmentOptions converts the alignment section to aligner options.
func (c Config) AlignmentOptions() align.Options {
	return align.Options{
		SimilarityThreshold: c.Alignment.SimilarityThreshold,
		ShingleSize:         c.Alignment.ShingleSize,
		MaxFuzzyPairs:       c.Alignment.MaxFuzzyPairs,
	}
}

// ToYAML serializes the configuration.
func (c Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}
