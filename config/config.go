// Package config holds hyperparameters and paths of a training run.
package config

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is configuration of training and prediction.
type Config struct {
	DataPath    string  `yaml:"data_path"`    // directory of sample sub-directories
	LabelsPath  string  `yaml:"labels_path"`  // optional run-length encoded labels CSV
	WeightsPath string  `yaml:"weights_path"` // model weights file
	OutputDir   string  `yaml:"output_dir"`   // figures and submission output
	ImageSize   int     `yaml:"image_size"`   // square input resolution
	Epochs      int     `yaml:"epochs"`
	BatchSize   int     `yaml:"batch_size"`
	ValidSize   int     `yaml:"valid_size"` // number of leading ids held out for validation
	LR          float64 `yaml:"lr"`
	Optimizer   string  `yaml:"optimizer"` // Adam or SGD
	Loss        string  `yaml:"loss"`      // bce or combo
	Threshold   float64 `yaml:"threshold"`
	Seed        int64   `yaml:"seed"`
	Filters     []int64 `yaml:"filters"`
	BatchNorm   bool    `yaml:"batch_norm"`
	Attention   bool    `yaml:"attention"`
	Cuda        bool    `yaml:"cuda"`
	LogLevel    string  `yaml:"log_level"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		DataPath:    "nuclei-data-bowl-2018/stage1_train",
		WeightsPath: "UNetW.ot",
		OutputDir:   ".",
		ImageSize:   128,
		Epochs:      5,
		BatchSize:   8,
		ValidSize:   10,
		LR:          0.001,
		Optimizer:   "Adam",
		Loss:        "bce",
		Threshold:   0.5,
		Seed:        2019,
		Filters:     []int64{16, 32, 64, 128, 256},
		LogLevel:    "info",
	}
}

// Load reads YAML file on top of default configuration.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename == "" {
		return cfg, nil
	}

	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %v", filename)
	}

	return cfg, nil
}

// Validate checks configuration values.
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("data_path is required")
	}
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive. Got %v", c.ImageSize)
	}
	if len(c.Filters) < 2 {
		return fmt.Errorf("filters must have at least 2 values. Got %v", c.Filters)
	}
	div := 1 << uint(len(c.Filters)-1)
	if c.ImageSize%div != 0 {
		return fmt.Errorf("image_size must be divisible by %v. Got %v", div, c.ImageSize)
	}
	for _, f := range c.Filters {
		if f <= 0 {
			return fmt.Errorf("filters must be positive. Got %v", c.Filters)
		}
	}
	if c.Epochs < 0 {
		return fmt.Errorf("epochs must not be negative. Got %v", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive. Got %v", c.BatchSize)
	}
	if c.ValidSize < 0 {
		return fmt.Errorf("valid_size must not be negative. Got %v", c.ValidSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be positive. Got %v", c.LR)
	}
	switch c.Optimizer {
	case "Adam", "SGD":
	default:
		return fmt.Errorf("Unspecified/Invalid Optimizer option: '%v'", c.Optimizer)
	}
	switch c.Loss {
	case "bce", "combo":
	default:
		return fmt.Errorf("Invalid loss option. Expected 'bce' or 'combo'. Got: %v", c.Loss)
	}
	if c.Threshold <= 0 || c.Threshold >= 1 {
		return fmt.Errorf("threshold must be in (0, 1). Got %v", c.Threshold)
	}

	return nil
}
