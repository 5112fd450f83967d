package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Config captures the runtime knobs for a training run.
type Config struct {
	TrainRootMarked string  `yaml:"train_root_marked"`
	TrainRootClean  string  `yaml:"train_root_clean"`
	TrainRootSynth  string  `yaml:"train_root_synth"`
	TestRootMarked  string  `yaml:"test_root_marked"`
	TestRootClean   string  `yaml:"test_root_clean"`
	TestRootMask    string  `yaml:"test_root_mask"`
	OutputDir       string  `yaml:"output_dir"`
	Epochs          int     `yaml:"epochs"`
	BatchSize       int     `yaml:"batch_size"`
	LearningRate    float64 `yaml:"learning_rate"`
	Alpha           float64 `yaml:"alpha"`
	LogEvery        int     `yaml:"log_every"`
	ImageSize       int     `yaml:"image_size"`
	NumWorkers      int     `yaml:"num_workers"`
	Seed            int64   `yaml:"seed"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	OutputDir    string
	Epochs       int
	BatchSize    int
	LearningRate float64
	Alpha        float64
	LogEvery     int
	NumWorkers   int
	Seed         int64
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := parseYAML(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.OutputDir != "" {
		c.OutputDir = o.OutputDir
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Alpha > 0 {
		c.Alpha = o.Alpha
	}
	if o.LogEvery > 0 {
		c.LogEvery = o.LogEvery
	}
	if o.NumWorkers > 0 {
		c.NumWorkers = o.NumWorkers
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
}

// Validate verifies the config is runnable and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	for _, root := range []struct {
		name  string
		value string
	}{
		{"train_root_marked", c.TrainRootMarked},
		{"train_root_clean", c.TrainRootClean},
		{"train_root_synth", c.TrainRootSynth},
		{"test_root_marked", c.TestRootMarked},
		{"test_root_clean", c.TestRootClean},
		{"test_root_mask", c.TestRootMask},
	} {
		if root.value == "" {
			return fmt.Errorf("%s must be set", root.name)
		}
	}
	if c.OutputDir == "" {
		c.OutputDir = "output_GAN"
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning_rate must be > 0 (got %g)", c.LearningRate)
	}
	if c.Alpha < 0 {
		return fmt.Errorf("alpha must be >= 0 (got %g)", c.Alpha)
	}
	if c.LogEvery <= 0 {
		c.LogEvery = 20
	}
	if c.ImageSize <= 0 {
		c.ImageSize = 800
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = 1
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	return nil
}

func parseYAML(r io.Reader) (*Config, error) {
	cfg := &Config{}
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: missing ':'", lineNo)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, "\"'")
		var err error
		switch key {
		case "train_root_marked":
			cfg.TrainRootMarked = value
		case "train_root_clean":
			cfg.TrainRootClean = value
		case "train_root_synth":
			cfg.TrainRootSynth = value
		case "test_root_marked":
			cfg.TestRootMarked = value
		case "test_root_clean":
			cfg.TestRootClean = value
		case "test_root_mask":
			cfg.TestRootMask = value
		case "output_dir":
			cfg.OutputDir = value
		case "epochs":
			cfg.Epochs, err = strconv.Atoi(value)
		case "batch_size":
			cfg.BatchSize, err = strconv.Atoi(value)
		case "learning_rate":
			cfg.LearningRate, err = strconv.ParseFloat(value, 64)
		case "alpha":
			cfg.Alpha, err = strconv.ParseFloat(value, 64)
		case "log_every":
			cfg.LogEvery, err = strconv.Atoi(value)
		case "image_size":
			cfg.ImageSize, err = strconv.Atoi(value)
		case "num_workers":
			cfg.NumWorkers, err = strconv.Atoi(value)
		case "seed":
			cfg.Seed, err = strconv.ParseInt(value, 10, 64)
		default:
			return nil, fmt.Errorf("line %d: unknown key %s", lineNo, key)
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: %w", lineNo, key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cfg, nil
}
