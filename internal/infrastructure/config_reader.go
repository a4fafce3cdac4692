package infrastructure

import (
	"flag"
	"os"
	"runtime"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"eikotrace/internal/domain"
)

// YAMLConfigReader loads the engine configuration from a YAML file,
// applies command-line overrides on top and fills in defaults.
type YAMLConfigReader struct {
	logger *zap.Logger
}

func NewYAMLConfigReader(logger *zap.Logger) *YAMLConfigReader {
	return &YAMLConfigReader{logger: logger}
}

// ReadConfig parses the file at path (a missing file yields an
// all-default config) and then the given command-line arguments.
func (r *YAMLConfigReader) ReadConfig(path string, args []string) (*domain.Config, error) {
	var config domain.Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		r.logger.Info("config file not found, using defaults", zap.String("path", path))
	default:
		return nil, err
	}

	if err := r.applyCommandLineFlags(&config, args); err != nil {
		return nil, err
	}
	r.setDefaults(&config)
	return &config, nil
}

func (r *YAMLConfigReader) applyCommandLineFlags(config *domain.Config, args []string) error {
	fs := flag.NewFlagSet("eikotrace", flag.ContinueOnError)
	threshold := fs.Float64("threshold", config.Threshold, "Seed intensity threshold")
	interval := fs.Float64("interval", config.Interval, "Extraction spacing interval")
	maxUnits := fs.Int("max-units", config.MaxUnits, "Execution unit cap")
	seed := fs.Int64("seed", config.Seed, "Random seed for stochastic extractors")
	detail := fs.Float64("detail", config.DetailLevel, "Contour detail level [0,1]")
	logLevel := fs.String("log-level", config.LogLevel, "Log level")

	if err := fs.Parse(args); err != nil {
		return err
	}

	config.Threshold = *threshold
	config.Interval = *interval
	config.MaxUnits = *maxUnits
	config.Seed = *seed
	config.DetailLevel = *detail
	config.LogLevel = *logLevel
	return nil
}

func (r *YAMLConfigReader) setDefaults(config *domain.Config) {
	if config.Threshold == 0 {
		config.Threshold = 0.5
	}
	if config.Interval == 0 {
		config.Interval = 8
	}
	if config.MaxUnits == 0 {
		config.MaxUnits = max(1, runtime.NumCPU())
	}
	if config.WarmUnits == 0 {
		config.WarmUnits = 1
	}
	if config.IdleTimeoutSec == 0 {
		config.IdleTimeoutSec = 60
	}
	if config.SolverBatch == 0 {
		config.SolverBatch = 1000
	}
	if config.MaxDim == 0 {
		config.MaxDim = 2048
	}
	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
}
