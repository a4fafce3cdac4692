package domain

// Config is the engine configuration, read from YAML with command-line
// overrides applied on top.
type Config struct {
	Threshold       float64 `yaml:"threshold"`
	Interval        float64 `yaml:"interval"`
	EdgeGuidance    bool    `yaml:"edge_guidance"`
	EdgeSensitivity float64 `yaml:"edge_sensitivity"`
	DetailLevel     float64 `yaml:"detail_level"`

	MaxUnits       int    `yaml:"max_units"`
	WarmUnits      int    `yaml:"warm_units"`
	IdleTimeoutSec int    `yaml:"idle_timeout_sec"`
	HeapLimitMB    int    `yaml:"heap_limit_mb"`
	SolverBatch    int    `yaml:"solver_batch"`
	Seed           int64  `yaml:"seed"`
	MaxDim         int    `yaml:"max_dim"`
	LogLevel       string `yaml:"log_level"`
	LogFile        string `yaml:"log_file"`
}

// JobOptions are the per-submission extraction parameters.
type JobOptions struct {
	Interval        float64
	Threshold       float64
	EdgeGuidance    bool
	EdgeSensitivity float64
	DetailLevel     float64
	Seed            int64
}
