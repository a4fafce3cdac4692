package main

import (
	"flag"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"eikotrace/internal/app"
	"eikotrace/internal/domain"
	"eikotrace/internal/infrastructure"
	"eikotrace/internal/scheduler"
)

func main() {
	configPath := flag.String("config", "eikotrace.yaml", "Path to config file")
	input := flag.String("input", "", "Input raster image (PNG or JPEG)")
	output := flag.String("output", "geometry.json", "Output geometry file")
	kindName := flag.String("kind", "extractContoursAdaptive", "Job kind")
	flag.Parse()

	logger := initLogger("info")
	defer logger.Sync()

	configReader := infrastructure.NewYAMLConfigReader(logger)
	config, err := configReader.ReadConfig(*configPath, flag.Args())
	if err != nil {
		logger.Fatal("Failed to read config", zap.Error(err))
	}

	logger = initLogger(config.LogLevel, config.LogFile)

	kind, err := domain.ParseJobKind(*kindName)
	if err != nil {
		logger.Fatal("Unknown job kind", zap.String("kind", *kindName), zap.Error(err))
	}
	if *input == "" {
		logger.Fatal("No input image given")
	}

	rasterReader := infrastructure.NewRasterReader(logger)
	gray, err := rasterReader.ReadGrayscale(*input, config.MaxDim)
	if err != nil {
		logger.Fatal("Failed to read input raster", zap.Error(err))
	}

	engine := app.NewEngine(logger, scheduler.Config{
		MaxUnits:    config.MaxUnits,
		WarmUnits:   config.WarmUnits,
		IdleTimeout: time.Duration(config.IdleTimeoutSec) * time.Second,
		HeapLimit:   uint64(config.HeapLimitMB) * 1024 * 1024,
	})
	engine.SetSolverBatch(config.SolverBatch)
	defer engine.Close()

	logger.Info("Starting extraction",
		zap.String("kind", kind.String()),
		zap.Int("width", gray.Width),
		zap.Int("height", gray.Height),
		zap.Float64("threshold", config.Threshold),
		zap.Float64("interval", config.Interval))

	task, err := engine.Submit(app.JobRequest{
		Kind: kind,
		Gray: gray,
		Options: domain.JobOptions{
			Interval:        config.Interval,
			Threshold:       config.Threshold,
			EdgeGuidance:    config.EdgeGuidance,
			EdgeSensitivity: config.EdgeSensitivity,
			DetailLevel:     config.DetailLevel,
			Seed:            config.Seed,
		},
	})
	if err != nil {
		logger.Fatal("Failed to submit job", zap.Error(err))
	}

	var result *domain.JobResult
	for ev := range task.Events() {
		switch ev.Type {
		case domain.EventProgress:
			logger.Info("progress",
				zap.Float64("percent", ev.Percent),
				zap.String("message", ev.Message))
		case domain.EventResult:
			result = ev.Result
		case domain.EventError:
			logger.Fatal("Job failed", zap.Error(ev.Err))
		}
	}
	if result == nil {
		logger.Fatal("Job produced no result")
	}

	logger.Info("Extraction completed",
		zap.Float64("total_ms", result.Performance.TotalMs),
		zap.Any("counters", result.Performance.Counters))

	geometryWriter := infrastructure.NewGeometryWriter(logger)
	if err := geometryWriter.WriteJSON(*output, result); err != nil {
		logger.Fatal("Failed to write geometry", zap.Error(err))
	}
}

// initLogger initializes the logger with the specified level and log file name.
func initLogger(level string, logfileName ...string) *zap.Logger {
	config := zap.NewProductionConfig()

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	outputPaths := []string{"stderr"}
	for _, item := range logfileName {
		if item != "" {
			outputPaths = append(outputPaths, item)
		}
	}

	config.OutputPaths = outputPaths
	config.ErrorOutputPaths = outputPaths
	config.EncoderConfig.TimeKey = "t"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	logger, _ := config.Build()
	return logger
}
