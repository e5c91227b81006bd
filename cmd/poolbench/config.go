package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/utkarsh5026/handoff/pool"
)

const envPrefix = "POOLBENCH"

// config is the resolved settings shared by every subcommand. Each value
// comes from a flag or the matching POOLBENCH_* environment variable.
type config struct {
	Workers    int
	MaxWorkers int
	LogLevel   string
	Metrics    bool
	Pin        bool
}

// app carries what subcommands need once flags are parsed.
type app struct {
	v        *viper.Viper
	cfg      config
	logger   *zap.Logger
	registry *prometheus.Registry
	undo     func()
}

func (a *app) setup(cmd *cobra.Command) error {
	a.v.SetEnvPrefix(envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}

	cfg, err := loadConfig(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.logger = logger

	undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
	if err != nil {
		logger.Warn("failed to set GOMAXPROCS", zap.Error(err))
	}
	a.undo = undo

	if a.cfg.Workers <= 0 {
		a.cfg.Workers = runtime.GOMAXPROCS(0)
	}
	a.registry = prometheus.NewRegistry()
	return nil
}

func (a *app) teardown() {
	if a.cfg.Metrics && a.registry != nil {
		if err := renderMetrics(a.registry); err != nil {
			_, _ = red.Printf("Error rendering metrics: %v\n", err)
		}
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.undo != nil {
		a.undo()
	}
}

// newPool builds a pool from the shared settings plus extra options.
// name must be unique per run since it labels the pool's metrics.
func (a *app) newPool(name string, extra ...pool.WorkerPoolOption) *pool.WorkerPool {
	opts := []pool.WorkerPoolOption{
		pool.WithWorkerCount(a.cfg.Workers),
		pool.WithMaxWorkers(a.cfg.MaxWorkers),
		pool.WithName(name),
		pool.WithLogger(a.logger),
		pool.WithMetrics(a.registry),
	}
	if a.cfg.Pin {
		opts = append(opts, pool.WithThreadAffinity())
	}
	return pool.NewWorkerPool(append(opts, extra...)...)
}

func loadConfig(v *viper.Viper) (config, error) {
	cfg := config{
		Workers:    v.GetInt("workers"),
		MaxWorkers: v.GetInt("max-workers"),
		LogLevel:   v.GetString("log-level"),
		Metrics:    v.GetBool("metrics"),
		Pin:        v.GetBool("pin"),
	}
	if cfg.Workers < 0 {
		return config{}, fmt.Errorf("workers must be >= 0, got %d", cfg.Workers)
	}
	if cfg.MaxWorkers < 0 {
		return config{}, fmt.Errorf("max-workers must be >= 0, got %d", cfg.MaxWorkers)
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
	return cfg.Build()
}
