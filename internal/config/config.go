package config

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Direct struct {
		// Budget applied to jobs that do not set one
		MaxIterations int     `env:"DIRECT_MAX_ITERATIONS" envDefault:"100"`
		MinRadius     float64 `env:"DIRECT_MIN_RADIUS" envDefault:"1e-5"`
		Epsilon       float64 `env:"DIRECT_EPSILON" envDefault:"1e-6"`
		Workers       int     `env:"DIRECT_WORKERS" envDefault:"1"`

		// Upper bound on the iterations a single job may request
		IterationLimit int `env:"DIRECT_ITERATION_LIMIT" envDefault:"10000"`

		// Number of jobs kept in memory, finished ones are evicted first
		MaxJobs int `env:"DIRECT_MAX_JOBS" envDefault:"64"`

		// Job starts per second; zero disables the limit
		StartRate  float64 `env:"DIRECT_START_RATE" envDefault:"0"`
		StartBurst int     `env:"DIRECT_START_BURST" envDefault:"10"`
	}
}

func Load() (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	// Verbose logging while developing
	if cfg.Environment == "development" && cfg.Logging.Level == "" {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the DIRECT settings describe a usable default run.
func (c *Config) Validate() error {
	d := c.Direct
	switch {
	case d.MaxIterations < 0:
		return fmt.Errorf("DIRECT_MAX_ITERATIONS must not be negative, got %d", d.MaxIterations)
	case !(d.MinRadius > 0) || math.IsInf(d.MinRadius, 1):
		return fmt.Errorf("DIRECT_MIN_RADIUS must be positive and finite, got %v", d.MinRadius)
	case !(d.Epsilon > 0) || math.IsInf(d.Epsilon, 1):
		return fmt.Errorf("DIRECT_EPSILON must be positive and finite, got %v", d.Epsilon)
	case d.Workers < 1:
		return fmt.Errorf("DIRECT_WORKERS must be at least 1, got %d", d.Workers)
	case d.IterationLimit < d.MaxIterations:
		return fmt.Errorf("DIRECT_ITERATION_LIMIT (%d) is below DIRECT_MAX_ITERATIONS (%d)", d.IterationLimit, d.MaxIterations)
	case d.MaxJobs < 1:
		return fmt.Errorf("DIRECT_MAX_JOBS must be at least 1, got %d", d.MaxJobs)
	case d.StartRate < 0:
		return fmt.Errorf("DIRECT_START_RATE must not be negative, got %v", d.StartRate)
	case d.StartRate > 0 && d.StartBurst < 1:
		return fmt.Errorf("DIRECT_START_BURST must be at least 1, got %d", d.StartBurst)
	}
	return nil
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
