// Package config holds the runtime settings of the card detection server.
//
// Settings come from defaults, then CARD_DETECT_* environment variables, then
// command line flags (applied by the caller).
package config

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cast"

	"github.com/ironsheep/card-detect-mcp/internal/detection"
	"github.com/ironsheep/card-detect-mcp/internal/pipeline"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "CARD_DETECT_"

// Environment variable names, without EnvPrefix.
const (
	EnvVisionURL       = "VISION_URL"
	EnvVisionAPIKey    = "VISION_API_KEY"
	EnvVisionTimeout   = "VISION_TIMEOUT"
	EnvVisionMaxSide   = "VISION_MAX_SIDE"
	EnvEnsembleTimeout = "ENSEMBLE_TIMEOUT"
	EnvWorkers         = "WORKERS"
	EnvDedupIoU        = "DEDUP_IOU"
	EnvMinConfidence   = "MIN_CONFIDENCE"
	EnvMaxCandidates   = "MAX_CANDIDATES"
	EnvLogLevel        = "LOG_LEVEL"
)

// Config is the complete set of tunables.
type Config struct {
	// Vision tier. Disabled when VisionURL is empty.
	VisionURL     string
	VisionAPIKey  string
	VisionTimeout time.Duration
	VisionMaxSide int

	EnsembleTimeout time.Duration
	Workers         int

	// Acceptance policy
	DedupIoU      float64
	MinConfidence float64
	MaxCandidates int

	LogLevel string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		VisionTimeout:   pipeline.DefaultVisionTimeout,
		VisionMaxSide:   1024,
		EnsembleTimeout: pipeline.DefaultEnsembleTimeout,
		Workers:         runtime.NumCPU(),
		DedupIoU:        detection.DefaultDedupIoU,
		MinConfidence:   detection.DefaultMinConfidence,
		MaxCandidates:   detection.DefaultMaxCandidates,
		LogLevel:        "info",
	}
}

// FromEnv returns Defaults overridden by the process environment.
func FromEnv() (Config, error) {
	return FromLookup(os.LookupEnv)
}

// FromLookup returns Defaults overridden by the variables lookup reports.
// Durations use Go syntax ("750ms", "8s").
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	var err error
	if v, ok := get(EnvVisionURL); ok {
		cfg.VisionURL = v
	}
	if v, ok := get(EnvVisionAPIKey); ok {
		cfg.VisionAPIKey = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := get(EnvVisionTimeout); ok {
		if cfg.VisionTimeout, err = cast.ToDurationE(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvVisionTimeout)
		}
	}
	if v, ok := get(EnvEnsembleTimeout); ok {
		if cfg.EnsembleTimeout, err = cast.ToDurationE(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvEnsembleTimeout)
		}
	}
	if v, ok := get(EnvVisionMaxSide); ok {
		if cfg.VisionMaxSide, err = cast.ToIntE(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvVisionMaxSide)
		}
	}
	if v, ok := get(EnvWorkers); ok {
		if cfg.Workers, err = cast.ToIntE(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvWorkers)
		}
	}
	if v, ok := get(EnvMaxCandidates); ok {
		if cfg.MaxCandidates, err = cast.ToIntE(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvMaxCandidates)
		}
	}
	if v, ok := get(EnvDedupIoU); ok {
		if cfg.DedupIoU, err = cast.ToFloat64E(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvDedupIoU)
		}
	}
	if v, ok := get(EnvMinConfidence); ok {
		if cfg.MinConfidence, err = cast.ToFloat64E(v); err != nil {
			return cfg, errors.Wrapf(err, "%s%s", EnvPrefix, EnvMinConfidence)
		}
	}

	return cfg, cfg.Validate()
}

// Validate checks that every value is in range.
func (c Config) Validate() error {
	switch {
	case c.VisionTimeout <= 0:
		return errors.Errorf("vision timeout must be positive, got %s", c.VisionTimeout)
	case c.EnsembleTimeout <= 0:
		return errors.Errorf("ensemble timeout must be positive, got %s", c.EnsembleTimeout)
	case c.VisionMaxSide < 64:
		return errors.Errorf("vision max side must be at least 64, got %d", c.VisionMaxSide)
	case c.Workers < 1:
		return errors.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.DedupIoU <= 0 || c.DedupIoU > 1:
		return errors.Errorf("dedup IoU must be in (0, 1], got %g", c.DedupIoU)
	case c.MinConfidence < 0 || c.MinConfidence > 1:
		return errors.Errorf("min confidence must be in [0, 1], got %g", c.MinConfidence)
	case c.MaxCandidates < 1:
		return errors.Errorf("max candidates must be at least 1, got %d", c.MaxCandidates)
	}
	return nil
}

// VisionEnabled reports whether a vision service is configured.
func (c Config) VisionEnabled() bool {
	return c.VisionURL != ""
}

// Combiner returns a combiner using the configured acceptance policy.
func (c Config) Combiner() *detection.Combiner {
	cb := detection.NewCombiner()
	cb.DedupIoU = c.DedupIoU
	cb.MinConfidence = c.MinConfidence
	cb.MaxCandidates = c.MaxCandidates
	return cb
}
