package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/ironsheep/card-detect-mcp/internal/config"
	"github.com/ironsheep/card-detect-mcp/internal/imaging"
	"github.com/ironsheep/card-detect-mcp/internal/logging"
	"github.com/ironsheep/card-detect-mcp/internal/pipeline"
	"github.com/ironsheep/card-detect-mcp/internal/server"
	"github.com/ironsheep/card-detect-mcp/internal/vision"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const (
	flagEnvFile         = "env-file"
	flagLogLevel        = "log-level"
	flagVisionURL       = "vision-url"
	flagVisionKey       = "vision-key"
	flagVisionTimeout   = "vision-timeout"
	flagEnsembleTimeout = "ensemble-timeout"
	flagWorkers         = "workers"
	flagMinConfidence   = "min-confidence"
	flagMaxCandidates   = "max-candidates"
	flagNoVision        = "no-vision"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "card-detect-mcp:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintf(c.App.Writer, "%s %s\n", c.App.Name, c.App.Version)
		fmt.Fprintf(c.App.Writer, "  Build time: %s\n", BuildTime)
		fmt.Fprintf(c.App.Writer, "  Git commit: %s\n", GitCommit)
	}

	return &cli.App{
		Name:            "card-detect-mcp",
		Usage:           "find trading cards in photos, as an MCP server or from the command line",
		Version:         Version,
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagEnvFile,
				Value: ".env",
				Usage: "load environment variables from `FILE` if it exists",
			},
			&cli.StringFlag{
				Name:  flagLogLevel,
				Usage: "log level: debug, info, warn or error (env CARD_DETECT_LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  flagVisionURL,
				Usage: "base `URL` of the vision detection service (env CARD_DETECT_VISION_URL)",
			},
			&cli.StringFlag{
				Name:  flagVisionKey,
				Usage: "API key for the vision service (env CARD_DETECT_VISION_API_KEY)",
			},
			&cli.DurationFlag{
				Name:  flagVisionTimeout,
				Usage: "time budget of the vision tier (env CARD_DETECT_VISION_TIMEOUT)",
			},
			&cli.DurationFlag{
				Name:  flagEnsembleTimeout,
				Usage: "time budget of the signal detectors (env CARD_DETECT_ENSEMBLE_TIMEOUT)",
			},
			&cli.IntFlag{
				Name:  flagWorkers,
				Usage: "signal detectors run at once (env CARD_DETECT_WORKERS)",
			},
			&cli.Float64Flag{
				Name:  flagMinConfidence,
				Usage: "drop candidates below this confidence (env CARD_DETECT_MIN_CONFIDENCE)",
			},
			&cli.IntFlag{
				Name:  flagMaxCandidates,
				Usage: "maximum candidates per image (env CARD_DETECT_MAX_CANDIDATES)",
			},
		},
		// With no command the server runs, as MCP clients launch it without arguments.
		Action: serveAction,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the MCP server on stdin/stdout",
				Action: serveAction,
			},
			{
				Name:      "detect",
				Usage:     "detect cards in image files and print the results as JSON",
				ArgsUsage: "FILE...",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  flagNoVision,
						Usage: "skip the vision service",
					},
				},
				Action: detectAction,
			},
		},
	}
}

// loadConfig resolves settings from defaults, the env file, the environment
// and finally the command line flags.
func loadConfig(c *cli.Context) (config.Config, error) {
	if path := c.String(flagEnvFile); path != "" {
		if err := godotenv.Load(path); err != nil && !(errors.Is(err, os.ErrNotExist) && !c.IsSet(flagEnvFile)) {
			return config.Config{}, errors.Wrapf(err, "load %s", path)
		}
	}

	cfg, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}

	if c.IsSet(flagLogLevel) {
		cfg.LogLevel = c.String(flagLogLevel)
	}
	if c.IsSet(flagVisionURL) {
		cfg.VisionURL = c.String(flagVisionURL)
	}
	if c.IsSet(flagVisionKey) {
		cfg.VisionAPIKey = c.String(flagVisionKey)
	}
	if c.IsSet(flagVisionTimeout) {
		cfg.VisionTimeout = c.Duration(flagVisionTimeout)
	}
	if c.IsSet(flagEnsembleTimeout) {
		cfg.EnsembleTimeout = c.Duration(flagEnsembleTimeout)
	}
	if c.IsSet(flagWorkers) {
		cfg.Workers = c.Int(flagWorkers)
	}
	if c.IsSet(flagMinConfidence) {
		cfg.MinConfidence = c.Float64(flagMinConfidence)
	}
	if c.IsSet(flagMaxCandidates) {
		cfg.MaxCandidates = c.Int(flagMaxCandidates)
	}
	return cfg, cfg.Validate()
}

// newOrchestrator builds the detection pipeline described by cfg.
func newOrchestrator(cfg config.Config, logger *zap.Logger) (*pipeline.Orchestrator, error) {
	opts := []pipeline.Option{
		pipeline.WithCombiner(cfg.Combiner()),
		pipeline.WithVisionTimeout(cfg.VisionTimeout),
		pipeline.WithEnsembleTimeout(cfg.EnsembleTimeout),
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithLogger(logger.Named("pipeline")),
	}

	if cfg.VisionEnabled() {
		client, err := vision.NewClient(
			vision.WithBaseURL(cfg.VisionURL),
			vision.WithAPIKey(cfg.VisionAPIKey),
			vision.WithMaxUploadSide(cfg.VisionMaxSide),
			vision.WithTimeout(cfg.VisionTimeout),
			vision.WithLogger(logger.Named("vision")),
		)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithVision(client))
	}

	return pipeline.New(opts...), nil
}

func setup(c *cli.Context) (*pipeline.Orchestrator, *zap.Logger, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.New("card-detect", cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	orch, err := newOrchestrator(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return orch, logger, nil
}

func serveAction(c *cli.Context) error {
	orch, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	logger.Info("starting MCP server",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("commit", GitCommit),
		zap.Bool("vision", orch.VisionEnabled()),
	)

	srv := server.New(orch, server.WithLogger(logger.Named("server")), server.WithVersion(Version))
	return srv.Serve(c.Context, c.App.Reader, c.App.Writer)
}

// fileResult is one line of detect output.
type fileResult struct {
	File   string           `json:"file"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

func detectAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("detect: at least one FILE is required", 2)
	}

	orch, logger, err := setup(c)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	if c.Bool(flagNoVision) {
		orch = orch.WithoutVision()
	}

	cache := imaging.NewImageCache()
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")

	failed := 0
	for _, path := range c.Args().Slice() {
		out := fileResult{File: path}
		res, err := detectFile(c.Context, orch, cache, path)
		if err != nil {
			failed++
			out.Error = err.Error()
			logger.Warn("detect failed", zap.String("file", filepath.Base(path)), zap.Error(err))
		} else {
			out.Result = res
		}
		if err := enc.Encode(out); err != nil {
			return errors.Wrap(err, "write result")
		}
		cache.Evict(path)
	}

	if failed > 0 {
		return cli.Exit(fmt.Sprintf("detect: %d of %d files failed", failed, c.NArg()), 1)
	}
	return nil
}

func detectFile(ctx context.Context, orch *pipeline.Orchestrator, cache *imaging.ImageCache, path string) (*pipeline.Result, error) {
	raster, info, err := imaging.LoadRaster(cache, path)
	if err != nil {
		return nil, err
	}
	return orch.Detect(ctx, raster, pipeline.SourceMetadata{Filename: info.Filename, ByteSize: info.FileSizeBytes})
}
