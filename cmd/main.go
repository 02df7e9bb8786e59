package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"leadgen/api"
	"leadgen/config"
	"leadgen/logging"
	"leadgen/merger"
	"leadgen/orchestrator"
	"leadgen/pkg/boltdb"
	"leadgen/pkg/httpclient"
	"leadgen/pkg/minio"
	"leadgen/pkg/postgres"
	"leadgen/plan"
	"leadgen/repository"
	"leadgen/search"

	"go.uber.org/zap"
)

const usage = `usage: leadgen <command> [flags]

commands:
  run <plan.yaml>                       execute a campaign plan
  merge [-key domain|url] [-out file] <file.csv>...
                                        merge exported CSV files
  suggest [-country CC] <partial query> print autocomplete suggestions
  serve                                 start the HTTP API
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	command, args := os.Args[1], os.Args[2:]

	// =========
	// Config
	// =========
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// =========
	// Logging
	// =========
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		err = runCommand(ctx, cfg, logger, args)
	case "merge":
		err = mergeCommand(cfg, logger, args)
	case "suggest":
		err = suggestCommand(ctx, cfg, logger, args)
	case "serve":
		err = serveCommand(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("Command failed", zap.String("command", command), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func runCommand(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("run expects exactly one plan file")
	}
	p, err := plan.Load(args[0])
	if err != nil {
		return err
	}

	orch, cleanup, err := newOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	report, runErr := orch.Run(ctx, p)
	if report != nil {
		out := json.NewEncoder(os.Stdout)
		out.SetIndent("", "  ")
		if err := out.Encode(report); err != nil {
			return err
		}
	}
	return runErr
}

func mergeCommand(cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ContinueOnError)
	key := fs.String("key", string(merger.KeyDomain), "dedup key: domain or url")
	out := fs.String("out", "", "output file (default <RESULTS_DIR>/merged_<timestamp>.csv)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("merge expects at least one CSV file")
	}

	k := merger.Key(*key)
	if k != merger.KeyDomain && k != merger.KeyURL {
		return fmt.Errorf("unknown merge key %q", *key)
	}
	if *out == "" {
		*out = filepath.Join(cfg.ResultsDir, "merged_"+time.Now().Format("20060102_150405")+".csv")
	}

	res, err := merger.MergeFiles(fs.Args(), k, *out)
	if err != nil {
		return err
	}
	logger.Info("Merged files",
		zap.Strings("inputs", fs.Args()),
		zap.String("output", *out),
		zap.Int("total", res.Total),
		zap.Int("unique", res.Unique),
		zap.Int("duplicates", res.Duplicates))
	return nil
}

func suggestCommand(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("suggest", flag.ContinueOnError)
	country := fs.String("country", "", "two-letter country code")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("suggest expects a partial query")
	}

	backend, err := newBackend(cfg)
	if err != nil {
		return err
	}
	searcher := search.NewWebSearcher(backend, logger, search.SearcherConfig{RequestTimeout: cfg.RequestTimeout})
	for _, s := range searcher.AutocompleteSuggestions(ctx, fs.Arg(0), *country) {
		fmt.Println(s)
	}
	return nil
}

func serveCommand(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	orch, cleanup, err := newOrchestrator(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	server := api.NewServer(orch, orch.Store(), cfg.StorageBackend, logger)
	return server.Start(ctx, cfg.AppPort)
}

// newOrchestrator wires the backend, store, uploader and exclusions. The
// returned cleanup closes the store.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*orchestrator.Orchestrator, func(), error) {
	// =========
	// Serper backend
	// =========
	backend, err := newBackend(cfg)
	if err != nil {
		return nil, nil, err
	}

	// =========
	// Exclusions
	// =========
	exclusions := config.DefaultExclusions()
	if cfg.ExclusionsPath != "" {
		if exclusions, err = config.LoadExclusions(cfg.ExclusionsPath); err != nil {
			return nil, nil, err
		}
	}

	opts := []orchestrator.Option{
		orchestrator.WithProgress(func(p orchestrator.Progress) {
			logger.Info("Progress",
				zap.String("stage", string(p.Stage)),
				zap.String("city", p.City),
				zap.Int("completed", p.Completed),
				zap.Int("total", p.Total))
		}),
	}

	// =========
	// Campaign store
	// =========
	store, err := openStore(ctx, cfg)
	if err != nil {
		// results still go to local checkpoints and exports
		logger.Warn("Campaign store unavailable, running offline", zap.Error(err))
	}
	cleanup := func() {}
	if store != nil {
		opts = append(opts, orchestrator.WithStore(store))
		cleanup = func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close campaign store", zap.Error(err))
			}
		}
	}

	// =========
	// MinIO
	// =========
	if cfg.MinioEndpoint != "" {
		uploader, err := minio.NewUploader(ctx, minio.Options{
			Endpoint:  cfg.MinioEndpoint,
			AccessKey: cfg.MinioAccessKey,
			SecretKey: cfg.MinioSecretKey,
			Bucket:    cfg.MinioBucket,
			UseSSL:    cfg.MinioUseSSL,
			Prefix:    "exports",
		})
		if err != nil {
			logger.Warn("MinIO unavailable, exports stay local", zap.Error(err))
		} else {
			opts = append(opts, orchestrator.WithUploader(uploader))
		}
	}

	orch := orchestrator.New(backend, backend, logger, orchestrator.Config{
		ResultsDir:         cfg.ResultsDir,
		RequestTimeout:     cfg.RequestTimeout,
		CheckpointInterval: cfg.CheckpointInterval,
		Exclusions:         exclusions.QueryString(),
	}, opts...)
	return orch, cleanup, nil
}

func newBackend(cfg *config.Config) (*search.SerperClient, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	httpClient, err := httpclient.New(httpclient.Options{
		ProxyURL:     cfg.ProxyURL,
		Timeout:      cfg.RequestTimeout,
		RateLimitQPS: cfg.RateLimitQPS,
	})
	if err != nil {
		return nil, err
	}
	return search.NewSerperClient(httpClient, cfg.SerperAPIKey, cfg.SerperBaseURL), nil
}

func openStore(ctx context.Context, cfg *config.Config) (repository.CampaignStore, error) {
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		store, err := postgres.NewClient(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.BackendBolt:
		store, err := boltdb.Open(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, nil
	}
}
