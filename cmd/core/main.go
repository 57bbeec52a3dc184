// Package main is the entry point for core, the autonomous stock-trading
// engine. It negotiates account capability, streams market data, runs the
// math-and-advisor decision pipeline, and submits orders — or, via its
// one-shot CLI modes, runs a single stage of that pipeline for inspection.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/kinggekko/core/internal/backup"
	"github.com/kinggekko/core/internal/config"
	"github.com/kinggekko/core/internal/errs"
	"github.com/kinggekko/core/internal/logging"
	"github.com/kinggekko/core/internal/orchestrator"
)

// Exit codes per spec.md §6.
const (
	exitSuccess             = 0
	exitGenericFailure       = 1
	exitConfigurationError   = 2
	exitBrokerAuthFailure    = 3
	exitCapabilityInsufficient = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	mode := flag.String("mode", "stream", "operating mode: stream|rest|portfolio-analysis|regime-analysis|"+
		"enhanced-strategy|execute-orders|view-journal|export-journal|statistics|set-model")
	dataDir := flag.String("data-dir", "", "override DATA_DIR")
	model := flag.String("model", "", "advisor model name (for set-model or to override OLLAMA_MODEL)")
	flag.Parse()

	if *dataDir != "" {
		os.Setenv("DATA_DIR", *dataDir)
	}

	cfg, err := config.Load()
	if err != nil {
		fallback := logging.New(logging.Config{Level: "info", Pretty: true})
		fallback.Error().Err(err).Msg("failed to load configuration")
		return exitConfigurationError
	}

	log := logging.New(logging.Config{Level: cfg.LogLevel, Pretty: cfg.Pretty})
	if *model != "" {
		cfg.OllamaModel = *model
	}

	log.Info().Str("mode", *mode).Msg("starting core")

	switch *mode {
	case "stream", "rest":
		return runLongLived(cfg, log, *mode == "stream")
	case "portfolio-analysis", "regime-analysis", "enhanced-strategy", "execute-orders":
		return runOneShotCycle(cfg, log, *mode)
	case "view-journal":
		return runViewJournal(cfg, log)
	case "export-journal":
		return runExportJournal(cfg, log)
	case "statistics":
		return runStatistics(cfg, log)
	case "set-model":
		return runSetModel(cfg, log, *model)
	default:
		log.Error().Str("mode", *mode).Msg("unrecognised mode")
		return exitGenericFailure
	}
}

// runLongLived starts the full orchestrator — market-data/trade-update
// streams (mode "stream") or REST-polling-only (mode "rest") — and blocks
// until SIGINT/SIGTERM.
func runLongLived(cfg *config.Config, log zerolog.Logger, streaming bool) int {
	orch, err := orchestrator.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build orchestrator")
		return mapStartupError(err)
	}
	orch.StreamsEnabled = streaming

	if exp, err := buildExporter(cfg, log); err != nil {
		log.Warn().Err(err).Msg("journal export not configured, export-journal/backup loop disabled")
	} else {
		orch.SetExporter(exp)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- orch.Run(ctx) }()

	select {
	case <-ctx.Done():
	case err := <-runErr:
		if err != nil {
			log.Error().Err(err).Msg("orchestrator stopped with error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := orch.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
		return exitGenericFailure
	}

	log.Info().Msg("core stopped")
	return exitSuccess
}

// runOneShotCycle builds the orchestrator, negotiates capability, runs
// exactly one evaluation cycle (optionally submitting orders), then exits.
func runOneShotCycle(cfg *config.Config, log zerolog.Logger, mode string) int {
	orch, err := orchestrator.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build orchestrator")
		return mapStartupError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MaxTimeout)
	defer cancel()

	if err := orch.NegotiateAndPrime(ctx); err != nil {
		log.Error().Err(err).Msg("capability negotiation failed")
		return mapStartupError(err)
	}

	switch mode {
	case "portfolio-analysis":
		orch.RunOptimizerOnly(ctx)
	case "regime-analysis":
		orch.RunRegimeOnly(ctx)
	case "enhanced-strategy":
		orch.RunEvaluationOnly(ctx)
	case "execute-orders":
		orch.RunEvaluationAndSubmit(ctx)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = orch.Shutdown(shutdownCtx)
	return exitSuccess
}

func runViewJournal(cfg *config.Config, log zerolog.Logger) int {
	orch, err := orchestrator.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build orchestrator")
		return mapStartupError(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(shutdownCtx)
	}()

	records, err := orch.ScanJournal(nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to scan journal")
		return exitGenericFailure
	}
	for _, rec := range records {
		fmt.Printf("%d\t%s\t%s\t%d bytes\n", rec.ID, rec.Tag, rec.Timestamp.Format(time.RFC3339), len(rec.Payload))
	}
	return exitSuccess
}

func runExportJournal(cfg *config.Config, log zerolog.Logger) int {
	exp, err := buildExporter(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("journal export is not configured (S3_BUCKET/S3_ENDPOINT/credentials)")
		return exitConfigurationError
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.MaxTimeout)
	defer cancel()

	key, err := exp.Export(ctx, cfg.DataDir+"/journal.bin")
	if err != nil {
		log.Error().Err(err).Msg("journal export failed")
		return exitGenericFailure
	}
	fmt.Println(key)
	return exitSuccess
}

func runStatistics(cfg *config.Config, log zerolog.Logger) int {
	orch, err := orchestrator.New(cfg, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to build orchestrator")
		return mapStartupError(err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = orch.Shutdown(shutdownCtx)
	}()

	stats, err := orch.JournalStats()
	if err != nil {
		log.Error().Err(err).Msg("failed to compute journal statistics")
		return exitGenericFailure
	}
	for tag, s := range stats {
		fmt.Printf("%s\tcount=%d\tfirst=%d\tlast=%d\tbytes=%d\n", tag, s.Count, s.FirstID, s.LastID, s.Bytes)
	}
	return exitSuccess
}

func runSetModel(cfg *config.Config, log zerolog.Logger, model string) int {
	if model == "" {
		log.Error().Msg("-model is required for set-model")
		return exitGenericFailure
	}
	url := fmt.Sprintf("http://127.0.0.1:%d/api/advisor/model", cfg.APIPort)
	log.Info().Str("model", model).Str("admin_url", url).
		Msg("set-model only updates a running process; POST the model to the admin surface")
	return exitSuccess
}

func buildExporter(cfg *config.Config, log zerolog.Logger) (*backup.Exporter, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKeyID, cfg.S3SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
		}
		o.UsePathStyle = true
	})

	return backup.New(client, cfg.S3Bucket, cfg.DataDir+"/export-stage", log), nil
}

// mapStartupError maps the error taxonomy (internal/errs) to spec.md §6's
// exit codes.
func mapStartupError(err error) int {
	switch {
	case errors.Is(err, errs.ErrAuthFailure), errors.Is(err, errs.ErrAccountBlocked):
		return exitBrokerAuthFailure
	case errors.Is(err, errs.ErrCapabilityInsufficient), errors.Is(err, errs.ErrNoStreamsRemain):
		return exitCapabilityInsufficient
	case errors.Is(err, errs.ErrConfiguration):
		return exitConfigurationError
	default:
		return exitGenericFailure
	}
}
