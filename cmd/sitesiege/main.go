package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sitesiege/sitesiege/internal/clientmetrics"
	"github.com/sitesiege/sitesiege/internal/config"
	"github.com/sitesiege/sitesiege/internal/dashboard"
	"github.com/sitesiege/sitesiege/internal/discovery"
	"github.com/sitesiege/sitesiege/internal/httpclient"
	"github.com/sitesiege/sitesiege/internal/metrics"
	"github.com/sitesiege/sitesiege/internal/output"
	"github.com/sitesiege/sitesiege/internal/runner"
	"github.com/sitesiege/sitesiege/internal/sitemap"
	"github.com/sitesiege/sitesiege/internal/threshold"
	"github.com/sitesiege/sitesiege/internal/tracing"
)

const (
	progressInterval = time.Second
	historyInterval  = time.Second
	shutdownTimeout  = 5 * time.Second
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	thresholds, err := threshold.ParseMultiple(cfg.Thresholds)
	if err != nil {
		return err
	}

	// termui owns the terminal while the dashboard runs.
	logOut := io.Writer(os.Stderr)
	if cfg.Dashboard {
		logOut = io.Discard
	}
	logger, err := buildLogger(cfg.LogLevel, cfg.LogJSON, cfg.Verbose, logOut)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	plan := cfg.Plan()
	for _, w := range plan.Warnings {
		logger.Warn(w)
	}

	runID := output.NewRunID()
	provider, err := tracing.Init(ctx, cfg.Tracing, tracing.RunInfo{
		ID:     runID,
		Mode:   plan.Mode.Kind.String(),
		Target: reportTarget(plan.Mode),
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	fetcher, err := httpclient.NewFetcher(httpclient.FetcherOptions{
		Client:    httpclient.NewClient(cfg.Timeout),
		UserAgent: cfg.UserAgent,
		Headers:   cfg.Headers,
		MaxBody:   cfg.MaxBody,
		Tracer:    provider.Tracer(),
		Propagate: provider.ShouldPropagate(),
	})
	if err != nil {
		return err
	}

	resolver := sitemap.New(sitemap.Options{
		Client:    fetcher.Client(),
		UserAgent: cfg.UserAgent,
		MaxDepth:  cfg.SitemapDepth,
		Logger:    logger,
	})
	tg, err := buildTargets(ctx, plan.Mode, resolver, logger)
	if err != nil {
		return err
	}

	collector := metrics.NewCollector()
	opts := runner.Options{
		Concurrency:   plan.Concurrency,
		Source:        tg.source,
		Stop:          toRunnerStop(plan.Stop),
		Delay:         cfg.Delay,
		RatePerSecond: cfg.Rate,
		Fetcher:       fetcher,
		Recorder:      collector,
		Expansion:     toRunnerExpansion(plan.Mode.Kind),
		VisitOnce:     plan.Mode.Kind.VisitOnce(),
		LoadAssets:    cfg.Assets,
		Logger:        logger,
	}
	if tg.frontier != nil {
		opts.Frontier = tg.frontier
	}

	var pool *discovery.Pool
	if plan.Mode.Kind == config.ModeJSDiscovery {
		pool, err = discovery.New(discovery.Options{
			Threads:       plan.Mode.Threads,
			RenderTimeout: cfg.RenderTimeout,
			NewSession: discovery.ChromeFactory(discovery.ChromeOptions{
				UserAgent:   cfg.UserAgent,
				Headers:     cfg.Headers,
				SettleDelay: cfg.RenderWait,
			}),
			Sink:   tg.frontier,
			Logger: logger,
		})
		if err != nil {
			return err
		}
		opts.Submitter = pool
		logger.Info("browser discovery enabled", "threads", pool.Threads())
	}

	streamRequests := cfg.Verbose && !cfg.Dashboard && !machineOutput(cfg)
	if streamRequests {
		requests := output.NewRequestLogger(os.Stdout)
		opts.OnOutcome = requests.Log
	}

	r := runner.New(opts)
	if err := r.Validate(); err != nil {
		return err
	}

	var discoveryStats func() clientmetrics.Snapshot
	if pool != nil {
		discoveryStats = pool.Metrics().Snapshot
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(collector, dashboardConfig(cfg, plan), discoveryStats, cancel)
		if err != nil {
			return err
		}
		dash.Start()
	}

	var progress *output.ProgressReporter
	if !cfg.Dashboard && !streamRequests && !machineOutput(cfg) {
		progress = output.NewProgressReporter(collector, progressInterval, os.Stderr)
	}

	var sampler *output.Sampler
	if cfg.HTMLOutput != "" {
		sampler = output.NewSampler(collector, historyInterval)
	}

	logger.Info("starting siege",
		"mode", plan.Mode.Kind.String(),
		"stop", plan.Stop.Kind.String(),
		"concurrency", plan.Concurrency,
	)

	// Resolution and browser start-up are excluded from rates.
	collector.Start()
	if pool != nil {
		pool.Start(ctx)
	}
	if progress != nil {
		progress.Start()
	}
	if sampler != nil {
		sampler.Start()
	}

	result := r.Run(ctx)
	collector.Stop()

	if pool != nil {
		if err := pool.DrainAndClose(); err != nil {
			logger.Warn("closing browser sessions", "error", err)
		}
	}
	if dash != nil {
		dash.Stop()
	}
	if progress != nil {
		progress.Stop()
	}
	var history []output.DataPoint
	if sampler != nil {
		history = sampler.Stop()
	}

	report := collector.Finalize()
	report.RunID = runID
	logger.Info("siege finished",
		"run_id", report.RunID,
		"reason", string(result.Reason),
		"iterations", result.Iterations,
		"requests", result.Requests,
		"errors", result.Errors,
	)

	results := threshold.NewEvaluator(thresholds).Evaluate(report)

	if err := printReport(os.Stdout, cfg, report); err != nil {
		return err
	}
	thresholdOut := io.Writer(os.Stdout)
	if machineOutput(cfg) {
		thresholdOut = os.Stderr
	}
	output.PrintThresholds(thresholdOut, results)

	if cfg.HTMLOutput != "" {
		meta := output.ReportMetadata{
			TargetURL:   reportTarget(plan.Mode),
			Mode:        plan.Mode.Kind.String(),
			Stop:        plan.Stop.Kind.String(),
			Concurrency: plan.Concurrency,
		}
		if discoveryStats != nil {
			snap := discoveryStats()
			meta.Discovery = &snap
		}
		err := output.WriteFile(cfg.HTMLOutput, func(w io.Writer) error {
			return output.GenerateHTMLReport(w, report, history, results, meta)
		})
		if err != nil {
			return fmt.Errorf("write html report: %w", err)
		}
		logger.Info("html report written", "path", cfg.HTMLOutput)
	}

	if !threshold.AllPassed(results) {
		failed := 0
		for _, res := range results {
			if !res.Pass {
				failed++
			}
		}
		return fmt.Errorf("%d of %d thresholds failed", failed, len(results))
	}
	return nil
}

// buildLogger returns a slog logger for level. Verbose lowers the level to
// debug so per-request failures are shown.
func buildLogger(level string, structured, verbose bool, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unsupported log level %q", level)
	}
	if verbose && lvl > slog.LevelDebug {
		lvl = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	if structured {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler), nil
}

func printReport(w io.Writer, cfg *config.Config, report metrics.Report) error {
	switch {
	case cfg.JSONOutput:
		return output.PrintJSONReport(w, report)
	case cfg.YAMLOutput:
		return output.PrintYAMLReport(w, report)
	default:
		output.PrintReport(w, report)
		return nil
	}
}

func machineOutput(cfg *config.Config) bool {
	return cfg.JSONOutput || cfg.YAMLOutput
}

func toRunnerStop(stop config.StopCondition) runner.StopCondition {
	switch stop.Kind {
	case config.StopDuration:
		return runner.ForDuration(stop.Duration)
	case config.StopRepetitions:
		return runner.ForRepetitions(stop.Repetitions)
	default:
		return runner.UntilExhausted()
	}
}

func toRunnerExpansion(kind config.ModeKind) runner.Expansion {
	switch kind {
	case config.ModeFollowLinks:
		return runner.ExpandFollowLinks
	case config.ModeJSDiscovery:
		return runner.ExpandJS
	default:
		return runner.ExpandNone
	}
}

func reportTarget(mode config.RunMode) string {
	if mode.Seed != "" {
		return mode.Seed
	}
	return mode.FromFile
}

func dashboardConfig(cfg *config.Config, plan config.Plan) dashboard.TestConfig {
	return dashboard.TestConfig{
		TargetURL:   reportTarget(plan.Mode),
		Mode:        plan.Mode.Kind.String(),
		Concurrency: plan.Concurrency,
		Duration:    plan.Stop.Duration,
		Repetitions: plan.Stop.Repetitions,
		Delay:       cfg.Delay,
		Rate:        cfg.Rate,
		Timeout:     cfg.Timeout,
		Assets:      cfg.Assets,
		ConfigFile:  cfg.ConfigFile,
	}
}
