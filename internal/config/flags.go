package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "sitesiege [flags] <url>",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	// Target
	flags.String("url", "", "Target URL (may also be given as the first argument)")
	flags.StringP("file", "f", "", "URL list file (.txt, .csv or .json)")
	flags.String("user-agent", DefaultUserAgent, "User-Agent header sent with every request")
	flags.StringSlice("header", nil, "Additional request header in key=value form")

	// Load control
	flags.IntP("concurrency", "c", DefaultConcurrency, "Number of concurrent workers")
	flags.StringP("time", "t", "", "Run time, e.g. 30S, 5M, 1H, 90 (seconds) or 1m30s")
	flags.IntP("reps", "r", 0, "Iterations per worker")
	flags.StringP("delay", "d", DefaultDelay.String(), "Delay between iterations of a worker (0 disables)")
	flags.Duration("timeout", DefaultTimeout, "Per-request timeout")
	flags.Int("rate", 0, "Global requests per second limit (0 means unlimited)")

	// Modes
	flags.Bool("sitemap", false, "Load target URLs from the site's sitemap")
	flags.BoolP("random", "i", false, "Pick URLs from the list at random (internet mode)")
	flags.Bool("crawl", false, "Visit each listed URL exactly once")
	flags.Bool("follow-links", false, "Crawl same-origin links found on fetched pages")
	flags.Bool("js", false, "Discover links by rendering pages in a headless browser")
	flags.Int("js-threads", 0, "Browser discovery workers (0 picks a default from CPU count)")
	flags.Duration("render-wait", DefaultRenderWait, "Settle delay after a page is ready before reading the DOM")
	flags.Duration("render-timeout", DefaultRenderTimeout, "Upper bound for a single page render")
	flags.Bool("assets", false, "Also fetch stylesheets, scripts, icons and images of each page")
	flags.Int("sitemap-depth", DefaultSitemapDepth, "Maximum sitemap index nesting depth")
	flags.Int64("max-body", DefaultMaxBody, "Bytes of HTML retained per page for link extraction")

	// Output
	flags.BoolP("verbose", "v", false, "Print one line per request")
	flags.Bool("json-output", false, "Emit JSON formatted report")
	flags.Bool("yaml-output", false, "Emit YAML formatted report")
	flags.String("html-output", "", "Write an HTML report to the specified file path")
	flags.Bool("dashboard", false, "Show live terminal dashboard with metrics")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
	flags.Bool("log-json", false, "Write logs as JSON")
	flags.StringSlice("threshold", nil, "Pass/fail threshold (repeatable, e.g. 'response_time:p99 < 500')")
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Tracing
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (host:port)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: grpc or http")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Fraction of requests traced (0.0-1.0)")
	flags.Bool("tracing-propagate", false, "Inject W3C traceparent headers into requests")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	if fs.Changed("url") {
		val, err := fs.GetString("url")
		if err != nil {
			return err
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if fs.Changed("file") {
		val, err := fs.GetString("file")
		if err != nil {
			return err
		}
		cfg.URLFile = strings.TrimSpace(val)
	}
	if fs.Changed("user-agent") {
		val, err := fs.GetString("user-agent")
		if err != nil {
			return err
		}
		cfg.UserAgent = val
	}
	if fs.Changed("concurrency") {
		val, err := fs.GetInt("concurrency")
		if err != nil {
			return err
		}
		cfg.Concurrency = val
	}
	if fs.Changed("time") {
		val, err := fs.GetString("time")
		if err != nil {
			return err
		}
		d, err := ParseSiegeDuration(val)
		if err != nil {
			return fmt.Errorf("time: %w", err)
		}
		cfg.Duration = d
	}
	if fs.Changed("reps") {
		val, err := fs.GetInt("reps")
		if err != nil {
			return err
		}
		cfg.Repetitions = val
	}
	if fs.Changed("delay") {
		val, err := fs.GetString("delay")
		if err != nil {
			return err
		}
		d, err := ParseSiegeDuration(val)
		if err != nil {
			return fmt.Errorf("delay: %w", err)
		}
		cfg.Delay = d
	}
	if fs.Changed("timeout") {
		val, err := fs.GetDuration("timeout")
		if err != nil {
			return err
		}
		cfg.Timeout = val
	}
	if fs.Changed("rate") {
		val, err := fs.GetInt("rate")
		if err != nil {
			return err
		}
		cfg.Rate = val
	}

	for name, dst := range map[string]*bool{
		"sitemap":          &cfg.Sitemap,
		"random":           &cfg.Random,
		"crawl":            &cfg.Crawl,
		"follow-links":     &cfg.FollowLinks,
		"js":               &cfg.JS,
		"assets":           &cfg.Assets,
		"verbose":          &cfg.Verbose,
		"json-output":      &cfg.JSONOutput,
		"yaml-output":      &cfg.YAMLOutput,
		"dashboard":        &cfg.Dashboard,
		"log-json":         &cfg.LogJSON,
		"tracing-insecure": &cfg.Tracing.Insecure,
	} {
		if !fs.Changed(name) {
			continue
		}
		val, err := fs.GetBool(name)
		if err != nil {
			return err
		}
		*dst = val
	}

	if fs.Changed("js-threads") {
		val, err := fs.GetInt("js-threads")
		if err != nil {
			return err
		}
		cfg.JSThreads = val
	}
	if fs.Changed("render-wait") {
		val, err := fs.GetDuration("render-wait")
		if err != nil {
			return err
		}
		cfg.RenderWait = val
	}
	if fs.Changed("render-timeout") {
		val, err := fs.GetDuration("render-timeout")
		if err != nil {
			return err
		}
		cfg.RenderTimeout = val
	}
	if fs.Changed("sitemap-depth") {
		val, err := fs.GetInt("sitemap-depth")
		if err != nil {
			return err
		}
		cfg.SitemapDepth = val
	}
	if fs.Changed("max-body") {
		val, err := fs.GetInt64("max-body")
		if err != nil {
			return err
		}
		cfg.MaxBody = val
	}
	if fs.Changed("html-output") {
		val, err := fs.GetString("html-output")
		if err != nil {
			return err
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if fs.Changed("log-level") {
		val, err := fs.GetString("log-level")
		if err != nil {
			return err
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	if fs.Changed("threshold") {
		val, err := fs.GetStringSlice("threshold")
		if err != nil {
			return err
		}
		cfg.Thresholds = val
	}

	if fs.Changed("tracing-endpoint") {
		val, err := fs.GetString("tracing-endpoint")
		if err != nil {
			return err
		}
		cfg.Tracing.Endpoint = strings.TrimSpace(val)
	}
	if fs.Changed("tracing-protocol") {
		val, err := fs.GetString("tracing-protocol")
		if err != nil {
			return err
		}
		cfg.Tracing.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	return nil
}
