package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sitesiege/sitesiege/internal/target"
)

const (
	DefaultConcurrency   = 10
	DefaultDelay         = time.Second
	DefaultTimeout       = 30 * time.Second
	DefaultSitemapDepth  = 5
	DefaultMaxBody       = 5 << 20
	DefaultRenderWait    = 3 * time.Second
	DefaultRenderTimeout = 30 * time.Second
	DefaultUserAgent     = "sitesiege/1.0"
)

type Config struct {
	TargetURL   string            `mapstructure:"url"`
	Concurrency int               `mapstructure:"concurrency"`
	Duration    time.Duration     `mapstructure:"time"`
	Repetitions int               `mapstructure:"reps"`
	Delay       time.Duration     `mapstructure:"delay"`
	Timeout     time.Duration     `mapstructure:"timeout"`
	Rate        int               `mapstructure:"rate"`
	UserAgent   string            `mapstructure:"user_agent"`
	Headers     map[string]string `mapstructure:"headers"`

	Sitemap      bool   `mapstructure:"sitemap"`
	Random       bool   `mapstructure:"random"`
	Crawl        bool   `mapstructure:"crawl"`
	FollowLinks  bool   `mapstructure:"follow_links"`
	JS           bool   `mapstructure:"js"`
	JSThreads    int    `mapstructure:"js_threads"`
	Assets       bool   `mapstructure:"assets"`
	URLFile      string `mapstructure:"file"`
	SitemapDepth int    `mapstructure:"sitemap_depth"`
	MaxBody      int64  `mapstructure:"max_body"`

	RenderWait    time.Duration `mapstructure:"render_wait"`
	RenderTimeout time.Duration `mapstructure:"render_timeout"`

	Verbose    bool     `mapstructure:"verbose"`
	JSONOutput bool     `mapstructure:"json_output"`
	YAMLOutput bool     `mapstructure:"yaml_output"`
	HTMLOutput string   `mapstructure:"html_output"`
	Dashboard  bool     `mapstructure:"dashboard"`
	LogLevel   string   `mapstructure:"log_level"`
	LogJSON    bool     `mapstructure:"log_json"`
	Thresholds []string `mapstructure:"thresholds"`
	ConfigFile string   `mapstructure:"-"`

	Tracing TracingConfig `mapstructure:"tracing"`
}

// TracingConfig configures the optional OTLP span exporter.
type TracingConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"`
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate controls traceparent injection. nil means "when enabled".
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is configured, either
// explicitly or through OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether trace context is injected into requests.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Defaults returns a Config populated with default values.
func Defaults() Config {
	return Config{
		Concurrency:   DefaultConcurrency,
		Delay:         DefaultDelay,
		Timeout:       DefaultTimeout,
		UserAgent:     DefaultUserAgent,
		Headers:       map[string]string{},
		SitemapDepth:  DefaultSitemapDepth,
		MaxBody:       DefaultMaxBody,
		RenderWait:    DefaultRenderWait,
		RenderTimeout: DefaultRenderTimeout,
		LogLevel:      "info",
		Tracing:       TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate collects every problem with c into a ValidationError.
func (c Config) Validate() error {
	var issues []string
	var warnings []string

	plan := c.Plan()
	needsTarget := strings.TrimSpace(c.URLFile) == "" || plan.Mode.Kind == ModeFollowLinks || plan.Mode.Kind == ModeJSDiscovery
	if strings.TrimSpace(c.TargetURL) == "" {
		if needsTarget {
			issues = append(issues, "url is required (use --help for usage information)")
		}
	} else if _, err := target.Normalize(c.TargetURL); err != nil {
		issues = append(issues, fmt.Sprintf("url: %v", err))
	}

	if c.Rate > 1000 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High rate limit configured (%d RPS). Ensure you have authorization to test the target system.", c.Rate))
	}
	if c.Concurrency > 500 {
		warnings = append(warnings, fmt.Sprintf("WARNING: High concurrency configured (%d workers). Ensure you have authorization to test the target system.", c.Concurrency))
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, w)
	}

	if c.Concurrency < 1 {
		issues = append(issues, "concurrency must be >= 1")
	}
	if c.Duration < 0 {
		issues = append(issues, "time must be >= 0")
	}
	if c.Repetitions < 0 {
		issues = append(issues, "reps must be >= 0")
	}
	if c.Delay < 0 {
		issues = append(issues, "delay must be >= 0")
	}
	if c.Timeout <= 0 {
		issues = append(issues, "timeout must be > 0")
	}
	if c.Rate < 0 {
		issues = append(issues, "rate must be >= 0")
	}
	if c.JSThreads < 0 {
		issues = append(issues, "js-threads must be >= 0")
	}
	if c.SitemapDepth < 1 {
		issues = append(issues, "sitemap-depth must be >= 1")
	}
	if c.MaxBody <= 0 {
		issues = append(issues, "max-body must be > 0")
	}
	if c.RenderWait < 0 {
		issues = append(issues, "render-wait must be >= 0")
	}
	if c.RenderTimeout <= 0 {
		issues = append(issues, "render-timeout must be > 0")
	}
	if plan.Stop.Kind == StopUnset {
		issues = append(issues, "--time or --reps is required for repeated load tests (use --crawl to visit each URL once)")
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		issues = append(issues, fmt.Sprintf("log-level: unsupported level %q", c.LogLevel))
	}
	if c.HTMLOutput != "" && strings.HasSuffix(c.HTMLOutput, string(os.PathSeparator)) {
		issues = append(issues, "html-output must be a file path")
	}
	issues = append(issues, validateTracing(c.Tracing)...)

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateTracing(t TracingConfig) []string {
	var issues []string
	switch strings.ToLower(t.Protocol) {
	case "", "grpc", "http":
	default:
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", t.Protocol))
	}
	if t.SampleRate < 0 || t.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", t.SampleRate))
	}
	return issues
}
