package config

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and configuration files to produce a Config.
// The target URL may be passed as the single positional argument.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	// If no arguments provided and no config file, show help/usage
	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}
	positional := flagSet.Args()
	if len(positional) > 1 {
		return nil, fmt.Errorf("expected at most one URL argument, got %d", len(positional))
	}

	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(&cfg, cfgViper.AllSettings()); err != nil {
		return nil, err
	}
	if err := applyFlagOverrides(&cfg, flagSet); err != nil {
		return nil, err
	}
	if len(positional) == 1 && !flagSet.Changed("url") {
		cfg.TargetURL = strings.TrimSpace(positional[0])
	}

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	if cfg.Headers == nil {
		cfg.Headers = map[string]string{}
	}
	return &cfg, nil
}

// applyConfigSettings applies settings from a config file to the Config struct.
func applyConfigSettings(cfg *Config, settings map[string]interface{}) error {
	if len(settings) == 0 {
		return nil
	}

	if raw, ok := lookupSetting(settings, "url", "target"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("url: %w", err)
		}
		cfg.TargetURL = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "file", "url_file", "urlfile"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("file: %w", err)
		}
		cfg.URLFile = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "user_agent", "useragent", "user-agent"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("userAgent: %w", err)
		}
		if val != "" {
			cfg.UserAgent = val
		}
	}
	if raw, ok := lookupSetting(settings, "headers"); ok {
		hdrs, err := asStringMap(raw)
		if err != nil {
			return fmt.Errorf("headers: %w", err)
		}
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for k, v := range hdrs {
			cfg.Headers[http.CanonicalHeaderKey(k)] = v
		}
	}

	ints := []struct {
		keys []string
		dst  *int
	}{
		{[]string{"concurrency"}, &cfg.Concurrency},
		{[]string{"reps", "repetitions"}, &cfg.Repetitions},
		{[]string{"rate"}, &cfg.Rate},
		{[]string{"js_threads", "jsthreads", "js-threads"}, &cfg.JSThreads},
		{[]string{"sitemap_depth", "sitemapdepth", "sitemap-depth"}, &cfg.SitemapDepth},
	}
	for _, it := range ints {
		if raw, ok := lookupSetting(settings, it.keys...); ok {
			val, err := asInt(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", it.keys[0], err)
			}
			*it.dst = val
		}
	}
	if raw, ok := lookupSetting(settings, "max_body", "maxbody", "max-body"); ok {
		val, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("max_body: %w", err)
		}
		cfg.MaxBody = int64(val)
	}

	durations := []struct {
		keys []string
		dst  *time.Duration
	}{
		{[]string{"time", "duration"}, &cfg.Duration},
		{[]string{"delay"}, &cfg.Delay},
		{[]string{"timeout"}, &cfg.Timeout},
		{[]string{"render_wait", "renderwait", "render-wait"}, &cfg.RenderWait},
		{[]string{"render_timeout", "rendertimeout", "render-timeout"}, &cfg.RenderTimeout},
	}
	for _, it := range durations {
		if raw, ok := lookupSetting(settings, it.keys...); ok {
			val, err := asDuration(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", it.keys[0], err)
			}
			*it.dst = val
		}
	}

	bools := []struct {
		keys []string
		dst  *bool
	}{
		{[]string{"sitemap"}, &cfg.Sitemap},
		{[]string{"random"}, &cfg.Random},
		{[]string{"crawl"}, &cfg.Crawl},
		{[]string{"follow_links", "followlinks", "follow-links"}, &cfg.FollowLinks},
		{[]string{"js"}, &cfg.JS},
		{[]string{"assets"}, &cfg.Assets},
		{[]string{"verbose"}, &cfg.Verbose},
		{[]string{"json_output", "jsonoutput", "json-output"}, &cfg.JSONOutput},
		{[]string{"yaml_output", "yamloutput", "yaml-output"}, &cfg.YAMLOutput},
		{[]string{"dashboard"}, &cfg.Dashboard},
		{[]string{"log_json", "logjson", "log-json"}, &cfg.LogJSON},
	}
	for _, it := range bools {
		if raw, ok := lookupSetting(settings, it.keys...); ok {
			val, err := asBool(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", it.keys[0], err)
			}
			*it.dst = val
		}
	}

	if raw, ok := lookupSetting(settings, "html_output", "htmloutput", "html-output"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("htmlOutput: %w", err)
		}
		cfg.HTMLOutput = strings.TrimSpace(val)
	}
	if raw, ok := lookupSetting(settings, "log_level", "loglevel", "log-level"); ok {
		val, err := asString(raw)
		if err != nil {
			return fmt.Errorf("logLevel: %w", err)
		}
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(settings, "thresholds"); ok {
		val, err := asStringSlice(raw)
		if err != nil {
			return fmt.Errorf("thresholds: %w", err)
		}
		cfg.Thresholds = val
	}
	if raw, ok := lookupSetting(settings, "tracing"); ok {
		tc, err := parseTracing(raw, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("tracing: %w", err)
		}
		cfg.Tracing = tc
	}
	return nil
}

func parseTracing(value interface{}, base TracingConfig) (TracingConfig, error) {
	entry, err := toStringKeyMap(value)
	if err != nil {
		return base, err
	}
	tc := base
	if raw, ok := lookupSetting(entry, "endpoint"); ok {
		if tc.Endpoint, err = asString(raw); err != nil {
			return tc, err
		}
	}
	if raw, ok := lookupSetting(entry, "protocol"); ok {
		val, err := asString(raw)
		if err != nil {
			return tc, err
		}
		tc.Protocol = strings.ToLower(strings.TrimSpace(val))
	}
	if raw, ok := lookupSetting(entry, "service_name", "servicename", "service-name"); ok {
		if tc.ServiceName, err = asString(raw); err != nil {
			return tc, err
		}
	}
	if raw, ok := lookupSetting(entry, "sample_rate", "samplerate", "sample-rate"); ok {
		if tc.SampleRate, err = asFloat64(raw); err != nil {
			return tc, fmt.Errorf("sample_rate: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "insecure"); ok {
		if tc.Insecure, err = asBool(raw); err != nil {
			return tc, fmt.Errorf("insecure: %w", err)
		}
	}
	if raw, ok := lookupSetting(entry, "propagate"); ok {
		val, err := asBool(raw)
		if err != nil {
			return tc, fmt.Errorf("propagate: %w", err)
		}
		tc.Propagate = &val
	}
	return tc, nil
}
