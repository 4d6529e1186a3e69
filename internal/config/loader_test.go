package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestAsString(t *testing.T) {
	tests := []struct {
		input interface{}
		want  string
	}{
		{"hello", "hello"},
		{123, "123"},
		{true, "true"},
		{nil, ""},
		{[]byte("bytes"), "bytes"},
	}

	for _, tt := range tests {
		got, err := asString(tt.input)
		if err != nil {
			t.Errorf("asString(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asString(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestAsInt(t *testing.T) {
	tests := []struct {
		input interface{}
		want  int
	}{
		{123, 123},
		{"456", 456},
		{int64(789), 789},
		{float64(10.0), 10},
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asInt(tt.input)
		if err != nil {
			t.Errorf("asInt(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asInt(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		input interface{}
		want  bool
	}{
		{true, true},
		{"true", true},
		{"1", true},
		{false, false},
		{"false", false},
		{"0", false},
		{nil, false},
	}

	for _, tt := range tests {
		got, err := asBool(tt.input)
		if err != nil {
			t.Errorf("asBool(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestAsDuration(t *testing.T) {
	tests := []struct {
		input interface{}
		want  time.Duration
	}{
		{time.Second, time.Second},
		{"1m", time.Minute},
		{"30S", 30 * time.Second},
		{10, 10 * time.Second}, // int treated as seconds
		{nil, 0},
	}

	for _, tt := range tests {
		got, err := asDuration(tt.input)
		if err != nil {
			t.Errorf("asDuration(%v) error = %v", tt.input, err)
		}
		if got != tt.want {
			t.Errorf("asDuration(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestApplyConfigSettings(t *testing.T) {
	cfg := Defaults()
	settings := map[string]interface{}{
		"url":          "http://example.com",
		"concurrency":  25,
		"time":         "5M",
		"delay":        0,
		"timeout":      "5s",
		"follow_links": true,
		"max_body":     1024,
		"headers": map[string]interface{}{
			"accept-language": "en",
		},
		"tracing": map[string]interface{}{
			"endpoint":    "localhost:4317",
			"sample_rate": 0.5,
			"propagate":   true,
		},
	}

	if err := applyConfigSettings(&cfg, settings); err != nil {
		t.Fatalf("applyConfigSettings() error = %v", err)
	}

	if cfg.TargetURL != "http://example.com" {
		t.Errorf("TargetURL = %q, want http://example.com", cfg.TargetURL)
	}
	if cfg.Concurrency != 25 {
		t.Errorf("Concurrency = %d, want 25", cfg.Concurrency)
	}
	if cfg.Duration != 5*time.Minute {
		t.Errorf("Duration = %v, want 5m", cfg.Duration)
	}
	if cfg.Delay != 0 {
		t.Errorf("Delay = %v, want 0", cfg.Delay)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
	if !cfg.FollowLinks {
		t.Error("FollowLinks = false, want true")
	}
	if cfg.MaxBody != 1024 {
		t.Errorf("MaxBody = %d, want 1024", cfg.MaxBody)
	}
	if cfg.Headers["Accept-Language"] != "en" {
		t.Errorf("Headers[Accept-Language] = %q, want en", cfg.Headers["Accept-Language"])
	}
	if cfg.Tracing.Endpoint != "localhost:4317" || cfg.Tracing.SampleRate != 0.5 {
		t.Errorf("Tracing = %+v, want endpoint and sample rate from file", cfg.Tracing)
	}
	if !cfg.Tracing.ShouldPropagate() {
		t.Error("ShouldPropagate() = false, want true")
	}
	if cfg.Tracing.Protocol != "grpc" {
		t.Errorf("Tracing.Protocol = %q, want default grpc", cfg.Tracing.Protocol)
	}
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := Defaults()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)

	args := []string{
		"-c", "5",
		"-t", "2M",
		"-d", "0",
		"--header=X-Test=123",
		"--js",
		"--tracing-propagate=false",
	}
	if err := fs.Parse(args); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if err := applyFlagOverrides(&cfg, fs); err != nil {
		t.Fatalf("applyFlagOverrides() error = %v", err)
	}

	if cfg.Concurrency != 5 {
		t.Errorf("Concurrency = %d, want 5", cfg.Concurrency)
	}
	if cfg.Duration != 2*time.Minute {
		t.Errorf("Duration = %v, want 2m", cfg.Duration)
	}
	if cfg.Delay != 0 {
		t.Errorf("Delay = %v, want 0", cfg.Delay)
	}
	if cfg.Headers["X-Test"] != "123" {
		t.Errorf("Headers[X-Test] = %q, want 123", cfg.Headers["X-Test"])
	}
	if !cfg.JS {
		t.Error("JS = false, want true")
	}
	if cfg.Tracing.Propagate == nil || *cfg.Tracing.Propagate {
		t.Error("Tracing.Propagate should be explicitly false")
	}
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want default %v", cfg.Timeout, DefaultTimeout)
	}
}

func TestApplyFlagOverridesRejectsBadTime(t *testing.T) {
	cfg := Defaults()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	configureFlags(fs)
	if err := fs.Parse([]string{"--time", "soon"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := applyFlagOverrides(&cfg, fs); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

func TestParseSiegeDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"30S", 30 * time.Second, false},
		{"30s", 30 * time.Second, false},
		{"5M", 5 * time.Minute, false},
		{"1H", time.Hour, false},
		{"90", 90 * time.Second, false},
		{"0", 0, false},
		{"1.5", 1500 * time.Millisecond, false},
		{"1m30s", 90 * time.Second, false},
		{"250ms", 250 * time.Millisecond, false},
		{"", 0, false},
		{"-5S", 0, true},
		{"forever", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSiegeDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSiegeDuration(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseSiegeDuration(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAsStringSliceKeepsSingleString(t *testing.T) {
	got, err := asStringSlice("response_time:p99 < 500")
	if err != nil {
		t.Fatalf("asStringSlice error = %v", err)
	}
	if len(got) != 1 || got[0] != "response_time:p99 < 500" {
		t.Errorf("asStringSlice = %q, want one element", got)
	}

	got, err = asStringSlice([]interface{}{"a", "b"})
	if err != nil {
		t.Fatalf("asStringSlice error = %v", err)
	}
	if len(got) != 2 || got[1] != "b" {
		t.Errorf("asStringSlice = %q, want [a b]", got)
	}
}

func TestToStringKeyMapLowercases(t *testing.T) {
	got, err := toStringKeyMap(map[interface{}]interface{}{"Endpoint": "localhost:4317"})
	if err != nil {
		t.Fatalf("toStringKeyMap error = %v", err)
	}
	if got["endpoint"] != "localhost:4317" {
		t.Errorf("toStringKeyMap = %v, want endpoint key", got)
	}
	if _, err := toStringKeyMap(42); err == nil {
		t.Error("toStringKeyMap(42) expected error")
	}
}

func TestAsStringMapRejectsEmptyKey(t *testing.T) {
	if _, err := asStringMap(map[string]interface{}{" ": "x"}); err == nil {
		t.Error("asStringMap expected error for empty key")
	}
}
