/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	SampleRate int
	BufferSize int
	AudioDevice string // portaudio device name; "" selects the host API default

	JWTSigningKey string
	JWTTokenTTL   time.Duration

	AnalysisCacheDSN   string
	AnalysisCacheDebug bool

	NATSEnabled bool
	NATSURL     string
	NATSToken   string

	DriftCorrectionEnabled bool

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnvAny([]string{"DECKMIX_ENV", "DMX_ENV"}, "development"),
		HTTPBind:    getEnvAny([]string{"DECKMIX_HTTP_BIND", "DMX_HTTP_BIND"}, "0.0.0.0"),
		HTTPPort:    getEnvIntAny([]string{"DECKMIX_HTTP_PORT", "DMX_HTTP_PORT"}, 8080),
		MetricsBind: getEnvAny([]string{"DECKMIX_METRICS_BIND", "DMX_METRICS_BIND"}, "127.0.0.1:9000"),

		SampleRate:  getEnvIntAny([]string{"DECKMIX_SAMPLE_RATE", "DMX_SAMPLE_RATE"}, 48000),
		BufferSize:  getEnvIntAny([]string{"DECKMIX_BUFFER_SIZE", "DMX_BUFFER_SIZE"}, 512),
		AudioDevice: getEnvAny([]string{"DECKMIX_AUDIO_DEVICE", "DMX_AUDIO_DEVICE"}, ""),

		JWTSigningKey: getEnvAny([]string{"DECKMIX_JWT_SIGNING_KEY", "DMX_JWT_SIGNING_KEY"}, ""),
		JWTTokenTTL:   time.Duration(getEnvIntAny([]string{"DECKMIX_JWT_TOKEN_TTL_MINUTES", "DMX_JWT_TOKEN_TTL_MINUTES"}, 720)) * time.Minute,

		AnalysisCacheDSN:   getEnvAny([]string{"DECKMIX_ANALYSIS_CACHE_DSN", "DMX_ANALYSIS_CACHE_DSN"}, "./deckmix-analysis.db"),
		AnalysisCacheDebug: getEnvBoolAny([]string{"DECKMIX_ANALYSIS_CACHE_DEBUG", "DMX_ANALYSIS_CACHE_DEBUG"}, false),

		NATSEnabled: getEnvBoolAny([]string{"DECKMIX_NATS_ENABLED", "DMX_NATS_ENABLED"}, false),
		NATSURL:     getEnvAny([]string{"DECKMIX_NATS_URL", "DMX_NATS_URL"}, "nats://localhost:4222"),
		NATSToken:   getEnvAny([]string{"DECKMIX_NATS_TOKEN", "DMX_NATS_TOKEN"}, ""),

		DriftCorrectionEnabled: getEnvBoolAny([]string{"DECKMIX_DRIFT_CORRECTION_ENABLED", "DMX_DRIFT_CORRECTION_ENABLED"}, false),
	}

	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("DECKMIX_SAMPLE_RATE must be a positive integer")
	}
	if cfg.BufferSize <= 0 {
		return nil, fmt.Errorf("DECKMIX_BUFFER_SIZE must be a positive integer")
	}

	if strings.EqualFold(cfg.Environment, "production") {
		if cfg.JWTSigningKey == "" {
			return nil, fmt.Errorf("DECKMIX_JWT_SIGNING_KEY or DMX_JWT_SIGNING_KEY must be set in production")
		}
	}
	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// CallbackPeriod returns the fixed audio callback period implied by the
// configured sample rate and buffer size.
func (c *Config) CallbackPeriod() time.Duration {
	return time.Duration(float64(c.BufferSize) / float64(c.SampleRate) * float64(time.Second))
}

func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"ENVIRONMENT":      "use DECKMIX_ENV (or DMX_ENV)",
		"SAMPLE_RATE":      "use DECKMIX_SAMPLE_RATE (or DMX_SAMPLE_RATE)",
		"JWT_SIGNING_KEY":  "use DECKMIX_JWT_SIGNING_KEY (or DMX_JWT_SIGNING_KEY)",
		"NATS_URL":         "use DECKMIX_NATS_URL (or DMX_NATS_URL)",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	return warnings
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
