package config

import (
	"os"
	"strings"
	"time"
)

// Default values for configuration.
const (
	DefaultOutput         = "text"
	DefaultListen         = "127.0.0.1:8080"
	DefaultMaxUploadBytes = 32 << 20
	DefaultWebhookTimeout = Duration(10 * time.Second)
)

// DefaultAllowedExtensions are the upload extensions accepted by default.
var DefaultAllowedExtensions = []string{".json"}

// Environment variable names.
const (
	EnvLogSources = "TFLOG_LOG_SOURCES"
	EnvListen     = "TFLOG_LISTEN"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources: []string{},
		Output:     DefaultOutput,
		Timeline:   true,
		Server: ServerConfig{
			Listen:            DefaultListen,
			MaxUploadBytes:    DefaultMaxUploadBytes,
			AllowedExtensions: append([]string(nil), DefaultAllowedExtensions...),
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if sources := os.Getenv(EnvLogSources); sources != "" {
		c.LogSources = nil
		for _, s := range strings.Split(sources, ",") {
			if s = strings.TrimSpace(s); s != "" {
				c.LogSources = append(c.LogSources, s)
			}
		}
	}

	if listen := os.Getenv(EnvListen); listen != "" {
		c.Server.Listen = listen
	}
}
