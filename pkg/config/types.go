// Package config provides configuration loading and validation for tflog.
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure loaded from YAML or TOML.
type Config struct {
	// LogSources are files or glob patterns analyzed when none are given
	// on the command line.
	LogSources []string `yaml:"log_sources" toml:"log_sources"`

	// Output is the default report format (text, json).
	Output string `yaml:"output" toml:"output"`

	// Timeline enables the per-request timeline.
	Timeline bool `yaml:"timeline" toml:"timeline"`

	Server   ServerConfig    `yaml:"server" toml:"server"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks,omitempty"`
}

// ServerConfig configures the HTTP upload API.
type ServerConfig struct {
	// Listen is the address the API binds to.
	Listen string `yaml:"listen" toml:"listen"`

	// MaxUploadBytes caps the size of an uploaded log.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" toml:"max_upload_bytes"`

	// AllowedExtensions lists accepted upload file extensions.
	AllowedExtensions []string `yaml:"allowed_extensions" toml:"allowed_extensions"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnErrors fires only when error-level records are found (default).
	WebhookTriggerOnErrors WebhookTrigger = "on_errors"
	// WebhookTriggerAlways fires after every analysis.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending analysis reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty" toml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url" toml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty" toml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_errors" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty" toml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
}

// DisplayName returns Name, falling back to URL.
func (w *WebhookConfig) DisplayName() string {
	if w.Name != "" {
		return w.Name
	}
	return w.URL
}

// Duration is a time.Duration written as "10s" in both YAML and TOML.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText writes the duration in Go syntax.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
