package core

import (
	"net/url"
	"strings"
	"time"
)

const (
	defaultServiceName           = "accessproxy"
	defaultTokenPath             = "/oauth/token"
	defaultRequestComment        = "Requested by access proxy"
	defaultResolutionAttempts    = 5
	defaultResolutionDelay       = 60 * time.Second
	defaultAccessRequestAttempts = 2
	defaultAccessRequestDelay    = 60 * time.Second
	defaultRequestTimeout        = 30 * time.Second
)

type RetryConfig struct {
	MaxAttempts int           `koanf:"max_attempts" mapstructure:"max_attempts" yaml:"max_attempts"`
	Delay       time.Duration `koanf:"delay" mapstructure:"delay" yaml:"delay"`
}

func (c RetryConfig) Policy() RetryPolicy {
	return RetryPolicy{MaxAttempts: c.MaxAttempts, Delay: c.Delay}
}

type LedgerConfig struct {
	Enabled bool   `koanf:"enabled" mapstructure:"enabled" yaml:"enabled"`
	Driver  string `koanf:"driver" mapstructure:"driver" yaml:"driver"`
	DSN     string `koanf:"dsn" mapstructure:"dsn" yaml:"dsn"`
}

type Config struct {
	ServiceName        string        `koanf:"service_name" mapstructure:"service_name" yaml:"service_name"`
	BaseURL            string        `koanf:"base_url" mapstructure:"base_url" yaml:"base_url"`
	ClientID           string        `koanf:"client_id" mapstructure:"client_id" yaml:"client_id"`
	ClientSecret       string        `koanf:"client_secret" mapstructure:"client_secret" yaml:"client_secret"`
	TokenPath          string        `koanf:"token_path" mapstructure:"token_path" yaml:"token_path"`
	Search             string        `koanf:"search" mapstructure:"search" yaml:"search"`
	MakeRequestable    bool          `koanf:"make_requestable" mapstructure:"make_requestable" yaml:"make_requestable"`
	Comment            string        `koanf:"comment" mapstructure:"comment" yaml:"comment"`
	IdentityResolution RetryConfig   `koanf:"identity_resolution" mapstructure:"identity_resolution" yaml:"identity_resolution"`
	AccessRequestRetry RetryConfig   `koanf:"access_request_retry" mapstructure:"access_request_retry" yaml:"access_request_retry"`
	RequestTimeout     time.Duration `koanf:"request_timeout" mapstructure:"request_timeout" yaml:"request_timeout"`
	Ledger             LedgerConfig  `koanf:"ledger" mapstructure:"ledger" yaml:"ledger"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: defaultServiceName,
		TokenPath:   defaultTokenPath,
		Comment:     defaultRequestComment,
		IdentityResolution: RetryConfig{
			MaxAttempts: defaultResolutionAttempts,
			Delay:       defaultResolutionDelay,
		},
		AccessRequestRetry: RetryConfig{
			MaxAttempts: defaultAccessRequestAttempts,
			Delay:       defaultAccessRequestDelay,
		},
		RequestTimeout: defaultRequestTimeout,
	}
}

// Validate reports the first invalid field as a validation error.
func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return InvalidField("config", "service_name", "is required")
	}
	if base := strings.TrimSpace(c.BaseURL); base != "" {
		parsed, err := url.Parse(base)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return InvalidField("config", "base_url", "must be an absolute url")
		}
	}
	if c.IdentityResolution.MaxAttempts < 0 {
		return InvalidField("config", "identity_resolution.max_attempts", "must not be negative")
	}
	if c.AccessRequestRetry.MaxAttempts < 0 {
		return InvalidField("config", "access_request_retry.max_attempts", "must not be negative")
	}
	if c.IdentityResolution.Delay < 0 {
		return InvalidField("config", "identity_resolution.delay", "must not be negative")
	}
	if c.AccessRequestRetry.Delay < 0 {
		return InvalidField("config", "access_request_retry.delay", "must not be negative")
	}
	if c.Ledger.Enabled && strings.TrimSpace(c.Ledger.Driver) == "" {
		return InvalidField("config", "ledger.driver", "is required when the ledger is enabled")
	}
	return nil
}

// TokenURL joins the origin of base_url with token_path.
func (c Config) TokenURL() string {
	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return ""
	}
	path := strings.TrimSpace(c.TokenPath)
	if path == "" {
		path = defaultTokenPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return parsed.Scheme + "://" + parsed.Host + path
}
