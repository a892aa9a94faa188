package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kart-io/missivehub/pkg/provider"
)

// DefaultMinAddressConfidence is the confidence floor applied to address
// verification results when the deployment does not set its own.
const DefaultMinAddressConfidence = 0.4

// TelemetryConfig configures the OpenTelemetry provider.
type TelemetryConfig struct {
	Enabled        bool              `mapstructure:"enabled" yaml:"enabled"`
	ServiceName    string            `mapstructure:"service_name" yaml:"service_name"`
	ServiceVersion string            `mapstructure:"service_version" yaml:"service_version"`
	Environment    string            `mapstructure:"environment" yaml:"environment"`
	OTLPEndpoint   string            `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	OTLPHeaders    map[string]string `mapstructure:"otlp_headers" yaml:"otlp_headers"`
	TracingEnabled bool              `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	MetricsEnabled bool              `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	SampleRate     float64           `mapstructure:"sample_rate" yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// ReceiptConfig configures the delivery-receipt store.
type ReceiptConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend" validate:"omitempty,oneof=memory redis"`
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db" yaml:"redis_db"`
}

// Config is the full dispatch configuration.
type Config struct {
	// Ordered declarations; order encodes priority.
	Providers       Providers `yaml:"providers"`
	AddressBackends Providers `yaml:"address_backends"`

	// Defaults are merged under every provider's options.
	Defaults provider.Config `yaml:"defaults"`

	// Sandbox forces sandbox mode on every dispatch.
	Sandbox bool `yaml:"sandbox"`

	LogLevel             string          `yaml:"log_level" validate:"omitempty,oneof=silent error warn info debug"`
	MinAddressConfidence float64         `yaml:"min_address_confidence" validate:"gte=0,lte=1"`
	Telemetry            TelemetryConfig `yaml:"telemetry"`
	Receipts             ReceiptConfig   `yaml:"receipts"`
}

var validate = validator.New()

// New returns a configuration with sane defaults and no declarations.
func New() *Config {
	return &Config{
		Defaults:             provider.Config{},
		LogLevel:             "warn",
		MinAddressConfidence: DefaultMinAddressConfidence,
		Telemetry: TelemetryConfig{
			ServiceName:    "missivehub",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			OTLPEndpoint:   "localhost:4318",
			TracingEnabled: true,
			MetricsEnabled: true,
			SampleRate:     1.0,
		},
		Receipts: ReceiptConfig{Backend: "memory", RedisAddr: "localhost:6379"},
	}
}

// Load reads the configuration file at path, layers MISSIVE_-prefixed
// environment variables over its flat settings through viper, applies
// provider-family environment overrides to the declarations and
// validates the result.
//
// The ordered sections (providers, address_backends) are decoded with
// yaml.v3 directly because declaration order is part of the contract and
// a map-based decode would lose it; viper serves the flat settings and
// the environment binding.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := New()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	v.SetEnvPrefix("MISSIVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flat settings can come from the environment; declarations cannot.
	if v.IsSet("sandbox") {
		cfg.Sandbox = v.GetBool("sandbox")
	}
	if level := v.GetString("log_level"); level != "" {
		cfg.LogLevel = level
	}
	if v.IsSet("min_address_confidence") {
		cfg.MinAddressConfidence = v.GetFloat64("min_address_confidence")
	}
	if backend := v.GetString("receipts.backend"); backend != "" {
		cfg.Receipts.Backend = backend
	}
	if addr := v.GetString("receipts.redis_addr"); addr != "" {
		cfg.Receipts.RedisAddr = addr
	}

	cfg.Providers = MergeDefaults(cfg.Providers, cfg.Defaults)
	cfg.Providers = ApplyEnvOverrides(cfg.Providers, os.Environ())
	cfg.AddressBackends = ApplyEnvOverrides(cfg.AddressBackends, os.Environ())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the structural constraints of the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, entry := range c.Providers {
		if !strings.Contains(entry.Identifier, ".") {
			return fmt.Errorf("invalid provider identifier %q: expected \"<module-path>.<ImplementationName>\"", entry.Identifier)
		}
	}
	for _, entry := range c.AddressBackends {
		if !strings.Contains(entry.Identifier, ".") {
			return fmt.Errorf("invalid address backend identifier %q: expected \"<module-path>.<ImplementationName>\"", entry.Identifier)
		}
	}
	return nil
}
