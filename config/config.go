// Package config loads the posekit YAML configuration file. Files are
// validated against an embedded JSON schema before decoding, and defaults are
// applied to anything left unset.
package config

import (
	"strings"
	"time"

	"github.com/AltairaLabs/PoseKit/logger"
	"github.com/AltairaLabs/PoseKit/telemetry"
	"github.com/AltairaLabs/PoseKit/transport"
)

// REST API roots selected by environment when rest.baseURL is empty.
const (
	ProductionRESTBase  = "https://sports-vision-cloud.onrender.com/api/v1"
	DevelopmentRESTBase = "http://localhost:8000/api/v1"
)

// Defaults for the optional sections.
const (
	DefaultEnvironment      = "development"
	DefaultRelayAddr        = "localhost:6379"
	DefaultRelayPrefix      = "posekit"
	DefaultRelaySnapshotTTL = 5 * time.Minute
	DefaultMetricsAddr      = ":9090"
	DefaultServiceName      = "posekit"
	DefaultRESTTimeout      = 30 * time.Second
	DefaultRelayPoseBurst   = 5
)

// Config is the root of a posekit configuration file.
type Config struct {
	// Environment selects endpoint bases: "production" or anything else for development.
	Environment string          `yaml:"environment,omitempty"`
	Transport   TransportConfig `yaml:"transport,omitempty"`
	REST        RESTConfig      `yaml:"rest,omitempty"`
	Relay       RelayConfig     `yaml:"relay,omitempty"`
	Metrics     MetricsConfig   `yaml:"metrics,omitempty"`
	Tracing     TracingConfig   `yaml:"tracing,omitempty"`
	Logging     LoggingConfig   `yaml:"logging,omitempty"`
}

// TransportConfig tunes the websocket client.
type TransportConfig struct {
	BaseURL              string        `yaml:"baseURL,omitempty"`
	DialTimeout          time.Duration `yaml:"dialTimeout,omitempty"`
	HeartbeatInterval    time.Duration `yaml:"heartbeatInterval,omitempty"`
	BackoffBase          time.Duration `yaml:"backoffBase,omitempty"`
	BackoffMax           time.Duration `yaml:"backoffMax,omitempty"`
	MaxReconnectAttempts int           `yaml:"maxReconnectAttempts,omitempty"`
}

// RESTConfig points at the training backend.
type RESTConfig struct {
	BaseURL string        `yaml:"baseURL,omitempty"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// RelayConfig enables republishing telemetry to Redis.
type RelayConfig struct {
	Enabled     bool          `yaml:"enabled,omitempty"`
	Addr        string        `yaml:"addr,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	DB          int           `yaml:"db,omitempty"`
	Prefix      string        `yaml:"prefix,omitempty"`
	SnapshotTTL time.Duration `yaml:"snapshotTTL,omitempty"`

	// PoseRate caps mirrored pose frames per second. Zero disables the cap.
	PoseRate  float64 `yaml:"poseRate,omitempty"`
	PoseBurst int     `yaml:"poseBurst,omitempty"`
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// TracingConfig controls the OTLP trace exporter. Tracing is off when
// Endpoint is empty.
type TracingConfig struct {
	Endpoint    string  `yaml:"endpoint,omitempty"`
	ServiceName string  `yaml:"serviceName,omitempty"`
	SampleRatio float64 `yaml:"sampleRatio,omitempty"`
}

// LoggingConfig mirrors logger.LoggingConfigSpec.
type LoggingConfig struct {
	DefaultLevel string            `yaml:"defaultLevel,omitempty"`
	Format       string            `yaml:"format,omitempty"`
	CommonFields map[string]string `yaml:"commonFields,omitempty"`
}

// RESTBase returns the REST API root for environment.
func RESTBase(environment string) string {
	if strings.EqualFold(environment, transport.EnvironmentProduction) {
		return ProductionRESTBase
	}
	return DevelopmentRESTBase
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields in place.
func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = DefaultEnvironment
	}

	t := &c.Transport
	if t.DialTimeout == 0 {
		t.DialTimeout = transport.DefaultDialTimeout
	}
	if t.HeartbeatInterval == 0 {
		t.HeartbeatInterval = transport.DefaultHeartbeatInterval
	}
	if t.BackoffBase == 0 {
		t.BackoffBase = transport.DefaultBackoffBase
	}
	if t.BackoffMax == 0 {
		t.BackoffMax = transport.DefaultBackoffMax
	}
	if t.MaxReconnectAttempts == 0 {
		t.MaxReconnectAttempts = transport.DefaultMaxReconnectAttempts
	}

	if c.REST.BaseURL == "" {
		c.REST.BaseURL = RESTBase(c.Environment)
	}
	if c.REST.Timeout == 0 {
		c.REST.Timeout = DefaultRESTTimeout
	}

	if c.Relay.Addr == "" {
		c.Relay.Addr = DefaultRelayAddr
	}
	if c.Relay.Prefix == "" {
		c.Relay.Prefix = DefaultRelayPrefix
	}
	if c.Relay.SnapshotTTL == 0 {
		c.Relay.SnapshotTTL = DefaultRelaySnapshotTTL
	}
	if c.Relay.PoseBurst == 0 {
		c.Relay.PoseBurst = DefaultRelayPoseBurst
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = DefaultMetricsAddr
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = DefaultServiceName
	}

	if c.Logging.DefaultLevel == "" {
		c.Logging.DefaultLevel = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = logger.FormatText
	}
}

// TransportSettings converts the file settings into a transport.Config.
func (c *Config) TransportSettings() transport.Config {
	return transport.Config{
		Environment:          c.Environment,
		BaseURL:              c.Transport.BaseURL,
		DialTimeout:          c.Transport.DialTimeout,
		HeartbeatInterval:    c.Transport.HeartbeatInterval,
		BackoffBase:          c.Transport.BackoffBase,
		BackoffMax:           c.Transport.BackoffMax,
		MaxReconnectAttempts: c.Transport.MaxReconnectAttempts,
	}
}

// TracingSettings converts the tracing section for telemetry.NewTracerProvider.
func (c *Config) TracingSettings() telemetry.ProviderConfig {
	return telemetry.ProviderConfig{
		Endpoint:    c.Tracing.Endpoint,
		ServiceName: c.Tracing.ServiceName,
		Environment: c.Environment,
		SampleRatio: c.Tracing.SampleRatio,
	}
}

// LoggingSpec converts the logging section for logger.Configure.
func (c *Config) LoggingSpec() *logger.LoggingConfigSpec {
	return &logger.LoggingConfigSpec{
		DefaultLevel: c.Logging.DefaultLevel,
		Format:       c.Logging.Format,
		CommonFields: c.Logging.CommonFields,
	}
}
