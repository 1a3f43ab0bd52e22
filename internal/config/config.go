// Package config loads configuration from defaults, a YAML file, environment
// variables and command line flags, and validates the result.
package config

import (
	"time"
)

// Config holds the application configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Schema        SchemaConfig        `mapstructure:"schema"`
	Server        ServerConfig        `mapstructure:"server"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// DatabaseConfig holds database connection parameters.
type DatabaseConfig struct {
	// Driver selects the SQL dialect: mysql, postgres or sqlite.
	Driver         string     `mapstructure:"driver"`
	DSN            string     `mapstructure:"dsn"`
	DSNFile        string     `mapstructure:"dsn_file"`
	Host           string     `mapstructure:"host"`
	Port           int        `mapstructure:"port"`
	User           string     `mapstructure:"user"`
	Password       string     `mapstructure:"password"`
	PasswordFile   string     `mapstructure:"password_file"`
	PasswordPrompt bool       `mapstructure:"password_prompt"`
	Database       string     `mapstructure:"database"`
	SSLMode        string     `mapstructure:"sslmode"` // postgres only
	Pool           PoolConfig `mapstructure:"pool"`

	ConnectionTimeout       time.Duration `mapstructure:"connection_timeout"`
	ConnectionRetryInterval time.Duration `mapstructure:"connection_retry_interval"`
}

// PoolConfig tunes the database/sql connection pool.
type PoolConfig struct {
	MaxOpen     int           `mapstructure:"max_open"`
	MaxIdle     int           `mapstructure:"max_idle"`
	MaxLifetime time.Duration `mapstructure:"max_lifetime"`
}

// SchemaConfig controls where table metadata comes from.
type SchemaConfig struct {
	// Source is "database" (introspect the live catalog) or "file".
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
	// Name is the catalog schema to introspect. Empty means the connection's
	// database for MySQL and "public" for PostgreSQL. SQLite ignores it.
	Name        string `mapstructure:"name"`
	Concurrency int    `mapstructure:"concurrency"`

	// RefreshMinInterval enables polling rebuilds when positive. The interval
	// backs off toward RefreshMaxInterval while nothing changes.
	RefreshMinInterval time.Duration `mapstructure:"refresh_min_interval"`
	RefreshMaxInterval time.Duration `mapstructure:"refresh_max_interval"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port            int  `mapstructure:"port"`
	GraphiQLEnabled bool `mapstructure:"graphiql_enabled"`
	// AdminEndpointsEnabled exposes POST /admin/reload-schema. It is unauthenticated.
	AdminEndpointsEnabled bool          `mapstructure:"admin_endpoints_enabled"`
	ReadTimeout           time.Duration `mapstructure:"read_timeout"`
	WriteTimeout          time.Duration `mapstructure:"write_timeout"`
	IdleTimeout           time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout       time.Duration `mapstructure:"shutdown_timeout"`
	HealthCheckTimeout    time.Duration `mapstructure:"health_check_timeout"`
}

// LoggingConfig holds logging parameters.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`  // debug, info, warn, error
	Format         string `mapstructure:"format"` // json, text
	ExportsEnabled bool   `mapstructure:"exports_enabled"`
}

// ObservabilityConfig holds observability parameters.
type ObservabilityConfig struct {
	ServiceName      string        `mapstructure:"service_name"`
	ServiceVersion   string        `mapstructure:"service_version"`
	Environment      string        `mapstructure:"environment"`
	MetricsEnabled   bool          `mapstructure:"metrics_enabled"`
	TracingEnabled   bool          `mapstructure:"tracing_enabled"`
	TraceSampleRatio float64       `mapstructure:"trace_sample_ratio"`
	Logging          LoggingConfig `mapstructure:"logging"`

	// OTLP holds defaults shared by every signal.
	OTLP OTLPConfig `mapstructure:"otlp"`

	// Per-signal overrides; unset fields fall back to OTLP.
	Traces *OTLPConfig `mapstructure:"traces,omitempty"`
	Logs   *OTLPConfig `mapstructure:"logs,omitempty"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Endpoint          string            `mapstructure:"endpoint"`
	Protocol          string            `mapstructure:"protocol"`
	Insecure          bool              `mapstructure:"insecure"`
	TLSCertFile       string            `mapstructure:"tls_cert_file"`
	TLSClientCertFile string            `mapstructure:"tls_client_cert_file"`
	TLSClientKeyFile  string            `mapstructure:"tls_client_key_file"`
	Headers           map[string]string `mapstructure:"headers"`
	Timeout           time.Duration     `mapstructure:"timeout"`
	Compression       string            `mapstructure:"compression"`
	RetryEnabled      bool              `mapstructure:"retry_enabled"`
}

// GetTracesConfig returns the effective trace exporter settings.
func (c *ObservabilityConfig) GetTracesConfig() OTLPConfig {
	if c.Traces == nil {
		return c.OTLP
	}
	return mergeOTLPConfigs(c.OTLP, *c.Traces)
}

// GetLogsConfig returns the effective log exporter settings.
func (c *ObservabilityConfig) GetLogsConfig() OTLPConfig {
	if c.Logs == nil {
		return c.OTLP
	}
	return mergeOTLPConfigs(c.OTLP, *c.Logs)
}

func mergeOTLPConfigs(base, override OTLPConfig) OTLPConfig {
	result := base
	if override.Endpoint != "" {
		result.Endpoint = override.Endpoint
	}
	if override.Protocol != "" {
		result.Protocol = override.Protocol
	}
	if override.Insecure {
		result.Insecure = true
	}
	if override.TLSCertFile != "" {
		result.TLSCertFile = override.TLSCertFile
	}
	if override.TLSClientCertFile != "" {
		result.TLSClientCertFile = override.TLSClientCertFile
	}
	if override.TLSClientKeyFile != "" {
		result.TLSClientKeyFile = override.TLSClientKeyFile
	}
	if len(override.Headers) > 0 {
		headers := make(map[string]string, len(base.Headers)+len(override.Headers))
		for k, v := range base.Headers {
			headers[k] = v
		}
		for k, v := range override.Headers {
			headers[k] = v
		}
		result.Headers = headers
	}
	if override.Timeout > 0 {
		result.Timeout = override.Timeout
	}
	if override.Compression != "" {
		result.Compression = override.Compression
	}
	if override.RetryEnabled {
		result.RetryEnabled = true
	}
	return result
}
