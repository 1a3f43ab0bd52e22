package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"table-graphql/internal/sqlutil"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func (r *ValidationResult) addError(field, message, hint string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Hint: hint})
}

func (r *ValidationResult) addWarning(field, message, hint string) {
	r.Warnings = append(r.Warnings, ValidationWarning{Field: field, Message: message, Hint: hint})
}

// Validate checks the configuration and returns fatal errors and warnings.
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}
	c.Database.validate(result)
	c.Schema.validate(result, c.Database)
	c.Server.validate(result)
	c.Observability.validate(result)
	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	dialect, err := d.Dialect()
	if err != nil {
		result.addError("database.driver", err.Error(), "valid values are: mysql, postgres, sqlite")
		return
	}

	if strings.TrimSpace(d.DSN) == "" {
		if dialect == sqlutil.DialectSQLite {
			if d.Database == "" {
				result.addError("database.database", "sqlite requires a database file path", "set database.database or database.dsn")
			}
		} else {
			if d.Host == "" {
				result.addError("database.host", "host is required when dsn is not set", "")
			}
			if d.Port <= 0 || d.Port > 65535 {
				result.addError("database.port", fmt.Sprintf("invalid port %d", d.Port), "must be between 1 and 65535")
			}
			if d.User == "" {
				result.addError("database.user", "user is required when dsn is not set", "")
			}
		}
	} else if d.Host != "localhost" && d.Host != "" {
		result.addWarning("database.host", "ignored because database.dsn is set", "")
	}

	if dialect == sqlutil.DialectPostgres && d.SSLMode != "" {
		valid := map[string]bool{"disable": true, "allow": true, "prefer": true, "require": true, "verify-ca": true, "verify-full": true}
		if !valid[d.SSLMode] {
			result.addError("database.sslmode", fmt.Sprintf("invalid sslmode %q", d.SSLMode), "see the libpq sslmode documentation")
		}
	}

	if d.Pool.MaxOpen < 0 {
		result.addError("database.pool.max_open", "cannot be negative", "")
	}
	if d.Pool.MaxIdle < 0 {
		result.addError("database.pool.max_idle", "cannot be negative", "")
	}
	if d.Pool.MaxOpen > 0 && d.Pool.MaxIdle > d.Pool.MaxOpen {
		result.addWarning("database.pool.max_idle", "exceeds max_open and will be capped", "")
	}
	if d.ConnectionTimeout < 0 {
		result.addError("database.connection_timeout", "cannot be negative", "")
	}
	if d.ConnectionRetryInterval <= 0 {
		result.addError("database.connection_retry_interval", "must be positive", "")
	}
}

func (s *SchemaConfig) validate(result *ValidationResult, db DatabaseConfig) {
	switch s.Source {
	case "database":
		dialect, err := db.Dialect()
		if err == nil && dialect == sqlutil.DialectMySQL && s.Name == "" && db.DatabaseName() == "" {
			result.addError("schema.name", "no database selected for introspection", "set database.database, a DSN with a database, or schema.name")
		}
	case "file":
		if strings.TrimSpace(s.File) == "" {
			result.addError("schema.file", "file is required when schema.source is file", "")
		}
	default:
		result.addError("schema.source", fmt.Sprintf("invalid schema source %q", s.Source), "valid values are: database, file")
	}

	if s.Concurrency < 0 {
		result.addError("schema.concurrency", "cannot be negative", "")
	}
	if s.RefreshMinInterval < 0 {
		result.addError("schema.refresh_min_interval", "cannot be negative", "use 0 to disable polling")
	}
	if s.RefreshMinInterval > 0 && s.RefreshMaxInterval < s.RefreshMinInterval {
		result.addWarning("schema.refresh_max_interval", "is below refresh_min_interval", "polling will use refresh_min_interval as a fixed interval")
	}
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port <= 0 || s.Port > 65535 {
		result.addError("server.port", fmt.Sprintf("invalid port %d", s.Port), "must be between 1 and 65535")
	}
	for field, value := range map[string]int64{
		"server.read_timeout":         int64(s.ReadTimeout),
		"server.write_timeout":        int64(s.WriteTimeout),
		"server.idle_timeout":         int64(s.IdleTimeout),
		"server.shutdown_timeout":     int64(s.ShutdownTimeout),
		"server.health_check_timeout": int64(s.HealthCheckTimeout),
	} {
		if value < 0 {
			result.addError(field, "cannot be negative", "")
		}
	}
	if s.GraphiQLEnabled {
		result.addWarning("server.graphiql_enabled", "GraphiQL is enabled", "disable it in production")
	}
	if s.AdminEndpointsEnabled {
		result.addWarning("server.admin_endpoints_enabled", "admin endpoints are not authenticated", "restrict access at the network layer")
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.addError("observability.logging.level", fmt.Sprintf("invalid log level %q", o.Logging.Level), "valid values are: debug, info, warn, error")
	}

	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.addError("observability.logging.format", fmt.Sprintf("invalid log format %q", o.Logging.Format), "valid values are: json, text")
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.addError("observability.trace_sample_ratio", fmt.Sprintf("invalid ratio %v", o.TraceSampleRatio), "must be between 0 and 1")
	}

	o.OTLP.validate("observability.otlp", result)
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.addError(prefix+".protocol", fmt.Sprintf("invalid OTLP protocol %q", o.Protocol), "valid values are: grpc, http/protobuf")
	}

	if o.Protocol == "http/protobuf" && !validOTLPEndpoint(o.Endpoint) {
		result.addError(prefix+".endpoint", fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint), "use host:port or a full URL")
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.addError(prefix+".compression", fmt.Sprintf("invalid OTLP compression %q", o.Compression), "valid values are: none, gzip")
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
