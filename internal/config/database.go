package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"table-graphql/internal/sqlutil"
)

// Dialect returns the parsed driver setting.
func (d *DatabaseConfig) Dialect() (sqlutil.Dialect, error) {
	return sqlutil.ParseDialect(d.Driver)
}

// ConnectionString returns the DSN handed to sql.Open. An explicit DSN wins;
// otherwise one is assembled from the discrete fields for the configured driver.
func (d *DatabaseConfig) ConnectionString() (string, error) {
	dialect, err := d.Dialect()
	if err != nil {
		return "", err
	}
	if dsn := strings.TrimSpace(d.DSN); dsn != "" {
		if dialect == sqlutil.DialectMySQL {
			return ensureMySQLParseTime(dsn)
		}
		return dsn, nil
	}

	switch dialect {
	case sqlutil.DialectMySQL:
		cfg := mysql.NewConfig()
		cfg.User = d.User
		cfg.Passwd = d.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
		cfg.DBName = d.Database
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	case sqlutil.DialectPostgres:
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
			Path:   "/" + d.Database,
		}
		if d.Password != "" {
			u.User = url.UserPassword(d.User, d.Password)
		} else if d.User != "" {
			u.User = url.User(d.User)
		}
		if d.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{d.SSLMode}}.Encode()
		}
		return u.String(), nil
	case sqlutil.DialectSQLite:
		return d.Database, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", d.Driver)
	}
}

// ensureMySQLParseTime makes DATETIME columns scan into time.Time.
func ensureMySQLParseTime(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// DatabaseName returns the database named by the config or embedded in its DSN.
func (d *DatabaseConfig) DatabaseName() string {
	if d.Database != "" || d.DSN == "" {
		return d.Database
	}
	dialect, err := d.Dialect()
	if err != nil {
		return ""
	}
	switch dialect {
	case sqlutil.DialectMySQL:
		if cfg, err := mysql.ParseDSN(d.DSN); err == nil {
			return cfg.DBName
		}
	case sqlutil.DialectPostgres:
		if u, err := url.Parse(d.DSN); err == nil {
			return strings.TrimPrefix(u.Path, "/")
		}
	}
	return ""
}

// IntrospectionSchema returns the catalog schema to read table metadata from.
func (c *Config) IntrospectionSchema() string {
	if c.Schema.Name != "" {
		return c.Schema.Name
	}
	dialect, err := c.Database.Dialect()
	if err != nil {
		return ""
	}
	switch dialect {
	case sqlutil.DialectPostgres:
		return "public"
	case sqlutil.DialectMySQL:
		return c.Database.DatabaseName()
	default:
		return ""
	}
}
