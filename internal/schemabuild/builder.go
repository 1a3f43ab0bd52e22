// Package schemabuild runs the startup pipeline: load table metadata, build the
// GraphQL schema and wrap it in an HTTP handler.
package schemabuild

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"table-graphql/internal/dbexec"
	"table-graphql/internal/introspection"
	"table-graphql/internal/logging"
	"table-graphql/internal/resolver"
	"table-graphql/internal/sqlutil"
)

const (
	SourceDatabase = "database"
	SourceFile     = "file"
)

// Config defines inputs for schema assembly.
type Config struct {
	// Source is SourceDatabase or SourceFile.
	Source string
	File   string

	Queryer     introspection.Queryer
	Dialect     sqlutil.Dialect
	SchemaName  string
	Concurrency int

	Executor dbexec.Executor
	GraphiQL bool
	Logger   *logging.Logger
}

// Snapshot is the immutable result of a build.
type Snapshot struct {
	Schema      *graphql.Schema
	Handler     http.Handler
	DBSchema    *introspection.Schema
	BuiltAt     time.Time
	Fingerprint string
}

// LoadMetadata reads table metadata from the configured source.
func LoadMetadata(ctx context.Context, cfg Config) (*introspection.Schema, error) {
	switch cfg.Source {
	case SourceFile:
		return introspection.LoadFile(cfg.File)
	case SourceDatabase, "":
		if cfg.Queryer == nil {
			return nil, fmt.Errorf("schema builder requires an introspection queryer")
		}
		dbSchema, err := introspection.IntrospectDatabaseContext(ctx, cfg.Queryer, cfg.Dialect, cfg.SchemaName, introspection.Options{
			Concurrency: cfg.Concurrency,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to introspect database: %w", err)
		}
		return dbSchema, nil
	default:
		return nil, fmt.Errorf("unknown schema source %q", cfg.Source)
	}
}

// Build loads metadata and assembles a snapshot around a fresh resolver.
func Build(ctx context.Context, cfg Config) (*Snapshot, error) {
	if cfg.Executor == nil {
		return nil, fmt.Errorf("schema builder requires an executor")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.FromContext(ctx)
	}

	start := time.Now()
	dbSchema, err := LoadMetadata(ctx, cfg)
	if err != nil {
		return nil, err
	}

	for _, table := range dbSchema.Tables {
		logger.Debug("table discovered",
			slog.String("table", table.Name),
			slog.Int("columns", len(table.Columns)),
			slog.Int("foreign_keys", len(introspection.ForeignKeysOf(table))),
		)
	}

	graphqlSchema, err := resolver.NewResolver(cfg.Executor, dbSchema, resolver.NewRegistry()).BuildGraphQLSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	graphqlHandler := handler.New(&handler.Config{
		Schema:     &graphqlSchema,
		Pretty:     true,
		GraphiQL:   cfg.GraphiQL,
		Playground: false,
	})

	snapshot := &Snapshot{
		Schema:      &graphqlSchema,
		Handler:     graphqlHandler,
		DBSchema:    dbSchema,
		BuiltAt:     time.Now(),
		Fingerprint: Fingerprint(dbSchema),
	}

	relationships := dbSchema.RelationshipCount()
	logger.Info("schema snapshot built",
		slog.String("source", sourceOrDefault(cfg.Source)),
		slog.Int("tables", len(dbSchema.Tables)),
		slog.Int("forward_relationships", relationships),
		slog.Int("reverse_relationships", relationships),
		slog.String("fingerprint", snapshot.Fingerprint),
		slog.Duration("duration", time.Since(start)),
	)
	return snapshot, nil
}

func sourceOrDefault(source string) string {
	if source == "" {
		return SourceDatabase
	}
	return source
}

// Fingerprint hashes the table metadata so two builds over the same catalog
// can be recognised as identical.
func Fingerprint(dbSchema *introspection.Schema) string {
	hash := sha256.New()
	for _, table := range dbSchema.Tables {
		fmt.Fprintf(hash, "t:%s\n", table.Name)
		for _, col := range table.Columns {
			ref := ""
			if col.References != nil {
				ref = col.References.Table + "." + col.References.Column
			}
			fmt.Fprintf(hash, "c:%s|%s|%t|%t|%s\n",
				col.Name, strings.ToLower(col.DataType), col.IsNullable, col.IsPrimaryKey, ref)
		}
	}
	return hex.EncodeToString(hash.Sum(nil))[:16]
}
