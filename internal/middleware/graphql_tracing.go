package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"table-graphql/internal/logging"
)

// GraphQLTracingMiddleware wraps GraphQL execution in a graphql.execute span and
// attaches the trace and span IDs to the request logger.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, ok := RequestInfoFromContext(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			tracer := otel.Tracer("table-graphql/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(requestSpanAttributes(info)...)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func requestSpanAttributes(info *RequestInfo) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("graphql.operation.type", info.OperationType),
		attribute.Int("graphql.document.depth", info.Depth),
	}
	if info.OperationName != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", info.OperationName))
	}
	if len(info.RootFields) > 0 {
		attrs = append(attrs, attribute.String("graphql.root_fields", strings.Join(info.RootFields, ",")))
	}
	return attrs
}
