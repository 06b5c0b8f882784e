package tracing

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
	flagdomain "github.com/smallbiznis/featureflags/internal/flag/domain"
	obscontext "github.com/smallbiznis/featureflags/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	routeParamFeatureKey  = "featureKey"
	queryParamEnvironment = "environment"
)

// MiddlewareConfig controls which requests get a server span.
type MiddlewareConfig struct {
	// SkipPaths are exact request paths that are never traced, such as the
	// health check and the scrape endpoint.
	SkipPaths []string
}

// GinMiddleware starts a server span per request and tags it with the flag
// scope and caller kind once the handlers have run.
func GinMiddleware(cfg MiddlewareConfig) gin.HandlerFunc {
	tracer := otel.Tracer(InstrumentationName + "/http")
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, path := range cfg.SkipPaths {
		if path = strings.TrimSpace(path); path != "" {
			skip[path] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		method := strings.ToUpper(c.Request.Method)
		ctx, span := tracer.Start(ctx, "HTTP "+method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			if member, err := baggage.NewMember("request_id", requestID); err == nil {
				if bag, err := baggage.New(member); err == nil {
					ctx = baggage.ContextWithBaggage(ctx, bag)
				}
			}
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + method + " " + route)
		span.SetAttributes(SafeAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
		)...)
		span.SetAttributes(requestAttributes(c)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
	}
}

// requestAttributes describes the flag being addressed and who asked. The
// environment is only recorded when it names a known environment so free
// text from the query string never becomes an attribute value.
func requestAttributes(c *gin.Context) []attribute.KeyValue {
	var attrs []attribute.KeyValue
	if key := strings.TrimSpace(c.Param(routeParamFeatureKey)); key != "" {
		attrs = append(attrs, attribute.String("feature_key", key))
	}
	if env, err := flagdomain.ParseEnvironment(c.Query(queryParamEnvironment)); err == nil {
		attrs = append(attrs, attribute.String("environment", env.String()))
	}
	if actor, ok := auditcontext.ActorFromContext(c.Request.Context()); ok {
		attrs = append(attrs,
			attribute.String("caller.type", actor.Type),
			attribute.String("caller.role", actor.Role),
		)
	}
	return SafeAttributes(attrs...)
}
