package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/featureflags/internal/auditcontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func newTracedEngine(cfg MiddlewareConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(cfg))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/flags/:featureKey/evaluate", func(c *gin.Context) {
		ctx := auditcontext.WithActor(c.Request.Context(), auditcontext.Actor{
			Type: auditcontext.ActorTypeAPIKey,
			ID:   "42",
			Role: "API_CLIENT",
		})
		c.Request = c.Request.WithContext(ctx)
		c.Status(http.StatusOK)
	})
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	return r
}

func attributeMap(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := map[attribute.Key]string{}
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsEvaluateSpan(t *testing.T) {
	recorder := recordSpans(t)
	r := newTracedEngine(MiddlewareConfig{})

	req := httptest.NewRequest(http.MethodGet, "/api/flags/checkout/evaluate?environment=prod&userId=alice", nil)
	req.Header.Set("X-API-Key", "fk_secret")
	r.ServeHTTP(httptest.NewRecorder(), req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP GET /api/flags/:featureKey/evaluate", spans[0].Name())

	attrs := attributeMap(spans[0])
	assert.Equal(t, "checkout", attrs["feature_key"])
	assert.Equal(t, "PROD", attrs["environment"])
	assert.Equal(t, "api_key", attrs["caller.type"])
	assert.Equal(t, "API_CLIENT", attrs["caller.role"])
	assert.Equal(t, "200", attrs["http.status_code"])
	assert.NotContains(t, attrs, attribute.Key("x-api-key"))
	assert.NotContains(t, attrs, attribute.Key("userId"))
}

func TestGinMiddlewareOmitsUnknownEnvironment(t *testing.T) {
	recorder := recordSpans(t)
	r := newTracedEngine(MiddlewareConfig{})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/flags/checkout/evaluate?environment=qa", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotContains(t, attributeMap(spans[0]), attribute.Key("environment"))
}

func TestGinMiddlewareSkipsConfiguredPaths(t *testing.T) {
	recorder := recordSpans(t)
	r := newTracedEngine(MiddlewareConfig{SkipPaths: []string{"/health", " "}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, recorder.Ended())
}

func TestGinMiddlewareMarksServerErrors(t *testing.T) {
	recorder := recordSpans(t)
	r := newTracedEngine(MiddlewareConfig{})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}
