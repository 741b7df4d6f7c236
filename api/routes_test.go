package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/config"
	"github.com/GlintPay/gkps/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

var traceServerName = fmt.Sprintf("server-%d", rand.Int())

func Test_routesSecretsScenario(t *testing.T) {
	agg := aggregator.New()
	require.NoError(t, agg.Register(aggregator.PropertySource{
		Name:    "secret.demo.default",
		Order:   100,
		Entries: map[string]string{"bean.greeting": "Hello Secret, %s!"},
	}))

	router := setUpRouter(t, agg, config.ApplicationConfiguration{})

	tests := []ExampleRequest{
		{
			method:     "GET",
			url:        "/api/greeting",
			statusCode: 200,
			jsonOutput: `{"id":1,"content":"Hello Secret, World!"}`,
		},
		{
			method:     "GET",
			url:        "/api/greeting?name=Alice",
			statusCode: 200,
			jsonOutput: `{"id":2,"content":"Hello Secret, Alice!"}`,
		},
		{
			method:     "GET",
			url:        "/api/farewell",
			statusCode: 200,
			jsonOutput: `{"id":1,"content":"Goodbye, World!"}`,
		},
		{
			method:     "GET",
			url:        "/api/morning?pretty=true",
			statusCode: 200,
			jsonOutput: `{
  "id": 1,
  "content": "Good morning, World!"
}`,
		},
		{
			method:     "GET",
			url:        "/xxxxx",
			statusCode: 404,
			jsonOutput: `404 page not found`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			validateRequest(t, tt, router)
		})
	}
}

func Test_routesPathsScenario(t *testing.T) {
	agg := aggregator.New()
	require.NoError(t, agg.Register(aggregator.PropertySource{
		Name:  "file:/tmp/scktests/application-path.yaml",
		Order: 500,
		Entries: map[string]string{
			"bean.greeting": "Hello from path!",
			"bean.farewell": "Bye from path!",
		},
	}))

	router := setUpRouter(t, agg, config.ApplicationConfiguration{})

	tests := []ExampleRequest{
		{method: "GET", url: "/api/greeting", statusCode: 200, jsonOutput: `{"id":1,"content":"Hello from path!"}`},
		{method: "GET", url: "/api/farewell", statusCode: 200, jsonOutput: `{"id":1,"content":"Bye from path!"}`},
		{method: "GET", url: "/api/morning", statusCode: 200, jsonOutput: `{"id":1,"content":"Good morning, World!"}`},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			validateRequest(t, tt, router)
		})
	}
}

func Test_routesMixedScenario(t *testing.T) {
	agg := mixedAggregator(t)
	router := setUpRouter(t, agg, config.ApplicationConfiguration{})

	tests := []ExampleRequest{
		{method: "GET", url: "/api/greeting", statusCode: 200, jsonOutput: `{"id":1,"content":"Hello ConfigMap, World from path"}`},
		{method: "GET", url: "/api/farewell", statusCode: 200, jsonOutput: `{"id":1,"content":"Bye ConfigMap, World from path"}`},
		{method: "GET", url: "/api/morning", statusCode: 200, jsonOutput: `{"id":1,"content":"Buenos Dias ConfigMap, World"}`},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			validateRequest(t, tt, router)
		})
	}
}

func Test_routesApiSourceWinsOverPath(t *testing.T) {
	agg := mixedAggregator(t)
	require.NoError(t, agg.OnSourceChanged("configmap.demo.default", map[string]string{
		"bean.greeting": "Hello ConfigMap, %s",
		"bean.morning":  "Buenos Dias ConfigMap, %s",
	}))

	router := setUpRouter(t, agg, config.ApplicationConfiguration{})

	tests := []ExampleRequest{
		{method: "GET", url: "/api/greeting", statusCode: 200, jsonOutput: `{"id":1,"content":"Hello ConfigMap, World"}`},
		{method: "GET", url: "/api/farewell", statusCode: 200, jsonOutput: `{"id":1,"content":"Bye ConfigMap, World from path"}`},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			validateRequest(t, tt, router)
		})
	}
}

func Test_render(t *testing.T) {
	assert.Equal(t, "Hello from path!", render("Hello from path!", "World"))
	assert.Equal(t, "Hello, Alice!", render("Hello, %s!", "Alice"))
}

func Test_routesFollowChanges(t *testing.T) {
	agg := aggregator.New()
	require.NoError(t, agg.Register(aggregator.PropertySource{
		Name:    "configmap.demo.default",
		Order:   300,
		Entries: map[string]string{"bean.greeting": "Hello, %s!"},
	}))

	router := setUpRouter(t, agg, config.ApplicationConfiguration{})
	validateRequest(t, ExampleRequest{method: "GET", url: "/api/greeting", statusCode: 200, jsonOutput: `{"id":1,"content":"Hello, World!"}`}, router)

	require.NoError(t, agg.OnSourceChanged("configmap.demo.default", map[string]string{"bean.greeting": "Howdy, %s!"}))
	validateRequest(t, ExampleRequest{method: "GET", url: "/api/greeting", statusCode: 200, jsonOutput: `{"id":2,"content":"Howdy, World!"}`}, router)

	require.NoError(t, agg.OnSourceChanged("configmap.demo.default", map[string]string{}))
	validateRequest(t, ExampleRequest{method: "GET", url: "/api/greeting", statusCode: 200, jsonOutput: `{"id":3,"content":"Hello, World!"}`}, router)
}

func Test_routesEnv(t *testing.T) {
	agg := mixedAggregator(t)
	require.NoError(t, agg.Register(aggregator.PropertySource{Name: "secret.broken.default", Order: 100}))
	require.NoError(t, agg.OnSourceFailed("secret.broken.default", errors.New("bad yaml")))

	router := setUpRouter(t, agg, config.ApplicationConfiguration{})

	validateRequest(t, ExampleRequest{
		method:     "GET",
		url:        "/actuator/env",
		statusCode: 200,
		jsonOutput: `{"precedence":["configmap.demo.default","file:/tmp/scktests/application-path.yaml"],` +
			`"properties":{"bean.farewell":{"value":"Bye ConfigMap, %s from path","source":"file:/tmp/scktests/application-path.yaml"},` +
			`"bean.greeting":{"value":"Hello ConfigMap, %s from path","source":"file:/tmp/scktests/application-path.yaml"},` +
			`"bean.morning":{"value":"Buenos Dias ConfigMap, %s","source":"configmap.demo.default"}},` +
			`"degraded":["secret.broken.default"]}`,
		headers: http.Header{
			"Content-Type":                          []string{"application/json"},
			"X-Resolution-Precedencedisplaymessage": []string{"configmap.demo.default > file:/tmp/scktests/application-path.yaml"},
		},
	}, router)
}

func Test_routesTraceEnabled(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tracerProvider := sdktrace.NewTracerProvider()
	tracerProvider.RegisterSpanProcessor(sr)
	otel.SetTracerProvider(tracerProvider)

	router := setUpRouter(t, mixedAggregator(t), config.ApplicationConfiguration{
		Tracing: config.Tracing{Enabled: true},
	})

	validateRequest(t, ExampleRequest{
		method:     "GET",
		url:        "/api/greeting?name=Bob",
		statusCode: 200,
		jsonOutput: `{"id":1,"content":"Hello ConfigMap, Bob from path"}`,
	}, router)

	require.Len(t, sr.Ended(), 2)

	assertSpan(t, sr.Ended()[0],
		"greeting",
		trace.SpanKindServer,
		[]attribute.KeyValue{}...,
	)

	assertSpan(t, sr.Ended()[1],
		"/api/greeting",
		trace.SpanKindServer,
		[]attribute.KeyValue{}...,
	)

	// the handler span is a child of the router span
	assert.Equal(t, sr.Ended()[1].SpanContext().SpanID(), sr.Ended()[0].Parent().SpanID())
}

func Test_routesTraceMisconfigured(t *testing.T) {
	routing := Routing{
		AppConfig:  config.ApplicationConfiguration{Tracing: config.Tracing{Enabled: true}},
		Aggregator: aggregator.New(),
	}
	greeter, err := NewGreeter(routing.Aggregator)
	require.NoError(t, err)
	routing.Greeter = greeter

	assert.EqualError(t, routing.SetupFunctionalRoutes(chi.NewRouter()), "OTel not configured")
	assert.Error(t, (&Routing{}).SetupFunctionalRoutes(chi.NewRouter()))
}

func Test_routesResponseLoggingEnabled(t *testing.T) {
	var str bytes.Buffer
	logging.Setup(&str, "debug")
	defer logging.Setup(io.Discard, "info")

	router := setUpRouter(t, mixedAggregator(t), config.ApplicationConfiguration{
		Logging: config.Logging{LogResponses: true},
	})

	validateRequest(t, ExampleRequest{
		method:     "GET",
		url:        "/api/morning",
		statusCode: 200,
		jsonOutput: `{"id":1,"content":"Buenos Dias ConfigMap, World"}`,
	}, router)

	assert.Contains(t, str.String(), `Response: {\"id\":1`)
}

func Test_routesResponseErrorsLogged(t *testing.T) {
	var str bytes.Buffer
	logging.Setup(&str, "info")
	defer logging.Setup(io.Discard, "info")

	routing := Routing{}
	rr := httptest.NewRecorder()
	routing.handleOutput(rr, errors.New("cannot render greeting"), nil)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, `{"message":"cannot render greeting"}`, strings.TrimSpace(rr.Body.String()))

	logOutput := str.String()
	assert.Contains(t, logOutput, "cannot render greeting")
	assert.Contains(t, logOutput, "api/routes.go") // caller
}

func Test_overrideBooleanDefault(t *testing.T) {
	assert.True(t, overrideBooleanDefault("TRUE", false))
	assert.False(t, overrideBooleanDefault("false", true))
	assert.True(t, overrideBooleanDefault("", true))
	assert.False(t, overrideBooleanDefault("yes", false))
}

func mixedAggregator(t *testing.T) *aggregator.Aggregator {
	agg := aggregator.New()
	require.NoError(t, agg.Register(aggregator.PropertySource{
		Name:  "configmap.demo.default",
		Order: 300,
		Entries: map[string]string{
			"bean.morning": "Buenos Dias ConfigMap, %s",
		},
	}))
	require.NoError(t, agg.Register(aggregator.PropertySource{
		Name:  "file:/tmp/scktests/application-path.yaml",
		Order: 500,
		Entries: map[string]string{
			"bean.greeting": "Hello ConfigMap, %s from path",
			"bean.farewell": "Bye ConfigMap, %s from path",
		},
	}))
	return agg
}

func validateRequest(t *testing.T, tt ExampleRequest, router http.Handler) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(tt.method, tt.url, nil)

	router.ServeHTTP(rr, req)

	assert.Equal(t, tt.statusCode, rr.Code)
	assert.Equal(t, tt.jsonOutput, strings.TrimSpace(rr.Body.String()))

	if tt.headers != nil {
		assert.Equal(t, tt.headers, rr.Header())
	}
}

func setUpRouter(t *testing.T, agg *aggregator.Aggregator, appConfig config.ApplicationConfiguration) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)

	greeter, err := NewGreeter(agg)
	require.NoError(t, err)
	t.Cleanup(greeter.Close)

	routing := Routing{
		ServerName:   traceServerName,
		ParentRouter: router,

		AppConfig:  appConfig,
		Aggregator: agg,
		Greeter:    greeter,
	}

	router.Route("/", func(r chi.Router) {
		err := routing.SetupFunctionalRoutes(r)
		assert.NoError(t, err)
	})
	return router
}

type ExampleRequest struct {
	method     string
	url        string
	statusCode int
	jsonOutput string
	headers    http.Header
}

func assertSpan(t *testing.T, span sdktrace.ReadOnlySpan, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) {
	assert.Equal(t, name, span.Name())
	assert.Equal(t, kind, span.SpanKind())

	got := make(map[attribute.Key]attribute.Value, len(span.Attributes()))
	for _, a := range span.Attributes() {
		got[a.Key] = a.Value
	}
	for _, want := range attrs {
		if !assert.Contains(t, got, want.Key) {
			continue
		}
		assert.Equal(t, got[want.Key], want.Value)
	}
}
