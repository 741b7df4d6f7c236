package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/GlintPay/gkps/aggregator"
	"github.com/GlintPay/gkps/api"
	"github.com/GlintPay/gkps/backend/kube"
	"github.com/GlintPay/gkps/backend/setup"
	"github.com/GlintPay/gkps/config"
	"github.com/GlintPay/gkps/filetypes"
	"github.com/GlintPay/gkps/health"
	"github.com/GlintPay/gkps/logging"
	"github.com/GlintPay/gkps/metrics"
	"github.com/GlintPay/gkps/utils"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httplog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"
)

const serviceName = "gkps"

var envConfig = config.Configuration{}

func main() {
	if err := env.Parse(&envConfig); err != nil {
		log.Fatal().Msgf("Configuration loading failed: %+v", err)
	}

	appConfig := config.ApplicationConfiguration{}
	readConfig(envConfig.ApplicationConfigFileYmlPath, &appConfig)
	envConfig.Apply(&appConfig)

	// httplog resets the global level, so ours is applied afterwards
	requestLogger := httplog.NewLogger(serviceName, httplog.Options{JSON: true, Concise: true, LogLevel: levelOrDefault(appConfig.Logging.Level)})
	logging.Setup(os.Stdout, appConfig.Logging.Level)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	////////////////////////////////////////////

	recorder := metrics.NewRecorder(prometheus.DefaultRegisterer)

	agg := aggregator.New(
		aggregator.WithName(serviceName),
		aggregator.WithObserver(recorder),
		aggregator.WithPlaceholders(appConfig.Application.ResolvePlaceholders),
	)

	decoding := filetypes.Options{Profiles: appConfig.Application.Profiles, Decrypter: filetypes.SopsDecrypter{}}

	var client *kube.Client
	if appConfig.Kubernetes.Client.Enabled {
		c, err := kube.NewClient(appConfig.Kubernetes.Client, kube.WithDecoding(decoding))
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("Kubernetes client setup failed")
		}
		client = c
	}

	loader := setup.New(setup.FromConfig(appConfig), client, decoding, setup.WithFetchObserver(recorder))
	if err := loader.Load(ctx, agg); err != nil {
		log.Fatal().Stack().Err(err).Msg("Loading property sources failed")
	}
	log.Info().Msgf("Property sources: %s", agg.Current().Precedence())

	if err := loader.StartReload(ctx, agg); err != nil {
		log.Fatal().Stack().Err(err).Msg("Reload setup failed")
	}

	greeter, err := api.NewGreeter(agg)
	if err != nil {
		log.Fatal().Stack().Err(err).Msg("Binding greetings failed")
	}
	defer greeter.Close()

	////////////////////////////////////////////

	traceShutdown, e := setupTracing(ctx, appConfig)
	if e != nil {
		log.Fatal().Stack().Err(e).Msg("Trace setup failed")
	}
	defer traceShutdown()

	router := setupRouter(appConfig, agg, greeter, &requestLogger)
	setupHealthCheck(router, agg)

	////////////////////////////////////////////

	if appConfig.Server.Port == 0 {
		appConfig.Server.Port = 80
	}
	server := &http.Server{Addr: fmt.Sprintf(":%d", appConfig.Server.Port), Handler: router}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		return server.Shutdown(context.Background())
	})

	if err := g.Wait(); err != nil {
		log.Fatal().Stack().Err(err).Msg("startup failed")
	}
}

func readConfig(filePath string, config *config.ApplicationConfiguration) {
	yamlFile, err := os.ReadFile(filePath)
	if err == nil {
		log.Debug().Msgf("Loading YAML config from %s", utils.FriendlyFileName(filePath))
		err = yaml.Unmarshal(yamlFile, config)
		if err != nil {
			log.Fatal().Stack().Err(err).Msg("Unmarshal")
		}
	} else {
		log.Printf("No config file found: %s", utils.FriendlyFileName(filePath))
	}
}

func levelOrDefault(level string) string {
	if _, err := zerolog.ParseLevel(level); err != nil || level == "" {
		return "info"
	}
	return level
}

var emptyShutdown = func() {}

func setupTracing(ctx context.Context, config config.ApplicationConfiguration) (func(), error) {
	if !config.Tracing.Enabled {
		return emptyShutdown, nil
	}

	if config.Tracing.Endpoint == "" {
		return emptyShutdown, fmt.Errorf("missing tracing endpoint")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
		),
	)
	if err != nil {
		return emptyShutdown, fmt.Errorf("failed to create resource: %w", err)
	}

	traceExporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithInsecure(),
		otlptracehttp.WithEndpoint(config.Tracing.Endpoint),
	)
	if err != nil {
		return emptyShutdown, fmt.Errorf("failed to create trace exporter %v", err)
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(config.Tracing.SamplerFraction)),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)),
	)
	otel.SetTracerProvider(tracerProvider)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info().Msgf("OpenTelemetry export is enabled, to: %s", config.Tracing.Endpoint)

	return func() {
		if err = tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error().Stack().Err(err).Msg("failed to shutdown TracerProvider")
		}
	}, nil
}

func setupRouter(config config.ApplicationConfiguration, agg *aggregator.Aggregator, greeter *api.Greeter, requestLogger *zerolog.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.StripSlashes)

	routing := api.Routing{
		ServerName:   serviceName,
		ParentRouter: router,

		AppConfig:     config,
		Aggregator:    agg,
		Greeter:       greeter,
		RequestLogger: requestLogger,
	}

	router.Route("/", func(r chi.Router) {
		if e := routing.SetupFunctionalRoutes(r); e != nil {
			log.Fatal().Stack().Err(e).Msg("route setup failed")
		}
	})

	if len(config.Prometheus.Path) > 0 {
		log.Info().Msgf("Registering metrics endpoint at: %s", config.Prometheus.Path)
		router.Handle(config.Prometheus.Path, promhttp.Handler())
	}

	return router
}

func setupHealthCheck(router *chi.Mux, agg *aggregator.Aggregator) {
	healthChk := health.New(
		health.WithChiMux(router),
		health.WithReadinessCheck("property-sources", health.SourcesHealthy(agg)),
	)
	healthChk.StartListening()
}
