package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fuzzyrestaurants/finder/internal/api/handlers"
	"github.com/fuzzyrestaurants/finder/internal/api/middleware"
	"github.com/fuzzyrestaurants/finder/internal/catalog"
	"github.com/fuzzyrestaurants/finder/internal/config"
	"github.com/fuzzyrestaurants/finder/internal/geocoding"
	"github.com/fuzzyrestaurants/finder/internal/observability"
	"github.com/fuzzyrestaurants/finder/internal/recommend"
	"github.com/fuzzyrestaurants/finder/internal/repository"
	"github.com/fuzzyrestaurants/finder/internal/service"
)

// App holds all server dependencies and coordinates startup and shutdown.
type App struct {
	cfg            *config.Config
	db             *pgxpool.Pool
	server         *http.Server
	meterProvider  *observability.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	queryEmbedder  *service.QueryEmbedder
}

// NewApp builds and wires all components. It does not start the HTTP server;
// call Run to start and block until shutdown or failure.
func NewApp(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	app := &App{cfg: cfg}

	// Release whatever was created before a later step failed.
	defer func() {
		if err != nil {
			if closeErr := app.closeResources(context.Background()); closeErr != nil {
				slog.Error("release resources after startup error", "error", closeErr)
			}
		}
	}()

	app.meterProvider, err = observability.NewMeterProvider(ctx, observability.MeterProviderConfig{
		ServiceName: cfg.ServiceName,
		Exporter:    cfg.OtelMetricsExporter,
	})
	if err != nil {
		return nil, fmt.Errorf("create meter provider: %w", err)
	}

	if app.meterProvider == nil {
		slog.Warn("metrics not enabled (OTEL_METRICS_EXPORTER empty or unset)")
	} else {
		otel.SetMeterProvider(app.meterProvider.Provider)
	}

	metrics, err := observability.NewMetrics(app.meterProvider.MeterOrNil())
	if err != nil {
		return nil, fmt.Errorf("create metrics: %w", err)
	}

	app.tracerProvider, err = observability.NewTracerProvider(ctx, cfg.ServiceName, cfg.OtelTracesExporter)
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	if app.tracerProvider == nil {
		slog.Warn("tracing not enabled (OTEL_TRACES_EXPORTER empty or unset)")
	} else {
		otel.SetTracerProvider(app.tracerProvider)
	}

	embeddingClient, err := service.NewEmbeddingClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	cat, err := app.loadCatalog(ctx, embeddingClient.Model())
	if err != nil {
		return nil, err
	}

	slog.Info("Catalog loaded",
		"restaurants", cat.Len(),
		"cities", len(cat.Cities()),
		"dimension", cat.Dimension(),
		"model", embeddingClient.Model(),
	)

	queryEmbedder, err := service.NewQueryEmbedder(service.QueryEmbedderParams{
		Client:           embeddingClient,
		DefaultUtterance: cfg.DefaultUtterance,
		CacheSize:        cfg.QueryCacheSize,
		CacheTTL:         cfg.QueryCacheTTL,
		Metrics:          metrics.Cache,
	})
	if err != nil {
		return nil, fmt.Errorf("create query embedder: %w", err)
	}

	app.queryEmbedder = queryEmbedder

	geocoder, err := geocoding.NewStack(geocoding.StackParams{
		Cities: cat.Cities(),
		Nominatim: geocoding.NominatimOptions{
			BaseURL:   cfg.GeocoderURL,
			UserAgent: cfg.GeocoderUserAgent,
			RateLimit: cfg.GeocoderRateLimit,
			Timeout:   cfg.GeocoderTimeout,
			Metrics:   metrics.Geocoder,
		},
		CacheSize:    cfg.GeocoderCacheSize,
		CacheMetrics: metrics.Cache,
	})
	if err != nil {
		return nil, err
	}

	recommender, err := recommend.NewRecommender(recommend.RecommenderParams{
		Catalog:       cat,
		Geocoder:      geocoder,
		Embedder:      queryEmbedder,
		NearestCities: cfg.NearestCities,
		TopK:          cfg.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("create recommender: %w", err)
	}

	recommendService := service.NewRecommendService(service.RecommendServiceParams{
		Recommender: recommender,
		Metrics:     metrics.Recommend,
	})
	catalogService := service.NewCatalogService(cat)

	app.server = newHTTPServer(cfg, serverDeps{
		health:          handlers.NewHealthHandler(func() bool { return catalogService.Count() > 0 }),
		recommendations: handlers.NewRecommendationsHandler(recommendService),
		catalog:         handlers.NewCatalogHandler(catalogService),
		metricsHandler:  app.metricsHandler(),
		apiMetrics:      metrics.API,
		tracerProvider:  app.tracerProvider,
		meterProvider:   app.meterProvider,
	})

	return app, nil
}

func (a *App) metricsHandler() http.Handler {
	if a.meterProvider == nil {
		return nil
	}

	return a.meterProvider.Handler
}

// loadCatalog reads the catalog from the dataset file or from Postgres.
func (a *App) loadCatalog(ctx context.Context, model string) (*catalog.Catalog, error) {
	var src catalog.Source

	switch a.cfg.CatalogSource {
	case config.CatalogSourcePostgres:
		db, err := repository.Open(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}

		a.db = db
		src = catalog.NewPostgresSource(repository.NewRestaurantsRepository(db), model)
	default:
		src = catalog.NewFileSource(a.cfg.CatalogPath)
	}

	cat, err := catalog.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	return cat, nil
}

type serverDeps struct {
	health          *handlers.HealthHandler
	recommendations *handlers.RecommendationsHandler
	catalog         *handlers.CatalogHandler
	// metricsHandler serves /metrics when the Prometheus exporter is enabled.
	metricsHandler http.Handler
	apiMetrics     observability.APIMetrics
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *observability.MeterProvider
}

// newHTTPServer builds the HTTP server and router (no auth on /health and /metrics, API key on /v1).
// Handler chain: RequestID -> otelhttp(Logging(router)) so access logs get trace_id/span_id from context.
func newHTTPServer(cfg *config.Config, deps serverDeps) *http.Server {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.Get("/health", deps.health.Check)

	if deps.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.metricsHandler)
	}

	r.Route("/v1", func(r chi.Router) {
		// Limit before auth so unauthenticated floods are throttled too.
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow, deps.apiMetrics))
		r.Use(middleware.Auth(cfg.APIKey))
		r.Use(middleware.MaxBody(cfg.MaxRequestBodyBytes, deps.apiMetrics))

		r.Post("/recommendations", deps.recommendations.Create)
		r.Get("/recommendations", deps.recommendations.Get)
		r.Get("/cities", deps.catalog.ListCities)
		r.Get("/cuisines", deps.catalog.ListCuisines)
	})

	otelOpts := []otelhttp.Option{
		// Skip tracing and HTTP metrics for health checks and scrapes.
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	}
	if deps.meterProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithMeterProvider(deps.meterProvider.Provider))
	}

	if deps.tracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(deps.tracerProvider))
	}

	inner := middleware.Logging(r)
	handler := otelhttp.NewHandler(inner, "finder-api", otelOpts...)
	handler = middleware.RequestID(handler)

	const (
		readTimeout  = 15 * time.Second
		writeTimeout = 30 * time.Second
		idleTimeout  = 60 * time.Second
	)

	return &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}

// Run starts the HTTP server and blocks until ctx is cancelled (e.g. signal)
// or the server fails. Caller should then call Shutdown.
func (a *App) Run(ctx context.Context) error {
	runErr := make(chan error, 1)

	go func() {
		slog.Info("Starting server", "port", a.cfg.Port)

		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr <- fmt.Errorf("server: %w", err)
		}
	}()

	select {
	case err := <-runErr:
		return err
	case <-ctx.Done():
		return nil
	}
}

// closeResources shuts down observability and closes the database pool.
// Logs secondary errors, returns the first.
func (a *App) closeResources(ctx context.Context) error {
	var first error

	if a.tracerProvider != nil {
		if err := observability.ShutdownTracerProvider(ctx, a.tracerProvider); err != nil {
			first = err
		}
	}

	if err := a.meterProvider.Shutdown(ctx); err != nil {
		if first == nil {
			first = err
		} else {
			slog.Error("shutdown meter provider", "error", err)
		}
	}

	if a.db != nil {
		a.db.Close()
	}

	return first
}

// Shutdown stops the server, then observability and the database pool.
// Call after Run returns.
func (a *App) Shutdown(ctx context.Context) (err error) {
	defer func() {
		closeErr := a.closeResources(ctx)
		if err == nil {
			err = closeErr
		} else if closeErr != nil {
			slog.Error("shutdown observability", "error", closeErr)
		}
	}()

	if err = a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server shutdown: %w", err)
	}

	if a.queryEmbedder != nil {
		slog.Info("Query embedding cache", "stats", a.queryEmbedder.CacheStats())
	}

	return nil
}
