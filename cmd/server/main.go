package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	jwttoken "screening/internal/jwt_token"
	"screening/internal/platform/config"
	"screening/internal/platform/httpserver"
	"screening/internal/platform/kafka"
	"screening/internal/platform/logger"
	platformmetrics "screening/internal/platform/metrics"
	"screening/internal/platform/middleware"
	"screening/internal/platform/postgres"
	"screening/internal/platform/redis"
	"screening/internal/targeting/catchment"
	"screening/internal/targeting/commit"
	"screening/internal/targeting/eligibility"
	"screening/internal/targeting/events"
	"screening/internal/targeting/geocode"
	"screening/internal/targeting/handler"
	"screening/internal/targeting/metrics"
	"screening/internal/targeting/service"
	"screening/internal/targeting/store/areaunit"
	"screening/internal/targeting/store/clinic"
	"screening/internal/targeting/store/parameters"
	"screening/internal/targeting/store/resident"
	"screening/internal/targeting/store/schema"
	"screening/pkg/platform/circuit"
)

const (
	tokenIssuer   = "screening"
	tokenAudience = "targeting"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal/targeting.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Server.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

// stores groups the targeting persistence ports.
type stores struct {
	areas     catchment.AreaUnitPager
	residents interface {
		eligibility.PopulationReader
		commit.ResidentUpdater
	}
	clinics interface {
		commit.ClinicUpdater
		service.ClinicReader
	}
	params service.ParametersStore
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	targetingMetrics := metrics.NewWith(reg)
	httpMetrics := platformmetrics.NewHTTPWith(reg)

	db, err := postgres.Open(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}
	st, err := openStores(ctx, db, cfg.Targeting, log)
	if err != nil {
		return err
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if rdb != nil {
		defer rdb.Close()
	}
	geocoder, err := buildGeocoder(cfg, rdb, log, targetingMetrics)
	if err != nil {
		return err
	}

	kc, err := kafka.New(cfg.Kafka)
	if err != nil {
		return err
	}
	if kc != nil {
		defer kc.Close()
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.Topic, 3, 1); err != nil {
			log.Warn("kafka topic bootstrap failed", "topic", cfg.Kafka.Topic, "error", err)
		}
	}

	var opts []service.Option
	g, gctx := errgroup.WithContext(ctx)
	if kc != nil {
		publisher, err := events.NewKafkaPublisher(kc, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		if db != nil {
			outbox := events.NewOutboxStore(db)
			relay, err := events.NewRelay(outbox, publisher, events.WithRelayLogger(log))
			if err != nil {
				return err
			}
			g.Go(func() error {
				if err := relay.Run(gctx); err != nil && gctx.Err() == nil {
					return fmt.Errorf("outbox relay: %w", err)
				}
				return nil
			})
			opts = append(opts, service.WithPublisher(outbox))
		} else {
			opts = append(opts, service.WithPublisher(publisher))
		}
	}
	tcfg := cfg.PooledTargeting()
	if tcfg.QueryConcurrency < cfg.Targeting.QueryConcurrency || tcfg.CommitConcurrency < cfg.Targeting.CommitConcurrency {
		log.Info("targeting fan-out capped at database pool size",
			"query_concurrency", tcfg.QueryConcurrency,
			"commit_concurrency", tcfg.CommitConcurrency,
		)
	}
	svc, err := newService(tcfg, st, geocoder, log, targetingMetrics, opts...)
	if err != nil {
		return err
	}

	jwt := jwttoken.NewJWTService(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience)
	router := newRouter(svc, jwt, log, httpMetrics, reg, healthz(db, rdb))

	srv := httpserver.New(cfg.Server.Addr, router)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	return g.Wait()
}

func newService(cfg config.TargetingConfig, st stores, geocoder catchment.Geocoder, log *slog.Logger, m *metrics.Metrics, opts ...service.Option) (*service.Service, error) {
	resolver, err := catchment.New(geocoder, st.areas,
		catchment.WithLogger(log),
		catchment.WithMetrics(m),
		catchment.WithMaxRadius(cfg.MaxRadiusMiles),
		catchment.WithCallTimeout(cfg.StoreCallTimeout),
	)
	if err != nil {
		return nil, err
	}
	filter, err := eligibility.New(st.residents,
		eligibility.WithConcurrency(cfg.QueryConcurrency),
		eligibility.WithCallTimeout(cfg.StoreCallTimeout),
		eligibility.WithMaxFailureRatio(cfg.MaxFailureRatio),
		eligibility.WithLogger(log),
		eligibility.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	committer, err := commit.New(st.residents, st.clinics,
		commit.WithConcurrency(cfg.CommitConcurrency),
		commit.WithCallTimeout(cfg.StoreCallTimeout),
		commit.WithLogger(log),
		commit.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	opts = append([]service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithRandomSelection(cfg.RandomiseSelection),
		service.WithCallTimeout(cfg.StoreCallTimeout),
	}, opts...)
	return service.New(resolver, filter, committer, st.params, st.clinics, opts...)
}

// newRouter mounts the targeting API behind bearer auth. Health and metrics
// stay open.
func newRouter(svc handler.Service, validator middleware.JWTValidator, log *slog.Logger, m *platformmetrics.HTTP, gatherer prometheus.Gatherer, health http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Instrument(log, m))
	r.Get("/healthz", health)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(validator, log))
		handler.New(svc, log).Register(r)
	})
	return r
}

func openStores(ctx context.Context, db *sqlx.DB, cfg config.TargetingConfig, log *slog.Logger) (stores, error) {
	if db == nil {
		log.Warn("DATABASE_URL not set; using empty in-memory stores")
		return stores{
			areas:     areaunit.NewInMemoryStore(cfg.PageSize),
			residents: resident.NewInMemoryStore(),
			clinics:   clinic.NewInMemoryStore(),
			params:    parameters.NewInMemoryStore(parameters.Defaults),
		}, nil
	}
	if err := schema.EnsureSchema(ctx, db); err != nil {
		return stores{}, err
	}
	params := parameters.NewPostgresStore(db)
	if err := params.Seed(ctx, parameters.Defaults); err != nil {
		return stores{}, err
	}
	return stores{
		areas:     areaunit.NewPostgresStore(db, cfg.PageSize),
		residents: resident.NewPostgresStore(db),
		clinics:   clinic.NewPostgresStore(db),
		params:    params,
	}, nil
}

func buildGeocoder(cfg config.Config, rdb *redis.Client, log *slog.Logger, m *metrics.Metrics) (catchment.Geocoder, error) {
	breaker := circuit.New("postcodes",
		circuit.WithFailureThreshold(cfg.Geocoder.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.Geocoder.SuccessThreshold),
		circuit.WithCooldown(cfg.Geocoder.Cooldown),
	)
	client, err := geocode.NewClient(cfg.Geocoder.BaseURL, cfg.Geocoder.Timeout,
		geocode.WithBreaker(breaker),
		geocode.WithLogger(log),
		geocode.WithMetrics(m),
	)
	if err != nil {
		return nil, err
	}
	if rdb == nil {
		return client, nil
	}
	return geocode.NewCachedGeocoder(client, rdb.Client, cfg.Redis.GeocodeTTL,
		geocode.WithCacheLogger(log),
		geocode.WithCacheMetrics(m),
	)
}

func healthz(db *sqlx.DB, rdb *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if db != nil {
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "postgres unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		if rdb != nil {
			if err := rdb.Health(ctx); err != nil {
				http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
