package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/gymtracker/internal/cache"
	"github.com/2beens/gymtracker/internal/config"
	"github.com/2beens/gymtracker/internal/db"
	"github.com/2beens/gymtracker/internal/exercises"
	"github.com/2beens/gymtracker/internal/measurements"
	"github.com/2beens/gymtracker/internal/middleware"
	"github.com/2beens/gymtracker/internal/telemetry/metrics"
	"github.com/2beens/gymtracker/internal/telemetry/tracing"
	"github.com/2beens/gymtracker/internal/users"
	"github.com/2beens/gymtracker/internal/videostore"
	"github.com/2beens/gymtracker/internal/workouts"

	"github.com/IBM/pgxpoolprometheus"
	"github.com/getsentry/sentry-go"
	"github.com/go-redis/redis/v8"
	"github.com/go-redis/redis_rate/v9"
	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

type Server struct {
	config      *config.Config
	dbPool      *pgxpool.Pool
	redisClient *redis.Client
	rateLimiter *redis_rate.Limiter
	videos      *videostore.Store

	httpServer        *http.Server
	metricsHttpServer *http.Server

	// metrics
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config                  *config.Config
	RedisPassword           string
	HoneycombTracingEnabled bool
}

func NewServer(
	ctx context.Context,
	params NewServerParams,
) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.HoneycombTracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	if err := dbPool.Ping(ctx); err != nil {
		log.Warnf("failed to ping db: %s", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": params.Config.PostgresDBName},
	)
	promRegistry := metrics.SetupPrometheus(pgxpoolCollector)
	metricsManager := metrics.NewManager("backend", "main", promRegistry)
	metricsManager.GaugeLifeSignal.Set(0)

	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(params.Config.RedisHost, params.Config.RedisPort),
		Password: params.RedisPassword,
		DB:       0, // use default DB
	})

	rdbStatus := rdb.Ping(ctx)
	if err := rdbStatus.Err(); err != nil {
		log.Errorf("--> failed to ping redis: %s", err)
	} else {
		log.Debugf("redis ping: %s", rdbStatus.Val())
	}

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.HoneycombTracingEnabled, "gymtracker-backend")
	if err != nil {
		return nil, err
	}

	videos, err := videostore.NewStore(params.Config.VideosRootPath)
	if err != nil {
		return nil, fmt.Errorf("new video store: %w", err)
	}

	return &Server{
		config:      params.Config,
		dbPool:      dbPool,
		redisClient: rdb,
		rateLimiter: redis_rate.NewLimiter(rdb),
		videos:      videos,

		// telemetry
		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("main-router"))

	// writes go through the rate limiter, reads do not
	rateLimit := middleware.RateLimit(
		s.rateLimiter,
		"mutations",
		s.config.MutationRateLimitAllowedPerMin,
		s.metricsManager,
	)
	limited := func(next http.HandlerFunc) http.Handler {
		return rateLimit(next)
	}

	usersHandler := users.NewHandler(users.NewRepo(s.dbPool))
	r.HandleFunc("/api/users", usersHandler.HandleList).Methods("GET", "OPTIONS").Name("list-users")
	r.HandleFunc("/api/users/{id}", usersHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-user")
	r.Handle("/api/users/{id}", limited(usersHandler.HandleUpdate)).Methods("PUT", "OPTIONS").Name("update-user")

	exercisesRepo := exercises.NewRepo(s.dbPool)
	exercisesCatalog := exercises.NewCatalog(exercisesRepo)
	exercisesHandler := exercises.NewHandler(exercisesRepo, exercisesCatalog, s.videos, s.metricsManager)
	r.HandleFunc("/api/exercises", exercisesHandler.HandleList).Methods("GET", "OPTIONS").Name("list-exercises")
	r.HandleFunc("/api/exercises/{id}", exercisesHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-exercise")
	r.Handle("/api/exercises", limited(exercisesHandler.HandleAdd)).Methods("POST", "OPTIONS").Name("new-exercise")
	r.Handle("/api/exercises/{id}", limited(exercisesHandler.HandleUpdate)).Methods("PUT", "OPTIONS").Name("update-exercise")
	r.Handle("/api/exercises/{id}", limited(exercisesHandler.HandleDelete)).Methods("DELETE", "OPTIONS").Name("delete-exercise")

	statsCache := cache.NewStatsCache(s.redisClient)

	workoutsRepo := workouts.NewRepo(s.dbPool)
	workoutsAnalyzer := workouts.NewAnalyzer(workoutsRepo, exercisesCatalog)
	workoutsHandler := workouts.NewHandler(workoutsRepo, workoutsAnalyzer, statsCache, s.metricsManager)
	r.HandleFunc("/api/workouts/user/{userId}", workoutsHandler.HandleListForUser).Methods("GET", "OPTIONS").Name("list-workouts")
	r.HandleFunc("/api/workouts/user/{userId}/max-weights", workoutsHandler.HandleMaxWeights).Methods("GET", "OPTIONS").Name("workouts-max-weights")
	r.HandleFunc("/api/workouts/{id}", workoutsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-workout")
	r.Handle("/api/workouts", limited(workoutsHandler.HandleAdd)).Methods("POST", "OPTIONS").Name("new-workout")
	r.Handle("/api/workouts/{id}", limited(workoutsHandler.HandleUpdate)).Methods("PUT", "OPTIONS").Name("update-workout")
	r.Handle("/api/workouts/{id}", limited(workoutsHandler.HandleDelete)).Methods("DELETE", "OPTIONS").Name("delete-workout")

	measurementsRepo := measurements.NewRepo(s.dbPool)
	measurementsAnalyzer := measurements.NewAnalyzer(measurementsRepo)
	measurementsHandler := measurements.NewHandler(measurementsRepo, measurementsAnalyzer, statsCache, s.metricsManager)
	r.HandleFunc("/api/measurements/user/{userId}", measurementsHandler.HandleListForUser).Methods("GET", "OPTIONS").Name("list-measurements")
	r.HandleFunc("/api/measurements/user/{userId}/stats", measurementsHandler.HandleStats).Methods("GET", "OPTIONS").Name("measurements-stats")
	r.HandleFunc("/api/measurements/{id}", measurementsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-measurement")
	r.Handle("/api/measurements", limited(measurementsHandler.HandleAdd)).Methods("POST", "OPTIONS").Name("new-measurement")
	r.Handle("/api/measurements/{id}", limited(measurementsHandler.HandleUpdate)).Methods("PUT", "OPTIONS").Name("update-measurement")
	r.Handle("/api/measurements/{id}", limited(measurementsHandler.HandleDelete)).Methods("DELETE", "OPTIONS").Name("delete-measurement")

	r.HandleFunc("/uploads/videos/{name}", s.handleServeVideo).Methods("GET", "OPTIONS").Name("serve-video")

	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

// handleServeVideo serves stored exercise videos to <video> tags.
func (s *Server) handleServeVideo(w http.ResponseWriter, r *http.Request) {
	videoPath, err := s.videos.Path(mux.Vars(r)["name"])
	if err != nil {
		http.Error(w, "error, invalid video name", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, videoPath)
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
		ConnState:    s.connStateMetrics,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(s.config.PrometheusMetricsHost, s.config.PrometheusMetricsPort)
	s.metricsHttpServer = &http.Server{
		Addr:    metricsAddr,
		Handler: metricsRouter,
	}

	go func() {
		log.Infof(" > server listening on: [%s]", ipAndPort)
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("main service, listen and serve: %s", err)
		}
	}()

	go func() {
		log.Debugf(" > metrics listening on: [%s]", metricsAddr)
		err := s.metricsHttpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("metrics service, listen and serve: %s", err)
		}
	}()

	s.metricsManager.GaugeLifeSignal.Set(1)
}

func (s *Server) GracefulShutdown() {
	log.Debug("graceful shutdown initiated ...")

	s.metricsManager.GaugeLifeSignal.Set(0)

	s.otelShutdown()
	log.Trace("otel shut down ...")

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			log.Errorf("failed to close redis client conn: %s", err)
		}
	}

	if s.dbPool != nil {
		log.Debugln("closing db pool ...")
		s.dbPool.Close() // blocking operation
		log.Debugln("db pool closed")
	}

	if ok := sentry.Flush(5 * time.Second); ok {
		log.Debugf("sentry flush ok: %t", ok)
	}

	maxWaitDuration := time.Second * 15
	ctx, timeoutCancel := context.WithTimeout(context.Background(), maxWaitDuration)
	defer timeoutCancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown http server")
	}
	log.Warnln("server shut down")

	if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
		log.Error(" >>> failed to gracefully shutdown metrics http server")
	}
	log.Warnln("metrics server shut down")
}

func (s *Server) connStateMetrics(_ net.Conn, state http.ConnState) {
	switch state {
	case http.StateNew:
		s.metricsManager.GaugeRequests.Add(1)
	case http.StateClosed:
		s.metricsManager.GaugeRequests.Add(-1)
	default:
		// do nothing
	}
}
