package internal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

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

	"github.com/mgiraudeau/vocagym/internal/auth"
	"github.com/mgiraudeau/vocagym/internal/catalog"
	"github.com/mgiraudeau/vocagym/internal/config"
	"github.com/mgiraudeau/vocagym/internal/db"
	"github.com/mgiraudeau/vocagym/internal/detect"
	"github.com/mgiraudeau/vocagym/internal/middleware"
	"github.com/mgiraudeau/vocagym/internal/performance"
	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
	"github.com/mgiraudeau/vocagym/internal/telemetry/tracing"
	"github.com/mgiraudeau/vocagym/internal/users"
	"github.com/mgiraudeau/vocagym/internal/wall"
	"github.com/mgiraudeau/vocagym/internal/workouts"
	"github.com/mgiraudeau/vocagym/pkg"
)

type Server struct {
	httpServer        *http.Server
	metricsHttpServer *http.Server
	versionInfo       string

	config *config.Config
	dbPool *pgxpool.Pool

	redisClient *redis.Client
	authService *auth.Service

	usersRepo    *users.Repo
	workoutsRepo *workouts.Repo
	catalogSvc   *catalog.Service
	detector     *detect.Detector

	// telemetry
	metricsManager *metrics.Manager
	promRegistry   *prometheus.Registry
	otelShutdown   func()
}

type NewServerParams struct {
	Config           *config.Config
	VersionInfo      string
	RedisPassword    string
	CompletionAPIKey string
	TracingEnabled   bool
}

func NewServer(ctx context.Context, params NewServerParams) (*Server, error) {
	dbPool, err := db.NewDBPool(ctx, db.NewDBPoolParams{
		DBHost:         params.Config.PostgresHost,
		DBPort:         params.Config.PostgresPort,
		DBName:         params.Config.PostgresDBName,
		TracingEnabled: params.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("new db pool: %w", err)
	}

	pgxpoolCollector := pgxpoolprometheus.NewCollector(
		dbPool,
		map[string]string{"db_name": "vocagym_db"},
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

	sessionTTL := time.Duration(params.Config.SessionTTLDays) * 24 * time.Hour
	authService := auth.NewService(sessionTTL, rdb)
	go func() {
		for range time.Tick(time.Hour * 8) {
			authService.ScanAndClean(ctx)
		}
	}()

	// use honeycomb distro to setup OpenTelemetry SDK
	otelShutdown, err := tracing.HoneycombSetup(params.TracingEnabled, "vocagym-backend", rdb)
	if err != nil {
		return nil, err
	}

	completionClient, err := detect.NewCompletionClient(
		params.Config.CompletionAPIURL,
		params.CompletionAPIKey,
		params.Config.CompletionModel,
	)
	if err != nil {
		return nil, fmt.Errorf("new completion client: %w", err)
	}

	catalogSvc := catalog.NewService(catalog.NewRepo(dbPool))

	return &Server{
		config:       params.Config,
		dbPool:       dbPool,
		versionInfo:  params.VersionInfo,
		redisClient:  rdb,
		authService:  authService,
		usersRepo:    users.NewRepo(dbPool),
		workoutsRepo: workouts.NewRepo(dbPool),
		catalogSvc:   catalogSvc,
		detector:     detect.NewDetector(completionClient, catalogSvc),

		metricsManager: metricsManager,
		promRegistry:   promRegistry,
		otelShutdown:   otelShutdown,
	}, nil
}

func (s *Server) routerSetup() *mux.Router {
	r := mux.NewRouter()
	r.Use(otelmux.Middleware("vocagym-router"))

	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, "I'm all ears (vocagym)")
	}).Methods("GET", "OPTIONS")
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		pkg.WriteTextResponseOK(w, s.versionInfo)
	}).Methods("GET", "OPTIONS")

	usersHandler := users.NewHandler(s.usersRepo, s.authService, s.metricsManager)
	r.HandleFunc("/auth/register", usersHandler.HandleRegister).Methods("POST", "OPTIONS").Name("register")
	r.HandleFunc("/auth/check-username", usersHandler.HandleCheckUsername).Methods("GET", "OPTIONS").Name("check-username")
	r.HandleFunc("/auth/login", usersHandler.HandleLogin).Methods("POST", "OPTIONS").Name("login")
	r.HandleFunc("/auth/logout", usersHandler.HandleLogout).Methods("POST", "OPTIONS").Name("logout")
	r.HandleFunc("/me/profile", usersHandler.HandleGetProfile).Methods("GET", "OPTIONS").Name("get-profile")
	r.HandleFunc("/me/profile", usersHandler.HandleUpdateProfile).Methods("PATCH", "OPTIONS").Name("update-profile")
	r.HandleFunc("/me/weight", usersHandler.HandleAddWeightEntry).Methods("POST", "OPTIONS").Name("add-weight-entry")

	catalogHandler := catalog.NewHandler(s.catalogSvc)
	r.HandleFunc("/exercises", catalogHandler.HandleList).Methods("GET", "OPTIONS").Name("list-exercises")

	detectHandler := detect.NewHandler(s.detector, s.metricsManager)
	r.HandleFunc("/detect", detectHandler.HandleDetect).Methods("POST", "OPTIONS").Name("detect-exercise")

	workoutsHandler := workouts.NewHandler(s.workoutsRepo, s.metricsManager)
	r.HandleFunc("/sessions", workoutsHandler.HandleCreate).Methods("POST", "OPTIONS").Name("new-session")
	r.HandleFunc("/sessions", workoutsHandler.HandleList).Methods("GET", "OPTIONS").Name("list-sessions")
	r.HandleFunc("/sessions/{id}", workoutsHandler.HandleGet).Methods("GET", "OPTIONS").Name("get-session")
	r.HandleFunc("/sessions/{id}", workoutsHandler.HandleUpdate).Methods("PUT", "OPTIONS").Name("update-session")
	r.HandleFunc("/sessions/{id}", workoutsHandler.HandleDelete).Methods("DELETE", "OPTIONS").Name("delete-session")

	performanceHandler := performance.NewHandler(
		performance.NewAnalyzer(s.workoutsRepo, s.usersRepo, s.catalogSvc),
	)
	r.HandleFunc("/performance", performanceHandler.HandleGet).Methods("GET", "OPTIONS").Name("performance")

	wallHandler := wall.NewHandler(
		wall.NewBuilder(s.usersRepo, s.workoutsRepo, s.catalogSvc),
	)
	r.HandleFunc("/gg/{username}", wallHandler.HandleGet).Methods("GET", "OPTIONS").Name("public-wall")

	// all the rest - unhandled paths
	r.HandleFunc("/{unknown}", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}).Methods("GET", "POST", "PUT", "OPTIONS").Name("unknown")

	reqRateLimiter := redis_rate.NewLimiter(s.redisClient)

	r.Use(middleware.PanicRecovery(s.metricsManager))
	r.Use(middleware.LogRequest())
	r.Use(middleware.RequestMetrics(s.metricsManager))
	r.Use(middleware.Cors())
	r.Use(middleware.LoginRateLimit(reqRateLimiter, s.metricsManager, s.config.LoginRateLimitAllowedPerMin))
	r.Use(middleware.AuthMiddleware(s.authService))
	r.Use(middleware.DrainAndCloseRequest())

	return r
}

func (s *Server) Serve(host string, port int) {
	router := s.routerSetup()

	ipAndPort := net.JoinHostPort(host, strconv.Itoa(port))
	s.httpServer = &http.Server{
		Handler:      router,
		Addr:         ipAndPort,
		WriteTimeout: time.Minute,
		ReadTimeout:  time.Minute,
	}

	metricsRouter := mux.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.HandlerFor(
		s.promRegistry,
		promhttp.HandlerOpts{},
	))
	metricsAddr := net.JoinHostPort(
		s.config.PrometheusMetricsHost,
		strconv.Itoa(s.config.PrometheusMetricsPort),
	)
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

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown http server")
		}
	}
	log.Warnln("server shut down")

	if s.metricsHttpServer != nil {
		if err := s.metricsHttpServer.Shutdown(ctx); err != nil {
			log.Error(" >>> failed to gracefully shutdown metrics http server")
		}
	}
	log.Warnln("metrics server shut down")
}
