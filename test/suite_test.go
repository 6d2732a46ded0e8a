package test

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/suite"

	"github.com/mgiraudeau/vocagym/internal"
	"github.com/mgiraudeau/vocagym/internal/config"
)

const (
	serverPort = 9000
	serverHost = "127.0.0.1"
)

var serverEndpoint = fmt.Sprintf("http://%s:%d", serverHost, serverPort)

// IntegrationTestSuite boots the whole backend against throwaway
// redis and postgres containers, plus a fake completion API, and
// exercises it over HTTP.
type IntegrationTestSuite struct {
	suite.Suite

	DB             *pgxpool.Pool
	dockerPool     *dockertest.Pool
	server         *internal.Server
	completionsAPI *httptest.Server
	teardown       []func()
}

func TestIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(IntegrationTestSuite))
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()
	fmt.Println("setting up test suite...")

	s.teardown = make([]func(), 0)

	var err error
	s.dockerPool, err = dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}

	if err = s.dockerPool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	redisPort, err := s.redisSetup()
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup redis: %s", err)
	}
	fmt.Println("redis setup successful")

	pgPort, err := s.postgresSetup(ctx)
	if err != nil {
		s.cleanup()
		log.Fatalf("failed to setup postgres: %s", err)
	}
	fmt.Println("postgres setup successful")

	// canned completion API: always detects a 5x80kg squat
	s.completionsAPI = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant",
			"content": "{\"exerciseName\": \"Squat\", \"reps\": 5, \"weight\": 80, \"confidence\": 0.9}"}}]}`))
	}))
	s.teardown = append(s.teardown, s.completionsAPI.Close)

	cfg := s.getTestConfig(redisPort, pgPort)
	s.server, err = internal.NewServer(ctx, internal.NewServerParams{
		Config:           cfg,
		VersionInfo:      "test-version-info",
		RedisPassword:    "",
		CompletionAPIKey: "test-completion-key",
		TracingEnabled:   false,
	})
	if err != nil {
		s.cleanup()
		log.Fatalf("new server: %s", err)
	}
	fmt.Println("server created")

	s.server.Serve(cfg.Host, cfg.Port)
	fmt.Println("server started")
}

func (s *IntegrationTestSuite) TearDownSuite() {
	s.cleanup()
}

func (s *IntegrationTestSuite) cleanup() {
	fmt.Println(" --> cleaning up test suite...")
	if s.DB != nil {
		s.DB.Close()
	}
	if s.server != nil {
		s.server.GracefulShutdown()
	}
	for _, teardown := range s.teardown {
		teardown()
	}
	fmt.Println(" --> test suite cleanup done")
}

func (s *IntegrationTestSuite) getTestConfig(redisPort, postgresPort string) *config.Config {
	return &config.Config{
		Host:                        serverHost,
		Port:                        serverPort,
		Environment:                 "development",
		LogLevel:                    "trace",
		LogToStdout:                 true,
		RedisHost:                   "localhost",
		RedisPort:                   redisPort,
		PostgresHost:                "localhost",
		PostgresPort:                postgresPort,
		PostgresDBName:              "vocagym",
		PrometheusMetricsHost:       "localhost",
		PrometheusMetricsPort:       9001,
		LoginRateLimitAllowedPerMin: 100,
		CompletionAPIURL:            s.completionsAPI.URL,
		CompletionModel:             "mistral-small-latest",
		SessionTTLDays:              7,
	}
}

func (s *IntegrationTestSuite) redisSetup() (string, error) {
	redisResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "redis",
		Name:       "redis-vocagym-test",
		Tag:        "6.2",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
	})
	if err != nil {
		return "", fmt.Errorf("run redis: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := redisResource.Close(); err != nil {
			fmt.Printf("redis teardown: %s\n", err)
		}
	})

	return redisResource.GetPort("6379/tcp"), nil
}

func (s *IntegrationTestSuite) postgresSetup(ctx context.Context) (string, error) {
	pgResource, err := s.dockerPool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "12",
		Env: []string{
			"POSTGRES_USER=postgres",
			"POSTGRES_DB=vocagym",
			"POSTGRES_HOST_AUTH_METHOD=trust",
		},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{
			Name: "no",
		}
	})
	if err != nil {
		return "", fmt.Errorf("dockerpool run postgres: %s", err)
	}

	s.teardown = append(s.teardown, func() {
		if err := pgResource.Close(); err != nil {
			fmt.Printf("postgres teardown: %s\n", err)
		}
	})

	pgPort := pgResource.GetPort("5432/tcp")
	dsn := fmt.Sprintf(
		"postgres://postgres@localhost:%s/vocagym?sslmode=disable",
		pgPort,
	)
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return "", fmt.Errorf("parse db config: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return "", fmt.Errorf("create connection pool: %w", err)
	}
	s.DB = db

	if err := s.dockerPool.Retry(func() error {
		return db.Ping(ctx)
	}); err != nil {
		panic(fmt.Errorf("connect to db: %s", err))
	}

	res, err := db.Exec(ctx, initSQL)
	if err != nil {
		return "", fmt.Errorf("run init script: %s", err)
	}

	log.Printf("postgres setup result: %d\n", res.RowsAffected())

	return pgPort, nil
}

const initSQL = `
CREATE TABLE public.users
(
    id              SERIAL PRIMARY KEY,
    username        VARCHAR NOT NULL UNIQUE,
    email           VARCHAR NOT NULL UNIQUE,
    password_hash   VARCHAR NOT NULL,
    display_name    VARCHAR NOT NULL,
    gender          VARCHAR NOT NULL,
    height          DOUBLE PRECISION NOT NULL,
    birth_date      TIMESTAMPTZ NOT NULL,
    profile_public  BOOLEAN NOT NULL DEFAULT FALSE,
    pr_exercise_ids INTEGER[] NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE public.users OWNER TO postgres;
CREATE UNIQUE INDEX ix_users_username_lower ON public.users (LOWER(username));
CREATE UNIQUE INDEX ix_users_email_lower ON public.users (LOWER(email));

CREATE TABLE public.weight_entry
(
    id          SERIAL PRIMARY KEY,
    user_id     INTEGER NOT NULL REFERENCES public.users (id) ON DELETE CASCADE,
    weight      DOUBLE PRECISION NOT NULL,
    measured_at TIMESTAMPTZ NOT NULL
);

ALTER TABLE public.weight_entry OWNER TO postgres;
CREATE INDEX ix_weight_entry_user ON public.weight_entry (user_id, measured_at);

CREATE TABLE public.exercise
(
    id            SERIAL PRIMARY KEY,
    name          VARCHAR NOT NULL UNIQUE,
    name_en       VARCHAR,
    name_fr       VARCHAR,
    name_it       VARCHAR,
    name_es       VARCHAR,
    name_nl       VARCHAR,
    description   VARCHAR,
    muscle_groups TEXT[] NOT NULL DEFAULT '{}'
);

ALTER TABLE public.exercise OWNER TO postgres;

CREATE TABLE public.workout_session
(
    id         SERIAL PRIMARY KEY,
    user_id    INTEGER NOT NULL REFERENCES public.users (id) ON DELETE CASCADE,
    name       VARCHAR NOT NULL DEFAULT 'Workout',
    date       TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

ALTER TABLE public.workout_session OWNER TO postgres;
CREATE INDEX ix_workout_session_user ON public.workout_session (user_id, date DESC);

CREATE TABLE public.workout_set
(
    id          SERIAL PRIMARY KEY,
    session_id  INTEGER NOT NULL REFERENCES public.workout_session (id) ON DELETE CASCADE,
    exercise_id INTEGER NOT NULL REFERENCES public.exercise (id),
    reps        INTEGER NOT NULL,
    weight      DOUBLE PRECISION NOT NULL,
    ord         INTEGER NOT NULL DEFAULT 0
);

ALTER TABLE public.workout_set OWNER TO postgres;
CREATE INDEX ix_workout_set_session ON public.workout_set (session_id, ord);

INSERT INTO public.exercise (name, name_en, name_fr, name_it, name_es, name_nl, muscle_groups) VALUES
    ('Bench Press', 'Bench Press', 'Développé couché', 'Panca piana', 'Press de banca', 'Bankdrukken', '{chest,triceps}'),
    ('Squat', 'Squat', 'Squat', 'Squat', 'Sentadilla', 'Squat', '{quads,glutes}'),
    ('Deadlift', 'Deadlift', 'Soulevé de terre', 'Stacco da terra', 'Peso muerto', 'Deadlift', '{back,hamstrings}');
`
