package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal"
	"github.com/mgiraudeau/vocagym/internal/config"
	"github.com/mgiraudeau/vocagym/internal/logging"
	"github.com/mgiraudeau/vocagym/pkg"
)

func main() {
	fmt.Println("starting ...")

	env := flag.String("env", "development", "environment [development | production]")
	configPath := flag.String("config", "./config.toml", "path for the TOML config file")
	flag.Parse()

	log.Warnf("---->> running in [%s] environment", *env)

	cfg, err := config.Load(*env, *configPath)
	if err != nil {
		panic(err)
	}

	sentryDSN := os.Getenv("SENTRY_DSN")
	logging.Setup(logging.LoggerSetupParams{
		LogFileName:   cfg.LogsPath,
		LogLevel:      cfg.LogLevel,
		LogToStdout:   cfg.LogToStdout,
		Environment:   cfg.Environment,
		SentryEnabled: cfg.SentryEnabled,
		SentryDSN:     sentryDSN,
	})

	log.Debugf("using port: %d", cfg.Port)
	log.Debugf("using server logs path: [%s]", cfg.LogsPath)

	completionAPIKey := os.Getenv("VOCAGYM_COMPLETION_API_KEY")
	if completionAPIKey == "" {
		log.Errorf("completion API key not set, use VOCAGYM_COMPLETION_API_KEY env var to set it")
	}

	redisPassword := os.Getenv("VOCAGYM_REDIS_PASS")
	if redisPassword == "" {
		log.Errorf("redis password not set. use VOCAGYM_REDIS_PASS")
	}

	tracingEnabled := cfg.TracingEnabled
	if tracingEnabled {
		if honeycombApiKey := os.Getenv("HONEYCOMB_API_KEY"); honeycombApiKey == "" {
			log.Warnln("HONEYCOMB_API_KEY env var not set")
		}
		if otelServiceName := os.Getenv("OTEL_SERVICE_NAME"); otelServiceName == "" {
			log.Warnln("OTEL_SERVICE_NAME env var not set")
		}
	} else {
		log.Debugln("tracing disabled")
	}

	versionInfo, err := tryGetLastCommitHash()
	if err != nil {
		log.Tracef("failed to get last commit hash / version info: %s", err)
	} else {
		log.Tracef("running version: %s", versionInfo)
	}

	chOsInterrupt := make(chan os.Signal, 1)
	signal.Notify(chOsInterrupt, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	server, err := internal.NewServer(ctx, internal.NewServerParams{
		Config:           cfg,
		VersionInfo:      versionInfo,
		RedisPassword:    redisPassword,
		CompletionAPIKey: completionAPIKey,
		TracingEnabled:   tracingEnabled,
	})
	if err != nil {
		log.Fatalf("new server: %s", err)
	}

	server.Serve(cfg.Host, cfg.Port)

	receivedSig := <-chOsInterrupt
	log.Warnf("signal [%s] received, killing everything ...", receivedSig)
	cancel()

	server.GracefulShutdown()
}

// tryGetLastCommitHash will try to get the last commit hash
// assumes that the built main executable is in project root
func tryGetLastCommitHash() (string, error) {
	cmd := exec.Command("/usr/bin/git", "rev-parse", "HEAD")
	stdout, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return pkg.BytesToString(stdout), nil
}
