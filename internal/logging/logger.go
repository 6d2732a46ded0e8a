package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/mgiraudeau/vocagym/pkg"
)

type LoggerSetupParams struct {
	LogFileName   string
	LogLevel      string
	LogToStdout   bool
	Environment   string
	SentryEnabled bool
	SentryDSN     string
}

// Setup sets up the global logrus logger. If LogFileName is empty,
// logs go to stdout only, otherwise to a rotated file (optionally
// combined with stdout). With sentry enabled, error-and-above entries
// get forwarded there too.
func Setup(params LoggerSetupParams) {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, err := log.ParseLevel(strings.ToLower(params.LogLevel))
	if err != nil {
		fmt.Printf("failed to parse log level [%s], falling back to debug: %s\n", params.LogLevel, err)
		level = log.DebugLevel
	}
	log.SetLevel(level)

	if params.SentryEnabled {
		sentryHook, err := NewSentryHook(params.Environment, params.SentryDSN)
		if err != nil {
			fmt.Printf("failed to setup sentry hook: %s\n", err)
		} else {
			log.AddHook(sentryHook)
		}
	}

	logFileName := strings.TrimSpace(params.LogFileName)
	if logFileName == "" {
		log.SetOutput(os.Stdout)
		return
	}

	if !filepath.IsAbs(logFileName) {
		wd, err := os.Getwd()
		if err != nil {
			panic(fmt.Sprintf("logging setup, get working dir: %s", err))
		}
		logFileName = filepath.Join(wd, logFileName)
	}

	rotatedWriter := &lumberjack.Logger{
		Filename:   logFileName,
		MaxSize:    50, // megabytes
		MaxBackups: 3,
		MaxAge:     30, // days
		Compress:   true,
	}

	var output io.Writer = rotatedWriter
	if params.LogToStdout {
		output = pkg.NewCombinedWriter(os.Stdout, rotatedWriter)
	}
	log.SetOutput(output)
}
