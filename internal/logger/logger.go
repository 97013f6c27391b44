// internal/logger/logger.go
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/claimdesk-backend/internal/config"
)

// New builds the process logger. Every entry carries the application and
// environment so log lines from the API and the CLI can be told apart.
func New(cfg config.LogConfig, application, environment string) logrus.FieldLogger {
	return NewWithOutput(os.Stderr, cfg, application, environment)
}

func NewWithOutput(out io.Writer, cfg config.LogConfig, application, environment string) logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(out)

	if cfg.Format == "text" {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		l.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
		l.WithField("level", cfg.Level).Warn("Unknown log level, using info")
	}
	l.SetLevel(level)

	return l.WithFields(logrus.Fields{
		"application": application,
		"environment": environment,
	})
}
