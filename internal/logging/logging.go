// Package logging builds the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is an alias so callers don't import logrus for structured fields.
type Fields = logrus.Fields

// Config controls logger construction.
type Config struct {
	Level  string // debug, info, warn, error
	Dir    string // rotating log file directory; empty disables file output
	Env    string // "test" disables file output
	Output io.Writer
}

// New creates a logger writing to stderr (or cfg.Output) and, outside tests,
// to a daily rotating file under cfg.Dir.
func New(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	logger.SetLevel(level)

	logger.SetFormatter(&formatter.Formatter{
		NoColors:        cfg.Output != nil,
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	var writers []io.Writer
	if cfg.Output != nil {
		writers = append(writers, cfg.Output)
	} else {
		writers = append(writers, os.Stderr)
	}

	if w := fileWriter(cfg); w != nil {
		writers = append(writers, w)
	}

	logger.SetOutput(io.MultiWriter(writers...))
	logger.SetReportCaller(true)

	return logger, nil
}

func fileWriter(cfg Config) io.Writer {
	if cfg.Dir == "" || cfg.Env == "test" {
		return nil
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, fmt.Sprintf("drowsewatch-%s.log", time.Now().Format("2006-01-02"))),
		LocalTime:  true,
		Compress:   true,
		MaxSize:    50,
		MaxAge:     7,
		MaxBackups: 3,
	}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
