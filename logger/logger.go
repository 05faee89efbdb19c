// Package logger configures the process-wide structured logger.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Level     string // debug, info, warn, error
	File      string // optional log file; rotation via lumberjack
	MaxSizeMB int    // rotate threshold, default 50
}

// Setup configures the standard logrus logger and returns it. When a file is
// configured, output goes to both stderr and the rotating file.
func Setup(opts Options) *logrus.Logger {
	log := logrus.StandardLogger()

	level, err := logrus.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	if opts.File != "" {
		maxSize := opts.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		rotating := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    maxSize,
			MaxBackups: 3,
			Compress:   true,
		}
		log.SetOutput(io.MultiWriter(os.Stderr, rotating))
	}

	return log
}

// Component returns an entry tagged with the subsystem name.
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}
