// Package logging sets up the process-wide google/logger.
package logging

import (
	"io"

	"github.com/google/logger"
	"gopkg.in/natefinch/lumberjack.v2"

	"potledger/internal/config"
)

// Init installs the default logger. Log lines go to a rotating file when one
// is configured and to the console when verbose is set. The returned logger
// must be closed on shutdown.
func Init(name string, cfg config.Log) *logger.Logger {
	var out io.Writer = io.Discard
	if cfg.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
	}
	return logger.Init(name, cfg.Verbose, false, out)
}
