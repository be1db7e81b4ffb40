// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logLevelEnv overrides the default log level when --log-level is not given
const logLevelEnv = "SCBS_LOG_LEVEL"

// logger is the process-wide logger, configured by setupLogging
var logger = zerolog.Nop()

// setupLogging builds the console logger on stderr. level falls back to
// SCBS_LOG_LEVEL, then "info".
func setupLogging(level string) error {
	if level == "" {
		level = os.Getenv(logLevelEnv)
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logger = newLogger(os.Stderr, lvl)
	log.Logger = logger
	return nil
}

func newLogger(w io.Writer, lvl zerolog.Level) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).Level(lvl).With().Timestamp().Str("app", "scbs").Logger()
}
