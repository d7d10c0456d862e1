// Package logx is a thin, level-gated wrapper around logrus. It mirrors the
// call-site shape of this codebase's older util/logger package
// (Debugf/Infof/Warnf/Errorf) while emitting structured fields, and is
// configured once at process start from the LOG_LEVEL environment
// variable.
package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

const logLevelEnv = "LOG_LEVEL"

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level, present := os.LookupEnv(logLevelEnv)
	if !present {
		log.SetLevel(logrus.InfoLevel)
		return
	}

	switch level {
	case "NONE":
		log.SetLevel(logrus.PanicLevel) // effectively silent for Warn/Info/Debug
	case "WARN":
		log.SetLevel(logrus.WarnLevel)
	case "INFO":
		log.SetLevel(logrus.InfoLevel)
	case "DEBUG":
		log.SetLevel(logrus.DebugLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("unknown %s value %q, defaulting to INFO", logLevelEnv, level)
	}
}

// Fields is a re-export of logrus.Fields so callers don't need to import
// logrus directly for structured logging.
type Fields = logrus.Fields

// Errorf logs the message at logrus's fatal level and terminates the
// process with exit status 1. Use only
// for unrecoverable startup failures (spec.md §6/§7).
func Errorf(format string, args ...any) {
	log.Fatalf(format, args...)
}

// Warnf logs a warning-level message.
func Warnf(format string, args ...any) {
	log.Warnf(format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	log.Infof(format, args...)
}

// Debugf logs a debug message.
func Debugf(format string, args ...any) {
	log.Debugf(format, args...)
}

// WithFields returns a structured entry for callers that want to attach
// key/value context (originator, sequence, destination, attempts, ...) to a
// single log line, matching the log.WithFields(...) idiom used throughout
// this codebase's routing-adjacent packages.
func WithFields(fields Fields) *logrus.Entry {
	return log.WithFields(fields)
}
