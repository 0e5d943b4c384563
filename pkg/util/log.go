package util

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the global logger instance
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetLevel(logrus.InfoLevel)
	Logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}

// SetLogLevel sets the logging level
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	Logger.SetLevel(lvl)
	return nil
}

// SetJSONFormat enables JSON log format
func SetJSONFormat() {
	Logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})
}

// Entry returns l, or an entry on the global Logger when l is nil.
// Components accept an optional *logrus.Entry so tests can inject a hooked logger.
func Entry(l *logrus.Entry) *logrus.Entry {
	if l != nil {
		return l
	}
	return logrus.NewEntry(Logger)
}

// WithDevice returns a logger with device context (the management console host)
func WithDevice(device string) *logrus.Entry {
	return Logger.WithField("device", device)
}

// WithTarget adds target context (a chassis module such as "server-3") to l,
// or to the global Logger when l is nil.
func WithTarget(l *logrus.Entry, target string) *logrus.Entry {
	return Entry(l).WithField("target", target)
}

// Warnf logs a formatted warning message
func Warnf(format string, args ...interface{}) {
	Logger.Warnf(format, args...)
}
