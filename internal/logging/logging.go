package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger.
var Log = logrus.New()

// SetLevel sets the level of Log. Trace and panic are not used.
func SetLevel(level string) error {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "", "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	case "fatal":
		Log.SetLevel(logrus.FatalLevel)
	default:
		return fmt.Errorf("unknown log level %q", level)
	}
	return nil
}

// SetFormat switches Log between text and json output.
func SetFormat(format string) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// For returns an entry tagged with the component name.
func For(component string) *logrus.Entry {
	return Log.WithField("component", component)
}
