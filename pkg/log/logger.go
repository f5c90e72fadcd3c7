package log

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
)

// New creates the process logger. An unknown level falls back to info and is reported as an error
// so the caller can warn about it once the logger exists.
func New(level string, out io.Writer) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})
	logger.SetLevel(logrus.InfoLevel)

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		return logger, fmt.Errorf("invalid log level '%s', using 'info': %w", level, err)
	}
	logger.SetLevel(parsed)
	return logger, nil
}
