package logging

import (
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ConsoleLogger writes text logs to stderr so stdout stays free for command output.
func ConsoleLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// FileLogger writes JSON logs to a rotating file at path, mirrored to stderr.
// The returned closer releases the file.
func FileLogger(level logrus.Level, path string) (io.Closer, *logrus.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
	}
	logger := logrus.New()
	logger.SetOutput(io.MultiWriter(os.Stderr, file))
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.JSONFormatter{})
	return file, logger, nil
}

// Nop discards everything.
func Nop() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}
