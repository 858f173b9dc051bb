package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

var logger = log.New()

func init() {
	logger.Out = output(os.Getenv("ENV"))
	logger.Formatter = &log.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
	}
	logger.SetLevel(log.DebugLevel)
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		if lvl, err := log.ParseLevel(v); err == nil {
			logger.SetLevel(lvl)
		}
	}
}

// output picks stdout unless LOG_TO_FILE=true in stage/prod, in which case a
// dated file under ./logs is used.
func output(env string) io.Writer {
	if os.Getenv("LOG_TO_FILE") != "true" {
		return os.Stdout
	}
	if env != "stage" && env != "prod" && env != "" {
		return os.Stdout
	}
	cwd, err := os.Getwd()
	if err != nil {
		return os.Stdout
	}
	logsDir := filepath.Join(cwd, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		log.Warnf("Failed to create logs directory %s: %v, falling back to stdout", logsDir, err)
		return os.Stdout
	}
	filePath := filepath.Join(logsDir, fmt.Sprintf("%s%s.log", time.Now().Format("2006-01-02"), env))
	f, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		log.Warnf("Failed to open log file %s: %v, falling back to stdout", filePath, err)
		return os.Stdout
	}
	return f
}

// SetOutput redirects the shared logger, mainly for tests.
func SetOutput(w io.Writer) { logger.Out = w }

func GetLogger() *log.Entry {
	function, file, line, _ := runtime.Caller(1)
	functionObject := runtime.FuncForPC(function)
	name := ""
	if functionObject != nil {
		name = functionObject.Name()
	}
	return logger.WithFields(log.Fields{
		"requestId": time.Now().UnixNano() / int64(time.Millisecond),
		"function":  name,
		"file":      file,
		"line":      line,
	})
}
