package source

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync/atomic"
)

// Level represents log severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var currentLevel atomic.Int32

var baseLogger = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)

func init() { currentLevel.Store(int32(LevelInfo)) }

// SetLogLevel parses and sets the global log level. Unknown strings are
// ignored so a typo on the command line never silences logging.
func SetLogLevel(s string) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		currentLevel.Store(int32(LevelDebug))
	case "info":
		currentLevel.Store(int32(LevelInfo))
	case "warn", "warning":
		currentLevel.Store(int32(LevelWarn))
	case "error":
		currentLevel.Store(int32(LevelError))
	}
}

// GetLogLevel returns the current global log level.
func GetLogLevel() Level { return Level(currentLevel.Load()) }

func logf(l Level, prefix, format string, args ...interface{}) {
	if GetLogLevel() > l {
		return
	}
	if len(args) == 0 {
		// Treat as a plain message so literal % survives.
		baseLogger.Printf("[%s] %s", prefix, format)
		return
	}
	baseLogger.Printf("[%s] %s", prefix, fmt.Sprintf(format, args...))
}

// Public helpers
func Debugf(format string, a ...interface{}) { logf(LevelDebug, "DEBUG", format, a...) }
func Infof(format string, a ...interface{})  { logf(LevelInfo, "INFO", format, a...) }
func Warnf(format string, a ...interface{})  { logf(LevelWarn, "WARN", format, a...) }
func Errorf(format string, a ...interface{}) { logf(LevelError, "ERROR", format, a...) }
