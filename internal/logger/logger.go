package logger

import (
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel string

const (
	LevelInfo    LogLevel = "INFO"
	LevelSuccess LogLevel = "SUCCESS"
	LevelWarning LogLevel = "WARNING"
	LevelError   LogLevel = "ERROR"
	LevelDebug   LogLevel = "DEBUG"
)

var (
	mu sync.Mutex

	errorLogger  *stdlog.Logger
	errorLogFile *os.File

	// Separate AI logger that doesn't write to the error log
	aiLogger  *stdlog.Logger
	aiLogFile *os.File

	debugEnabled = true
)

// Init opens error.log and ai.log inside dataDir. Until Init is called
// messages only go to the console.
func Init(dataDir string) error {
	mu.Lock()
	defer mu.Unlock()

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	closeFilesLocked()

	var err error
	errorLogFile, err = os.OpenFile(filepath.Join(dataDir, "error.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open error log: %w", err)
	}
	errorLogger = stdlog.New(errorLogFile, "", 0)

	aiLogFile, err = os.OpenFile(filepath.Join(dataDir, "ai.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open AI log: %w", err)
	}
	aiLogger = stdlog.New(aiLogFile, "", 0)

	setRunLogDir(filepath.Join(dataDir, "runs"))
	return nil
}

// SetDebug toggles console output of debug messages.
func SetDebug(enabled bool) {
	mu.Lock()
	debugEnabled = enabled
	mu.Unlock()
}

// CloseLogFile should be called during shutdown to properly close all log files
func CloseLogFile() {
	mu.Lock()
	defer mu.Unlock()
	closeFilesLocked()
	setRunLogDir("")
}

func closeFilesLocked() {
	if errorLogFile != nil {
		errorLogFile.Close()
		errorLogFile = nil
		errorLogger = nil
	}
	if aiLogFile != nil {
		aiLogFile.Close()
		aiLogFile = nil
		aiLogger = nil
	}
}

var colorMap = map[LogLevel]func(a ...interface{}) string{
	LevelInfo:    color.New(color.FgBlue).SprintFunc(),
	LevelSuccess: color.New(color.FgGreen).SprintFunc(),
	LevelWarning: color.New(color.FgYellow).SprintFunc(),
	LevelError:   color.New(color.FgRed).SprintFunc(),
	LevelDebug:   color.New(color.FgCyan).SprintFunc(),
}

func logMessage(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	mu.Lock()
	defer mu.Unlock()

	if level == LevelDebug && !debugEnabled {
		return
	}

	fmt.Println(colorMap[level](fmt.Sprintf("[%s] ", level)) + message)

	// Only errors and warnings go to error.log
	if level == LevelError || level == LevelWarning {
		if errorLogger != nil {
			errorLogger.Printf("[%s] %s: %s", level, timestamp, message)
		}
	}
}

func Infof(format string, args ...interface{}) {
	logMessage(LevelInfo, format, args...)
}

func Successf(format string, args ...interface{}) {
	logMessage(LevelSuccess, format, args...)
}

func Warnf(format string, args ...interface{}) {
	logMessage(LevelWarning, format, args...)
}

func Errorf(format string, args ...interface{}) {
	logMessage(LevelError, format, args...)
}

func Debugf(format string, args ...interface{}) {
	logMessage(LevelDebug, format, args...)
}

// AIDebugf logs conversation traces (inference rounds, tool calls) to ai.log
// instead of error.log.
func AIDebugf(format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")

	mu.Lock()
	defer mu.Unlock()

	if debugEnabled {
		fmt.Println(colorMap[LevelDebug]("[AI-DEBUG] ") + message)
	}
	if aiLogger != nil {
		aiLogger.Printf("[DEBUG] %s: %s", timestamp, message)
	}
}
