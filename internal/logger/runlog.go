package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// runLogger keeps one transcript file per evaluation run under
// <data_dir>/runs/<date>/<run id>.log.
type runLogger struct {
	baseDir  string
	logFiles map[string]*os.File
	mutex    sync.Mutex
}

var runLog = &runLogger{logFiles: make(map[string]*os.File)}

// setRunLogDir enables run transcripts below dir. An empty dir disables them.
func setRunLogDir(dir string) {
	runLog.mutex.Lock()
	defer runLog.mutex.Unlock()
	runLog.closeLocked()
	runLog.baseDir = dir
}

func (rl *runLogger) closeLocked() {
	for key, file := range rl.logFiles {
		file.Close()
		delete(rl.logFiles, key)
	}
}

// sanitizeFilename replaces characters that are invalid in filenames.
func sanitizeFilename(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '|', '"', '<', '>':
			return '-'
		}
		return r
	}, name)
}

// RunLogPath returns the transcript path of runID, or "" when run logging is
// disabled.
func RunLogPath(runID string) string {
	runLog.mutex.Lock()
	defer runLog.mutex.Unlock()
	if runLog.baseDir == "" {
		return ""
	}
	return runLog.pathLocked(runID, time.Now())
}

func (rl *runLogger) pathLocked(runID string, now time.Time) string {
	return filepath.Join(rl.baseDir, now.Format("2006-01-02"), sanitizeFilename(runID)+".log")
}

func (rl *runLogger) write(runID, entry string) {
	// Errorf takes the console lock, so failures are reported after unlocking.
	if err := rl.writeLocked(runID, entry); err != nil {
		Errorf("Failed to write run log: %v", err)
	}
}

func (rl *runLogger) writeLocked(runID, entry string) error {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	if rl.baseDir == "" {
		return nil
	}

	file, ok := rl.logFiles[runID]
	if !ok {
		path := rl.pathLocked(runID, time.Now())
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create directory for run logs: %w", err)
		}
		var err error
		file, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		rl.logFiles[runID] = file
	}

	timestamp := time.Now().Format("15:04:05")
	_, err := fmt.Fprintf(file, "[%s] %s\n", timestamp, entry)
	return err
}

// LogRunEvent records a run-level event such as the start or the verdict.
func LogRunEvent(runID, event string) {
	runLog.write(runID, event)
}

// LogRunAnswer records the outcome of one task.
func LogRunAnswer(runID, taskID, question, answer string) {
	question = strings.ReplaceAll(question, "\n", " ")
	runLog.write(runID, fmt.Sprintf("<%s> Q: %s\n<%s> A: %s", taskID, question, taskID, answer))
}

// CloseRunLog closes the transcript of a finished run.
func CloseRunLog(runID string) {
	runLog.mutex.Lock()
	defer runLog.mutex.Unlock()
	if file, ok := runLog.logFiles[runID]; ok {
		file.Close()
		delete(runLog.logFiles, runID)
	}
}
