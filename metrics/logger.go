package metrics

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Logger interface {
	Log(info *ConversionInfo)
}

type StdoutLogger struct{}

func NewStdoutLogger() *StdoutLogger {
	return &StdoutLogger{}
}

func (l *StdoutLogger) Log(info *ConversionInfo) {
	infoStr, err := info.ToJSON()
	if err == nil {
		log.Print(infoStr)
	} else {
		log.Printf("StdoutLogger: error: %v", err)
	}
}

const defaultQueueSize = 2000
const defaultMaxLogFileSize = 256 * 1024 * 1024
const defaultMaxLogFiles = 10

// FileLogger appends conversion records as JSON lines to LogDir/conversions.log,
// rotating to conversions.log.N once the file reaches MaxLogFileSize.
// At most MaxLogFiles rotated files are kept.
type FileLogger struct {
	MetricsQueue   chan *ConversionInfo
	LogDir         string
	MaxLogFileSize int64
	MaxLogFiles    int
	Verbose        bool
	done           chan struct{}
}

func NewFileLogger(logDir string, maxLogFileSize int64, maxLogFiles int, verbose bool) *FileLogger {
	if maxLogFileSize <= 0 {
		maxLogFileSize = defaultMaxLogFileSize
	}
	if maxLogFiles <= 0 {
		maxLogFiles = defaultMaxLogFiles
	}
	logger := &FileLogger{
		MetricsQueue:   make(chan *ConversionInfo, defaultQueueSize),
		LogDir:         logDir,
		MaxLogFileSize: maxLogFileSize,
		MaxLogFiles:    maxLogFiles,
		Verbose:        verbose,
		done:           make(chan struct{}),
	}
	go logger.startLogWriter()
	return logger
}

func (l *FileLogger) Log(info *ConversionInfo) {
	l.MetricsQueue <- info
}

// Close flushes queued records and stops the writer.
func (l *FileLogger) Close() {
	close(l.MetricsQueue)
	<-l.done
}

func (l *FileLogger) logFilePath() string {
	return filepath.Join(l.LogDir, "conversions.log")
}

func (l *FileLogger) startLogWriter() {
	defer close(l.done)

	f, err := l.openLogFile()
	if err != nil {
		log.Printf("FileLogger: log open error: %v", err)
	}

	for info := range l.MetricsQueue {
		infoStr, err := info.ToJSON()
		if err != nil {
			log.Printf("FileLogger: info.ToJSON() error: %v", err)
			continue
		}
		f, err = l.tryRotateLogFile(f)
		if err != nil {
			continue
		}
		if _, err := f.WriteString(infoStr); err != nil {
			log.Printf("FileLogger: write error: %v", err)
			continue
		}
		f.Sync()
	}
	if f != nil {
		f.Close()
	}
}

func (l *FileLogger) openLogFile() (*os.File, error) {
	return os.OpenFile(l.logFilePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (l *FileLogger) tryRotateLogFile(currFile *os.File) (*os.File, error) {
	if currFile == nil {
		return l.openLogFile()
	}
	info, err := currFile.Stat()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
		return currFile, nil
	}
	if info.Size() < l.MaxLogFileSize {
		return currFile, nil
	}

	currFile.Close()
	rotated := fmt.Sprintf("%s.%d", l.logFilePath(), l.nextRotation())
	if err := os.Rename(l.logFilePath(), rotated); err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
	} else if l.Verbose {
		log.Printf("FileLogger: log file rotated: %v", rotated)
	}
	l.pruneRotated()

	f, err := l.openLogFile()
	if err != nil {
		log.Printf("FileLogger: log rotation error: %v", err)
	}
	return f, err
}

func (l *FileLogger) rotated() []string {
	matches, _ := filepath.Glob(l.logFilePath() + ".*")
	sort.Slice(matches, func(i, j int) bool {
		return rotationIndex(matches[i]) < rotationIndex(matches[j])
	})
	return matches
}

func rotationIndex(path string) int {
	var n int
	fmt.Sscanf(path[strings.LastIndex(path, ".")+1:], "%d", &n)
	return n
}

func (l *FileLogger) nextRotation() int {
	files := l.rotated()
	if len(files) == 0 {
		return 0
	}
	return rotationIndex(files[len(files)-1]) + 1
}

func (l *FileLogger) pruneRotated() {
	files := l.rotated()
	for len(files) > l.MaxLogFiles {
		if l.Verbose {
			log.Printf("FileLogger: maximum number of log files reached, removing %s", files[0])
		}
		if err := os.Remove(files[0]); err != nil {
			log.Printf("FileLogger: log rotation error: %v", err)
		}
		files = files[1:]
	}
}
