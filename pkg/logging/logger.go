package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type Level string

const (
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

const timeLayout = "02/01/2006 03:04:05"

// SinkLogger writes one line per event: LEVEL (dd/mm/yyyy hh:mm:ss) | message.
type SinkLogger struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

var _ Logger = (*SinkLogger)(nil)

func New(out io.Writer) *SinkLogger {
	return &SinkLogger{out: out, now: time.Now}
}

func (l *SinkLogger) Infof(format string, args ...interface{}) {
	l.write(LevelInfo, format, args...)
}

func (l *SinkLogger) Errorf(format string, args ...interface{}) {
	l.write(LevelError, format, args...)
}

func (l *SinkLogger) write(level Level, format string, args ...interface{}) {
	msg := strings.TrimRight(fmt.Sprintf(format, args...), "\n")

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.out, "%s (%s) | %s\n", level, l.now().Format(timeLayout), msg)
}

type discard struct{}

func (discard) Infof(string, ...interface{})  {}
func (discard) Errorf(string, ...interface{}) {}

// Discard drops every event.
var Discard Logger = discard{}

// Sink is where the process-wide logger writes to: stdout or a named file.
type Sink struct {
	File string
}

func (s Sink) String() string {
	if s.File == "" {
		return "stdout"
	}
	return s.File
}

// Open returns a logger for the sink and a closer releasing the file, if any.
// Files are opened for append so repeated runs accumulate.
func Open(s Sink) (*SinkLogger, io.Closer, error) {
	if s.File == "" {
		return New(os.Stdout), io.NopCloser(nil), nil
	}

	f, err := os.OpenFile(s.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file %s: %w", s.File, err)
	}
	return New(f), f, nil
}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
