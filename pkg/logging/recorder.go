package logging

import (
	"fmt"
	"strings"
	"sync"
)

type Entry struct {
	Level   Level
	Message string
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

var _ Logger = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Infof(format string, args ...interface{}) {
	r.add(LevelInfo, format, args...)
}

func (r *Recorder) Errorf(format string, args ...interface{}) {
	r.add(LevelError, format, args...)
}

func (r *Recorder) add(level Level, format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns how many entries at level contain substr.
func (r *Recorder) Count(level Level, substr string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			n++
		}
	}
	return n
}
