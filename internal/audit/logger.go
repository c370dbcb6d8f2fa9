package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
	StatusNoop  = "noop"
)

// Logger appends one JSON object per line. A nil Logger or one with an empty
// path drops events.
type Logger struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

type Event struct {
	Timestamp string            `json:"timestamp"`
	Operation string            `json:"operation"`
	Pathway   string            `json:"pathway,omitempty"`
	Status    string            `json:"status"`
	Message   string            `json:"message,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func New(path string) *Logger {
	return &Logger{path: path, now: time.Now}
}

func (l *Logger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

func (l *Logger) Log(ev Event) error {
	if l == nil || l.path == "" {
		return nil
	}
	ev.Timestamp = l.now().UTC().Format(time.RFC3339Nano)
	if ev.Status == "" {
		ev.Status = StatusOK
	}
	blob, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(blob, '\n'))
	return err
}

// Record logs op against a pathway, deriving status and message from err.
// Write failures of the log itself are dropped.
func (l *Logger) Record(op, pathway string, err error, fields map[string]string) {
	ev := Event{Operation: op, Pathway: pathway, Status: StatusOK, Fields: fields}
	if err != nil {
		ev.Status = StatusError
		ev.Message = err.Error()
	}
	_ = l.Log(ev)
}

// ReadAll returns every event in the log, oldest first. A missing log file
// yields no events.
func ReadAll(path string) ([]Event, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var events []Event
	dec := json.NewDecoder(bytes.NewReader(blob))
	for dec.More() {
		var ev Event
		if err := dec.Decode(&ev); err != nil {
			return events, err
		}
		events = append(events, ev)
	}
	return events, nil
}
