package observability

import (
	"encoding/json"
	"log"
	"os"
	"time"
)

// Logger writes one JSON object per line to stdout. It carries no state
// beyond the sink, so a single instance is shared across the process.
type Logger struct {
	sink *log.Logger
}

func NewLogger() *Logger {
	return &Logger{sink: log.New(os.Stdout, "", 0)}
}

func (l *Logger) Info(message string, fields map[string]any) {
	l.emit("info", message, fields)
}

func (l *Logger) Error(message string, fields map[string]any) {
	l.emit("error", message, fields)
}

func (l *Logger) emit(level, message string, fields map[string]any) {
	entry := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		entry[k] = v
	}
	entry["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level
	entry["message"] = message

	encoded, err := json.Marshal(entry)
	if err != nil {
		l.sink.Println(`{"level":"error","message":"failed to encode log entry"}`)
		return
	}

	l.sink.Println(string(encoded))
}
