package logging

import (
	"encoding/json"
	"log"
	"os"
	"sync/atomic"
	"time"
)

type Fields map[string]interface{}

var debugEnabled atomic.Bool

func init() { debugEnabled.Store(os.Getenv("TIDEWAR_DEBUG") == "1") }

// SetDebug toggles Debug output at runtime.
func SetDebug(on bool) { debugEnabled.Store(on) }

// output never writes into the caller's map.
func output(level, msg string, err error, fields Fields) {
	out := make(Fields, len(fields)+4)
	for k, v := range fields {
		out[k] = v
	}
	if err != nil {
		out["error"] = err.Error()
	}
	out["level"] = level
	out["ts"] = time.Now().UTC().Format(time.RFC3339)
	out["msg"] = msg
	b, jerr := json.Marshal(out)
	if jerr != nil {
		// fallback to plain logging
		log.Printf("%s: %s (%v)\n", level, msg, out)
		return
	}
	log.Println(string(b))
}

// Debug logs only when TIDEWAR_DEBUG=1 or SetDebug(true).
func Debug(msg string, fields Fields) {
	if !debugEnabled.Load() {
		return
	}
	output("debug", msg, nil, fields)
}

// Info logs an informational message with optional fields.
func Info(msg string, fields Fields) {
	output("info", msg, nil, fields)
}

// Warn logs a recoverable problem.
func Warn(msg string, fields Fields) {
	output("warn", msg, nil, fields)
}

// Error logs an error message and includes the error text in the fields.
func Error(msg string, err error, fields Fields) {
	output("error", msg, err, fields)
}

// Fatal logs a fatal error and exits the process.
func Fatal(msg string, err error, fields Fields) {
	output("fatal", msg, err, fields)
	os.Exit(1)
}
