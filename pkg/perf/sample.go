package perf

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Sample is a single recorded unit-of-work measurement.
type Sample struct {
	Subject              string    `json:"subject"`
	DurationMs           float64   `json:"duration_ms"`
	Fingerprint          string    `json:"fingerprint,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
	SessionID            string    `json:"session_id"`
	MemoryUsageAtCapture uint64    `json:"memory_usage_at_capture,omitempty"`
	CallTrace            string    `json:"call_trace,omitempty"`
	Anomalous            bool      `json:"anomalous"`
}

// MemoryReading is one observation of process memory usage.
type MemoryReading struct {
	Timestamp  time.Time `json:"timestamp"`
	UsageBytes uint64    `json:"usage_bytes"`
}

// TraceFunc captures a short description of the current call context.
// It is only invoked for anomalous samples, so implementations may be
// moderately expensive.
type TraceFunc func() string

// CallerTrace returns a TraceFunc that captures up to depth stack frames
// above the Record call site.
func CallerTrace(depth int) TraceFunc {
	return func() string {
		pc := make([]uintptr, depth)
		// Skip runtime.Callers, this closure, and Collector.Record.
		n := runtime.Callers(3, pc)
		if n == 0 {
			return ""
		}
		frames := runtime.CallersFrames(pc[:n])
		var b strings.Builder
		for {
			frame, more := frames.Next()
			fmt.Fprintf(&b, "%s:%d", frame.Function, frame.Line)
			if !more {
				break
			}
			b.WriteByte('\n')
		}
		return b.String()
	}
}
