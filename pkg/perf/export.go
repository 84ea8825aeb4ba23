package perf

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the whole-state export of the collector: raw samples, memory
// history, derived insights, the session id and the export timestamp.
type Snapshot struct {
	Samples       []Sample        `json:"samples"`
	Insights      Insights        `json:"insights"`
	MemoryHistory []MemoryReading `json:"memory_history"`
	SessionID     string          `json:"session_id"`
	ExportTime    time.Time       `json:"export_time"`
}

// Snapshot returns a consistent point-in-time copy of collector state.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	samples := append([]Sample(nil), c.samples...)
	history := append([]MemoryReading(nil), c.memoryHistory...)
	c.mu.Unlock()

	return Snapshot{
		Samples:       samples,
		Insights:      computeInsights(samples, history),
		MemoryHistory: history,
		SessionID:     c.sessionID,
		ExportTime:    time.Now().UTC(),
	}
}

// Export serializes the full collector state as JSON. Serialization
// failures (for example NaN durations, which encoding/json rejects) are
// returned to the caller; the collector itself is unaffected.
func (c *Collector) Export() ([]byte, error) {
	data, err := json.Marshal(c.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("export snapshot: %w", err)
	}
	return data, nil
}
