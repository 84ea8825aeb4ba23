// Package perf is an in-process runtime telemetry aggregator. Call sites
// report work durations to a Collector, which keeps a bounded sample store
// biased toward anomalously slow samples, tracks process memory usage on a
// background interval, and derives insights (hotspots, trends,
// recommendations) on demand.
package perf

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Config holds the collector configuration. All fields have working
// defaults; see DefaultConfig.
type Config struct {
	// MaxCapacity bounds the sample store.
	MaxCapacity int

	// AnomalyThresholdMs marks samples slower than this as anomalous.
	// The default of 16ms corresponds to a 60Hz frame budget. Zero
	// selects the default; use WithAnomalyThreshold to configure an
	// exact zero threshold.
	AnomalyThresholdMs float64

	// MemorySampleInterval is the period between memory readings.
	MemorySampleInterval time.Duration

	// MemoryHistoryCapacity bounds the memory reading history.
	MemoryHistoryCapacity int
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		MaxCapacity:           500,
		AnomalyThresholdMs:    16,
		MemorySampleInterval:  10 * time.Second,
		MemoryHistoryCapacity: 50,
	}
}

// AlertFunc is invoked when memory usage crosses twice the baseline. It
// fires on every sampling tick spent above the threshold; debouncing is
// the callback's concern.
type AlertFunc func(usageBytes, baselineBytes uint64)

// Option configures optional collector capabilities.
type Option func(*Collector)

// WithMemoryProber injects the memory introspection capability. Without a
// prober the memory sampler is inert and memory-derived insights report
// neutral values.
func WithMemoryProber(p MemoryProber) Option {
	return func(c *Collector) { c.prober = p }
}

// WithTraceCapture injects the call-context capture used for anomalous
// samples.
func WithTraceCapture(f TraceFunc) Option {
	return func(c *Collector) { c.trace = f }
}

// WithAlertFunc registers a callback for memory level-crossing alerts.
func WithAlertFunc(f AlertFunc) Option {
	return func(c *Collector) { c.alert = f }
}

// WithAnomalyThreshold overrides the anomaly threshold in milliseconds.
// Unlike the Config field, where zero selects the default, the option
// applies the exact value given.
func WithAnomalyThreshold(ms float64) Option {
	return func(c *Collector) { c.cfg.AnomalyThresholdMs = ms }
}

// WithLogger sets the collector logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Collector) { c.logger = l }
}

// Collector ingests performance samples and maintains bounded telemetry
// state. All mutating operations serialize on one mutex; read operations
// copy state under the lock and compute outside it.
type Collector struct {
	cfg       Config
	sessionID string
	prober    MemoryProber
	trace     TraceFunc
	alert     AlertFunc
	logger    *slog.Logger

	// alertLog throttles the warning log line, not the alert callback.
	alertLog *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	samples        []Sample
	memoryHistory  []MemoryReading
	memoryBaseline uint64
	baselineSet    bool
	evictions      uint64
}

// New creates a Collector. The memory sampler does not run until Start is
// called.
func New(cfg Config, opts ...Option) *Collector {
	def := DefaultConfig()
	if cfg.MaxCapacity <= 0 {
		cfg.MaxCapacity = def.MaxCapacity
	}
	if cfg.AnomalyThresholdMs == 0 {
		cfg.AnomalyThresholdMs = def.AnomalyThresholdMs
	}
	if cfg.MemorySampleInterval <= 0 {
		cfg.MemorySampleInterval = def.MemorySampleInterval
	}
	if cfg.MemoryHistoryCapacity <= 0 {
		cfg.MemoryHistoryCapacity = def.MemoryHistoryCapacity
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Collector{
		cfg:       cfg,
		sessionID: uuid.New().String(),
		logger:    slog.Default(),
		alertLog:  rate.NewLimiter(rate.Every(time.Minute), 1),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionID returns the identifier shared by all samples recorded during
// this collector's lifetime.
func (c *Collector) SessionID() string {
	return c.sessionID
}

// AnomalyThreshold returns the configured anomaly threshold in
// milliseconds.
func (c *Collector) AnomalyThreshold() float64 {
	return c.cfg.AnomalyThresholdMs
}

// Record ingests one completed unit of work. It never fails: extreme or
// malformed durations flow through unchanged. NaN durations compare false
// against the threshold and are therefore never anomalous.
func (c *Collector) Record(subject string, durationMs float64, fingerprint string) {
	s := Sample{
		Subject:     subject,
		DurationMs:  durationMs,
		Fingerprint: fingerprint,
		SessionID:   c.sessionID,
		Anomalous:   durationMs > c.cfg.AnomalyThresholdMs,
	}
	if c.prober != nil {
		if usage, err := c.prober.Usage(); err == nil {
			s.MemoryUsageAtCapture = usage
		}
	}
	// Call-context capture is skipped for normal samples to keep
	// ingestion cheap.
	if s.Anomalous && c.trace != nil {
		s.CallTrace = c.trace()
	}

	c.mu.Lock()
	// The timestamp is assigned under the lock so that insertion order
	// and timestamp order agree, which eviction relies on. The prober
	// and trace syscalls above are deliberately outside the critical
	// section.
	s.Timestamp = time.Now()
	c.samples = append(c.samples, s)
	if len(c.samples) > c.cfg.MaxCapacity {
		c.samples = evict(c.samples, c.cfg.MaxCapacity)
		c.evictions++
	}
	c.mu.Unlock()
}

// Query returns a copy of stored samples in insertion order. An empty
// filter matches all subjects. The returned slice never aliases internal
// state.
func (c *Collector) Query(subjectFilter string) []Sample {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Sample, 0, len(c.samples))
	for _, s := range c.samples {
		if subjectFilter == "" || s.Subject == subjectFilter {
			out = append(out, s)
		}
	}
	return out
}

// Clear empties the sample store and memory history and unsets the memory
// baseline. The session id is per collector lifetime and survives.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = nil
	c.memoryHistory = nil
	c.memoryBaseline = 0
	c.baselineSet = false
}

// OptimizeMemory is a manually invoked compaction for long-running
// sessions: it retains only samples that are anomalous or captured within
// the last five minutes, truncated to the newest 200, and trims the memory
// history to the newest 20 readings.
func (c *Collector) OptimizeMemory() {
	cutoff := time.Now().Add(-5 * time.Minute)

	c.mu.Lock()
	defer c.mu.Unlock()

	kept := c.samples[:0]
	for _, s := range c.samples {
		if s.Anomalous || s.Timestamp.After(cutoff) {
			kept = append(kept, s)
		}
	}
	if len(kept) > 200 {
		kept = kept[len(kept)-200:]
	}
	c.samples = append([]Sample(nil), kept...)

	if len(c.memoryHistory) > 20 {
		c.memoryHistory = append([]MemoryReading(nil), c.memoryHistory[len(c.memoryHistory)-20:]...)
	}
}

// Stats reports point-in-time collector counters for instrumentation.
type Stats struct {
	StoreSize      int
	AnomalousCount int
	Evictions      uint64
	MemoryUsage    uint64
	MemoryBaseline uint64
}

// Stats returns current collector counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := Stats{
		StoreSize:      len(c.samples),
		Evictions:      c.evictions,
		MemoryBaseline: c.memoryBaseline,
	}
	for _, s := range c.samples {
		if s.Anomalous {
			st.AnomalousCount++
		}
	}
	if n := len(c.memoryHistory); n > 0 {
		st.MemoryUsage = c.memoryHistory[n-1].UsageBytes
	}
	return st
}
