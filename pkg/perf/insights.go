package perf

import (
	"fmt"
	"math"
	"sort"
)

// MemoryTrend classifies recent memory usage relative to slightly older
// usage.
type MemoryTrend string

const (
	TrendStable     MemoryTrend = "stable"
	TrendIncreasing MemoryTrend = "increasing"
	TrendDecreasing MemoryTrend = "decreasing"
)

// Hotspot is a subject ranked by average observed duration.
type Hotspot struct {
	Subject         string  `json:"subject"`
	AverageDuration float64 `json:"average_duration_ms"`
	SampleCount     int     `json:"sample_count"`
}

// Insights is the derived analytics snapshot.
type Insights struct {
	AnomalousSamples []Sample    `json:"anomalous_samples"`
	AverageDuration  float64     `json:"average_duration_ms"`
	TotalSamples     int         `json:"total_samples"`
	MemoryTrend      MemoryTrend `json:"memory_trend"`
	Hotspots         []Hotspot   `json:"hotspots"`
	Recommendations  []string    `json:"recommendations"`
}

// Insights recomputes analytics from current state. It holds the lock only
// long enough to copy state, never during computation.
func (c *Collector) Insights() Insights {
	c.mu.Lock()
	samples := append([]Sample(nil), c.samples...)
	history := append([]MemoryReading(nil), c.memoryHistory...)
	c.mu.Unlock()

	return computeInsights(samples, history)
}

func computeInsights(samples []Sample, history []MemoryReading) Insights {
	ins := Insights{
		AnomalousSamples: []Sample{},
		TotalSamples:     len(samples),
		MemoryTrend:      memoryTrend(history),
	}

	// NaN durations are excluded from the mean; an empty store yields 0,
	// not NaN.
	var sum float64
	var counted int
	for _, s := range samples {
		if s.Anomalous {
			ins.AnomalousSamples = append(ins.AnomalousSamples, s)
		}
		if !math.IsNaN(s.DurationMs) {
			sum += s.DurationMs
			counted++
		}
	}
	if counted > 0 {
		ins.AverageDuration = sum / float64(counted)
	}

	ins.Hotspots = hotspots(samples)
	ins.Recommendations = recommendations(ins)
	return ins
}

// memoryTrend needs at least 10 readings; the newest 5 are compared against
// the preceding 5 with a 10% hysteresis band so noise does not flap the
// classification.
func memoryTrend(history []MemoryReading) MemoryTrend {
	if len(history) < 10 {
		return TrendStable
	}
	recent := meanUsage(history[len(history)-5:])
	older := meanUsage(history[len(history)-10 : len(history)-5])

	switch {
	case recent > older*1.1:
		return TrendIncreasing
	case recent < older*0.9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

func meanUsage(readings []MemoryReading) float64 {
	var sum float64
	for _, r := range readings {
		sum += float64(r.UsageBytes)
	}
	return sum / float64(len(readings))
}

// hotspots groups samples by subject and returns the top 5 by average
// duration. The sort is stable so ties resolve by first-occurrence order.
func hotspots(samples []Sample) []Hotspot {
	type agg struct {
		sum     float64
		counted int
		total   int
	}

	groups := make(map[string]*agg)
	var order []string
	for _, s := range samples {
		a, ok := groups[s.Subject]
		if !ok {
			a = &agg{}
			groups[s.Subject] = a
			order = append(order, s.Subject)
		}
		a.total++
		if !math.IsNaN(s.DurationMs) {
			a.sum += s.DurationMs
			a.counted++
		}
	}

	spots := make([]Hotspot, 0, len(order))
	for _, subject := range order {
		a := groups[subject]
		h := Hotspot{Subject: subject, SampleCount: a.total}
		if a.counted > 0 {
			h.AverageDuration = a.sum / float64(a.counted)
		}
		spots = append(spots, h)
	}

	sort.SliceStable(spots, func(i, j int) bool {
		return spots[i].AverageDuration > spots[j].AverageDuration
	})

	if len(spots) > 5 {
		spots = spots[:5]
	}
	return spots
}

// recommendations evaluates independent heuristic rules in fixed priority
// order: anomaly ratio, worst hotspot, memory trend, general average.
func recommendations(ins Insights) []string {
	var recs []string

	if ins.TotalSamples > 0 && float64(len(ins.AnomalousSamples)) > 0.1*float64(ins.TotalSamples) {
		recs = append(recs, "More than 10% of recorded operations exceeded the anomaly threshold. Consider reducing repeated recomputation or caching intermediate results.")
	}
	if len(ins.Hotspots) > 0 && ins.Hotspots[0].AverageDuration > 20 {
		recs = append(recs, fmt.Sprintf("Subject %q averages %.1fms per operation. Prioritize optimizing it.",
			ins.Hotspots[0].Subject, ins.Hotspots[0].AverageDuration))
	}
	if ins.MemoryTrend == TrendIncreasing {
		recs = append(recs, "Memory usage is trending upward. Check for leaked references or unbounded caches.")
	}
	if ins.AverageDuration > 10 {
		recs = append(recs, "Average operation time exceeds 10ms. Profile the slowest subjects for optimization opportunities.")
	}

	return recs
}
