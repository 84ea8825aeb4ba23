package perf

import (
	"strconv"
	"testing"
	"time"
)

func makeSamples(n int, anomalousAt map[int]bool) []Sample {
	base := time.Now().Add(-time.Hour)
	samples := make([]Sample, n)
	for i := range samples {
		samples[i] = Sample{
			Subject:    "subject",
			DurationMs: 1,
			Timestamp:  base.Add(time.Duration(i) * time.Second),
			Anomalous:  anomalousAt[i],
		}
		if anomalousAt[i] {
			samples[i].DurationMs = 100
		}
	}
	return samples
}

func TestEvictKeepsAnomalousAndRecent(t *testing.T) {
	anomalous := map[int]bool{0: true, 5: true, 10: true}
	samples := makeSamples(20, anomalous)

	kept := evict(samples, 10)

	if len(kept) > 10 {
		t.Fatalf("evict exceeded capacity: %d", len(kept))
	}

	var keptAnomalous int
	for _, s := range kept {
		if s.Anomalous {
			keptAnomalous++
		}
	}
	if keptAnomalous != 3 {
		t.Errorf("expected all 3 anomalous samples retained, got %d", keptAnomalous)
	}

	// The newest floor(0.7*10)=7 samples must survive.
	for i := 13; i < 20; i++ {
		found := false
		for _, s := range kept {
			if s.Timestamp.Equal(samples[i].Timestamp) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("recent sample %d was evicted", i)
		}
	}

	for i := 1; i < len(kept); i++ {
		if kept[i].Timestamp.Before(kept[i-1].Timestamp) {
			t.Errorf("kept samples out of timestamp order at %d", i)
		}
	}
}

func TestEvictAllAnomalousTruncatesOldest(t *testing.T) {
	anomalous := make(map[int]bool)
	for i := 0; i < 15; i++ {
		anomalous[i] = true
	}
	samples := makeSamples(15, anomalous)

	kept := evict(samples, 10)

	if len(kept) != 10 {
		t.Fatalf("expected 10 samples, got %d", len(kept))
	}
	// Truncation keeps the newest anomalies.
	if !kept[0].Timestamp.Equal(samples[5].Timestamp) {
		t.Errorf("expected oldest kept sample to be index 5")
	}
}

func TestRecordCapacityInvariant(t *testing.T) {
	c := New(Config{MaxCapacity: 10})
	for i := 0; i < 100; i++ {
		dur := 1.0
		if i%3 == 0 {
			dur = 50
		}
		c.Record("load", dur, "")
		if n := len(c.Query("")); n > 10 {
			t.Fatalf("store size %d exceeds capacity after %d records", n, i+1)
		}
	}
}

func TestEvictNeverFavorsOlderRoutineSamples(t *testing.T) {
	c := New(Config{MaxCapacity: 10})

	// Interleave anomalous and routine samples, tagging each with its
	// record index so eviction decisions can be reconstructed.
	recordedAnomalous := make(map[int]bool)
	for i := 0; i < 40; i++ {
		dur := 1.0
		if i%2 == 0 {
			dur = 50
			recordedAnomalous[i] = true
		}
		c.Record("load", dur, strconv.Itoa(i))
	}

	surviving := make(map[int]bool)
	minRoutine := -1
	for _, s := range c.Query("") {
		idx, err := strconv.Atoi(s.Fingerprint)
		if err != nil {
			t.Fatalf("bad fingerprint %q", s.Fingerprint)
		}
		surviving[idx] = true
		if !s.Anomalous && (minRoutine == -1 || idx < minRoutine) {
			minRoutine = idx
		}
	}

	// No anomalous sample may have been discarded while a routine sample
	// of equal or older timestamp survived.
	for idx := range recordedAnomalous {
		if !surviving[idx] && minRoutine != -1 && minRoutine < idx {
			t.Errorf("anomalous sample %d evicted while older routine sample %d survived", idx, minRoutine)
		}
	}
}

func TestOptimizeMemory(t *testing.T) {
	c := New(Config{MaxCapacity: 500})

	old := time.Now().Add(-10 * time.Minute)
	c.mu.Lock()
	for i := 0; i < 50; i++ {
		c.samples = append(c.samples, Sample{
			Subject:    "stale",
			DurationMs: 1,
			Timestamp:  old.Add(time.Duration(i) * time.Second),
		})
	}
	c.samples = append(c.samples, Sample{
		Subject:    "stale-anomaly",
		DurationMs: 100,
		Timestamp:  old,
		Anomalous:  true,
	})
	for i := 0; i < 20; i++ {
		c.memoryHistory = append(c.memoryHistory, MemoryReading{Timestamp: old, UsageBytes: 1000})
	}
	c.memoryHistory = append(c.memoryHistory, MemoryReading{Timestamp: time.Now(), UsageBytes: 2000})
	c.mu.Unlock()

	c.Record("fresh", 1, "")
	c.OptimizeMemory()

	samples := c.Query("")
	if len(samples) != 2 {
		t.Fatalf("expected stale anomaly and fresh sample to survive, got %d samples", len(samples))
	}
	for _, s := range samples {
		if s.Subject == "stale" {
			t.Errorf("stale routine sample survived optimization")
		}
	}

	c.mu.Lock()
	historyLen := len(c.memoryHistory)
	newest := c.memoryHistory[historyLen-1].UsageBytes
	c.mu.Unlock()
	if historyLen != 20 {
		t.Errorf("expected memory history truncated to 20, got %d", historyLen)
	}
	if newest != 2000 {
		t.Errorf("truncation dropped the newest reading")
	}
}

func TestOptimizeMemoryCapsAtTwoHundred(t *testing.T) {
	c := New(Config{MaxCapacity: 500, AnomalyThresholdMs: 0.5})
	for i := 0; i < 400; i++ {
		c.Record("hot", 100, "") // all anomalous, all fresh
	}
	c.OptimizeMemory()
	if n := len(c.Query("")); n != 200 {
		t.Errorf("expected 200 samples after optimization, got %d", n)
	}
}
