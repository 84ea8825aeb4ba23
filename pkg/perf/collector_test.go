package perf

import (
	"sync"
	"testing"
	"time"
)

// scriptedProber replays a fixed series of usage readings and counts how
// often it is probed.
type scriptedProber struct {
	mu     sync.Mutex
	values []uint64
	idx    int
	calls  int
}

func (p *scriptedProber) Usage() (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.values) == 0 {
		return 0, nil
	}
	v := p.values[p.idx]
	if p.idx < len(p.values)-1 {
		p.idx++
	}
	return v, nil
}

func (p *scriptedProber) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestRecordAndQuery(t *testing.T) {
	c := New(Config{})

	c.Record("render", 5, "list/40items")
	c.Record("parse", 30, "blob/2kb")
	c.Record("render", 8, "list/12items")

	all := c.Query("")
	if len(all) != 3 {
		t.Fatalf("expected 3 samples, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Errorf("query result out of insertion order at %d", i)
		}
	}

	renders := c.Query("render")
	if len(renders) != 2 {
		t.Fatalf("expected 2 render samples, got %d", len(renders))
	}

	// Mutating the returned slice must not affect the store.
	renders[0].Subject = "mutated"
	if c.Query("render")[0].Subject != "render" {
		t.Error("query returned aliased internal state")
	}

	if !c.Query("parse")[0].Anomalous {
		t.Error("30ms sample should be anomalous at the default 16ms threshold")
	}
	if all[0].SessionID != c.SessionID() {
		t.Error("sample session id does not match collector session id")
	}
}

func TestCallTraceOnlyForAnomalousSamples(t *testing.T) {
	traced := 0
	c := New(Config{}, WithTraceCapture(func() string {
		traced++
		return "frame"
	}))

	c.Record("fast", 1, "")
	c.Record("slow", 100, "")

	if traced != 1 {
		t.Fatalf("expected exactly one trace capture, got %d", traced)
	}
	for _, s := range c.Query("") {
		if s.Anomalous && s.CallTrace == "" {
			t.Error("anomalous sample missing call trace")
		}
		if !s.Anomalous && s.CallTrace != "" {
			t.Error("routine sample has call trace")
		}
	}
}

func TestNegativeDurationNeverAnomalous(t *testing.T) {
	c := New(Config{})
	c.Record("odd", -5, "")
	if c.Query("")[0].Anomalous {
		t.Error("negative duration flagged anomalous at positive threshold")
	}
}

func TestZeroAnomalyThresholdOption(t *testing.T) {
	c := New(Config{}, WithAnomalyThreshold(0))
	if got := c.AnomalyThreshold(); got != 0 {
		t.Fatalf("expected zero threshold, got %v", got)
	}

	c.Record("work", 0.1, "")
	c.Record("idle", 0, "")

	all := c.Query("")
	if !all[0].Anomalous {
		t.Error("positive duration not anomalous at zero threshold")
	}
	if all[1].Anomalous {
		t.Error("zero duration anomalous at zero threshold")
	}
}

func TestClearResetsStateButKeepsSession(t *testing.T) {
	prober := &scriptedProber{values: []uint64{1000}}
	c := New(Config{}, WithMemoryProber(prober))
	session := c.SessionID()

	c.Record("work", 5, "")
	c.sampleMemory()

	c.Clear()

	if len(c.Query("")) != 0 {
		t.Error("query not empty after clear")
	}
	if ins := c.Insights(); ins.TotalSamples != 0 {
		t.Errorf("expected 0 total samples after clear, got %d", ins.TotalSamples)
	}
	c.mu.Lock()
	baselineSet := c.baselineSet
	historyLen := len(c.memoryHistory)
	c.mu.Unlock()
	if baselineSet || historyLen != 0 {
		t.Error("memory state not reset by clear")
	}
	if c.SessionID() != session {
		t.Error("session id changed across clear")
	}

	// The next reading re-establishes the baseline.
	c.sampleMemory()
	c.mu.Lock()
	baseline := c.memoryBaseline
	c.mu.Unlock()
	if baseline != 1000 {
		t.Errorf("baseline not re-established, got %d", baseline)
	}
}

func TestBaselineSetOnce(t *testing.T) {
	prober := &scriptedProber{values: []uint64{1000, 5000}}
	c := New(Config{}, WithMemoryProber(prober))

	c.sampleMemory()
	c.sampleMemory()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memoryBaseline != 1000 {
		t.Errorf("baseline overwritten: %d", c.memoryBaseline)
	}
	if len(c.memoryHistory) != 2 {
		t.Errorf("expected 2 readings, got %d", len(c.memoryHistory))
	}
}

func TestMemoryHistorySlidingWindow(t *testing.T) {
	prober := &scriptedProber{values: []uint64{100}}
	c := New(Config{MemoryHistoryCapacity: 5}, WithMemoryProber(prober))

	for i := 0; i < 12; i++ {
		c.sampleMemory()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.memoryHistory) != 5 {
		t.Errorf("expected history capped at 5, got %d", len(c.memoryHistory))
	}
}

func TestMemoryAlertFiresRepeatedly(t *testing.T) {
	var alerts int
	prober := &scriptedProber{values: []uint64{1000, 2500}}
	c := New(Config{},
		WithMemoryProber(prober),
		WithAlertFunc(func(usage, baseline uint64) { alerts++ }),
	)

	c.sampleMemory() // baseline 1000
	c.sampleMemory() // 2500 > 2x baseline
	c.sampleMemory() // still above, fires again

	if alerts != 2 {
		t.Errorf("expected the level-crossing alert on every tick above threshold, got %d", alerts)
	}
}

func TestStopHaltsSampling(t *testing.T) {
	prober := &scriptedProber{values: []uint64{100}}
	c := New(Config{MemorySampleInterval: 5 * time.Millisecond}, WithMemoryProber(prober))

	c.Start()
	time.Sleep(30 * time.Millisecond)
	c.Stop()

	calls := prober.callCount()
	if calls == 0 {
		t.Fatal("sampler never ran")
	}
	time.Sleep(30 * time.Millisecond)
	if prober.callCount() != calls {
		t.Error("sampler ticked after Stop")
	}
}

func TestStartWithoutProberIsInert(t *testing.T) {
	c := New(Config{MemorySampleInterval: time.Millisecond})
	c.Start()
	defer c.Stop()
	time.Sleep(10 * time.Millisecond)

	if trend := c.Insights().MemoryTrend; trend != TrendStable {
		t.Errorf("expected neutral trend without memory introspection, got %s", trend)
	}
}

func TestConcurrentRecordAndInsights(t *testing.T) {
	c := New(Config{MaxCapacity: 100})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Record("load", float64(i%40), "")
			}
		}()
	}
	for g := 0; g < 2; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				_ = c.Insights()
				_ = c.Query("load")
			}
		}()
	}
	wg.Wait()

	all := c.Query("")
	if len(all) > 100 {
		t.Errorf("capacity invariant violated under concurrency: %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Errorf("timestamp inversion at index %d", i)
			break
		}
	}
}

// slowProber emulates a prober whose usage syscall takes a variable
// amount of time, so concurrent Record calls overlap outside the
// collector's critical section.
type slowProber struct {
	mu    sync.Mutex
	calls int
}

func (p *slowProber) Usage() (uint64, error) {
	p.mu.Lock()
	n := p.calls
	p.calls++
	p.mu.Unlock()
	time.Sleep(time.Duration(n%3) * time.Millisecond)
	return 100, nil
}

func TestConcurrentRecordKeepsTimestampOrder(t *testing.T) {
	c := New(Config{MaxCapacity: 1000}, WithMemoryProber(&slowProber{}))

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				c.Record("load", float64(i), "")
			}
		}()
	}
	wg.Wait()

	all := c.Query("")
	if len(all) != 400 {
		t.Fatalf("expected 400 samples, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Timestamp.Before(all[i-1].Timestamp) {
			t.Fatalf("timestamp inversion at index %d of %d", i, len(all))
		}
	}
}
