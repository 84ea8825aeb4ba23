package perf

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// MemoryProber reports current memory usage of the process. Hosts without
// memory introspection simply omit the prober; the sampler is then inert.
type MemoryProber interface {
	Usage() (uint64, error)
}

// ProcessProber reads the resident set size of the current process via
// gopsutil.
type ProcessProber struct {
	proc *process.Process
}

// NewProcessProber creates a prober bound to the running process.
func NewProcessProber() (*ProcessProber, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessProber{proc: proc}, nil
}

// Usage returns the process RSS in bytes.
func (p *ProcessProber) Usage() (uint64, error) {
	info, err := p.proc.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}

// Start launches the background memory sampler. It takes an immediate
// reading to establish the baseline, then one reading per configured
// interval until Stop. Without a prober Start is a no-op.
func (c *Collector) Start() {
	if c.prober == nil {
		return
	}

	c.sampleMemory()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.cfg.MemorySampleInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.ctx.Done():
				return
			case <-ticker.C:
				c.sampleMemory()
			}
		}
	}()
}

// Stop cancels the memory sampler and waits for it to exit. No readings
// are taken after Stop returns.
func (c *Collector) Stop() {
	c.cancel()
	c.wg.Wait()
}

func (c *Collector) sampleMemory() {
	usage, err := c.prober.Usage()
	if err != nil {
		c.logger.Debug("memory probe failed", "error", err)
		return
	}

	c.mu.Lock()
	if !c.baselineSet {
		c.memoryBaseline = usage
		c.baselineSet = true
	}
	c.memoryHistory = append(c.memoryHistory, MemoryReading{
		Timestamp:  time.Now(),
		UsageBytes: usage,
	})
	if len(c.memoryHistory) > c.cfg.MemoryHistoryCapacity {
		c.memoryHistory = c.memoryHistory[len(c.memoryHistory)-c.cfg.MemoryHistoryCapacity:]
	}
	baseline := c.memoryBaseline
	c.mu.Unlock()

	// Level-crossing alert: re-fires on every tick spent above twice the
	// baseline. Only the log line is throttled.
	if baseline > 0 && usage > 2*baseline {
		if c.alert != nil {
			c.alert(usage, baseline)
		}
		if c.alertLog.Allow() {
			c.logger.Warn("memory usage above twice the session baseline",
				"usage_bytes", usage,
				"baseline_bytes", baseline)
		}
	}
}
