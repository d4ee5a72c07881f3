// Package governor implements the resource-aware concurrency Governor:
// a periodic CPU/memory sampler mapping vitals to a target permit count.
// It never forcibly revokes held permits, only modulates the acquisition
// rate of new ones.
package governor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

const sampleInterval = 15 * time.Second

// Vitals is one CPU/memory sample.
type Vitals struct {
	CPUPercent float64
	MemPercent float64
}

// TargetPermits maps vitals to a target permit count. The boundary is
// inclusive in either predicate (cpu==85.0 or mem==90.0 yields the
// crisis value of 1).
func TargetPermits(v Vitals, max int) int {
	if v.CPUPercent >= 85 || v.MemPercent >= 90 {
		return 1
	}
	if v.CPUPercent >= 60 || v.MemPercent >= 75 {
		t := max / 2
		if t < 1 {
			t = 1
		}
		return t
	}
	return max
}

// Governor periodically samples host CPU/memory and exposes the current
// target permit count. It logs and continues on sampling error; it never
// terminates the process.
type Governor struct {
	maxPermits int

	mu     sync.RWMutex
	target int

	cancel context.CancelFunc
	done   chan struct{}
}

// New constructs a Governor with an initial target of maxPermits.
func New(maxPermits int) *Governor {
	return &Governor{maxPermits: maxPermits, target: maxPermits}
}

// Start begins the 15s sampling loop in a background goroutine.
func (g *Governor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.done = make(chan struct{})

	go func() {
		defer close(g.done)
		ticker := time.NewTicker(sampleInterval)
		defer ticker.Stop()

		g.sample(ctx)
		for {
			select {
			case <-ticker.C:
				g.sample(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the sampling loop.
func (g *Governor) Stop() {
	if g.cancel != nil {
		g.cancel()
		<-g.done
	}
}

func (g *Governor) sample(ctx context.Context) {
	var v Vitals

	cpuPct, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		slog.Warn("governor: cpu sample failed", "error", err)
	} else if len(cpuPct) > 0 {
		v.CPUPercent = cpuPct[0]
	}

	memStat, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		slog.Warn("governor: mem sample failed", "error", err)
	} else if memStat != nil {
		v.MemPercent = memStat.UsedPercent
	}

	g.mu.Lock()
	g.target = TargetPermits(v, g.maxPermits)
	g.mu.Unlock()
}

// TargetPermitCount returns the most recently computed target.
func (g *Governor) TargetPermitCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.target
}
