package misc

import (
	"fmt"
	"sync/atomic"
	"time"
)

// ProgressStats accumulates transferred byte counts and computes a windowed
// transfer speed. Update is safe to call concurrently; Stats is meant to be
// called from a single rendering goroutine.
type ProgressStats struct {
	totalBytes int64
	lastBytes  int64
	startTime  time.Time
	lastTime   time.Time
	lastSpeed  float64
}

// StatResult is one sample of the transfer counters.
type StatResult struct {
	TotalBytes int64
	SpeedBps   float64
}

func NewProgressStats() *ProgressStats {
	now := time.Now()
	return &ProgressStats{
		startTime: now,
		lastTime:  now,
	}
}

// Update adds n transferred bytes.
func (p *ProgressStats) Update(n int64) {
	atomic.AddInt64(&p.totalBytes, n)
}

// Total returns the bytes counted so far.
func (p *ProgressStats) Total() int64 {
	return atomic.LoadInt64(&p.totalBytes)
}

// Stats samples the counters. With final set, the speed is averaged over the
// whole run instead of the window since the previous sample.
func (p *ProgressStats) Stats(now time.Time, final bool) StatResult {
	currentTotal := atomic.LoadInt64(&p.totalBytes)

	var timeDiff float64
	var bytesDiff int64

	if final {
		timeDiff = now.Sub(p.startTime).Seconds()
		bytesDiff = currentTotal
	} else {
		timeDiff = now.Sub(p.lastTime).Seconds()
		bytesDiff = currentTotal - p.lastBytes
	}

	var speed float64
	if timeDiff > 0 {
		speed = float64(bytesDiff) / timeDiff
	} else {
		speed = p.lastSpeed
	}

	if !final {
		p.lastBytes = currentTotal
		p.lastTime = now
		p.lastSpeed = speed
	}

	return StatResult{
		TotalBytes: currentTotal,
		SpeedBps:   speed,
	}
}

// FormatBytes renders a byte count in binary units.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
