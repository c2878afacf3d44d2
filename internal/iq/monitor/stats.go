package monitor

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// StatsSnapshot represents a snapshot of current capture statistics.
type StatsSnapshot struct {
	PacketsPerSec float64
	MBPerSec      float64
	SamplesPerSec float64
	OverflowCount int64
	Timestamp     time.Time
}

// CaptureStats tracks packet and sample statistics with thread-safe
// operations.
type CaptureStats struct {
	mu             sync.Mutex
	packetCount    int64
	byteCount      int64
	overflowCount  int64
	sampleCount    int64
	lastReset      time.Time
	startTime      time.Time
	latestSnapshot *StatsSnapshot
}

// NewCaptureStats creates a new CaptureStats instance.
func NewCaptureStats() *CaptureStats {
	now := time.Now()
	return &CaptureStats{
		lastReset: now,
		startTime: now,
	}
}

// AddPacket increments packet count and byte count.
func (cs *CaptureStats) AddPacket(bytes int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.packetCount++
	cs.byteCount += int64(bytes)
}

// AddOverflow increments the count of payloads dropped on a full ring.
func (cs *CaptureStats) AddOverflow() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.overflowCount++
}

// AddSamples increments the count of decoded samples delivered downstream.
func (cs *CaptureStats) AddSamples(count int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.sampleCount += int64(count)
}

// GetAndReset returns current stats and resets counters.
func (cs *CaptureStats) GetAndReset() (packets int64, bytes int64, overflows int64, samples int64, duration time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	now := time.Now()
	duration = now.Sub(cs.lastReset)
	packets = cs.packetCount
	bytes = cs.byteCount
	overflows = cs.overflowCount
	samples = cs.sampleCount

	cs.packetCount = 0
	cs.byteCount = 0
	cs.overflowCount = 0
	cs.sampleCount = 0
	cs.lastReset = now

	return
}

// LogStats drains the counters, logs formatted rate statistics and stores a
// snapshot for callers that poll the latest figures. The drained totals are
// returned so the caller can keep lifetime accounting. An idle interval logs
// nothing and stores no snapshot.
func (cs *CaptureStats) LogStats() (packets, bytes, overflows, samples int64) {
	packets, bytes, overflows, samples, duration := cs.GetAndReset()
	if packets == 0 && overflows == 0 {
		return
	}

	packetsPerSec := float64(packets) / duration.Seconds()
	mbPerSec := float64(bytes) / duration.Seconds() / (1024 * 1024)
	samplesPerSec := float64(samples) / duration.Seconds()

	cs.mu.Lock()
	cs.latestSnapshot = &StatsSnapshot{
		PacketsPerSec: packetsPerSec,
		MBPerSec:      mbPerSec,
		SamplesPerSec: samplesPerSec,
		OverflowCount: overflows,
		Timestamp:     time.Now(),
	}
	cs.mu.Unlock()

	logMsg := fmt.Sprintf("IQ source stats (/sec): %.2f MB, %.1f packets, %s samples",
		mbPerSec, packetsPerSec, FormatWithCommas(int64(samplesPerSec)))
	if overflows > 0 {
		logMsg += fmt.Sprintf(", %d payloads dropped on full ring", overflows)
	}
	log.Print(logMsg)
	return
}

// GetUptime returns the time since the stats were created.
func (cs *CaptureStats) GetUptime() time.Duration {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return time.Since(cs.startTime)
}

// GetLatestSnapshot returns the most recent stats snapshot, or nil before the
// first LogStats call.
func (cs *CaptureStats) GetLatestSnapshot() *StatsSnapshot {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.latestSnapshot == nil {
		return nil
	}
	// Return a copy to avoid race conditions
	snapshot := *cs.latestSnapshot
	return &snapshot
}

// FormatWithCommas formats a number with thousands separators.
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
