package common

import (
	"fmt"
	"sync"
	"time"
)

// Metrics accumulates decode throughput counters. Safe for concurrent use.
type Metrics struct {
	mu           sync.Mutex
	start        time.Time
	end          time.Time
	samples      int64
	totalSamples int64
	frames       int64
	events       int64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Start() {
	m.mu.Lock()
	if m.start.IsZero() {
		m.start = time.Now()
		m.end = time.Time{}
	}
	m.mu.Unlock()
}

func (m *Metrics) Stop() {
	m.mu.Lock()
	if !m.start.IsZero() && m.end.IsZero() {
		m.end = time.Now()
	}
	m.mu.Unlock()
}

func (m *Metrics) AddSamples(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.samples += n
	m.mu.Unlock()
}

func (m *Metrics) AddFrames(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.frames += n
	m.mu.Unlock()
}

func (m *Metrics) AddEvents(n int64) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.events += n
	m.mu.Unlock()
}

func (m *Metrics) SetTotalSamples(total int64) {
	if total < 0 {
		total = 0
	}
	m.mu.Lock()
	m.totalSamples = total
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Duration:     m.elapsedLocked(),
		Samples:      m.samples,
		TotalSamples: m.totalSamples,
		Frames:       m.frames,
		Events:       m.events,
	}
}

func (m *Metrics) elapsedLocked() time.Duration {
	if m.start.IsZero() {
		return 0
	}
	if !m.end.IsZero() {
		return m.end.Sub(m.start)
	}
	return time.Since(m.start)
}

type MetricsSnapshot struct {
	Duration     time.Duration
	Samples      int64
	TotalSamples int64
	Frames       int64
	Events       int64
}

// ThroughputSamplesPerSecond reports the scan rate over the measured window.
func (s MetricsSnapshot) ThroughputSamplesPerSecond() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Samples) / s.Duration.Seconds()
}

// FormatSamples renders a sample count with an SI prefix.
func FormatSamples(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2f Gsa", float64(n)/1_000_000_000)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2f Msa", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.2f ksa", float64(n)/1_000)
	}
	return fmt.Sprintf("%d sa", n)
}
