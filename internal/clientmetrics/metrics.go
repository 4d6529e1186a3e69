package clientmetrics

import (
	"sync"
	"time"
)

// SessionMetrics tracks render statistics for browser-backed discovery.
type SessionMetrics struct {
	mu          sync.Mutex
	startTime   time.Time
	sessions    int64
	restarts    int64
	renders     int64
	failures    int64
	linksFound  int64
	assetsFound int64
	domBytes    int64
	renderTime  time.Duration
}

// New creates a new SessionMetrics instance.
func New() *SessionMetrics {
	return &SessionMetrics{}
}

// MarkStarted records the pool start time.
func (m *SessionMetrics) MarkStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTime = time.Now()
}

// SessionOpened counts a newly connected browser session.
func (m *SessionMetrics) SessionOpened(replacement bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions++
	if replacement {
		m.restarts++
	}
}

// RenderSucceeded records a completed render.
func (m *SessionMetrics) RenderSucceeded(elapsed time.Duration, domBytes, links, assets int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.renders++
	m.renderTime += elapsed
	m.domBytes += int64(domBytes)
	m.linksFound += int64(links)
	m.assetsFound += int64(assets)
}

// RenderFailed increments the failure counter.
func (m *SessionMetrics) RenderFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// Snapshot is a point-in-time view of the counters.
type Snapshot struct {
	Uptime        time.Duration `json:"-"`
	Sessions      int64         `json:"sessions"`
	Restarts      int64         `json:"restarts"`
	Renders       int64         `json:"renders"`
	Failures      int64         `json:"failures"`
	LinksFound    int64         `json:"links_found"`
	AssetsFound   int64         `json:"assets_found"`
	DOMBytes      int64         `json:"dom_bytes"`
	AvgRenderTime time.Duration `json:"-"`
	AvgRenderMs   float64       `json:"avg_render_ms"`
}

// Snapshot returns a consistent snapshot of all metrics.
func (m *SessionMetrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	uptime := time.Duration(0)
	if !m.startTime.IsZero() {
		uptime = time.Since(m.startTime)
	}
	var avg time.Duration
	if m.renders > 0 {
		avg = m.renderTime / time.Duration(m.renders)
	}

	return Snapshot{
		Uptime:        uptime,
		Sessions:      m.sessions,
		Restarts:      m.restarts,
		Renders:       m.renders,
		Failures:      m.failures,
		LinksFound:    m.linksFound,
		AssetsFound:   m.assetsFound,
		DOMBytes:      m.domBytes,
		AvgRenderTime: avg,
		AvgRenderMs:   float64(avg) / float64(time.Millisecond),
	}
}
