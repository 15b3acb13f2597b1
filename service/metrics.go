package service

import (
	"sync"
	"time"
)

// MetricsCollector tracks cart reconstruction counters and timings
type MetricsCollector struct {
	mu sync.RWMutex

	reconstructions int
	failures        int
	messagesFetched int
	itemsReturned   int
	itemsSkipped    int
	itemsCleared    int

	totalTime          time.Duration
	lastDuration       time.Duration
	lastReconstruction time.Time
}

type reconstructionStats struct {
	messages int
	items    int
	skipped  int
	cleared  int
}

// MetricsResponse is a snapshot of the collected metrics
type MetricsResponse struct {
	Reconstructions    int       `json:"reconstructions"`
	Failures           int       `json:"failures"`
	MessagesFetched    int       `json:"messages_fetched"`
	ItemsReturned      int       `json:"items_returned"`
	ItemsSkipped       int       `json:"items_skipped"`
	ItemsCleared       int       `json:"items_cleared"`
	ProcessingTime     int64     `json:"processing_time_ms"`
	LastDuration       int64     `json:"last_duration_ms"`
	LastReconstruction time.Time `json:"last_reconstruction,omitempty"`
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{}
}

// RecordReconstruction records the outcome of one GetCommittedCart call.
func (mc *MetricsCollector) RecordReconstruction(duration time.Duration, stats reconstructionStats, err error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.reconstructions++
	mc.totalTime += duration
	mc.lastDuration = duration
	mc.lastReconstruction = time.Now()
	mc.messagesFetched += stats.messages

	if err != nil {
		mc.failures++
		return
	}
	mc.itemsReturned += stats.items
	mc.itemsSkipped += stats.skipped
	mc.itemsCleared += stats.cleared
}

// GetMetrics returns the current metrics
func (mc *MetricsCollector) GetMetrics() MetricsResponse {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return MetricsResponse{
		Reconstructions:    mc.reconstructions,
		Failures:           mc.failures,
		MessagesFetched:    mc.messagesFetched,
		ItemsReturned:      mc.itemsReturned,
		ItemsSkipped:       mc.itemsSkipped,
		ItemsCleared:       mc.itemsCleared,
		ProcessingTime:     mc.totalTime.Milliseconds(),
		LastDuration:       mc.lastDuration.Milliseconds(),
		LastReconstruction: mc.lastReconstruction,
	}
}

// Reset clears all metrics
func (mc *MetricsCollector) Reset() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	mc.reconstructions = 0
	mc.failures = 0
	mc.messagesFetched = 0
	mc.itemsReturned = 0
	mc.itemsSkipped = 0
	mc.itemsCleared = 0
	mc.totalTime = 0
	mc.lastDuration = 0
	mc.lastReconstruction = time.Time{}
}
