package engine

import (
	"sync"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// AlertRing is a bounded, time-ordered alert history with deduplication.
// Insertion is at the head; the oldest alert is evicted once capacity is
// exceeded. An incoming alert matching an unacknowledged alert's (symbol,
// category) within the cool-down window is suppressed so a metric
// oscillating near its threshold cannot storm the buffer.
type AlertRing struct {
	mu       sync.RWMutex
	capacity int
	cooldown time.Duration
	alerts   []domain.Alert // newest first
	now      func() time.Time
}

// NewAlertRing creates a ring with the given capacity and dedup cool-down.
func NewAlertRing(capacity int, cooldown time.Duration) *AlertRing {
	if capacity <= 0 {
		capacity = 12
	}
	return &AlertRing{
		capacity: capacity,
		cooldown: cooldown,
		alerts:   make([]domain.Alert, 0, capacity),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Insert adds an alert unless it is deduplicated. It reports whether the
// alert was actually inserted.
func (r *AlertRing) Insert(alert domain.Alert) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for _, existing := range r.alerts {
		if existing.Acknowledged {
			continue
		}
		if existing.Symbol != alert.Symbol || existing.Category != alert.Category {
			continue
		}
		if now.Sub(existing.Timestamp) < r.cooldown {
			return false
		}
	}

	r.alerts = append([]domain.Alert{alert}, r.alerts...)
	if len(r.alerts) > r.capacity {
		r.alerts = r.alerts[:r.capacity]
	}
	return true
}

// Acknowledge marks the alert with the given id as acknowledged, re-arming
// deduplication for its (symbol, category). It reports whether the alert was
// found.
func (r *AlertRing) Acknowledge(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].Acknowledged = true
			return true
		}
	}
	return false
}

// List returns a copy of the buffered alerts, newest first.
func (r *AlertRing) List() []domain.Alert {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Unacknowledged returns the number of unacknowledged alerts.
func (r *AlertRing) Unacknowledged() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, a := range r.alerts {
		if !a.Acknowledged {
			n++
		}
	}
	return n
}
