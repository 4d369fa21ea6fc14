package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// Store is the canonical in-memory table of positions plus the latest
// portfolio snapshot and risk metric set. It is the single source of truth
// for consumers; all mutation goes through the Reconciler so the
// single-writer invariant holds.
type Store struct {
	mu        sync.RWMutex
	positions map[string]domain.Position
	metrics   map[string]domain.RiskMetric
	portfolio domain.PortfolioSnapshot
	stale     bool
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		positions: make(map[string]domain.Position),
		metrics:   make(map[string]domain.RiskMetric),
	}
}

// Get returns the position with the given id.
func (s *Store) Get(id string) (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.positions[id]
	return pos, ok
}

// List returns all positions matching the predicate, ordered by opened-at
// time then id for deterministic output. A nil predicate matches everything.
func (s *Store) List(pred func(domain.Position) bool) []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		if pred == nil || pred(pos) {
			out = append(out, pos)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OpenedAt.Equal(out[j].OpenedAt) {
			return out[i].OpenedAt.Before(out[j].OpenedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Active returns all active positions.
func (s *Store) Active() []domain.Position {
	return s.List(domain.Position.Active)
}

// upsert stores a position record. Reconciler use only.
func (s *Store) upsert(pos domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[pos.ID] = pos
}

// markClosed transitions a position to closed at the given time. It is a
// no-op when the position is unknown or already closed; the closed status is
// terminal. It returns the closed record and whether a transition happened.
func (s *Store) markClosed(id string, at time.Time, seq int64) (domain.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pos, ok := s.positions[id]
	if !ok || pos.Status == domain.PositionStatusClosed {
		return domain.Position{}, false
	}
	pos.Status = domain.PositionStatusClosed
	closedAt := at
	pos.ClosedAt = &closedAt
	pos.UpdatedAt = at
	if seq > pos.Sequence {
		pos.Sequence = seq
	}
	s.positions[id] = pos
	return pos, true
}

// SetMetrics replaces the current risk metric set.
func (s *Store) SetMetrics(metrics []domain.RiskMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = make(map[string]domain.RiskMetric, len(metrics))
	for _, m := range metrics {
		s.metrics[m.Name] = m
	}
}

// Metric returns the named risk metric.
func (s *Store) Metric(name string) (domain.RiskMetric, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.metrics[name]
	return m, ok
}

// Metrics returns the current risk metric set ordered by name.
func (s *Store) Metrics() []domain.RiskMetric {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.RiskMetric, 0, len(s.metrics))
	for _, m := range s.metrics {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// SetPortfolio replaces the latest portfolio snapshot.
func (s *Store) SetPortfolio(p domain.PortfolioSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.portfolio = p
}

// Portfolio returns the latest portfolio snapshot.
func (s *Store) Portfolio() domain.PortfolioSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.portfolio
}

// SetStale flags the store contents as last-known-good rather than current.
// Data is never cleared on staleness.
func (s *Store) SetStale(stale bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stale = stale
}

// Stale reports whether the store contents are flagged stale.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stale
}
