package alerts

import (
	"sync"
	"time"

	"fleetwatch/internal/model"
)

// Store is the bounded alert log. buf[0] is the newest entry. When the
// cap is exceeded the oldest non-critical entry goes first; only when
// every entry is critical does the oldest critical get dropped.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Alert
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 100
	}
	return &Store{limit: limit}
}

func (s *Store) Add(alert model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append([]model.Alert{alert}, s.buf...)
	if len(s.buf) <= s.limit {
		return
	}
	// Drop from the tail (oldest first), sparing critical entries.
	for i := len(s.buf) - 1; i >= 0; i-- {
		if s.buf[i].Severity != model.SeverityCritical {
			s.buf = append(s.buf[:i], s.buf[i+1:]...)
			return
		}
	}
	s.buf = s.buf[:len(s.buf)-1]
}

// List returns up to limit alerts, newest first. limit <= 0 returns all
// live entries.
func (s *Store) List(limit int) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Alert, limit)
	copy(out, s.buf[:limit])
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buf)
}

// Acknowledge marks an alert acknowledged. Acknowledging twice is a
// no-op; an unknown id yields model.ErrNotFound.
func (s *Store) Acknowledge(id string, now time.Time) (model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.buf {
		if s.buf[i].ID != id {
			continue
		}
		if !s.buf[i].Acknowledged {
			s.buf[i].Acknowledged = true
			at := now.UTC()
			s.buf[i].AcknowledgedAt = &at
		}
		return s.buf[i], nil
	}
	return model.Alert{}, model.ErrNotFound
}

// Prune removes entries older than maxAge, keeping critical alerts
// regardless of age. Returns the number removed.
func (s *Store) Prune(now time.Time, maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.buf[:0]
	removed := 0
	for _, a := range s.buf {
		if a.Severity != model.SeverityCritical && now.Sub(a.Timestamp) > maxAge {
			removed++
			continue
		}
		kept = append(kept, a)
	}
	s.buf = kept
	return removed
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
