// Package window provides bounded per-metric sample history.
package window

import (
	"sort"
	"time"

	"github.com/soltixdb/telewatch/internal/models"
)

// DefaultCapacity is used when a store or ring is created with a non-positive capacity
const DefaultCapacity = 60

// Ring is a fixed-capacity FIFO of samples. Pushing into a full ring
// overwrites the oldest sample, so Len never exceeds Capacity.
type Ring struct {
	buf   []models.Sample
	head  int // index of the oldest sample
	count int
}

// NewRing creates an empty ring
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{buf: make([]models.Sample, capacity)}
}

// Push appends a sample, evicting the oldest one when full
func (r *Ring) Push(s models.Sample) {
	if r.count < len(r.buf) {
		r.buf[(r.head+r.count)%len(r.buf)] = s
		r.count++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

// Len returns the number of stored samples
func (r *Ring) Len() int {
	return r.count
}

// Capacity returns the maximum number of stored samples
func (r *Ring) Capacity() int {
	return len(r.buf)
}

// Latest returns the newest sample
func (r *Ring) Latest() (models.Sample, bool) {
	if r.count == 0 {
		return models.Sample{}, false
	}
	return r.buf[(r.head+r.count-1)%len(r.buf)], true
}

// Snapshot copies the samples oldest first
func (r *Ring) Snapshot() []models.Sample {
	out := make([]models.Sample, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}

// Store keeps one Ring per metric name. All rings share the same capacity.
type Store struct {
	capacity int
	rings    map[string]*Ring
}

// NewStore creates a store with a uniform per-metric capacity
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		rings:    make(map[string]*Ring),
	}
}

// Push records a value for a metric
func (s *Store) Push(metric string, value float64, ts time.Time) {
	r, ok := s.rings[metric]
	if !ok {
		r = NewRing(s.capacity)
		s.rings[metric] = r
	}
	r.Push(models.NewSample(metric, value, ts))
}

// Window returns the history of a metric oldest first. Unknown metrics yield an empty slice.
func (s *Store) Window(metric string) []models.Sample {
	r, ok := s.rings[metric]
	if !ok {
		return []models.Sample{}
	}
	return r.Snapshot()
}

// Latest returns the newest sample of a metric
func (s *Store) Latest(metric string) (models.Sample, bool) {
	r, ok := s.rings[metric]
	if !ok {
		return models.Sample{}, false
	}
	return r.Latest()
}

// Len returns the number of samples held for a metric
func (s *Store) Len(metric string) int {
	if r, ok := s.rings[metric]; ok {
		return r.Len()
	}
	return 0
}

// Capacity returns the per-metric capacity
func (s *Store) Capacity() int {
	return s.capacity
}

// Metrics returns the known metric names, sorted
func (s *Store) Metrics() []string {
	names := make([]string, 0, len(s.rings))
	for name := range s.rings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
