package poi

import (
	"context"
	"sort"
	"sync"

	"github.com/urbanindex/urbanindex/internal/geo"
)

// InMemorySource is an in-memory implementation of Source and Writer for
// tests and local development.
type InMemorySource struct {
	mu   sync.RWMutex
	pois map[string]POI
}

// NewInMemorySource creates an empty in-memory POI source.
func NewInMemorySource() *InMemorySource {
	return &InMemorySource{pois: make(map[string]POI)}
}

// Add stores POIs, replacing any with the same ID.
func (s *InMemorySource) Add(pois ...POI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pois {
		s.pois[p.ID] = p
	}
}

// QueryNear returns POIs within radiusMeters of the point, sorted by
// distance.
func (s *InMemorySource) QueryNear(_ context.Context, lat, lng, radiusMeters float64, tags []string) ([]POI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tagSet := toSet(tags)
	var out []POI
	for _, p := range s.pois {
		if !tagSet[p.Tag] {
			continue
		}
		d := geo.DistanceMeters(lat, lng, p.Lat, p.Lng)
		if d <= radiusMeters {
			p.DistanceMeters = d
			out = append(out, p)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].DistanceMeters < out[j].DistanceMeters
	})
	return out, nil
}

// QueryRegion returns all matching POIs inside the box.
func (s *InMemorySource) QueryRegion(_ context.Context, bounds geo.Bounds, tags []string) ([]POI, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tagSet := toSet(tags)
	var out []POI
	for _, p := range s.pois {
		if tagSet[p.Tag] && bounds.Contains(p.Lat, p.Lng) {
			p.DistanceMeters = 0
			out = append(out, p)
		}
	}
	return out, nil
}

// ExistsAny reports whether any POI exists inside the box.
func (s *InMemorySource) ExistsAny(_ context.Context, bounds geo.Bounds) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.pois {
		if bounds.Contains(p.Lat, p.Lng) {
			return true, nil
		}
	}
	return false, nil
}

// UpsertBatch stores POIs keyed by ID.
func (s *InMemorySource) UpsertBatch(_ context.Context, pois []POI) (int, error) {
	s.Add(pois...)
	return len(pois), nil
}

func toSet(tags []string) map[string]bool {
	set := make(map[string]bool, len(tags))
	for _, t := range tags {
		set[t] = true
	}
	return set
}
