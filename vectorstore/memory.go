package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryIndex is a brute-force in-memory index using cosine distance. It
// backs tests and zero-dependency development runs.
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{collections: make(map[string]map[string]Record)}
}

func (s *MemoryIndex) Upsert(_ context.Context, collection string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Record, len(records))
		s.collections[collection] = coll
	}
	for _, rec := range records {
		coll[rec.ID] = rec
	}
	return nil
}

func (s *MemoryIndex) Query(_ context.Context, collection string, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		k = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	matches := make([]Match, 0, len(coll))
	for _, rec := range coll {
		matches = append(matches, Match{
			Text:     rec.Text,
			Metadata: rec.Metadata,
			Distance: cosineDistance(vector, rec.Vector),
		})
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Count returns the number of records in a collection.
func (s *MemoryIndex) Count(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collections[collection])
}

func cosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

var _ Index = (*MemoryIndex)(nil)
