package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"neurodoc/internal/domain"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// Each namespace keeps records in insertion order so ties rank stably.
type Storage struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
}

type namespace struct {
	spec    domain.NamespaceSpec
	records []domain.Record
	byID    map[string]int
}

func NewStorage() *Storage {
	return &Storage{namespaces: make(map[string]*namespace)}
}

func (s *Storage) ListNamespaces(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.namespaces))
	for name := range s.namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Storage) CreateNamespace(_ context.Context, spec domain.NamespaceSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrStoreUnavailable, spec.Dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[spec.Name]; ok {
		return domain.ErrAlreadyExists
	}
	s.namespaces[spec.Name] = &namespace{spec: spec, byID: make(map[string]int)}
	return nil
}

func (s *Storage) Upsert(_ context.Context, name string, records []domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrNamespaceNotFound, name)
	}
	for _, r := range records {
		if len(r.Vector) != ns.spec.Dimension {
			return fmt.Errorf("%w: vector dimension %d, namespace expects %d",
				domain.ErrStoreUnavailable, len(r.Vector), ns.spec.Dimension)
		}
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		if i, ok := ns.byID[r.ID]; ok {
			ns.records[i] = r
			continue
		}
		ns.byID[r.ID] = len(ns.records)
		ns.records = append(ns.records, r)
	}
	return nil
}

func (s *Storage) Query(_ context.Context, name string, vector []float32, topK int) ([]domain.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNamespaceNotFound, name)
	}
	if topK <= 0 {
		topK = 5
	}
	matches := make([]domain.Match, len(ns.records))
	for i, r := range ns.records {
		matches[i] = domain.Match{ID: r.ID, Score: cosine(r.Vector, vector), Metadata: r.Metadata}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > len(matches) {
		topK = len(matches)
	}
	return matches[:topK], nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
