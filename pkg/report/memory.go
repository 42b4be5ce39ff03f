package report

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps reports in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	reports map[string]*Report
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{reports: make(map[string]*Report)}
}

func (s *MemoryStore) Save(_ context.Context, r *Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *r
	cp.Invocations = append([]Invocation(nil), r.Invocations...)
	s.reports[r.ID] = &cp
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]*Report, error) {
	s.mu.RLock()
	all := make([]*Report, 0, len(s.reports))
	for _, r := range s.reports {
		cp := *r
		all = append(all, &cp)
	}
	s.mu.RUnlock()
	return applyFilter(all, f), nil
}

// applyFilter sorts newest first, then filters and truncates.
func applyFilter(reports []*Report, f Filter) []*Report {
	sort.Slice(reports, func(i, j int) bool {
		if reports[i].StartedAt.Equal(reports[j].StartedAt) {
			return reports[i].ID > reports[j].ID
		}
		return reports[i].StartedAt.After(reports[j].StartedAt)
	})
	out := reports[:0]
	for _, r := range reports {
		if f.Label != "" && r.Job.Label != f.Label {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

var _ Store = (*MemoryStore)(nil)
