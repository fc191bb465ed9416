package intake

import (
	"context"
	"sync"
)

// MemoryRepository keeps registrations in process memory.
type MemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Insert(_ context.Context, rec *Record) error {
	cp := *rec
	cp.Reports = append([]string{}, rec.Reports...)

	r.mu.Lock()
	r.records = append(r.records, &cp)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) LatestByEmail(_ context.Context, email string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].Email == email {
			cp := *r.records[i]
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// All returns a snapshot of every stored record in insertion order.
func (r *MemoryRepository) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, *rec)
	}
	return out
}
