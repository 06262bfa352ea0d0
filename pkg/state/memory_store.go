package state

import (
	"context"
	"sync"

	"github.com/goliatone/go-intake/layering"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store intended for tests, examples and
// ephemeral sessions. Values are deep copied on the way in and out so callers
// never share maps with the stored record.
type MemoryStore struct {
	mu      sync.RWMutex
	cfg     config
	records map[string]Record
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		cfg:     applyOptions(opts),
		records: map[string]Record{},
	}
}

func (s *MemoryStore) Key() string { return s.cfg.key }

func (s *MemoryStore) Replace(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return wrapPersistence("replace", "", err)
	}
	if err := s.cfg.checkRecord(record); err != nil {
		return err
	}
	s.mu.Lock()
	s.records[s.cfg.key] = record.Clone()
	if s.records[s.cfg.key] == nil {
		s.records[s.cfg.key] = Record{}
	}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Read(ctx context.Context) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, wrapPersistence("read", "", err)
	}
	s.mu.RLock()
	record, ok := s.records[s.cfg.key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return record.Clone(), true, nil
}

func (s *MemoryStore) Delete(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return wrapPersistence("delete", "", err)
	}
	s.mu.Lock()
	delete(s.records, s.cfg.key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) UpdateSubsection(ctx context.Context, name string, data any) error {
	if err := ctx.Err(); err != nil {
		return wrapPersistence("update", name, err)
	}
	if err := s.cfg.checkSubsection(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[s.cfg.key]
	if !ok {
		record = Record{}
		s.records[s.cfg.key] = record
	}
	record[name] = layering.Clone(data)
	return nil
}
