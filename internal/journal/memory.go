package journal

import (
	"context"
	"fmt"
	"sync"
)

var _ Journal = (*memory)(nil)

type memory struct {
	mu      sync.Mutex
	records map[string]map[string]Record
}

// NewMemory returns a Journal that only lives as long as the process.
func NewMemory() Journal {
	return &memory{records: make(map[string]map[string]Record)}
}

func (m *memory) Begin(_ context.Context, rec Record) (Record, error) {
	if err := rec.validate(); err != nil {
		return Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.records[rec.Tag]
	if !ok {
		bucket = make(map[string]Record)
		m.records[rec.Tag] = bucket
	}
	if existing, ok := bucket[rec.ImageID]; ok {
		return existing, nil
	}
	bucket[rec.ImageID] = rec
	return rec, nil
}

func (m *memory) MarkDeregistered(_ context.Context, tag, imageID string) error {
	return m.update(tag, imageID, func(r *Record) { r.Deregistered = true })
}

func (m *memory) MarkSnapshotDeleted(_ context.Context, tag, imageID, snapshotID string) error {
	return m.update(tag, imageID, func(r *Record) { r.markDeleted(snapshotID) })
}

func (m *memory) Finish(_ context.Context, tag, imageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records[tag], imageID)
	return nil
}

func (m *memory) Pending(_ context.Context, tag string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recs []Record
	for _, r := range m.records[tag] {
		recs = append(recs, r)
	}
	sortByStart(recs)
	return recs, nil
}

func (m *memory) update(tag, imageID string, fn func(*Record)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[tag][imageID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, imageID)
	}
	fn(&rec)
	m.records[tag][imageID] = rec
	return nil
}
