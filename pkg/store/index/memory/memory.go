// Package memory is an in-process index, lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/marmos91/dittodicom/pkg/store/index"
)

// Index keeps records in maps guarded by a read-write mutex.
type Index struct {
	mu      sync.RWMutex
	records map[string]index.Record
	studies map[string]map[string]struct{}
}

// New returns an empty index.
func New() *Index {
	return &Index{
		records: make(map[string]index.Record),
		studies: make(map[string]map[string]struct{}),
	}
}

func (m *Index) Put(ctx context.Context, rec index.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.SOPInstanceUID == "" {
		return fmt.Errorf("record has no SOP instance UID")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.records[rec.SOPInstanceUID]; ok && prev.StudyInstanceUID != rec.StudyInstanceUID {
		delete(m.studies[prev.StudyInstanceUID], rec.SOPInstanceUID)
	}

	m.records[rec.SOPInstanceUID] = rec
	if rec.StudyInstanceUID != "" {
		members, ok := m.studies[rec.StudyInstanceUID]
		if !ok {
			members = make(map[string]struct{})
			m.studies[rec.StudyInstanceUID] = members
		}
		members[rec.SOPInstanceUID] = struct{}{}
	}
	return nil
}

func (m *Index) Get(ctx context.Context, uid string) (index.Record, error) {
	if err := ctx.Err(); err != nil {
		return index.Record{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[uid]
	if !ok {
		return index.Record{}, fmt.Errorf("%s: %w", uid, index.ErrNotFound)
	}
	return rec, nil
}

func (m *Index) Study(ctx context.Context, studyUID string) ([]index.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]index.Record, 0, len(m.studies[studyUID]))
	for uid := range m.studies[studyUID] {
		out = append(out, m.records[uid])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SOPInstanceUID < out[j].SOPInstanceUID })
	return out, nil
}

func (m *Index) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

func (m *Index) Close() error { return nil }
