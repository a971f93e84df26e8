package source

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
)

// SchemeMemory is the reference scheme of in-memory lists.
const SchemeMemory = "mem"

type sliceSource struct {
	records []Record
	pos     int
}

// NewSlice returns a source over a fixed list of records.
func NewSlice(records []Record) Source {
	return &sliceSource{records: records}
}

func (s *sliceSource) Next(ctx context.Context) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if s.pos >= len(s.records) {
		return Record{}, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}

func (s *sliceSource) Offset() int { return s.pos }

func (s *sliceSource) Close() error { return nil }

// Memory stores recipient lists in process under mem:// references.
type Memory struct {
	lists map[string][]Record
	mu    sync.RWMutex
}

// NewMemory creates an empty list registry.
func NewMemory() *Memory {
	return &Memory{lists: make(map[string][]Record)}
}

// Put stores a list and returns its reference.
func (m *Memory) Put(name string, records []Record) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[name] = slices.Clone(records)
	return SchemeMemory + "://" + name
}

// Open implements Opener.
func (m *Memory) Open(ctx context.Context, ref string, offset int) (Source, error) {
	name := strings.TrimPrefix(ref, SchemeMemory+"://")
	m.mu.RLock()
	records, ok := m.lists[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if offset > len(records) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
	}
	return &sliceSource{records: records, pos: offset}, nil
}
