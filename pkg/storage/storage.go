package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Storage stores and retrieves objects by key.
type Storage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

var unsafeSegment = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ListKey builds the object key for an uploaded recipient list: lists/{id}/{filename}.
func ListKey(id uuid.UUID, filename string) string {
	name := unsafeSegment.ReplaceAllString(path.Base(strings.TrimSpace(filename)), "_")
	if name == "" || name == "." || name == "_" {
		name = "list.csv"
	}
	return path.Join("lists", id.String(), name)
}

// Memory is an in-process Storage.
type Memory struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemory creates an empty in-memory storage.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string][]byte)}
}

// Put implements Storage.
func (m *Memory) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Join(ErrUploadFailed, err)
	}
	m.mu.Lock()
	m.objects[key] = data
	m.mu.Unlock()
	return key, nil
}

// Get implements Storage.
func (m *Memory) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.RLock()
	data, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete implements Storage.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.objects, key)
	m.mu.Unlock()
	return nil
}

var _ Storage = (*Memory)(nil)
