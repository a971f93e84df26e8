package source

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/dmitrymomot/mailcast/pkg/campaign"
)

// Record is one recipient row.
type Record struct {
	Name      string             `json:"name"`
	Email     string             `json:"email"`
	Variables campaign.Variables `json:"variables"`
}

// Source yields records in ingestion order.
type Source interface {
	// Next returns the next record, or io.EOF when the source is exhausted.
	Next(ctx context.Context) (Record, error)
	// Offset is the number of records consumed so far.
	Offset() int
	Close() error
}

// Opener opens a source reference positioned at offset.
type Opener interface {
	Open(ctx context.Context, ref string, offset int) (Source, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, ref string, offset int) (Source, error)

func (f OpenerFunc) Open(ctx context.Context, ref string, offset int) (Source, error) {
	return f(ctx, ref, offset)
}

// Skip consumes offset records from src.
func Skip(ctx context.Context, src Source, offset int) error {
	for src.Offset() < offset {
		if _, err := src.Next(ctx); err != nil {
			if err == io.EOF {
				return fmt.Errorf("%w: %d", ErrInvalidOffset, offset)
			}
			return err
		}
	}
	return nil
}

// Mux dispatches references to openers by URI scheme.
type Mux struct {
	openers map[string]Opener
	mu      sync.RWMutex
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{openers: make(map[string]Opener)}
}

// Handle registers an opener for scheme.
func (m *Mux) Handle(scheme string, o Opener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openers[scheme] = o
}

// Open implements Opener.
func (m *Mux) Open(ctx context.Context, ref string, offset int) (Source, error) {
	scheme, _, ok := strings.Cut(ref, "://")
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, ref)
	}
	m.mu.RLock()
	o, found := m.openers[scheme]
	m.mu.RUnlock()
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrUnknownScheme, scheme)
	}
	return o.Open(ctx, ref, offset)
}
