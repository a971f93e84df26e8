package mailer

import (
	"fmt"
	"slices"
)

// Mode selects how providers are ordered for an attempt.
type Mode string

const (
	// ModeSingle uses only the primary provider.
	ModeSingle Mode = "single"
	// ModeHybrid prefers the primary provider and falls back to the others in registration order.
	ModeHybrid Mode = "hybrid"
)

// Set is the collection of configured providers.
type Set struct {
	byName  map[string]Provider
	mode    Mode
	primary string
	order   []string
}

// NewSet creates a provider set. primary must name one of providers.
func NewSet(mode Mode, primary string, providers ...Provider) (*Set, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if mode != ModeSingle && mode != ModeHybrid {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMode, mode)
	}

	s := &Set{byName: make(map[string]Provider, len(providers)), mode: mode, primary: primary}
	for _, p := range providers {
		if _, dup := s.byName[p.Name()]; dup {
			return nil, fmt.Errorf("mailer: duplicate provider %q", p.Name())
		}
		s.byName[p.Name()] = p
		s.order = append(s.order, p.Name())
	}
	if _, ok := s.byName[primary]; !ok {
		return nil, fmt.Errorf("%w: primary %q", ErrUnknownProvider, primary)
	}

	s.order = slices.DeleteFunc(s.order, func(n string) bool { return n == primary })
	s.order = append([]string{primary}, s.order...)
	return s, nil
}

// Get returns a provider by name.
func (s *Set) Get(name string) (Provider, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Names returns the provider names usable in the current mode, primary first.
func (s *Set) Names() []string {
	if s.mode == ModeSingle {
		return []string{s.primary}
	}
	return slices.Clone(s.order)
}

// Providers returns the providers usable in the current mode, primary first.
func (s *Set) Providers() []Provider {
	names := s.Names()
	out := make([]Provider, len(names))
	for i, n := range names {
		out[i] = s.byName[n]
	}
	return out
}

// Candidates returns the provider order for one attempt. A preferred provider, usually chosen
// by the retry policy, goes first when it is usable. allowed restricts the result when non-empty.
func (s *Set) Candidates(preferred string, allowed ...string) []string {
	names := s.Names()
	if len(allowed) > 0 {
		names = slices.DeleteFunc(names, func(n string) bool { return !slices.Contains(allowed, n) })
	}
	if i := slices.Index(names, preferred); i > 0 {
		names = append([]string{preferred}, slices.Delete(names, i, i+1)...)
	}
	return names
}
