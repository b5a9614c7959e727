package scanner

import (
	"context"
	"fmt"

	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/domain"
	"github.com/rafmarimon/gcc-business-intelligence-sub000/internal/source"
)

// Scanner captures a single extraction strategy (selector-driven HTML,
// RSS/Atom feed, etc.).
type Scanner interface {
	Kind() source.Kind
	Scan(ctx context.Context, src source.Descriptor) ([]domain.RawCandidate, error)
}

// Registry keeps a mapping from source kinds to their scanners.
type Registry struct {
	scanners map[source.Kind]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[source.Kind]Scanner{}}
}

// Register adds or replaces the scanner for its kind.
func (r *Registry) Register(s Scanner) {
	if r.scanners == nil {
		r.scanners = map[source.Kind]Scanner{}
	}
	r.scanners[s.Kind()] = s
}

// Resolve returns the scanner handling kind or an error if it is absent.
func (r *Registry) Resolve(kind source.Kind) (Scanner, error) {
	if s, ok := r.scanners[kind]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("no scanner registered for kind %q", kind)
}
